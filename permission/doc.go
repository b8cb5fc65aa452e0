// Package permission implements role based access control consulted before
// a stage touches a resource. Roles bundle permissions, each granting one
// action (read, write, delete or execute) on resources matching a glob
// pattern, optionally gated by a predicate over caller supplied metadata.
// An agent's effective permissions are the union over its assigned roles;
// agents with no assignment hold the built-in readonly role. Absence of a
// matching grant denies.
//
// Resource patterns are anchored and segment aware: ** spans any number of
// path segments (including zero), * matches any run of characters within a
// single segment and ? exactly one character. The matcher is deliberately
// self contained so the semantics stay exactly as documented.
//
// CheckAccess returns a plain bool. Callers that want a hard failure build
// one from DenialReason, which names the agent, its roles and the denied
// action and resource.
package permission
