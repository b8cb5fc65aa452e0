// Package config loads declarative plan and role definitions from YAML
// files and keeps role tables fresh at runtime.
//
// Plans describe waves, stages, gating conditions and resource requests;
// stage bodies are code, not configuration, and are attached afterwards
// with Bind. Condition expressions are parsed at load time so a typo
// surfaces as a position error instead of a silently skipped stage.
//
// Role files define role grants and agent assignments and can be applied
// to a permission.Checker in one step. The Watcher reloads and re-applies
// a roles file whenever it changes on disk, so access policy can be
// edited without restarting the process.
package config
