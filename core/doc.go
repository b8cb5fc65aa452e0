// Package core provides the foundational domain types and contracts used by
// stageflow. It defines the shared vocabulary of the pipeline:
//
//   - Task (the opaque unit of stage work)
//   - StageResult / Snapshot (what stages leave behind for later waves)
//   - ContextStore (the namespaced, TTL-scoped result store contract)
//   - StageLimiter (per-run stage execution budget)
//
// The package intentionally keeps implementation concerns (concrete stores,
// the batch executor, the pipeline engine) out of scope, exposing small
// types and interfaces to enable custom backends and extensions without
// introducing dependency cycles.
package core
