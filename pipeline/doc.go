// Package pipeline drives plans of agent stages through the coordination
// services: conditions gate which stages of a wave run, the permission
// checker authorizes their declared resource requests, the bounded
// executor runs the wave, and every result lands in the context store
// under the results namespace where later waves' conditions can see it.
//
// A Plan is an ordered list of waves; the stages of one wave are
// independent and run concurrently under the executor's admission cap.
// Stage bodies are opaque core.Task closures, typically bound to a
// declarative plan via the config package.
//
// Runs fail hard on denied access, exhausted stage budgets, task errors
// and batch timeouts; skipped stages (failed conditions) are a normal
// outcome recorded in the report, not an error.
package pipeline
