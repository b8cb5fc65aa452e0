// Package contextstore houses concrete implementations of core.ContextStore.
// The interface itself (and the ContextEntry type) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages (the pipeline engine, stage bodies) from depending
// on concrete storage.
//
// Add additional backends (Redis, Postgres, etc.) in sub-packages without
// changing any calling code; only the wiring layer needs to decide which
// implementation to instantiate.
package contextstore
