// Package logging provides a minimal logging interface and adapters for stageflow.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the pipeline engine, executor and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - RunLogger with contextual run/wave/stage helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	engine := pipeline.New(func(o *pipeline.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
