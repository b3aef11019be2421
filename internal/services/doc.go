// Package services defines shared utilities consumed by the pipeline stages
// and external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp words, stage names, clip keys, and run
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent failure classes (transient vs quality vs resource vs
//     fatal).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
