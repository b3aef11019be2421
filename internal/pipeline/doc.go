// Package pipeline sequences the four stages over a word list and keeps the
// run ledger. Stages own their caches, checkpoints, and unit-level failure
// handling; the pipeline only decides what flows forward, counts outcomes,
// and reports the run.
package pipeline
