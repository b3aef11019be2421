// Package checkpoint persists the durable state that makes pipeline runs
// resumable and idempotent: one completion marker per unit of work, an
// append-only failure log, word-video mappings, and a run ledger.
//
// Markers are written only after a unit completes, so the sole crash window
// is between completion and the marker write, which can repeat work but
// never lose it. The pipeline never deletes markers; re-running a marked
// unit is a no-op. The unit of work is one word for search and scoring and
// one clip per word for verification and upload.
package checkpoint
