// Package contentstore posts ingestion batches to the video content store.
// The store is the system of record for videos and word mappings; it dedupes
// on natural key, which is why submitting the same batch twice is safe. This
// client maps per-item wire verdicts onto the domain upload results.
package contentstore
