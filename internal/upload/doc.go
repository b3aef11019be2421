// Package upload moves verified clips into the content store. Clips are
// batched, media bytes are base64-encoded at the last moment, and each
// accepted item durably records its word-video mapping so the per-video
// mapping cap holds across runs.
package upload
