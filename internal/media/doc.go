// Package media handles clip media artifacts: downloading files from
// short-lived handles and extracting transcription-ready audio with ffmpeg.
//
// Functions here are transport and tooling only; classification of failures
// (expired handle, corrupt media, tool errors) belongs to the verification
// stage that calls them.
package media
