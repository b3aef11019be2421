// Package transcribe wraps an OpenAI-compatible speech-to-text endpoint for
// the verification stage. Transcriptions are requested as verbose JSON with
// word and segment timestamps; the result is the authoritative transcript a
// clip is re-judged against.
package transcribe
