// Package language normalizes the language codes attached to vocabulary words
// and transcripts.
//
// Word lists arrive with whatever the list author wrote ("en", "eng",
// "English"); word-video mappings and clip-search queries want ISO 639-1.
// All conversions are consolidated here so the wordlist loader, the search
// stage, and the upload payloads agree on one canonical form.
package language
