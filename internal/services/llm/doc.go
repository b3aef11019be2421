// Package llm provides a JSON-mode chat client for LLM relevance judging.
//
// This package is used by:
//   - Scoring stage: judge search-service transcript snippets
//   - Verification stage: re-judge verified audio transcripts
//
// # Judgment Logic
//
// The client sends the target word and a transcript to a configured model
// with a structured prompt requesting JSON output. The response carries a
// relevance score (0-1), the vocabulary words the clip illustrates, and
// free-form confidence notes.
//
// # Configuration
//
// Requires api_key and model, optionally base_url and timeout. Prompt and
// key validation errors are configuration failures and abort the run.
//
// # Entry Points
//
// NewClient: construct client from Config and a shared rate-limited client.
// Client.CompleteJSON: send system/user prompts, receive raw JSON content.
// Client.JudgeRelevance: word-versus-transcript judgment for the pipeline.
//
// # Retry Behaviour
//
// All retry, pacing, and Retry-After handling is delegated to the injected
// ratelimit.Client, so LLM traffic follows the same policy as every other
// external service.
//
// # Failure Classes
//
// HTTP 408/429/5xx and network timeouts are transient. A completion that
// parses as JSON but not as a Judgment is a quality failure: the candidate
// scores zero and the payload snippet is preserved for inspection.
package llm
