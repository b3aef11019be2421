// Package ratelimit wraps every outbound request to an external service in a
// single retry and pacing policy.
//
// Client.Do retries transient failures with exponential backoff, honors
// server-provided Retry-After hints, paces request starts through an optional
// rate limiter, and fails immediately on non-retryable errors without
// consuming retry budget. Exhausting the attempt budget yields an error
// tagged transient so the calling stage can record the unit as skipped and
// keep the run moving.
package ratelimit
