// Package scoring is the snippet-judgment stage: each candidate's transcript
// snippet is scored by the LLM against the target word, the judgment is
// cached per (word, clip) pair, and candidates below the configured threshold
// or missing the word are filtered out before verification spends bandwidth
// on them.
package scoring
