// Package clip defines the domain types that flow through the pipeline:
// vocabulary words, search candidates, scored candidates, verified clips,
// word-video mappings, and upload results.
//
// The lifecycle is monotonically narrowing. A Word produces zero or more
// Candidates, scoring keeps the subset passing the candidate threshold,
// verification keeps the subset passing the verification threshold, and
// upload produces one mapping per surviving clip. Types here are plain
// values; stages own all behavior.
package clip
