package clip

import (
	"strings"
	"time"

	"clipdex/internal/textutil"
)

// Word is a vocabulary entry the pipeline finds illustrative clips for.
// Text is kept in its original script; Language is an ISO 639-1 code.
type Word struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Key returns the stable checkpoint and cache key for the word. Keys are
// case-insensitive on the word text and scoped by language so the same
// spelling in two languages is two units of work.
func (w Word) Key() string {
	return w.Language + ":" + strings.ToLower(strings.TrimSpace(w.Text))
}

// Candidate is a raw clip-search result. It carries a short-lived download
// handle; DownloadExpiresAt bounds how long the handle stays usable.
type Candidate struct {
	Source            string    `json:"source"`
	SourceID          string    `json:"source_id"`
	Title             string    `json:"title"`
	TranscriptSnippet string    `json:"transcript_snippet,omitempty"`
	DurationSeconds   float64   `json:"duration_seconds"`
	DownloadURL       string    `json:"download_url"`
	DownloadExpiresAt time.Time `json:"download_expires_at,omitzero"`
}

// NaturalKey derives the deterministic ingestion key for the candidate.
// The same source clip always produces the same key, which is what lets the
// content store refuse duplicate video records across runs.
func (c Candidate) NaturalKey() string {
	return textutil.SanitizeToken(c.Source) + "-" + textutil.SanitizeToken(c.SourceID)
}

// HandleExpired reports whether the download handle is past its validity
// window. Candidates without an expiry never expire.
func (c Candidate) HandleExpired(now time.Time) bool {
	return !c.DownloadExpiresAt.IsZero() && now.After(c.DownloadExpiresAt)
}

// ScoredCandidate is a candidate with the snippet-based LLM judgment applied.
// Score is meaningful only when ParseFailed is false; parse failures are kept
// with score zero so reruns can see the candidate was judged and rejected.
type ScoredCandidate struct {
	Candidate
	Score       float64 `json:"score"`
	WordPresent bool    `json:"word_present"`
	ParseFailed bool    `json:"parse_failed,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// Passes reports whether the candidate survives a scoring gate. The score
// threshold and the independent word-presence check must both pass.
func (s ScoredCandidate) Passes(threshold float64) bool {
	return !s.ParseFailed && s.WordPresent && s.Score >= threshold
}

// TranscriptWord is one word of a transcription with timing and confidence.
type TranscriptWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is the transcription service's view of an audio track.
type Transcript struct {
	Text            string           `json:"text"`
	Language        string           `json:"language,omitempty"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Words           []TranscriptWord `json:"words,omitempty"`
}

// VerifiedClip is a scored candidate that passed the authoritative audio
// gate. MediaPath points at the locally cached media file; the bytes are
// read and encoded only at upload time.
type VerifiedClip struct {
	ScoredCandidate
	Word            Word             `json:"word"`
	MediaPath       string           `json:"media_path"`
	Format          string           `json:"format"`
	SizeBytes       int64            `json:"size_bytes"`
	AudioTranscript string           `json:"audio_transcript"`
	Words           []TranscriptWord `json:"words,omitempty"`
	FinalScore      float64          `json:"final_score"`
}

// Mapping associates one word with one ingested video, carrying the score
// that justified the association and which transcript produced it.
type Mapping struct {
	Word             string           `json:"word"`
	Language         string           `json:"language"`
	NaturalKey       string           `json:"natural_key"`
	RelevanceScore   float64          `json:"relevance_score"`
	TranscriptSource TranscriptSource `json:"transcript_source"`
}

// TranscriptSource records which transcript a relevance score was judged
// against.
type TranscriptSource string

const (
	// TranscriptSourceSnippet marks scores judged from the search service's
	// transcript snippet.
	TranscriptSourceSnippet TranscriptSource = "snippet"
	// TranscriptSourceAudio marks scores judged from the transcribed audio.
	TranscriptSourceAudio TranscriptSource = "audio"
)

// UploadStatus is the content store's per-item ingestion verdict.
type UploadStatus string

const (
	// UploadCreated means a new video record and its mappings were persisted.
	UploadCreated UploadStatus = "created"
	// UploadExisted means the natural key was already present; mappings were
	// merged without creating a second video record.
	UploadExisted UploadStatus = "existed"
	// UploadFailed means the store rejected the item; Reason explains why.
	UploadFailed UploadStatus = "failed"
)

// UploadResult is the per-clip outcome of an ingestion batch.
type UploadResult struct {
	NaturalKey      string       `json:"natural_key"`
	VideoID         string       `json:"video_id,omitempty"`
	Status          UploadStatus `json:"status"`
	MappingsCreated int          `json:"mappings_created"`
	Reason          string       `json:"reason,omitempty"`
}

// UnitKey builds the word-scoped checkpoint key used by the verification and
// upload stages. Scoping by word lets a later word reach a video another word
// already ingested and still submit its own mapping.
func UnitKey(w Word, naturalKey string) string {
	return w.Key() + "|" + naturalKey
}
