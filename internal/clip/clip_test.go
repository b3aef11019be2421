package clip_test

import (
	"testing"
	"time"

	"clipdex/internal/clip"
)

func TestWordKeyNormalizesCaseAndSpace(t *testing.T) {
	a := clip.Word{Text: " Emergency ", Language: "en"}
	b := clip.Word{Text: "emergency", Language: "en"}
	if a.Key() != b.Key() {
		t.Fatalf("expected identical keys, got %q and %q", a.Key(), b.Key())
	}
	if a.Key() != "en:emergency" {
		t.Fatalf("unexpected key %q", a.Key())
	}
}

func TestWordKeyScopedByLanguage(t *testing.T) {
	en := clip.Word{Text: "chat", Language: "en"}
	fr := clip.Word{Text: "chat", Language: "fr"}
	if en.Key() == fr.Key() {
		t.Fatalf("expected distinct keys across languages, both %q", en.Key())
	}
}

func TestNaturalKeyDeterministic(t *testing.T) {
	first := clip.Candidate{Source: "ClipHub", SourceID: "Abc/123"}
	second := clip.Candidate{Source: "ClipHub", SourceID: "Abc/123"}
	if first.NaturalKey() != second.NaturalKey() {
		t.Fatalf("expected stable natural key, got %q and %q", first.NaturalKey(), second.NaturalKey())
	}
	if got := first.NaturalKey(); got != "cliphub-abc_123" {
		t.Fatalf("unexpected natural key %q", got)
	}
}

func TestHandleExpired(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "no expiry", want: false},
		{name: "future expiry", expires: now.Add(time.Minute), want: false},
		{name: "past expiry", expires: now.Add(-time.Minute), want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := clip.Candidate{DownloadExpiresAt: tc.expires}
			if got := c.HandleExpired(now); got != tc.want {
				t.Fatalf("HandleExpired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScoredCandidatePasses(t *testing.T) {
	cases := []struct {
		name   string
		scored clip.ScoredCandidate
		want   bool
	}{
		{
			name:   "above threshold with word present",
			scored: clip.ScoredCandidate{Score: 0.9, WordPresent: true},
			want:   true,
		},
		{
			name:   "at threshold",
			scored: clip.ScoredCandidate{Score: 0.6, WordPresent: true},
			want:   true,
		},
		{
			name:   "below threshold",
			scored: clip.ScoredCandidate{Score: 0.4, WordPresent: true},
			want:   false,
		},
		{
			name:   "high score but word absent",
			scored: clip.ScoredCandidate{Score: 0.95, WordPresent: false},
			want:   false,
		},
		{
			name:   "parse failure never passes",
			scored: clip.ScoredCandidate{Score: 0.9, WordPresent: true, ParseFailed: true},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scored.Passes(0.6); got != tc.want {
				t.Fatalf("Passes(0.6) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnitKeyWordScoped(t *testing.T) {
	word := clip.Word{Text: "Emergency", Language: "en"}
	key := clip.UnitKey(word, "cliphub-abc123")
	if key != "en:emergency|cliphub-abc123" {
		t.Fatalf("unexpected unit key %q", key)
	}

	other := clip.Word{Text: "crisis", Language: "en"}
	if clip.UnitKey(other, "cliphub-abc123") == key {
		t.Fatal("expected distinct unit keys for distinct words")
	}
}
