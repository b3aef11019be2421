package search_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/logging"
	"clipdex/internal/search"
	"clipdex/internal/services"
	"clipdex/internal/services/clipsearch"
	"clipdex/internal/testsupport"
)

type stubSearcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, query clipsearch.Query) ([]clip.Candidate, error)
}

func (s *stubSearcher) Search(ctx context.Context, query clipsearch.Query) ([]clip.Candidate, error) {
	s.calls.Add(1)
	return s.fn(ctx, query)
}

func testCandidates() []clip.Candidate {
	return []clip.Candidate{
		{Source: "clipbank", SourceID: "abc123", Title: "Evacuation drill", TranscriptSnippet: "this is an emergency", DurationSeconds: 12.5, DownloadURL: "https://clips.example/abc123.mp4"},
		{Source: "clipbank", SourceID: "def456", Title: "Newsroom", TranscriptSnippet: "breaking news tonight", DurationSeconds: 30, DownloadURL: "https://clips.example/def456.mp4"},
	}
}

func TestSearchQueriesServiceAndCaches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "Emergency", Language: "en"}

	var gotQuery clipsearch.Query
	searcher := &stubSearcher{fn: func(_ context.Context, query clipsearch.Query) ([]clip.Candidate, error) {
		gotQuery = query
		return testCandidates(), nil
	}}

	stage := search.New(cfg, store, searcher, logging.NewNop())
	candidates, err := stage.Search(context.Background(), word)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if got := searcher.calls.Load(); got != 1 {
		t.Fatalf("expected 1 search call, got %d", got)
	}

	if gotQuery.Text != "Emergency" || gotQuery.Language != "en" {
		t.Fatalf("unexpected query word: %+v", gotQuery)
	}
	if gotQuery.MinDurationSeconds != cfg.Pipeline.MinDurationSeconds ||
		gotQuery.MaxDurationSeconds != cfg.Pipeline.MaxDurationSeconds {
		t.Fatalf("query did not carry duration bounds: %+v", gotQuery)
	}
	if gotQuery.MaxResults != cfg.Pipeline.MaxVideos {
		t.Fatalf("expected MaxResults %d, got %d", cfg.Pipeline.MaxVideos, gotQuery.MaxResults)
	}

	done, err := store.IsDone(context.Background(), checkpoint.StageSearch, word.Key())
	if err != nil {
		t.Fatalf("IsDone: %v", err)
	}
	if !done {
		t.Fatal("expected search checkpoint after successful search")
	}
}

func TestSearchServesRepeatsFromCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "emergency", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return testCandidates(), nil
	}}
	stage := search.New(cfg, store, searcher, logging.NewNop())

	first, err := stage.Search(context.Background(), word)
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}
	second, err := stage.Search(context.Background(), word)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}

	if got := searcher.calls.Load(); got != 1 {
		t.Fatalf("expected cache hit on second search, got %d service calls", got)
	}
	if len(second) != len(first) {
		t.Fatalf("cached result length mismatch: %d vs %d", len(second), len(first))
	}
	for i := range first {
		if second[i].SourceID != first[i].SourceID {
			t.Fatalf("cached candidate %d mismatch: %q vs %q", i, second[i].SourceID, first[i].SourceID)
		}
	}
}

func TestSearchCachesEmptyResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "zyzzyva", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return nil, nil
	}}
	stage := search.New(cfg, store, searcher, logging.NewNop())

	for i := 0; i < 2; i++ {
		candidates, err := stage.Search(context.Background(), word)
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if len(candidates) != 0 {
			t.Fatalf("expected no candidates, got %d", len(candidates))
		}
	}

	if got := searcher.calls.Load(); got != 1 {
		t.Fatalf("empty result was not cached: %d service calls", got)
	}
	done, err := store.IsDone(context.Background(), checkpoint.StageSearch, word.Key())
	if err != nil {
		t.Fatalf("IsDone: %v", err)
	}
	if !done {
		t.Fatal("a word with zero results still completed its search")
	}
}

func TestSearchRecordsFailureAndSkipsWord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "emergency", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return nil, services.Wrap(services.ErrTransient, "search", "clip search", "service unavailable", nil)
	}}
	stage := search.New(cfg, store, searcher, logging.NewNop())

	candidates, err := stage.Search(context.Background(), word)
	if err != nil {
		t.Fatalf("expected nil error for a skipped word, got %v", err)
	}
	if candidates != nil {
		t.Fatalf("expected nil candidates, got %v", candidates)
	}

	done, err := store.IsDone(context.Background(), checkpoint.StageSearch, word.Key())
	if err != nil {
		t.Fatalf("IsDone: %v", err)
	}
	if done {
		t.Fatal("failed search must not checkpoint the word")
	}

	failures, err := store.Failures(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(failures))
	}
	if failures[0].Stage != checkpoint.StageSearch || failures[0].Key != word.Key() {
		t.Fatalf("unexpected failure record: %+v", failures[0])
	}
	if failures[0].Class != services.ClassTransient {
		t.Fatalf("expected transient failure class, got %q", failures[0].Class)
	}
}

func TestSearchConfigurationErrorAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "emergency", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return nil, services.Wrap(services.ErrConfiguration, "search", "clip search", "api key rejected", nil)
	}}
	stage := search.New(cfg, store, searcher, logging.NewNop())

	_, err := stage.Search(context.Background(), word)
	if err == nil {
		t.Fatal("expected configuration error to propagate")
	}
	if !services.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}

	failures, err := store.Failures(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("fatal errors abort the run, not the unit: %+v", failures)
	}
}

func TestSearchRecomputesAfterCacheWipe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "emergency", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return testCandidates(), nil
	}}

	stage := search.New(cfg, store, searcher, logging.NewNop())
	if _, err := stage.Search(context.Background(), word); err != nil {
		t.Fatalf("first Search: %v", err)
	}

	if err := os.Remove(filepath.Join(cfg.Paths.CacheDir, "search.json")); err != nil {
		t.Fatalf("remove cache file: %v", err)
	}

	// A fresh stage simulates the next run after the wipe. The checkpoint
	// marker survives, so the stage must recompute rather than trust it.
	rerun := search.New(cfg, store, searcher, logging.NewNop())
	candidates, err := rerun.Search(context.Background(), word)
	if err != nil {
		t.Fatalf("Search after wipe: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected recomputed candidates, got %d", len(candidates))
	}
	if got := searcher.calls.Load(); got != 2 {
		t.Fatalf("expected the wiped cache to force a second service call, got %d", got)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.CacheDir, "search.json")); err != nil {
		t.Fatalf("expected cache file rewritten after recompute: %v", err)
	}
}

func TestInvalidateWordForcesFreshSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	word := clip.Word{Text: "emergency", Language: "en"}

	searcher := &stubSearcher{fn: func(context.Context, clipsearch.Query) ([]clip.Candidate, error) {
		return testCandidates(), nil
	}}
	stage := search.New(cfg, store, searcher, logging.NewNop())

	if _, err := stage.Search(context.Background(), word); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	if err := stage.InvalidateWord(word); err != nil {
		t.Fatalf("InvalidateWord: %v", err)
	}
	if _, err := stage.Search(context.Background(), word); err != nil {
		t.Fatalf("Search after invalidation: %v", err)
	}

	if got := searcher.calls.Load(); got != 2 {
		t.Fatalf("expected invalidation to force a fresh search, got %d calls", got)
	}
}
