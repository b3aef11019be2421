package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"clipdex/internal/cache"
	"clipdex/internal/clip"
)

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.json")
	c := cache.Open(path, nil)

	candidates := []clip.Candidate{
		{Source: "clipbank", SourceID: "a1", Title: "First"},
		{Source: "clipbank", SourceID: "b2", Title: "Second"},
	}
	if err := c.Put("en:emergency", candidates); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	var got []clip.Candidate
	found, err := c.Get("en:emergency", &got)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0].SourceID != "a1" || got[1].Title != "Second" {
		t.Fatalf("unexpected cached value: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	c := cache.Open(filepath.Join(t.TempDir(), "cache.json"), nil)

	var target string
	found, err := c.Get("absent", &target)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found {
		t.Fatal("expected cache miss")
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := cache.Open(path, nil)
	if err := first.Put("key", "value"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	second := cache.Open(path, nil)
	var got string
	found, err := second.Get("key", &got)
	if err != nil {
		t.Fatalf("Get after reopen returned error: %v", err)
	}
	if !found || got != "value" {
		t.Fatalf("expected persisted entry, found=%v value=%q", found, got)
	}
}

func TestRemoveInvalidatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := cache.Open(path, nil)
	if err := c.Put("en:emergency", "cached"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := c.Remove("en:emergency"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	var got string
	if found, _ := c.Get("en:emergency", &got); found {
		t.Fatal("expected entry removed")
	}

	reopened := cache.Open(path, nil)
	if found, _ := reopened.Get("en:emergency", &got); found {
		t.Fatal("expected removal persisted across reopen")
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	c := cache.Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	if err := c.Remove("never-stored"); err != nil {
		t.Fatalf("Remove of absent key returned error: %v", err)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	c := cache.Open(path, nil)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after corrupt load, got %d entries", c.Len())
	}

	// A corrupt cache must still accept new writes.
	if err := c.Put("key", 1); err != nil {
		t.Fatalf("Put after corrupt load returned error: %v", err)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	c := cache.Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	if err := c.Put("  ", "value"); err == nil {
		t.Fatal("expected error for blank key")
	}
	var target string
	if _, err := c.Get("", &target); err == nil {
		t.Fatal("expected error for empty key")
	}
}
