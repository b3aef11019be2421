package main

import (
	"context"
	"testing"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/services"
	"clipdex/internal/testsupport"
)

func TestStatsCommandRendersCounters(t *testing.T) {
	env := setupCLITestEnv(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:emergency"); err != nil {
		t.Fatalf("mark search done: %v", err)
	}
	if err := store.MarkDone(ctx, checkpoint.StageScore, "en:emergency"); err != nil {
		t.Fatalf("mark score done: %v", err)
	}
	if err := store.RecordFailure(services.WithRunID(ctx, "run-1"), checkpoint.StageVerify, "en:emergency|clipbank-c3", services.ClassQuality, "below threshold"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	mapping := clip.Mapping{Word: "emergency", Language: "en", NaturalKey: "clipbank-a1", RelevanceScore: 0.85}
	if _, err := store.RecordMapping(ctx, mapping, "vid-100"); err != nil {
		t.Fatalf("record mapping: %v", err)
	}
	if err := store.StartRun(ctx, "run-1", 2); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", "completed", 1, 1); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Completed units by stage:")
	requireContains(t, out, "Search")
	requireContains(t, out, "Failures by class:")
	requireContains(t, out, "Quality")
	requireContains(t, out, "Mappings: 1 words across 1 videos")
	requireContains(t, out, "Runs: 1")
	requireContains(t, out, "Last run run-1: Completed, 1 uploaded, 1 failed")
}

func TestStatsCommandEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Completed units by stage:")
	requireContains(t, out, "Mappings: 0 words across 0 videos")
	requireContains(t, out, "Runs: 0")
}
