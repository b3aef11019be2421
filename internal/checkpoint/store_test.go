package checkpoint_test

import (
	"context"
	"testing"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/services"
	"clipdex/internal/testsupport"
)

func TestMarkDoneIsDone(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done, err := store.IsDone(ctx, checkpoint.StageSearch, "en:emergency")
	if err != nil {
		t.Fatalf("IsDone returned error: %v", err)
	}
	if done {
		t.Fatal("expected fresh unit to be not done")
	}

	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:emergency"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	// Duplicate marks must be tolerated; presence is sufficient.
	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:emergency"); err != nil {
		t.Fatalf("duplicate MarkDone returned error: %v", err)
	}

	done, err = store.IsDone(ctx, checkpoint.StageSearch, "en:emergency")
	if err != nil {
		t.Fatalf("IsDone returned error: %v", err)
	}
	if !done {
		t.Fatal("expected unit marked done")
	}

	count, err := store.DoneCount(ctx, checkpoint.StageSearch)
	if err != nil {
		t.Fatalf("DoneCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 completed unit, got %d", count)
	}
}

func TestMarkersScopedByStage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:emergency"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}

	done, err := store.IsDone(ctx, checkpoint.StageScore, "en:emergency")
	if err != nil {
		t.Fatalf("IsDone returned error: %v", err)
	}
	if done {
		t.Fatal("expected marker to be scoped to its stage")
	}
}

func TestCheckpointsSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	if err := first.MarkDone(ctx, checkpoint.StageVerify, "en:emergency|clipbank-a1"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	done, err := second.IsDone(ctx, checkpoint.StageVerify, "en:emergency|clipbank-a1")
	if err != nil {
		t.Fatalf("IsDone after reopen returned error: %v", err)
	}
	if !done {
		t.Fatal("expected marker to survive reopen")
	}
}

func TestRecordFailureAndQuery(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := services.WithRunID(context.Background(), "run-1")

	seed := []struct {
		stage  checkpoint.Stage
		key    string
		class  string
		reason string
	}{
		{checkpoint.StageScore, "en:emergency", services.ClassQuality, "unparseable judgment"},
		{checkpoint.StageVerify, "en:emergency|clipbank-a1", services.ClassResource, "download handle expired"},
		{checkpoint.StageScore, "en:crisis", services.ClassQuality, "score 0.40 below threshold 0.60"},
	}
	for _, f := range seed {
		if err := store.RecordFailure(ctx, f.stage, f.key, f.class, f.reason); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}

	all, err := store.Failures(ctx, "", 0)
	if err != nil {
		t.Fatalf("Failures returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(all))
	}
	// Newest first.
	if all[0].Key != "en:crisis" {
		t.Fatalf("expected newest failure first, got %q", all[0].Key)
	}
	if all[0].RunID != "run-1" {
		t.Fatalf("expected run id from context, got %q", all[0].RunID)
	}
	if all[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be recorded")
	}

	quality, err := store.Failures(ctx, services.ClassQuality, 0)
	if err != nil {
		t.Fatalf("Failures by class returned error: %v", err)
	}
	if len(quality) != 2 {
		t.Fatalf("expected 2 quality failures, got %d", len(quality))
	}

	limited, err := store.Failures(ctx, "", 1)
	if err != nil {
		t.Fatalf("Failures with limit returned error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 failure with limit, got %d", len(limited))
	}
}

func TestFailuresAreAppendOnly(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// The same unit failing on two runs yields two records.
	for i := 0; i < 2; i++ {
		if err := store.RecordFailure(ctx, checkpoint.StageUpload, "en:emergency|clipbank-a1", services.ClassTransient, "upload failed after 5 attempts"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}

	all, err := store.Failures(ctx, "", 0)
	if err != nil {
		t.Fatalf("Failures returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 append-only records, got %d", len(all))
	}
}

func TestRecordMappingDedup(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := services.WithRunID(context.Background(), "run-1")

	mapping := clip.Mapping{
		Word:             "emergency",
		Language:         "en",
		NaturalKey:       "clipbank-a1",
		RelevanceScore:   0.85,
		TranscriptSource: clip.TranscriptSourceAudio,
	}

	inserted, err := store.RecordMapping(ctx, mapping, "vid-1")
	if err != nil {
		t.Fatalf("RecordMapping returned error: %v", err)
	}
	if !inserted {
		t.Fatal("expected first mapping to insert")
	}

	inserted, err = store.RecordMapping(ctx, mapping, "vid-1")
	if err != nil {
		t.Fatalf("duplicate RecordMapping returned error: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate mapping to be ignored")
	}

	count, err := store.MappingCount(ctx, "clipbank-a1")
	if err != nil {
		t.Fatalf("MappingCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 mapping, got %d", count)
	}

	// A second word mapping to the same video raises the per-video count.
	second := mapping
	second.Word = "crisis"
	if _, err := store.RecordMapping(ctx, second, "vid-1"); err != nil {
		t.Fatalf("RecordMapping returned error: %v", err)
	}
	count, err = store.MappingCount(ctx, "clipbank-a1")
	if err != nil {
		t.Fatalf("MappingCount returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 mappings after second word, got %d", count)
	}

	third := mapping
	third.NaturalKey = "clipbank-b2"
	if _, err := store.RecordMapping(ctx, third, "vid-2"); err != nil {
		t.Fatalf("RecordMapping returned error: %v", err)
	}
	mappings, videos, err := store.MappingTotals(ctx)
	if err != nil {
		t.Fatalf("MappingTotals returned error: %v", err)
	}
	if mappings != 3 || videos != 2 {
		t.Fatalf("expected 3 mappings across 2 videos, got %d across %d", mappings, videos)
	}
}

func TestRunLedger(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", 12); err != nil {
		t.Fatalf("StartRun returned error: %v", err)
	}

	run, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun returned error: %v", err)
	}
	if run == nil || run.ID != "run-1" {
		t.Fatalf("expected run-1, got %+v", run)
	}
	if run.Status != checkpoint.RunStatusRunning {
		t.Fatalf("expected running status, got %q", run.Status)
	}
	if !run.FinishedAt.IsZero() {
		t.Fatal("expected unfinished run to have zero finish time")
	}

	if err := store.FinishRun(ctx, "run-1", checkpoint.RunStatusCompleted, 4, 2); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	run, err = store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun returned error: %v", err)
	}
	if run.Status != checkpoint.RunStatusCompleted || run.Uploaded != 4 || run.Failed != 2 {
		t.Fatalf("unexpected finished run: %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("expected finish time to be recorded")
	}

	count, err := store.RunCount(ctx)
	if err != nil {
		t.Fatalf("RunCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 run, got %d", count)
	}
}

func TestLastRunEmptyLedger(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun returned error: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run for empty ledger, got %+v", run)
	}
}

func TestStatsAggregates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:emergency"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	if err := store.MarkDone(ctx, checkpoint.StageSearch, "en:crisis"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	if err := store.MarkDone(ctx, checkpoint.StageScore, "en:emergency"); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	if err := store.RecordFailure(ctx, checkpoint.StageVerify, "en:crisis|clipbank-c3", services.ClassResource, "corrupt media"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if _, err := store.RecordMapping(ctx, clip.Mapping{
		Word: "emergency", Language: "en", NaturalKey: "clipbank-a1",
		RelevanceScore: 0.85, TranscriptSource: clip.TranscriptSourceAudio,
	}, "vid-1"); err != nil {
		t.Fatalf("RecordMapping returned error: %v", err)
	}
	if err := store.StartRun(ctx, "run-1", 2); err != nil {
		t.Fatalf("StartRun returned error: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.CheckpointsByStage[checkpoint.StageSearch] != 2 {
		t.Fatalf("expected 2 search checkpoints, got %d", stats.CheckpointsByStage[checkpoint.StageSearch])
	}
	if stats.CheckpointsByStage[checkpoint.StageScore] != 1 {
		t.Fatalf("expected 1 score checkpoint, got %d", stats.CheckpointsByStage[checkpoint.StageScore])
	}
	if stats.FailuresByClass[services.ClassResource] != 1 {
		t.Fatalf("expected 1 resource failure, got %d", stats.FailuresByClass[services.ClassResource])
	}
	if stats.Mappings != 1 || stats.VideosMapped != 1 {
		t.Fatalf("unexpected mapping totals: %+v", stats)
	}
	if stats.Runs != 1 || stats.LastRun == nil || stats.LastRun.ID != "run-1" {
		t.Fatalf("unexpected run stats: %+v", stats)
	}
}
