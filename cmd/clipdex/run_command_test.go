package main

import (
	"os"
	"path/filepath"
	"testing"

	"clipdex/internal/services"
)

func TestRunCommandRequiresWordSource(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error without --csv or --bundle")
	}
	if !services.IsFatal(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	requireContains(t, err.Error(), "--csv")
}

func TestRunCommandRejectsBothWordSources(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "--csv", "words.csv", "--bundle", "core"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error when both word sources are set")
	}
	if !services.IsFatal(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	requireContains(t, err.Error(), "mutually exclusive")
}

func TestRunCommandRejectsEmptyWordList(t *testing.T) {
	env := setupCLITestEnv(t)

	csvPath := filepath.Join(t.TempDir(), "words.csv")
	if err := os.WriteFile(csvPath, []byte("word,language\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	_, _, err := runCLI(t, []string{"run", "--csv", csvPath}, env.configPath)
	if err == nil {
		t.Fatal("expected an error for a header-only word list")
	}
	if !services.IsFatal(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}
