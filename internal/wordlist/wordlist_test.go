package wordlist_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"clipdex/internal/services"
	"clipdex/internal/wordlist"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSVWithHeader(t *testing.T) {
	path := writeCSV(t, "word,language\nemergency,en\nurgence,french\n")

	words, err := wordlist.Load(path, "en")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[0].Text != "emergency" || words[0].Language != "en" {
		t.Fatalf("unexpected first word %+v", words[0])
	}
	if words[1].Text != "urgence" || words[1].Language != "fr" {
		t.Fatalf("expected language name normalized to fr, got %+v", words[1])
	}
}

func TestLoadCSVWithoutHeaderUsesDefaultLanguage(t *testing.T) {
	path := writeCSV(t, "emergency\ncrisis\n")

	words, err := wordlist.Load(path, "eng")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	for _, w := range words {
		if w.Language != "en" {
			t.Fatalf("expected default language en, got %+v", w)
		}
	}
}

func TestLoadCSVDeduplicatesAndSkipsBlanks(t *testing.T) {
	path := writeCSV(t, "emergency,en\n\nEmergency ,en\ncrisis,en\n")

	words, err := wordlist.Load(path, "en")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 words, got %d: %+v", len(words), words)
	}
	if words[0].Text != "emergency" || words[1].Text != "crisis" {
		t.Fatalf("expected source order preserved, got %+v", words)
	}
}

func TestLoadXLSXBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.xlsx")

	f := excelize.NewFile()
	cells := [][]any{
		{"word", "language"},
		{"emergency", "en"},
		{"notfall", "de"},
	}
	for i, row := range cells {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	f.Close()

	words, err := wordlist.Load(path, "en")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[1].Text != "notfall" || words[1].Language != "de" {
		t.Fatalf("unexpected second word %+v", words[1])
	}
}

func TestLoadBundleResolvesUnderDataDir(t *testing.T) {
	dataDir := t.TempDir()
	bundleDir := filepath.Join(dataDir, "bundles")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		t.Fatalf("mkdir bundles: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "starter.csv"), []byte("emergency,en\n"), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	words, err := wordlist.LoadBundle(dataDir, "starter", "en")
	if err != nil {
		t.Fatalf("LoadBundle returned error: %v", err)
	}
	if len(words) != 1 || words[0].Text != "emergency" {
		t.Fatalf("unexpected bundle words %+v", words)
	}
}

func TestLoadFailuresAreConfigurationErrors(t *testing.T) {
	cases := []struct {
		name string
		call func() error
	}{
		{
			name: "missing file",
			call: func() error {
				_, err := wordlist.Load(filepath.Join(t.TempDir(), "absent.csv"), "en")
				return err
			},
		},
		{
			name: "unsupported extension",
			call: func() error {
				_, err := wordlist.Load("words.txt", "en")
				return err
			},
		},
		{
			name: "empty source",
			call: func() error {
				_, err := wordlist.Load(writeCSV(t, "word,language\n"), "en")
				return err
			},
		},
		{
			name: "missing bundle",
			call: func() error {
				_, err := wordlist.LoadBundle(t.TempDir(), "ghost", "en")
				return err
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !services.IsFatal(err) {
				t.Fatalf("expected fatal classification, got %v", err)
			}
		})
	}
}
