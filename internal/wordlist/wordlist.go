package wordlist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"clipdex/internal/clip"
	"clipdex/internal/language"
	"clipdex/internal/services"
)

// Load reads words from path, dispatching on the file extension. Supported
// sources are .csv files and .xlsx vocabulary bundles. Words are normalized,
// deduplicated by key, and returned in source order.
func Load(path, defaultLanguage string) ([]clip.Word, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, defaultLanguage)
	case ".xlsx":
		return loadXLSX(path, defaultLanguage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("unsupported word source %q (want .csv or .xlsx)", path), nil)
	}
}

// LoadBundle resolves a named bundle under dataDir/bundles, preferring the
// xlsx form.
func LoadBundle(dataDir, name, defaultLanguage string) ([]clip.Word, error) {
	base := filepath.Join(dataDir, "bundles", name)
	for _, candidate := range []string{base + ".xlsx", base + ".csv"} {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate, defaultLanguage)
		}
	}
	return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
		fmt.Sprintf("bundle %q not found under %s", name, filepath.Join(dataDir, "bundles")), nil)
}

func loadCSV(path, defaultLanguage string) ([]clip.Word, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("open word source %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
				fmt.Sprintf("parse word source %s", path), err)
		}
		rows = append(rows, record)
	}

	return collect(path, rows, defaultLanguage)
}

func loadXLSX(path, defaultLanguage string) ([]clip.Word, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("open word bundle %s", path), err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("word bundle %s has no sheets", path), nil)
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("read word bundle %s", path), err)
	}

	return collect(path, rows, defaultLanguage)
}

// collect turns raw rows into normalized, deduplicated words. The first row
// may be a header; it is recognized by a "word" cell and then skipped.
// Column one is the word, column two an optional per-row language code.
func collect(path string, rows [][]string, defaultLanguage string) ([]clip.Word, error) {
	fallback := language.ToISO2(defaultLanguage)
	if fallback == "" {
		fallback = "en"
	}

	words := make([]clip.Word, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		text := strings.TrimSpace(row[0])
		if text == "" {
			continue
		}
		if i == 0 && strings.EqualFold(text, "word") {
			continue
		}

		lang := fallback
		if len(row) > 1 {
			if normalized := language.ToISO2(strings.TrimSpace(row[1])); normalized != "" {
				lang = normalized
			}
		}

		word := clip.Word{Text: text, Language: lang}
		if _, dup := seen[word.Key()]; dup {
			continue
		}
		seen[word.Key()] = struct{}{}
		words = append(words, word)
	}

	if len(words) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "wordlist",
			fmt.Sprintf("no words found in %s", path), nil)
	}
	return words, nil
}
