// Package cache provides the on-disk JSON caches that make pipeline stages
// idempotent: one file per concern, each holding a string-keyed map of
// entries. A cache hit answers a stage without a network call; a rerun over
// warm caches therefore spends nothing.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clipdex/internal/logging"
)

// Cache is a thread-safe key-value store persisted as a single JSON file.
// Values are stored as raw JSON so one Cache serves any entry type. Writes
// persist immediately; the file is replaced atomically via a temp file.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]json.RawMessage
}

// Open loads the cache at path, starting empty when the file does not exist
// or cannot be parsed. An unreadable cache costs recomputation, never
// correctness, so load problems are logged and absorbed.
func Open(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "cache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]json.RawMessage),
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load cache, starting empty",
			logging.String("path", path),
			logging.Error(err))
		c.entries = make(map[string]json.RawMessage)
	}

	return c
}

// Get unmarshals the entry for key into target and reports whether it was
// present.
func (c *Cache) Get(key string, target any) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("cache key cannot be empty")
	}

	c.mu.RLock()
	raw, found := c.entries[key]
	c.mu.RUnlock()
	if !found {
		return false, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return true, nil
}

// Put stores value under key and persists the cache.
func (c *Cache) Put(key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key cannot be empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = raw
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Remove deletes the entry for key and persists the change. Removing an
// absent key is a no-op so invalidation is safe to repeat.
func (c *Cache) Remove(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		return nil
	}
	delete(c.entries, key)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	c.entries = entries

	c.logger.Debug("loaded cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

// save writes the cache to disk atomically. Callers hold the write lock.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
