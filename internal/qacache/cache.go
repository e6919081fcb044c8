package qacache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// Key derives the cache key for a question asked against a dataset
// fingerprint. Questions differing only in case or surrounding whitespace
// share a key.
func Key(question, fingerprint string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question)) + "_" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// Cache memoizes answers in memory and mirrors them to a JSON file. Storage
// failures are logged and never returned; the cache then works from memory.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
	log     *zap.Logger
}

// Open loads the cache at path. An empty path gives a memory-only cache; a
// missing or corrupt file gives an empty one.
func Open(path string, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{path: path, entries: map[string]string{}, log: log.Named("qacache")}
	if path == "" {
		return c
	}
	if _, err := utils.ReadJSONFile(path, &c.entries); err != nil {
		c.log.Warn("answer cache unreadable, starting empty", zap.String("path", path), zap.Error(err))
		c.entries = map[string]string{}
	}
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	return c
}

// Get returns the cached answer for question against fingerprint.
func (c *Cache) Get(question, fingerprint string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[Key(question, fingerprint)]
	return a, ok
}

// Set stores answer and reports whether it reached disk.
func (c *Cache) Set(question, fingerprint, answer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(question, fingerprint)] = answer
	return c.flush()
}

// Purge drops every entry and reports whether the empty cache reached disk.
func (c *Cache) Purge() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]string{}
	return c.flush()
}

// Len returns the number of cached answers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) flush() bool {
	if c.path == "" {
		return false
	}
	if err := utils.WriteJSONFile(c.path, c.entries); err != nil {
		c.log.Warn("answer cache not saved", zap.String("path", c.path), zap.Error(err))
		return false
	}
	return true
}
