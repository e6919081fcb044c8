package qacache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizesQuestion(t *testing.T) {
	assert.Equal(t, Key("Total sales?", "fp"), Key("  total SALES? ", "fp"))
	assert.NotEqual(t, Key("Total sales?", "fp1"), Key("Total sales?", "fp2"))
	assert.Len(t, Key("q", "fp"), 64)
}

func TestSetGetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_cache.json")
	c := Open(path, nil)
	_, ok := c.Get("Total sales?", "fp")
	assert.False(t, ok)

	assert.True(t, c.Set("Total sales?", "fp", "Total sales were $99.98."))
	got, ok := c.Get("total sales?", "fp")
	require.True(t, ok)
	assert.Equal(t, "Total sales were $99.98.", got)

	reopened := Open(path, nil)
	assert.Equal(t, 1, reopened.Len())
	_, ok = reopened.Get("Total sales?", "other-dataset")
	assert.False(t, ok, "a different fingerprint never hits")
}

func TestPurge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_cache.json")
	c := Open(path, nil)
	c.Set("a", "fp", "1")
	c.Set("b", "fp", "2")
	require.Equal(t, 2, c.Len())
	assert.True(t, c.Purge())
	assert.Equal(t, 0, Open(path, nil).Len())
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0o644))
	c := Open(path, nil)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Set("q", "fp", "a"))
}

func TestWriteFailureDegradesToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	c := Open(filepath.Join(blocker, "qa_cache.json"), nil)
	assert.False(t, c.Set("q", "fp", "a"))
	got, ok := c.Get("q", "fp")
	assert.True(t, ok)
	assert.Equal(t, "a", got)

	mem := Open("", nil)
	assert.False(t, mem.Set("q", "fp", "a"))
	assert.Equal(t, 1, mem.Len())
}
