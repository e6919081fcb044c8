package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

func TestJSONFileRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "state.json")
	require.NoError(t, utils.WriteJSONFile(p, map[string]int{"a": 1}))

	var got map[string]int
	found, err := utils.ReadJSONFile(p, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"a": 1}, got)

	_, err = os.Stat(p + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestReadJSONFileMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	var v map[string]int
	found, err := utils.ReadJSONFile(filepath.Join(dir, "none.json"), &v)
	require.NoError(t, err)
	assert.False(t, found)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	found, err = utils.ReadJSONFile(bad, &v)
	assert.True(t, found)
	assert.Error(t, err)
}
