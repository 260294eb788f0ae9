package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetCachedEmbeddingsRoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := map[string][]float32{
		"tool_a": {0.1, 0.2, 0.3},
		"tool_b": {0.4, 0.5},
	}

	require.NoError(t, SaveEmbeddingsToCache(dir, "abc123", want))

	got, err := GetCachedEmbeddings(dir, "abc123")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for name, vec := range want {
		require.Len(t, got[name], len(vec))
		for i := range vec {
			assert.InDelta(t, vec[i], got[name][i], 1e-6)
		}
	}
}

func TestSaveEmbeddingsToCacheMergesRatherThanOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveEmbeddingsToCache(dir, "abc123", map[string][]float32{"tool_a": {1, 2}}))
	require.NoError(t, SaveEmbeddingsToCache(dir, "abc123", map[string][]float32{"tool_b": {3, 4}}))

	got, err := GetCachedEmbeddings(dir, "abc123")
	require.NoError(t, err)
	assert.Contains(t, got, "tool_a")
	assert.Contains(t, got, "tool_b")
}

func TestGetCachedEmbeddingsMissingFileIsCacheMiss(t *testing.T) {
	dir := t.TempDir()
	got, err := GetCachedEmbeddings(dir, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveEmbeddingsToCacheSkipsEmptyWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveEmbeddingsToCache(dir, "abc123", nil))
	_, err := os.Stat(filepath.Join(dir, "abc123.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupUnusedCacheKeepsActiveAndNonJSONFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unused.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte(`not json`), 0o644))

	require.NoError(t, CleanupUnusedCache(dir, map[string]struct{}{"active": {}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"active.json", "other.txt"}, names)
}

func TestCleanupUnusedCacheMissingDirIsNotAnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	assert.NoError(t, CleanupUnusedCache(dir, map[string]struct{}{}))
}
