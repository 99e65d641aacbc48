package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, manifest string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0644))
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const testManifest = `
case_types:
  O-1A:
    - criteria.md
    - guide.md
  P-1A:
    - athletics.md
`

func TestLoadOrdersFilesByManifest(t *testing.T) {
	dir := writeCorpus(t, testManifest, map[string]string{
		"criteria.md": "Criteria content here.",
		"guide.md":    "Guide content here.",
	})

	got := NewCorpus(dir).Load("O-1A")
	require.NotEmpty(t, got)

	assert.Contains(t, got, "PETITION KNOWLEDGE BASE - O-1A")
	assert.Contains(t, got, "1. criteria.md")
	assert.Contains(t, got, "2. guide.md")
	assert.Less(t,
		strings.Index(got, "Criteria content"),
		strings.Index(got, "Guide content"),
		"manifest order preserved")
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	dir := writeCorpus(t, testManifest, map[string]string{
		"guide.md": "Only the guide exists.",
	})

	got := NewCorpus(dir).Load("O-1A")
	assert.Contains(t, got, "Only the guide exists.")
	assert.NotContains(t, got, "criteria.md\n\nCriteria")
}

func TestLoadCaseInsensitiveCaseType(t *testing.T) {
	dir := writeCorpus(t, testManifest, map[string]string{
		"athletics.md": "Athletics reference.",
	})

	got := NewCorpus(dir).Load("p-1a")
	assert.Contains(t, got, "Athletics reference.")
}

func TestLoadUnknownCaseType(t *testing.T) {
	dir := writeCorpus(t, testManifest, nil)
	assert.Empty(t, NewCorpus(dir).Load("H-1B"))
}

func TestLoadMissingManifest(t *testing.T) {
	assert.Empty(t, NewCorpus(t.TempDir()).Load("O-1A"))
}

func TestLoadMissingDir(t *testing.T) {
	assert.Empty(t, NewCorpus("/nonexistent/corpus").Load("O-1A"))
}

func TestLoadAllFilesMissing(t *testing.T) {
	dir := writeCorpus(t, testManifest, nil)
	assert.Empty(t, NewCorpus(dir).Load("O-1A"))
}
