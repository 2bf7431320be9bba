package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTracking = `
products: [auto, home]
locations: [Winnipeg, Manitoba]
search_phrases: [Wawanesa, wawanesa mutual]
competitors:
  competitor_2: intact
  competitor_1: co-operators
ai_platforms: [chatgpt, gemini]
`

func TestLoadTracking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTracking), 0o600))

	tr, err := LoadTracking(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"auto", "home"}, tr.Products)
	assert.Equal(t, []string{"Winnipeg", "Manitoba"}, tr.Locations)
	assert.Equal(t, []string{"Wawanesa", "wawanesa mutual"}, tr.SearchPhrases)
	assert.Equal(t, []string{"chatgpt", "gemini"}, tr.AIPlatforms)
	assert.Empty(t, tr.PromptTemplate)

	// file order, not key order
	require.Len(t, tr.Competitors, 2)
	assert.Equal(t, Competitor{Key: "competitor_2", Alias: "intact"}, tr.Competitors[0])
	assert.Equal(t, []string{"intact", "co-operators"}, tr.Competitors.Aliases())
}

func TestLoadTracking_MissingKeys(t *testing.T) {
	_, err := ParseTracking("inline", []byte("products: [auto]\n"))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"locations", "search_phrases"}, cfgErr.Missing)
	assert.Contains(t, err.Error(), "locations, search_phrases")
}

func TestLoadTracking_MissingFile(t *testing.T) {
	_, err := LoadTracking(filepath.Join(t.TempDir(), "nope.yaml"))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadTracking_TooManyCompetitors(t *testing.T) {
	data := []byte(`
products: [a]
locations: [b]
search_phrases: [c]
competitors: {c1: a, c2: b, c3: c, c4: d, c5: e}
`)
	_, err := ParseTracking("inline", data)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "at most 4")
}

func TestLoadTracking_EmptyListsAreValid(t *testing.T) {
	tr, err := ParseTracking("inline", []byte("products: []\nlocations: []\nsearch_phrases: [x]\n"))
	require.NoError(t, err)
	assert.Empty(t, tr.Products)
}
