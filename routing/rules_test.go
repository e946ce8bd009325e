package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "10-weather.yaml", `
rules:
  - capability: weather
    keywords: [weather, forecast]
    parameters:
      units: metric
`)
	writeRuleFile(t, dir, "20-calc.yml", `
rules:
  - capability: calculator
    keywords: [calculate]
`)
	writeRuleFile(t, dir, "ignored.txt", "not a rule file")

	router := NewRouter(nil, nil)
	loaded, err := router.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	rules := router.Rules()
	require.Len(t, rules, 2)
	// File-name order fixes priority.
	assert.Equal(t, "weather", rules[0].Capability)
	assert.Equal(t, "metric", rules[0].Parameters["units"])
	assert.Equal(t, "calculator", rules[1].Capability)
}

func TestLoadDirectorySkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", "rules: [not, {valid")
	writeRuleFile(t, dir, "good.yaml", `
rules:
  - capability: echo
    keywords: [echo]
`)

	router := NewRouter(nil, nil)
	loaded, err := router.LoadDirectory(dir)
	require.NoError(t, err, "one malformed file must not abort loading")
	assert.Equal(t, 1, loaded)
	require.Len(t, router.Rules(), 1)
	assert.Equal(t, "echo", router.Rules()[0].Capability)
}

func TestLoadDirectorySkipsInvalidRules(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "mixed.yaml", `
rules:
  - capability: valid
    keywords: [ok]
  - capability: ""
    keywords: [orphan]
  - capability: keywordless
    keywords: []
`)

	router := NewRouter(nil, nil)
	loaded, err := router.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
}

func TestLoadDirectoryMissing(t *testing.T) {
	router := NewRouter(nil, nil)
	loaded, err := router.LoadDirectory("/does/not/exist")
	require.NoError(t, err)
	assert.Zero(t, loaded)
}
