package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, f.ListenAddr())
	assert.Equal(t, "HSS", f.DefaultMaterial())
	assert.Equal(t, "gemini-2.5-flash", f.Model())
	assert.Equal(t, float32(0.4), f.Temperature())
	assert.Equal(t, float32(0.7), f.RecommendationTemperature())
	assert.Equal(t, 3, f.MaxImages())
	assert.Equal(t, 50, f.HistoryLimit())
	assert.Equal(t, "@daily", f.HistoryPruneCron())
	assert.Equal(t, 0, f.HistoryRetentionDays())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "history.db"), f.DatabasePath())
}

func TestFileEmptyAndInvalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	f, err := NewFile(empty)
	require.NoError(t, err)
	assert.Equal(t, "HSS", f.DefaultMaterial())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = NewFile(bad)
	assert.Error(t, err)
}

func TestFileSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	f.SetDefaultMaterial("Carbide")
	f.SetHistoryPruneCron("")
	f.SetHistoryRetentionDays(30)
	require.NoError(t, f.Save())

	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Carbide", g.DefaultMaterial())
	assert.Equal(t, "", g.HistoryPruneCron())
	assert.Equal(t, 30, g.HistoryRetentionDays())
	assert.Equal(t, DefaultListenAddr, g.ListenAddr())
}

func TestFileNonPositiveLimitsFallBack(t *testing.T) {
	zero, negative := 0, -4
	f := NewFileFromConfig(&RawFileConfig{MaxImages: &zero, HistoryLimit: &negative}, "")
	assert.Equal(t, 3, f.MaxImages())
	assert.Equal(t, 50, f.HistoryLimit())
}

func TestAPIKeyEnvOverride(t *testing.T) {
	key := "from-file"
	f := NewFileFromConfig(&RawFileConfig{APIKey: &key}, "")

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	assert.Equal(t, "from-file", f.APIKey())

	t.Setenv("API_KEY", "fallback")
	assert.Equal(t, "fallback", f.APIKey())

	t.Setenv("GEMINI_API_KEY", "primary")
	assert.Equal(t, "primary", f.APIKey())

	eff := NewEffective(f)
	assert.True(t, eff.APIKeySet)
}

func TestFileEmptyMaterialFallsBack(t *testing.T) {
	empty := ""
	f := NewFileFromConfig(&RawFileConfig{DefaultMaterial: &empty}, "")
	assert.Equal(t, "HSS", f.DefaultMaterial())

	f.SetDefaultMaterial("Carbide")
	assert.Equal(t, "Carbide", f.DefaultMaterial())
}
