package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mem", cfg.Platform)
	assert.Equal(t, "", cfg.Workspace)
	assert.False(t, cfg.Typecheck)
	assert.False(t, cfg.Prunequery)
	assert.False(t, cfg.IVM)
	assert.True(t, cfg.Answer)
}

func TestLoad_PropertiesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pgview.conf")
	body := "# startup config\n" +
		"platform = pg\n" +
		"workspace = social\n" +
		"typecheck = true\n" +
		"prunequery = true\n" +
		"answer = false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pg", cfg.Platform)
	assert.Equal(t, "social", cfg.Workspace)
	assert.True(t, cfg.Typecheck)
	assert.True(t, cfg.Prunequery)
	assert.False(t, cfg.Answer)
	assert.False(t, cfg.IVM, "ivm is absent from this file, so it keeps its default off")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	require.Error(t, err)
}

func TestLoad_PartialOverridesKeepOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pgview.conf")
	require.NoError(t, os.WriteFile(path, []byte("typecheck = true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Typecheck)
	assert.Equal(t, "mem", cfg.Platform)
	assert.True(t, cfg.Answer)
}
