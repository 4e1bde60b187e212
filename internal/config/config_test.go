package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.Corpus.ProjectsDir)
	assert.Equal(t, filepath.Join(home, DirName, "search-index.db"), cfg.Index.Path)
	assert.Equal(t, 50, cfg.Search.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.yaml")
	yaml := `
corpus:
  projects_dir: ~/logs
search:
  limit: 10
log:
  level: debug
watch:
  debounce: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
	t.Setenv("CCVIEW_SEARCH_LIMIT", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs"), cfg.Corpus.ProjectsDir)
	assert.Equal(t, 25, cfg.Search.Limit, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoad_EnvFieldWithUnderscore(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CCVIEW_CORPUS_PROJECTS_DIR", filepath.Join(home, "elsewhere"))

	cfg, err := Load(filepath.Join(home, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "elsewhere"), cfg.Corpus.ProjectsDir)
}

func TestValidate_RejectsIndexInsideCorpus(t *testing.T) {
	home := t.TempDir()
	cfg := &Config{
		Corpus: CorpusConfig{ProjectsDir: filepath.Join(home, "projects")},
		Index:  IndexConfig{Path: filepath.Join(home, "projects", "index.db")},
	}
	assert.Error(t, cfg.Validate())

	cfg.Index.Path = filepath.Join(home, "index", "index.db")
	assert.NoError(t, cfg.Validate())
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, DirName, "config.yaml")
	cfg := Default()
	cfg.Search.Limit = 7

	written, err := WriteDefault(path, cfg)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteDefault(path, cfg)
	require.NoError(t, err)
	assert.False(t, written, "existing file is kept")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Search.Limit)
	assert.Equal(t, cfg.Index.Path, loaded.Index.Path)
	assert.Equal(t, cfg.Watch.Debounce, loaded.Watch.Debounce)
}
