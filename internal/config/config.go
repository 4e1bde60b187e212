// Package config loads ccview configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (CCVIEW_INDEX_PATH, CCVIEW_SEARCH_LIMIT, ...)
//  2. YAML config file (~/.claude-viewer/config.yaml)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "CCVIEW_"
	maxConfigFileSize = 1024 * 1024

	// DirName is the per-user directory holding the index and config file.
	DirName = ".claude-viewer"
)

type Config struct {
	Corpus CorpusConfig `koanf:"corpus"`
	Index  IndexConfig  `koanf:"index"`
	Search SearchConfig `koanf:"search"`
	Log    LogConfig    `koanf:"log"`
	Watch  WatchConfig  `koanf:"watch"`
}

type CorpusConfig struct {
	ProjectsDir string `koanf:"projects_dir"`
}

type IndexConfig struct {
	Path string `koanf:"path"`
}

type SearchConfig struct {
	Limit int `koanf:"limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// DefaultPath returns ~/.claude-viewer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Default returns the built-in configuration rooted at the user's home directory.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path (default path when empty, silently skipped
// when missing), then applies CCVIEW_* environment overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// CCVIEW_SEARCH_LIMIT -> search.limit, CCVIEW_CORPUS_PROJECTS_DIR -> corpus.projects_dir
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	if cfg.Corpus.ProjectsDir == "" {
		cfg.Corpus.ProjectsDir = filepath.Join(home, ".claude", "projects")
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = filepath.Join(home, DirName, "search-index.db")
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = 50
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	cfg.Corpus.ProjectsDir = expandHome(cfg.Corpus.ProjectsDir, home)
	cfg.Index.Path = expandHome(cfg.Index.Path, home)
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

// Validate rejects configurations that would place the index inside the corpus.
func (c *Config) Validate() error {
	projects, err := filepath.Abs(c.Corpus.ProjectsDir)
	if err != nil {
		return fmt.Errorf("resolve projects dir: %w", err)
	}
	index, err := filepath.Abs(c.Index.Path)
	if err != nil {
		return fmt.Errorf("resolve index path: %w", err)
	}
	if rel, err := filepath.Rel(projects, index); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("index path %s must live outside the projects dir %s", index, projects)
	}
	return nil
}

// WriteDefault writes cfg as YAML to path, creating the parent directory.
// An existing file is left untouched and reported via the bool.
func WriteDefault(path string, cfg *Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}

	k := koanf.New(".")
	values := map[string]interface{}{
		"corpus.projects_dir": cfg.Corpus.ProjectsDir,
		"index.path":          cfg.Index.Path,
		"search.limit":        cfg.Search.Limit,
		"log.level":           cfg.Log.Level,
		"log.pretty":          cfg.Log.Pretty,
		"watch.debounce":      cfg.Watch.Debounce.String(),
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return false, fmt.Errorf("set %s: %w", key, err)
		}
	}

	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
