package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/localsearch/internal/document"
	"github.com/Aman-CERP/localsearch/internal/engine"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/query"
)

// CurrentVersion is the configuration schema version.
const CurrentVersion = 1

// ProjectConfigNames are the project file names tried in order.
var ProjectConfigNames = []string{
	"localsearch.yaml",
	".localsearch.yaml",
	"localsearch.yml",
	".localsearch.yml",
}

// indexNamePattern restricts index names; they end up in type names and logs.
var indexNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config represents the complete localsearch configuration.
type Config struct {
	Version  int           `yaml:"version" json:"version"`
	LogLevel string        `yaml:"log_level" json:"log_level"`
	Engine   string        `yaml:"engine" json:"engine"`
	Publish  PublishConfig `yaml:"publish" json:"publish"`
	Watch    WatchConfig   `yaml:"watch" json:"watch"`
	History  HistoryConfig `yaml:"history" json:"history"`
	Indexes  []IndexConfig `yaml:"indexes" json:"indexes"`

	// dir is the directory relative paths resolve against.
	dir string
	// path is the project file that was loaded, if any.
	path string
}

// PublishConfig configures where artifacts are written.
type PublishConfig struct {
	// PublicDir is the site's public output directory.
	PublicDir string `yaml:"public_dir" json:"public_dir"`

	// PathPrefix is prepended to public URLs.
	PathPrefix string `yaml:"path_prefix" json:"path_prefix"`

	// LockDir holds cross-process publish locks.
	LockDir string `yaml:"lock_dir" json:"lock_dir"`

	// Manifest is where `build` writes the node manifest.
	Manifest string `yaml:"manifest" json:"manifest"`
}

// WatchConfig configures `build --watch`.
type WatchConfig struct {
	// Debounce is the event coalescing window (e.g. "300ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// HistoryConfig configures the build history database.
type HistoryConfig struct {
	Path     string `yaml:"path" json:"path"`
	Disabled bool   `yaml:"disabled" json:"disabled"`
}

// IndexConfig is one named index.
type IndexConfig struct {
	Name string `yaml:"name" json:"name"`

	// Ref is the reference field (default "id").
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	// Index and Store are field allow-lists. Omitted means whole documents.
	Index []string `yaml:"index,omitempty" json:"index,omitempty"`
	Store []string `yaml:"store,omitempty" json:"store,omitempty"`

	// Engine overrides the top-level engine for this index.
	Engine        string         `yaml:"engine,omitempty" json:"engine,omitempty"`
	EngineOptions map[string]any `yaml:"engine_options,omitempty" json:"engine_options,omitempty"`

	Source     query.SourceConfig        `yaml:"source" json:"source"`
	Query      string                    `yaml:"query" json:"query"`
	Normalizer document.NormalizerConfig `yaml:"normalizer,omitempty" json:"normalizer,omitempty"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		LogLevel: "info",
		Engine:   string(engine.BackendBleve),
		Publish: PublishConfig{
			PublicDir:  "public",
			PathPrefix: "",
			LockDir:    filepath.Join(".localsearch", "locks"),
			Manifest:   filepath.Join(".localsearch", "manifest.json"),
		},
		Watch: WatchConfig{
			Debounce: "300ms",
		},
		History: HistoryConfig{
			Path: filepath.Join(".localsearch", "history.db"),
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/localsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/localsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "localsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "localsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "localsearch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the project in dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/localsearch/config.yaml)
//  3. Project config (explicitPath, or localsearch.yaml & co. in dir)
//  4. Environment variables (LOCALSEARCH_*)
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.dir = dir

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, lserrors.ConfigError("failed to load user config", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadProjectFile(dir, explicitPath); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, lserrors.ConfigError("invalid configuration", err)
	}

	return cfg, nil
}

// loadProjectFile loads explicitPath, or the first of ProjectConfigNames
// found in dir.
func (c *Config) loadProjectFile(dir, explicitPath string) error {
	path := explicitPath
	if path != "" {
		if !fileExists(path) {
			return lserrors.New(lserrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), nil).
				WithSuggestion("Run 'localsearch config init' to create one")
		}
	} else {
		path = FindProjectFile(dir)
		if path == "" {
			// No config file is fine - use defaults
			return nil
		}
	}

	var parsed Config
	if err := parseYAML(path, &parsed); err != nil {
		return lserrors.ConfigError("failed to load project config", err)
	}
	c.mergeWith(&parsed)

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.path = abs
	c.dir = filepath.Dir(abs)
	return nil
}

// FindProjectFile returns the project config file in dir, or "".
func FindProjectFile(dir string) string {
	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// parseYAML decodes a YAML file strictly; unknown keys are errors.
func parseYAML(path string, out *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Engine != "" {
		c.Engine = other.Engine
	}

	// Publish
	if other.Publish.PublicDir != "" {
		c.Publish.PublicDir = other.Publish.PublicDir
	}
	if other.Publish.PathPrefix != "" {
		c.Publish.PathPrefix = other.Publish.PathPrefix
	}
	if other.Publish.LockDir != "" {
		c.Publish.LockDir = other.Publish.LockDir
	}
	if other.Publish.Manifest != "" {
		c.Publish.Manifest = other.Publish.Manifest
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// History
	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}
	if other.History.Disabled {
		c.History.Disabled = true
	}

	// Indexes are replaced as a whole; merging named builds field by field
	// would make the effective configuration hard to read.
	if len(other.Indexes) > 0 {
		c.Indexes = other.Indexes
	}
}

// applyEnvOverrides applies LOCALSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOCALSEARCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOCALSEARCH_PUBLIC_DIR"); v != "" {
		c.Publish.PublicDir = v
	}
	if v := os.Getenv("LOCALSEARCH_PATH_PREFIX"); v != "" {
		c.Publish.PathPrefix = v
	}
	if v := os.Getenv("LOCALSEARCH_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("LOCALSEARCH_HISTORY_DISABLED"); v != "" {
		c.History.Disabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// FindProjectRoot finds the project root directory.
// It looks for a localsearch config file or a .git directory by walking up
// the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if FindProjectFile(currentDir) != "" {
			return currentDir, nil
		}
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// Dir is the directory relative paths resolve against: the directory of the
// loaded project file, or the directory passed to Load.
func (c *Config) Dir() string { return c.dir }

// Path is the loaded project file, or "".
func (c *Config) Path() string { return c.path }

// Resolve makes a relative path absolute against Dir.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dir, path)
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	return d, nil
}

// EngineFor returns the engine backend of idx.
func (c *Config) EngineFor(idx IndexConfig) string {
	if idx.Engine != "" {
		return idx.Engine
	}
	return c.Engine
}

// Lookup returns the index configuration named name.
func (c *Config) Lookup(name string) (IndexConfig, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexConfig{}, false
}

// RefField returns the reference field of idx.
func (idx IndexConfig) RefField() string {
	if idx.Ref == "" {
		return document.DefaultRef
	}
	return idx.Ref
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("version must be %d, got %d", CurrentVersion, c.Version)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	if !engine.ValidBackend(c.Engine) {
		return fmt.Errorf("engine must be 'bleve' or 'sqlite', got %s", c.Engine)
	}
	if c.Publish.PublicDir == "" {
		return fmt.Errorf("publish.public_dir is required")
	}
	if d, err := c.DebounceDuration(); err != nil {
		return err
	} else if d <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}

	seen := make(map[string]bool, len(c.Indexes))
	for i, idx := range c.Indexes {
		if err := c.validateIndex(idx); err != nil {
			if idx.Name == "" {
				return fmt.Errorf("indexes[%d]: %w", i, err)
			}
			return fmt.Errorf("index %q: %w", idx.Name, err)
		}
		if seen[idx.Name] {
			return fmt.Errorf("index %q is defined twice", idx.Name)
		}
		seen[idx.Name] = true
	}

	return nil
}

func (c *Config) validateIndex(idx IndexConfig) error {
	if idx.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !indexNamePattern.MatchString(idx.Name) {
		return fmt.Errorf("name may only contain letters, digits, '_' and '-'")
	}
	if strings.TrimSpace(idx.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if idx.Ref != "" && strings.TrimSpace(idx.Ref) == "" {
		return fmt.Errorf("ref must not be blank")
	}

	if !engine.ValidBackend(idx.Engine) {
		return fmt.Errorf("engine must be 'bleve' or 'sqlite', got %s", idx.Engine)
	}
	if _, err := engine.ParseOptions(idx.EngineOptions); err != nil {
		return err
	}

	switch idx.Source.Type {
	case query.SourceFile, "":
	case query.SourceSQL:
		if idx.Source.Driver != "" && !query.ValidDriver(idx.Source.Driver) {
			return fmt.Errorf("source.driver must be 'sqlite', 'sqlite3', or 'postgres', got %s", idx.Source.Driver)
		}
		if idx.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for sql sources")
		}
	default:
		return fmt.Errorf("source.type must be 'sql' or 'file', got %s", idx.Source.Type)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
