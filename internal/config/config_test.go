package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/localsearch/configs"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/query"
)

// isolate points the user config at an empty directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{
		"LOCALSEARCH_LOG_LEVEL",
		"LOCALSEARCH_PUBLIC_DIR",
		"LOCALSEARCH_PATH_PREFIX",
		"LOCALSEARCH_ENGINE",
		"LOCALSEARCH_HISTORY_DISABLED",
	} {
		t.Setenv(key, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const projectYAML = `
version: 1
publish:
  public_dir: dist
  path_prefix: /docs
indexes:
  - name: pages
    index: [title, body]
    store: [id, title]
    source:
      type: sql
      dsn: content.db
    query: SELECT id, title, body FROM pages
  - name: posts
    engine: sqlite
    engine_options:
      tokenizer: code
    source:
      type: file
    query: content/posts.yaml
`

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bleve", cfg.Engine)
	assert.Equal(t, "public", cfg.Publish.PublicDir)
	assert.Equal(t, "300ms", cfg.Watch.Debounce)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoProjectFileUsesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.Empty(t, cfg.Indexes)
	assert.Equal(t, dir, cfg.Dir())
	assert.Equal(t, "", cfg.Path())
}

func TestLoad_ProjectFile(t *testing.T) {
	// Given: a project file next to the content
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "localsearch.yaml"), projectYAML)

	// When: loading the project
	cfg, err := Load(dir, "")

	// Then: both indexes and the publish settings are read
	require.NoError(t, err)
	require.Len(t, cfg.Indexes, 2)
	assert.Equal(t, "dist", cfg.Publish.PublicDir)
	assert.Equal(t, "/docs", cfg.Publish.PathPrefix)

	pages := cfg.Indexes[0]
	assert.Equal(t, []string{"title", "body"}, pages.Index)
	assert.Equal(t, "id", pages.RefField())
	assert.Equal(t, "bleve", cfg.EngineFor(pages))
	assert.Equal(t, query.SourceSQL, pages.Source.Type)

	posts, ok := cfg.Lookup("posts")
	require.True(t, ok)
	assert.Nil(t, posts.Index)
	assert.Equal(t, "sqlite", cfg.EngineFor(posts))
	assert.Equal(t, "code", posts.EngineOptions["tokenizer"])

	// And: relative paths resolve against the project file
	assert.Equal(t, filepath.Join(cfg.Dir(), "dist"), cfg.Resolve("dist"))
	assert.Equal(t, "/abs", cfg.Resolve("/abs"))
}

func TestLoad_DotFileAndYml(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".localsearch.yml"), "log_level: debug\n")

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "search.yaml")
	writeFile(t, path, "publish:\n  public_dir: out\n")

	cfg, err := Load(t.TempDir(), path)

	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Publish.PublicDir)
	assert.Equal(t, filepath.Join(dir, "conf"), cfg.Dir())
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	isolate(t)

	_, err := Load(t.TempDir(), "/nonexistent/localsearch.yaml")

	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeConfigNotFound, lserrors.GetCode(err))
}

func TestLoad_Precedence(t *testing.T) {
	// Given: user config, project file and environment all set values
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "localsearch", "config.yaml"),
		"log_level: warn\npublish:\n  path_prefix: /user\n  public_dir: user-public\n")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "localsearch.yaml"), "publish:\n  public_dir: project-public\n")
	t.Setenv("LOCALSEARCH_PATH_PREFIX", "/env")

	// When: loading
	cfg, err := Load(dir, "")

	// Then: env beats project beats user beats defaults
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "project-public", cfg.Publish.PublicDir)
	assert.Equal(t, "/env", cfg.Publish.PathPrefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LOCALSEARCH_LOG_LEVEL", "error")
	t.Setenv("LOCALSEARCH_PUBLIC_DIR", "site")
	t.Setenv("LOCALSEARCH_ENGINE", "sqlite")
	t.Setenv("LOCALSEARCH_HISTORY_DISABLED", "true")

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "site", cfg.Publish.PublicDir)
	assert.Equal(t, "sqlite", cfg.Engine)
	assert.True(t, cfg.History.Disabled)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "localsearch.yaml"), "indexs: []\n")

	_, err := Load(dir, "")

	require.Error(t, err)
	assert.True(t, lserrors.IsFatal(err))
}

func TestLoad_EmptyFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "localsearch.yaml"), "")

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.Equal(t, "public", cfg.Publish.PublicDir)
}

func TestValidate_Rejects(t *testing.T) {
	valid := func() IndexConfig {
		return IndexConfig{Name: "pages", Query: "q.yaml", Source: query.SourceConfig{Type: query.SourceFile}}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad version", func(c *Config) { c.Version = 2 }, "version"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad engine", func(c *Config) { c.Engine = "lucene" }, "engine"},
		{"no public dir", func(c *Config) { c.Publish.PublicDir = "" }, "public_dir"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = "0s" }, "positive"},
		{"missing name", func(c *Config) { c.Indexes[0].Name = "" }, "indexes[0]: name is required"},
		{"bad name", func(c *Config) { c.Indexes[0].Name = "my pages" }, "letters"},
		{"missing query", func(c *Config) { c.Indexes[0].Query = " " }, "query is required"},
		{"blank ref", func(c *Config) { c.Indexes[0].Ref = "  " }, "ref"},
		{"bad index engine", func(c *Config) { c.Indexes[0].Engine = "x" }, "engine"},
		{"bad engine options", func(c *Config) {
			c.Indexes[0].EngineOptions = map[string]any{"tokenizer": "klingon"}
		}, "tokenizer"},
		{"bad source type", func(c *Config) { c.Indexes[0].Source.Type = "http" }, "source.type"},
		{"bad driver", func(c *Config) {
			c.Indexes[0].Source = query.SourceConfig{Type: query.SourceSQL, Driver: "oracle", DSN: "x"}
		}, "source.driver"},
		{"sql without dsn", func(c *Config) {
			c.Indexes[0].Source = query.SourceConfig{Type: query.SourceSQL}
		}, "source.dsn"},
		{"duplicate", func(c *Config) { c.Indexes = append(c.Indexes, valid()) }, "defined twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Indexes = []IndexConfig{valid()}
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "localsearch.yaml"), "version: 1\n")
	nested := filepath.Join(root, "content", "pages")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindProjectRoot(nested)

	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestTemplates_Load(t *testing.T) {
	// Given: both embedded templates written to their locations
	xdg := isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(xdg, "localsearch", "config.yaml"), configs.UserConfigTemplate)
	writeFile(t, filepath.Join(dir, "localsearch.yaml"), configs.ProjectConfigTemplate)

	// When: loading the project
	cfg, err := Load(dir, "")

	// Then: the templates parse strictly and declare the example index
	require.NoError(t, err)
	require.Len(t, cfg.Indexes, 1)
	assert.Equal(t, "pages", cfg.Indexes[0].Name)
	assert.Equal(t, []string{"id", "title", "path"}, cfg.Indexes[0].Store)
	assert.Equal(t, "bleve", cfg.EngineFor(cfg.Indexes[0]))
}

func TestGetUserConfigPath_XDG(t *testing.T) {
	xdg := isolate(t)

	assert.Equal(t, filepath.Join(xdg, "localsearch", "config.yaml"), GetUserConfigPath())
	assert.False(t, UserConfigExists())
}
