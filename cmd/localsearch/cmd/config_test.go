package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/localsearch/configs"
	"github.com/Aman-CERP/localsearch/internal/config"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	// Given: root command
	cmd := NewRootCmd()

	// When: finding config command
	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	// Then: it has init, show, validate and path
	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"])
	assert.True(t, names["show"])
	assert.True(t, names["validate"])
	assert.True(t, names["path"])
	assert.True(t, names["restore"])
}

func TestConfigInitCmd_CreatesStarterConfig(t *testing.T) {
	// Given: an empty project directory
	dir := inProject(t, nil)

	// When: running config init
	stdout, _, err := execute(t, "config", "init")

	// Then: localsearch.yaml is created and loads cleanly
	require.NoError(t, err)
	path := filepath.Join(dir, "localsearch.yaml")
	assert.Contains(t, stdout, "Created "+path)

	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	require.Len(t, cfg.Indexes, 1)
	assert.Equal(t, "pages", cfg.Indexes[0].Name)
}

func TestConfigInitCmd_RefusesOverwriteWithoutForce(t *testing.T) {
	// Given: an existing config
	dir := inProject(t, map[string]string{"localsearch.yaml": "log_level: debug\n"})

	// When: running config init without --force
	_, _, err := execute(t, "config", "init")

	// Then: it fails and the file is unchanged
	require.Error(t, err)
	data, readErr := os.ReadFile(filepath.Join(dir, "localsearch.yaml"))
	require.NoError(t, readErr)
	assert.Equal(t, "log_level: debug\n", string(data))
}

func TestConfigInitCmd_ForceKeepsBackup(t *testing.T) {
	dir := inProject(t, map[string]string{"localsearch.yaml": "log_level: debug\n"})

	stdout, _, err := execute(t, "config", "init", "--force")

	require.NoError(t, err)
	assert.Contains(t, stdout, "backup:")
	backups, err := config.ListBackups(filepath.Join(dir, "localsearch.yaml"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigShowCmd_JSON(t *testing.T) {
	// Given: a project overriding the public dir
	inProject(t, map[string]string{"localsearch.yaml": `
publish:
  public_dir: dist
indexes:
  - name: pages
    query: pages.json
`})

	// When: showing the effective config as JSON
	stdout, _, err := execute(t, "config", "show", "--json")

	// Then: defaults and project values are merged
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, "bleve", shown["engine"])
	publish, ok := shown["publish"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dist", publish["public_dir"])
}

func TestConfigShowCmd_EnvOverride(t *testing.T) {
	inProject(t, map[string]string{"localsearch.yaml": "indexes: []\n"})
	t.Setenv("LOCALSEARCH_ENGINE", "sqlite")

	stdout, _, err := execute(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "engine: sqlite")
}

func TestConfigValidateCmd(t *testing.T) {
	// Given: a valid project
	inProject(t, map[string]string{"localsearch.yaml": `
indexes:
  - name: pages
    query: pages.json
  - name: posts
    engine: sqlite
    source: {type: sql, dsn: content.db}
    query: SELECT id, title FROM posts
`})

	// When: validating
	stdout, _, err := execute(t, "config", "validate")

	// Then: every index is listed with its source and engine
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration is valid")
	assert.Contains(t, stdout, "pages: file source, bleve engine")
	assert.Contains(t, stdout, "posts: sql source, sqlite engine")
}

func TestConfigValidateCmd_Invalid(t *testing.T) {
	// Given: two indexes with the same name
	inProject(t, map[string]string{"localsearch.yaml": `
indexes:
  - name: pages
    query: a.json
  - name: pages
    query: b.json
`})

	// When: validating
	_, _, err := execute(t, "config", "validate")

	// Then: it fails with a config error
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeConfigInvalid, lserrors.GetCode(err))
	require.Error(t, errors.Unwrap(err))
	assert.Contains(t, errors.Unwrap(err).Error(), "defined twice")
}

func TestConfigValidateCmd_UnknownKey(t *testing.T) {
	inProject(t, map[string]string{"localsearch.yaml": "indexs: []\n"})

	_, _, err := execute(t, "config", "validate")

	assert.Error(t, err)
}

func TestConfigPathCmd(t *testing.T) {
	dir := inProject(t, map[string]string{".localsearch.yaml": "indexes: []\n"})

	stdout, _, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, stdout, "user:    "+config.GetUserConfigPath()+" (not created)")
	assert.Contains(t, stdout, "project: "+filepath.Join(dir, ".localsearch.yaml"))
}

func TestConfigInitCmd_User(t *testing.T) {
	inProject(t, nil)

	_, _, err := execute(t, "config", "init", "--user")

	require.NoError(t, err)
	assert.True(t, config.UserConfigExists())
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigRestoreCmd(t *testing.T) {
	// Given: a config replaced by init --force
	dir := inProject(t, map[string]string{"localsearch.yaml": "log_level: debug\n"})
	_, _, err := execute(t, "config", "init", "--force")
	require.NoError(t, err)

	// When: listing and restoring the newest backup
	listed, _, err := execute(t, "config", "restore", "--list")
	require.NoError(t, err)
	stdout, _, err := execute(t, "config", "restore")

	// Then: the original content is back
	require.NoError(t, err)
	assert.Contains(t, listed, ".bak")
	assert.Contains(t, stdout, "Restored")
	data, err := os.ReadFile(filepath.Join(dir, "localsearch.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "log_level: debug\n", string(data))
}

func TestConfigRestoreCmd_NoBackups(t *testing.T) {
	inProject(t, map[string]string{"localsearch.yaml": "indexes: []\n"})

	_, _, err := execute(t, "config", "restore")

	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeFileNotFound, lserrors.GetCode(err))
}
