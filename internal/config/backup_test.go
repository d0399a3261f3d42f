package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup_NoFile(t *testing.T) {
	backupPath, err := Backup(filepath.Join(t.TempDir(), "localsearch.yaml"))

	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackup_CopiesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localsearch.yaml")
	writeFile(t, path, "version: 1\n")

	backupPath, err := Backup(path)

	require.NoError(t, err)
	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
	assert.Contains(t, filepath.Base(backupPath), "localsearch.yaml.bak.")
}

func TestBackup_KeepsNewest(t *testing.T) {
	// Given: more old backups than MaxBackups
	dir := t.TempDir()
	path := filepath.Join(dir, "localsearch.yaml")
	writeFile(t, path, "version: 1\n")
	for i := 0; i < MaxBackups+2; i++ {
		writeFile(t, fmt.Sprintf("%s%s.20200101-00000%d.000", path, BackupSuffix, i), "old")
	}

	// When: taking a new backup
	newest, err := Backup(path)
	require.NoError(t, err)

	// Then: only MaxBackups remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, newest, backups[0])
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localsearch.yaml")
	writeFile(t, path, "log_level: debug\n")
	backupPath, err := Backup(path)
	require.NoError(t, err)
	writeFile(t, path, "log_level: error\n")

	require.NoError(t, Restore(path, backupPath))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log_level: debug\n", string(data))

	assert.Error(t, Restore(path, filepath.Join(dir, "missing.bak")))
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localsearch.yaml")

	// First init writes the starter file
	backupPath, err := Init(path, "indexes: []\n", false)
	require.NoError(t, err)
	assert.Empty(t, backupPath)
	assert.FileExists(t, path)

	// A second init without force refuses
	_, err = Init(path, "indexes: []\n", false)
	assert.ErrorContains(t, err, "already exists")

	// With force the old file is backed up
	backupPath, err = Init(path, "indexes: []\n", true)
	require.NoError(t, err)
	assert.FileExists(t, backupPath)
}
