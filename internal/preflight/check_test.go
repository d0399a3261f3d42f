package preflight

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/localsearch/internal/config"
	"github.com/Aman-CERP/localsearch/internal/output"
)

func loadConfig(t *testing.T, dir, yaml string) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "localsearch.yaml"), []byte(yaml), 0o644))
	cfg, err := config.Load(dir, "")
	require.NoError(t, err)
	return cfg
}

func byName(results []CheckResult) map[string]CheckResult {
	m := make(map[string]CheckResult, len(results))
	for _, r := range results {
		m[r.Name] = r
	}
	return m
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "disk_space", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	c := New()

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass, Required: true}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusWarn}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusFail}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusFail, Required: true}}))
	assert.False(t, c.HasCriticalFailures([]CheckResult{{Status: StatusWarn, Required: true}}))
	assert.True(t, c.HasCriticalFailures([]CheckResult{{Status: StatusFail, Required: true}}))
}

func TestChecker_CheckWritePermissions(t *testing.T) {
	dir := t.TempDir()
	c := New()

	// Given: an existing and a not yet created directory
	existing := c.CheckWritePermissions("public_dir", dir)
	missing := c.CheckWritePermissions("public_dir", filepath.Join(dir, "public", "static"))

	// Then: both pass, the missing one notes it will be created
	assert.Equal(t, StatusPass, existing.Status)
	assert.Equal(t, "OK", existing.Message)
	assert.Equal(t, StatusPass, missing.Status)
	assert.Contains(t, missing.Message, "will be created")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file should be removed")
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	result := New().CheckWritePermissions("public_dir", dir)

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestChecker_CheckWritePermissions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	result := New().CheckWritePermissions("public_dir", path)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not a directory")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "not", "yet"))

	assert.Equal(t, "disk_space", result.Name)
	assert.Contains(t, result.Message, "free")
}

func TestChecker_CheckFileDescriptors(t *testing.T) {
	result := New().CheckFileDescriptors()

	assert.Equal(t, "file_descriptors", result.Name)
	assert.NotEqual(t, StatusFail, result.Status)
}

func TestChecker_CheckSources(t *testing.T) {
	// Given: one present file, one missing file and a seeded SQLite database
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages.yaml"), []byte("- {id: 1}\n"), 0o644))
	db, err := sql.Open("sqlite", filepath.Join(dir, "content.db"))
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE posts (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := loadConfig(t, dir, `
indexes:
  - name: pages
    query: pages.yaml
  - name: drafts
    query: drafts.yaml
  - name: posts
    source: {type: sql, dsn: content.db}
    query: SELECT id FROM posts
  - name: archive
    source: {type: sql, dsn: archive.db}
    query: SELECT 1
`)

	// When: checking sources
	results := byName(New(WithPingTimeout(time.Second)).CheckSources(context.Background(), cfg))

	// Then: present sources pass, missing ones fail without creating files
	assert.Equal(t, StatusPass, results["source:pages"].Status)
	assert.Equal(t, StatusFail, results["source:drafts"].Status)
	assert.Equal(t, StatusPass, results["source:posts"].Status)
	assert.Contains(t, results["source:posts"].Message, "sqlite database reachable")
	assert.Equal(t, StatusFail, results["source:archive"].Status)
	assert.NoFileExists(t, filepath.Join(dir, "archive.db"))
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages.yaml"), []byte("[]\n"), 0o644))
	cfg := loadConfig(t, dir, `
indexes:
  - name: pages
    query: pages.yaml
`)

	results := byName(New().RunAll(context.Background(), cfg))

	for _, name := range []string{
		"disk_space",
		"write_permissions:public_dir",
		"write_permissions:lock_dir",
		"write_permissions:manifest_dir",
		"file_descriptors",
		"source:pages",
	} {
		assert.Contains(t, results, name)
	}
	assert.Equal(t, StatusPass, results["source:pages"].Status)
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: a passing and a critical result
	buf := &bytes.Buffer{}
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "plenty", Required: true},
		{Name: "source:posts", Status: StatusFail, Message: "database unreachable", Details: "dial tcp: refused", Required: true},
	}

	// When: printing verbosely
	New().PrintResults(output.NewWithStyles(buf, output.NoColorStyles()), results, true)

	// Then: every result, its details and the summary appear
	out := buf.String()
	assert.Contains(t, out, "disk_space: plenty")
	assert.Contains(t, out, "source:posts: database unreachable")
	assert.Contains(t, out, "dial tcp: refused")
	assert.Contains(t, out, "Status: FAILED")
}
