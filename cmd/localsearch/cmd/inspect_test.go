package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/telemetry"
)

func TestInspectCmd_PublishedArtifact(t *testing.T) {
	// Given: a built project
	dir := inProject(t, map[string]string{
		"localsearch.yaml":   siteYAML,
		"content/pages.json": pagesJSON,
		"content/posts.yaml": postsYAML,
	})
	_, _, err := execute(t, "build")
	require.NoError(t, err)
	manifest, err := ReadManifest(filepath.Join(dir, ".localsearch", "manifest.json"))
	require.NoError(t, err)
	artifact := filepath.Join(dir, "public", "static", manifest["pages"].ContentDigest+".index.txt")

	// When: inspecting the pages index as JSON
	stdout, _, err := execute(t, "inspect", artifact, "--json", "--terms", "3")

	// Then: the report describes the artifact
	require.NoError(t, err)
	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Version)
	assert.Equal(t, "bleve", report.Engine)
	assert.Equal(t, 2, report.Documents)
	assert.Positive(t, report.Terms)
	assert.Contains(t, report.Segments, "reg")
	assert.Contains(t, report.Segments, "map")
	assert.Len(t, report.TopTerms, 3)
}

func TestInspectCmd_Lookup(t *testing.T) {
	// Given: a built project
	dir := inProject(t, map[string]string{
		"localsearch.yaml":   siteYAML,
		"content/pages.json": pagesJSON,
		"content/posts.yaml": postsYAML,
	})
	_, _, err := execute(t, "build")
	require.NoError(t, err)
	manifest, err := ReadManifest(filepath.Join(dir, ".localsearch", "manifest.json"))
	require.NoError(t, err)
	artifact := filepath.Join(dir, "public", "static", manifest["pages"].ContentDigest+".index.txt")

	// When: looking up a title word
	stdout, _, err := execute(t, "inspect", artifact, "--json", "--lookup", "Questions")

	// Then: the stored record of the matching page is returned
	require.NoError(t, err)
	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Hits, 1)
	assert.Equal(t, 1, report.Hits[0].ID)
	assert.Equal(t, "faq", report.Hits[0].Record["slug"])
	assert.Equal(t, "Questions", report.Hits[0].Record["title"])

	// And: a term nobody contains prints a warning in table mode
	stdout, _, err = execute(t, "inspect", artifact, "--lookup", "nowhere")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no documents contain")

	// And: a missing store file is reported
	storeFile := filepath.Join(dir, "public", "static", manifest["pages"].ContentDigest+".store.json")
	require.NoError(t, os.Remove(storeFile))
	_, err = inspectArtifact(artifact, inspectOptions{Lookup: "questions"})
	assert.Equal(t, lserrors.ErrCodeFileNotFound, lserrors.GetCode(err))
}

func TestMostFrequent(t *testing.T) {
	vocab := map[string][]int{"b": {0, 1}, "a": {0, 1}, "c": {2}, "d": {0, 1, 2}}

	assert.Equal(t, []termCount{
		{Term: "d", Documents: 3},
		{Term: "a", Documents: 2},
		{Term: "b", Documents: 2},
	}, mostFrequent(vocab, 3))
	assert.Len(t, mostFrequent(vocab, 10), 4)
}

func TestInspectCmd_TableOutput(t *testing.T) {
	dir := inProject(t, map[string]string{
		"localsearch.yaml":   siteYAML,
		"content/pages.json": pagesJSON,
		"content/posts.yaml": postsYAML,
	})
	_, _, err := execute(t, "build")
	require.NoError(t, err)
	manifest, err := ReadManifest(filepath.Join(dir, ".localsearch", "manifest.json"))
	require.NoError(t, err)

	stdout, _, err := execute(t, "inspect",
		filepath.Join(dir, "public", "static", manifest["posts"].ContentDigest+".index.txt"))

	require.NoError(t, err)
	assert.Contains(t, stdout, "engine: sqlite")
	assert.Contains(t, stdout, "SEGMENT")
}

func TestInspectCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.index.txt")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o644))

	_, err := inspectArtifact(filepath.Join(dir, "missing.index.txt"), inspectOptions{})
	assert.Equal(t, lserrors.ErrCodeFileNotFound, lserrors.GetCode(err))

	_, err = inspectArtifact(garbage, inspectOptions{})
	assert.Equal(t, lserrors.ErrCodeCorruptIndex, lserrors.GetCode(err))
}

func TestHistoryCmd_ListsBuilds(t *testing.T) {
	// Given: one successful and one failed build
	inProject(t, map[string]string{
		"localsearch.yaml": `
indexes:
  - name: pages
    query: pages.json
  - name: broken
    query: missing.json
`,
		"pages.json": `[{"id": 1, "title": "Home"}]`,
	})
	_, _, err := execute(t, "build")
	require.Error(t, err)

	// When: listing the history of pages
	stdout, _, err := execute(t, "history", "--index", "pages", "--json")

	// Then: only the pages build is listed
	require.NoError(t, err)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "pages", entries[0].Index)
	assert.Equal(t, telemetry.StatusSuccess, entries[0].Status)
	assert.Equal(t, 1, entries[0].Documents)

	// And: the table view lists the failure too
	stdout, _, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "broken")
	assert.Contains(t, stdout, telemetry.StatusFailed)
}

func TestHistoryCmd_Disabled(t *testing.T) {
	inProject(t, map[string]string{"localsearch.yaml": "indexes: []\n"})
	t.Setenv("LOCALSEARCH_HISTORY_DISABLED", "true")

	stdout, _, err := execute(t, "history")

	require.NoError(t, err)
	assert.Contains(t, stdout, "disabled")
}

func TestLogsCmd_Flags(t *testing.T) {
	cmd := NewRootCmd()

	logsCmd, _, err := cmd.Find([]string{"logs"})
	require.NoError(t, err)

	lines := logsCmd.Flags().Lookup("lines")
	require.NotNil(t, lines)
	assert.Equal(t, "n", lines.Shorthand)
	assert.Equal(t, "50", lines.DefValue)
	for _, name := range []string{"follow", "level", "index", "grep", "file"} {
		assert.NotNil(t, logsCmd.Flags().Lookup(name), "should have --%s flag", name)
	}
}

func TestLogsCmd_FiltersFile(t *testing.T) {
	// Given: a JSON log with entries of two indexes
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"index_built","index":"pages"}`+"\n"+
			`{"time":"2026-01-02T10:00:01Z","level":"ERROR","msg":"index_failed","index":"posts"}`+"\n"), 0o644))
	t.Setenv("NO_COLOR", "1")

	// When: viewing only errors
	stdout, _, err := execute(t, "logs", "--file", path, "--level", "error")

	// Then: only the posts failure is shown
	require.NoError(t, err)
	assert.Contains(t, stdout, "index_failed")
	assert.NotContains(t, stdout, "index_built")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	_, _, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	assert.Error(t, err)
}

func TestDoctorCmd(t *testing.T) {
	// Given: one present and one missing source
	inProject(t, map[string]string{
		"localsearch.yaml": `
indexes:
  - name: pages
    query: pages.json
  - name: drafts
    query: drafts.json
`,
		"pages.json": `[]`,
	})

	// When: running doctor
	stdout, _, err := execute(t, "doctor", "--json")

	// Then: it fails and reports the missing source
	require.Error(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	statuses := make(map[string]any)
	for _, r := range results {
		statuses[r["name"].(string)] = r["status"]
	}
	assert.Equal(t, "PASS", statuses["source:pages"])
	assert.Equal(t, "FAIL", statuses["source:drafts"])
}

func TestDoctorCmd_Ready(t *testing.T) {
	inProject(t, map[string]string{
		"localsearch.yaml":   siteYAML,
		"content/pages.json": pagesJSON,
		"content/posts.yaml": postsYAML,
	})

	stdout, _, err := execute(t, "doctor")

	require.NoError(t, err)
	assert.Contains(t, stdout, "source:posts: file")
	assert.Contains(t, stdout, "Status: READY")
}
