package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/localsearch/internal/document"
)

// FileEngine treats the query as the path of a YAML or JSON data file.
type FileEngine struct {
	baseDir string
}

// NewFileEngine resolves relative query paths against baseDir.
func NewFileEngine(baseDir string) *FileEngine {
	return &FileEngine{baseDir: baseDir}
}

// Path returns the file a query refers to.
func (e *FileEngine) Path(query string) string {
	path := strings.TrimSpace(query)
	if path == "" || filepath.IsAbs(path) || e.baseDir == "" {
		return path
	}
	return filepath.Join(e.baseDir, path)
}

// Execute implements Engine. Data is the decoded document.
func (e *FileEngine) Execute(ctx context.Context, query string) document.Result {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	path := e.Path(query)
	if path == "" {
		return failed(fmt.Errorf("file query is empty"))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return failed(fmt.Errorf("failed to read %s: %w", path, err))
	}

	var data any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return failed(fmt.Errorf("failed to parse %s: %w", path, err))
	}

	return document.Result{Data: stringKeys(data)}
}

// stringKeys converts the map[any]any yaml.v3 produces for mappings with
// non-string keys (years, booleans) into map[string]any, recursively.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case map[string]any:
		for k, item := range val {
			val[k] = stringKeys(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = stringKeys(item)
		}
		return val
	default:
		return v
	}
}

// Close implements Engine.
func (e *FileEngine) Close() error { return nil }

// Verify interface implementation
var _ Engine = (*FileEngine)(nil)
