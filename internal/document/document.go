// Package document provides the normalized record type fed to the index and
// store builders, together with field projection and query-result
// normalization.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultRef is the reference field used when an index does not configure one.
const DefaultRef = "id"

// ErrQueryFailed is returned when the query result carries errors.
// Normalization is skipped entirely in that case.
var ErrQueryFailed = errors.New("query returned errors")

// Document is one normalized record keyed by field name.
type Document map[string]any

// Ref returns the value stored at the reference field.
// A key that is present but holds nil counts as missing.
func (d Document) Ref(field string) (any, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Result is the raw outcome of a query execution.
type Result struct {
	Data   any
	Errors []error
}

// HasErrors reports whether the query engine reported any error.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Normalizer maps a successful query result to an ordered document sequence.
type Normalizer func(ctx context.Context, result Result) ([]Document, error)

// Normalize runs normalizer over result.
// A result with errors yields ErrQueryFailed wrapping the first error, and the
// normalizer is never invoked. A nil sequence from the normalizer is returned
// as an empty slice.
func Normalize(ctx context.Context, result Result, normalizer Normalizer) ([]Document, error) {
	if result.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, result.Errors[0])
	}
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}

	docs, err := normalizer(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("normalize query result: %w", err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// Project restricts doc to fields. A nil field list keeps the whole
// document. Listed keys missing from doc are simply absent. Nested maps and
// slices are copied, so the projection never aliases the input.
func Project(doc Document, fields []string) Document {
	if fields == nil {
		out := make(Document, len(doc))
		for k, v := range doc {
			out[k] = clone(v)
		}
		return out
	}

	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = clone(v)
		}
	}
	return out
}

func clone(v any) any {
	switch val := v.(type) {
	case Document:
		return Document(cloneMap(val))
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = clone(item)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// FilterByRef drops documents without a reference value, keeping input order.
func FilterByRef(docs []Document, ref string) ([]Document, int) {
	kept := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if _, ok := doc.Ref(ref); ok {
			kept = append(kept, doc)
		}
	}
	return kept, len(docs) - len(kept)
}

// Canonicalize renders a projection as the plain text handed to the engine.
// Values are ordered by field name (nested maps by key) and joined with a
// space. Strings are kept verbatim; other scalars are JSON encoded without
// HTML escaping.
func Canonicalize(doc Document) (string, error) {
	var parts []string
	if err := appendText(&parts, map[string]any(doc)); err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return strings.Join(parts, " "), nil
}

func appendText(parts *[]string, v any) error {
	switch val := v.(type) {
	case nil:
	case string:
		if val != "" {
			*parts = append(*parts, val)
		}
	case Document:
		return appendText(parts, map[string]any(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := appendText(parts, val[k]); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range val {
			if err := appendText(parts, item); err != nil {
				return err
			}
		}
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return err
		}
		*parts = append(*parts, strings.TrimSuffix(buf.String(), "\n"))
	}
	return nil
}
