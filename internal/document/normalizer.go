package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// NormalizerConfig describes a normalizer built from configuration instead of
// code.
type NormalizerConfig struct {
	// Path is a dotted path to the list of records inside the result data.
	// Empty means the data itself is the list.
	Path string `yaml:"path" json:"path"`

	// Fields maps output field names to dotted source paths inside each
	// record. Empty copies each record unchanged.
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// PathNormalizer returns a Normalizer that selects the records at cfg.Path and
// optionally remaps their fields.
func PathNormalizer(cfg NormalizerConfig) Normalizer {
	return func(_ context.Context, result Result) ([]Document, error) {
		data := result.Data
		if cfg.Path != "" {
			v, ok := Lookup(data, cfg.Path)
			if !ok {
				return []Document{}, nil
			}
			data = v
		}

		records, err := asList(data)
		if err != nil {
			return nil, err
		}

		docs := make([]Document, 0, len(records))
		for i, rec := range records {
			obj, ok := asObject(rec)
			if !ok {
				return nil, fmt.Errorf("record %d is %T, not an object", i, rec)
			}
			if len(cfg.Fields) == 0 {
				docs = append(docs, Project(obj, nil))
				continue
			}

			doc := make(Document, len(cfg.Fields))
			for out, src := range cfg.Fields {
				if v, ok := Lookup(obj, src); ok {
					doc[out] = v
				}
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}
}

// Lookup resolves a dotted path such as "data.posts.0.title".
// Numeric segments index into lists.
func Lookup(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}

	cur := value
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case Document:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func asList(data any) ([]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []Document:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("query data is %T, not a list", data)
	}
}

func asObject(rec any) (Document, bool) {
	switch v := rec.(type) {
	case Document:
		return v, true
	case map[string]any:
		return Document(v), true
	default:
		return nil, false
	}
}
