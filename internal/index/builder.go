// Package index builds the serialized full-text Index Artifact for one batch
// of documents.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aman-CERP/localsearch/internal/document"
	"github.com/Aman-CERP/localsearch/internal/engine"
)

// FormatVersion is the version field written into every artifact.
const FormatVersion = 1

// ErrIndexFailed is returned when the engine rejects a document or the export
// does not complete. No artifact is produced.
var ErrIndexFailed = errors.New("index build failed")

// Artifact is the serialized index: one JSON object holding every exported
// segment.
type Artifact string

// Options selects what goes into the index.
type Options struct {
	// Ref is the reference field. Documents are expected to be filtered on it
	// already; it is recorded for diagnostics only.
	Ref string

	// Fields is the index allow-list. Nil indexes whole documents.
	Fields []string
}

// EngineFactory creates a fresh engine for one build.
type EngineFactory func() (engine.Engine, error)

// Builder feeds documents into an engine and serializes the export.
type Builder struct {
	NewEngine EngineFactory
}

// NewBuilder creates a Builder whose engines use backend and opts.
func NewBuilder(backend string, opts engine.Options) *Builder {
	return &Builder{
		NewEngine: func() (engine.Engine, error) {
			return engine.New(backend, opts)
		},
	}
}

// encoded is the on-disk layout of an Artifact.
type encoded struct {
	Version  int                        `json:"version"`
	Engine   string                     `json:"engine"`
	Segments map[string]json.RawMessage `json:"segments"`
}

// Build indexes docs in order under their positional ids and returns the
// serialized export. The same docs and options always produce the same bytes.
func (b *Builder) Build(ctx context.Context, docs []document.Document, opts Options) (Artifact, error) {
	if b.NewEngine == nil {
		return "", fmt.Errorf("%w: no engine factory", ErrIndexFailed)
	}

	eng, err := b.NewEngine()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}
	defer func() { _ = eng.Close() }()

	for pos, doc := range docs {
		serialized, err := document.Canonicalize(document.Project(doc, opts.Fields))
		if err != nil {
			return "", fmt.Errorf("%w: document %d: %w", ErrIndexFailed, pos, err)
		}
		if err := eng.Add(pos, serialized); err != nil {
			return "", fmt.Errorf("%w: document %d: %w", ErrIndexFailed, pos, err)
		}
	}

	ch, err := eng.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: export: %w", ErrIndexFailed, err)
	}

	segments, err := engine.Collect(ctx, ch, eng.Segments())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}

	out := encoded{
		Version:  FormatVersion,
		Engine:   eng.Backend(),
		Segments: make(map[string]json.RawMessage, len(segments)),
	}
	for name, data := range segments {
		if !json.Valid([]byte(data)) {
			return "", fmt.Errorf("%w: segment %q is not valid JSON", ErrIndexFailed, name)
		}
		out.Segments[name] = json.RawMessage(data)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %w", ErrIndexFailed, err)
	}
	return Artifact(data), nil
}

// Decoded is a parsed Artifact.
type Decoded struct {
	Version  int
	Engine   string
	Segments map[string]json.RawMessage
}

// Decode parses a serialized artifact.
func Decode(artifact string) (*Decoded, error) {
	var e encoded
	if err := json.Unmarshal([]byte(artifact), &e); err != nil {
		return nil, fmt.Errorf("invalid index artifact: %w", err)
	}
	if e.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported index artifact version %d", e.Version)
	}
	return &Decoded{
		Version:  e.Version,
		Engine:   e.Engine,
		Segments: e.Segments,
	}, nil
}

// IDs returns the registered document ids.
func (d *Decoded) IDs() ([]int, error) {
	var ids []int
	if err := d.segment(engine.SegmentRegistry, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Mapping returns field -> term -> ids.
func (d *Decoded) Mapping() (engine.Mapping, error) {
	var m engine.Mapping
	if err := d.segment(engine.SegmentMapping, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Vocabulary returns term -> ids of the single indexed field.
func (d *Decoded) Vocabulary() (map[string][]int, error) {
	m, err := d.Mapping()
	if err != nil {
		return nil, err
	}
	vocab := make(map[string][]int)
	for _, terms := range m {
		for term, ids := range terms {
			vocab[term] = ids
		}
	}
	return vocab, nil
}

// Context returns the index statistics.
func (d *Decoded) Context() (engine.Context, error) {
	var c engine.Context
	err := d.segment(engine.SegmentContext, &c)
	return c, err
}

func (d *Decoded) segment(name string, v any) error {
	raw, ok := d.Segments[name]
	if !ok {
		return fmt.Errorf("segment %q missing", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("segment %q: %w", name, err)
	}
	return nil
}
