// Package store builds the Store Artifact: the ordered projections used to
// hydrate search hits back into records.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/Aman-CERP/localsearch/internal/document"
)

// Artifact is the ordered store. Entry N belongs to the document indexed
// under positional id N.
type Artifact []document.Document

// Build projects every document onto fields, keeping input order.
// A nil fields list stores whole documents.
func Build(docs []document.Document, fields []string) Artifact {
	out := make(Artifact, 0, len(docs))
	for _, doc := range docs {
		out = append(out, document.Project(doc, fields))
	}
	return out
}

// JSON encodes the artifact as the .store.json payload. An empty store is
// always "[]".
func (a Artifact) JSON() ([]byte, error) {
	if a == nil {
		a = Artifact{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode store: %w", err)
	}
	return data, nil
}

// Lookup resolves a positional id to its stored projection.
func (a Artifact) Lookup(id int) (document.Document, bool) {
	if id < 0 || id >= len(a) {
		return nil, false
	}
	return a[id], true
}
