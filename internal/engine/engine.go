// Package engine wraps embeddable full-text index libraries behind one small
// contract: add serialized documents under positional ids, then export the
// built index as a fixed set of named segments.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Segment names of the canonical export.
const (
	// SegmentRegistry lists the registered document ids in ascending order.
	SegmentRegistry = "reg"
	// SegmentConfig holds the normalized engine options.
	SegmentConfig = "cfg"
	// SegmentMapping holds field -> term -> ascending document ids.
	SegmentMapping = "map"
	// SegmentContext holds index statistics and the analyzer description.
	SegmentContext = "ctx"
)

// contentField is the single text field every backend indexes.
const contentField = "content"

var (
	// ErrDuplicateID is returned by Add when an id was already added.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrClosed is returned when the engine was already closed.
	ErrClosed = errors.New("engine is closed")
)

// Segment is one named piece of an exported index.
type Segment struct {
	Name string
	Data string
	Err  error
}

// Engine is an embeddable full-text index.
type Engine interface {
	// Backend names the library behind the engine.
	Backend() string

	// Add indexes doc under the positional id.
	Add(id int, doc string) error

	// Export flushes pending additions and starts delivering segments.
	// Segments arrive in no particular order; the channel is closed after
	// the last one.
	Export(ctx context.Context) (<-chan Segment, error)

	// Segments enumerates the segment names Export delivers.
	Segments() []string

	Close() error
}

// CanonicalSegments is the segment set every backend exports.
func CanonicalSegments() []string {
	return []string{SegmentRegistry, SegmentConfig, SegmentMapping, SegmentContext}
}

// Collect waits until every expected segment has arrived on ch.
// Arrival order does not matter. An unexpected or repeated name, a segment
// carrying an error, a channel closed before the set is complete, or a
// cancelled context all fail the collection.
func Collect(ctx context.Context, ch <-chan Segment, expected []string) (map[string]string, error) {
	pending := make(map[string]struct{}, len(expected))
	for _, name := range expected {
		pending[name] = struct{}{}
	}
	got := make(map[string]string, len(expected))

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("collect segments: %w", ctx.Err())
		case seg, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("export ended with segments missing: %v", sortedKeys(pending))
			}
			if seg.Err != nil {
				return nil, fmt.Errorf("export segment %q: %w", seg.Name, seg.Err)
			}
			if _, seen := got[seg.Name]; seen {
				return nil, fmt.Errorf("segment %q delivered twice", seg.Name)
			}
			if _, want := pending[seg.Name]; !want {
				return nil, fmt.Errorf("unexpected segment %q", seg.Name)
			}
			got[seg.Name] = seg.Data
			delete(pending, seg.Name)
		}
	}
	return got, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mapping is the decoded form of the "map" segment.
type Mapping map[string]map[string][]int

// Context is the decoded form of the "ctx" segment.
type Context struct {
	Documents int            `json:"documents"`
	Terms     int            `json:"terms"`
	Analyzer  AnalyzerConfig `json:"analyzer"`
}

// AnalyzerConfig describes how text was turned into terms.
type AnalyzerConfig struct {
	Backend   string   `json:"backend"`
	Field     string   `json:"field"`
	Tokenizer string   `json:"tokenizer"`
	Filters   []string `json:"filters"`
}

// exportFunc produces the data of one segment.
type exportFunc func(ctx context.Context) (string, error)

// runExport starts one goroutine per segment producer and closes the returned
// channel once all of them have delivered.
func runExport(ctx context.Context, producers map[string]exportFunc) <-chan Segment {
	ch := make(chan Segment, len(producers))

	var wg sync.WaitGroup
	for name, produce := range producers {
		wg.Add(1)
		go func(name string, produce exportFunc) {
			defer wg.Done()
			data, err := produce(ctx)
			ch <- Segment{Name: name, Data: data, Err: err}
		}(name, produce)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	return ch
}
