package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(segments ...Segment) <-chan Segment {
	ch := make(chan Segment, len(segments))
	for _, s := range segments {
		ch <- s
	}
	close(ch)
	return ch
}

func TestCollect_AnyArrivalOrder(t *testing.T) {
	ch := feed(
		Segment{Name: SegmentContext, Data: "ctx"},
		Segment{Name: SegmentRegistry, Data: "reg"},
		Segment{Name: SegmentMapping, Data: "map"},
		Segment{Name: SegmentConfig, Data: "cfg"},
	)

	got, err := Collect(context.Background(), ch, CanonicalSegments())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		SegmentRegistry: "reg",
		SegmentConfig:   "cfg",
		SegmentMapping:  "map",
		SegmentContext:  "ctx",
	}, got)
}

func TestCollect_MissingSegment(t *testing.T) {
	ch := feed(Segment{Name: SegmentRegistry, Data: "reg"})

	_, err := Collect(context.Background(), ch, []string{SegmentRegistry, SegmentMapping})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "map")
}

func TestCollect_SegmentError(t *testing.T) {
	boom := errors.New("boom")
	ch := feed(Segment{Name: SegmentMapping, Err: boom})

	_, err := Collect(context.Background(), ch, []string{SegmentMapping})

	assert.ErrorIs(t, err, boom)
}

func TestCollect_DuplicateAndUnexpected(t *testing.T) {
	dup := feed(Segment{Name: SegmentRegistry}, Segment{Name: SegmentRegistry})
	_, err := Collect(context.Background(), dup, []string{SegmentRegistry, SegmentConfig})
	assert.Error(t, err)

	extra := feed(Segment{Name: "zzz"})
	_, err = Collect(context.Background(), extra, []string{SegmentRegistry})
	assert.Error(t, err)
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// never delivers
	ch := make(chan Segment)

	_, err := Collect(ctx, ch, []string{SegmentRegistry})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect_EmptyExpectation(t *testing.T) {
	got, err := Collect(context.Background(), make(chan Segment), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ============================================================================
// Backend conformance: every backend must produce the same vocabulary
// ============================================================================

func backends() []Backend {
	return []Backend{BackendBleve, BackendSQLite}
}

func exportAll(t *testing.T, e Engine) map[string]string {
	t.Helper()
	ch, err := e.Export(context.Background())
	require.NoError(t, err)
	segs, err := Collect(context.Background(), ch, e.Segments())
	require.NoError(t, err)
	return segs
}

func TestEngine_ExportsCanonicalSegments(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			// Given: two documents
			e, err := New(string(backend), DefaultOptions())
			require.NoError(t, err)
			defer func() { _ = e.Close() }()

			require.NoError(t, e.Add(0, `["a"]`))
			require.NoError(t, e.Add(1, `["b"]`))

			// When: exporting
			segs := exportAll(t, e)

			// Then: all four segments arrive
			assert.Len(t, segs, 4)
			assert.JSONEq(t, `[0,1]`, segs[SegmentRegistry])
			assert.JSONEq(t, `{"content":{"a":[0],"b":[1]}}`, segs[SegmentMapping])

			var c Context
			require.NoError(t, json.Unmarshal([]byte(segs[SegmentContext]), &c))
			assert.Equal(t, 2, c.Documents)
			assert.Equal(t, 2, c.Terms)
			assert.Equal(t, string(backend), c.Analyzer.Backend)
		})
	}
}

func TestEngine_BackendsAgreeOnMapping(t *testing.T) {
	opts := Options{
		Tokenizer:      TokenizerCode,
		StopWords:      []string{"the"},
		MinTokenLength: 2,
	}
	docs := []string{
		`["The quick brown fox","getUserById"]`,
		`["a lazy dog","parse_http_request"]`,
		`["Quick thinking",42]`,
	}

	mappings := make(map[Backend]string)
	for _, backend := range backends() {
		e, err := New(string(backend), opts)
		require.NoError(t, err)
		for i, d := range docs {
			require.NoError(t, e.Add(i, d))
		}
		mappings[backend] = exportAll(t, e)[SegmentMapping]
		require.NoError(t, e.Close())
	}

	assert.JSONEq(t, mappings[BackendBleve], mappings[BackendSQLite])

	var m Mapping
	require.NoError(t, json.Unmarshal([]byte(mappings[BackendBleve]), &m))
	assert.Equal(t, []int{0, 2}, m["content"]["quick"])
	assert.Equal(t, []int{2}, m["content"]["42"])
	assert.NotContains(t, m["content"], "the")
	assert.NotContains(t, m["content"], "a")
	assert.Contains(t, m["content"], "user")
}

func TestEngine_RejectsDuplicateID(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			e, err := New(string(backend), DefaultOptions())
			require.NoError(t, err)
			defer func() { _ = e.Close() }()

			require.NoError(t, e.Add(0, "x"))
			err = e.Add(0, "y")
			assert.ErrorIs(t, err, ErrDuplicateID)
		})
	}
}

func TestEngine_EmptyExport(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			e, err := New(string(backend), DefaultOptions())
			require.NoError(t, err)
			defer func() { _ = e.Close() }()

			segs := exportAll(t, e)

			assert.JSONEq(t, `[]`, segs[SegmentRegistry])
			assert.JSONEq(t, `{"content":{}}`, segs[SegmentMapping])
		})
	}
}

func TestEngine_ClosedEngine(t *testing.T) {
	for _, backend := range backends() {
		t.Run(string(backend), func(t *testing.T) {
			e, err := New(string(backend), DefaultOptions())
			require.NoError(t, err)
			require.NoError(t, e.Close())

			assert.ErrorIs(t, e.Add(0, "x"), ErrClosed)
			_, err = e.Export(context.Background())
			assert.ErrorIs(t, err, ErrClosed)
			assert.NoError(t, e.Close())
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("lucene", DefaultOptions())
	assert.Error(t, err)
	assert.False(t, ValidBackend("lucene"))
	assert.True(t, ValidBackend(""))
}
