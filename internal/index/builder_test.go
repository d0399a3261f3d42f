package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/localsearch/internal/document"
	"github.com/Aman-CERP/localsearch/internal/engine"
)

func scenarioDocs() []document.Document {
	return []document.Document{
		{"id": 1, "title": "a", "body": "x"},
		{"id": 2, "title": "b"},
	}
}

func TestBuild_Scenario(t *testing.T) {
	for _, backend := range []string{"bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			// Given: the two-document scenario with index fields [title]
			b := NewBuilder(backend, engine.DefaultOptions())

			// When: building
			artifact, err := b.Build(context.Background(), scenarioDocs(), Options{Ref: "id", Fields: []string{"title"}})
			require.NoError(t, err)

			// Then: only title values are indexed, under positional ids
			decoded, err := Decode(string(artifact))
			require.NoError(t, err)
			assert.Equal(t, backend, decoded.Engine)

			vocab, err := decoded.Vocabulary()
			require.NoError(t, err)
			assert.Equal(t, map[string][]int{"a": {0}, "b": {1}}, vocab)

			ids, err := decoded.IDs()
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1}, ids)
		})
	}
}

func TestBuild_IndexesFieldTextVerbatim(t *testing.T) {
	for _, backend := range []string{"bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			// Given: values with HTML and control characters
			docs := []document.Document{{"id": 1, "title": "Tom & Jerry", "body": "hello\nworld"}}
			b := NewBuilder(backend, engine.DefaultOptions())

			// When: building over title and body
			artifact, err := b.Build(context.Background(), docs, Options{Ref: "id", Fields: []string{"title", "body"}})
			require.NoError(t, err)

			// Then: the vocabulary holds the words and no escape sequences
			decoded, err := Decode(string(artifact))
			require.NoError(t, err)
			vocab, err := decoded.Vocabulary()
			require.NoError(t, err)
			assert.Equal(t, map[string][]int{
				"tom":   {0},
				"jerry": {0},
				"hello": {0},
				"world": {0},
			}, vocab)
		})
	}
}

func TestBuild_WholeDocumentWithoutAllowList(t *testing.T) {
	b := NewBuilder("bleve", engine.DefaultOptions())

	artifact, err := b.Build(context.Background(), scenarioDocs(), Options{Ref: "id"})
	require.NoError(t, err)

	decoded, err := Decode(string(artifact))
	require.NoError(t, err)
	vocab, err := decoded.Vocabulary()
	require.NoError(t, err)

	assert.Equal(t, []int{0}, vocab["x"])
	assert.Equal(t, []int{0}, vocab["1"])
	assert.Equal(t, []int{1}, vocab["2"])
}

func TestBuild_Deterministic(t *testing.T) {
	for _, backend := range []string{"bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			b := NewBuilder(backend, engine.DefaultOptions())
			opts := Options{Ref: "id", Fields: []string{"title", "body"}}

			first, err := b.Build(context.Background(), scenarioDocs(), opts)
			require.NoError(t, err)
			second, err := b.Build(context.Background(), scenarioDocs(), opts)
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestBuild_OnlyAllowListedFieldsMatter(t *testing.T) {
	b := NewBuilder("bleve", engine.DefaultOptions())
	opts := Options{Ref: "id", Fields: []string{"title"}}

	base, err := b.Build(context.Background(), scenarioDocs(), opts)
	require.NoError(t, err)

	// When: a non-listed field changes
	changedBody := scenarioDocs()
	changedBody[0]["body"] = "something else"
	same, err := b.Build(context.Background(), changedBody, opts)
	require.NoError(t, err)

	// When: a listed field changes
	changedTitle := scenarioDocs()
	changedTitle[0]["title"] = "z"
	different, err := b.Build(context.Background(), changedTitle, opts)
	require.NoError(t, err)

	assert.Equal(t, base, same)
	assert.NotEqual(t, base, different)
}

func TestBuild_EmptyBatch(t *testing.T) {
	b := NewBuilder("bleve", engine.DefaultOptions())

	artifact, err := b.Build(context.Background(), nil, Options{Ref: "id"})
	require.NoError(t, err)

	decoded, err := Decode(string(artifact))
	require.NoError(t, err)
	stats, err := decoded.Context()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Terms)
}

// fakeEngine lets tests control Add and Export outcomes.
type fakeEngine struct {
	addErr   error
	segments []engine.Segment
	closed   bool
}

func (f *fakeEngine) Backend() string { return "fake" }

func (f *fakeEngine) Add(id int, doc string) error { return f.addErr }

func (f *fakeEngine) Export(ctx context.Context) (<-chan engine.Segment, error) {
	ch := make(chan engine.Segment, len(f.segments))
	for _, s := range f.segments {
		ch <- s
	}
	close(ch)
	return ch, nil
}

func (f *fakeEngine) Segments() []string { return []string{"one", "two"} }

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func TestBuild_EngineRejectsDocument(t *testing.T) {
	fake := &fakeEngine{addErr: engine.ErrDuplicateID}
	b := &Builder{NewEngine: func() (engine.Engine, error) { return fake, nil }}

	artifact, err := b.Build(context.Background(), scenarioDocs(), Options{})

	assert.ErrorIs(t, err, ErrIndexFailed)
	assert.ErrorIs(t, err, engine.ErrDuplicateID)
	assert.Empty(t, artifact)
	assert.True(t, fake.closed)
}

func TestBuild_IncompleteExport(t *testing.T) {
	fake := &fakeEngine{segments: []engine.Segment{{Name: "one", Data: "{}"}}}
	b := &Builder{NewEngine: func() (engine.Engine, error) { return fake, nil }}

	_, err := b.Build(context.Background(), scenarioDocs(), Options{})

	assert.ErrorIs(t, err, ErrIndexFailed)
}

func TestBuild_SegmentsInAnyOrder(t *testing.T) {
	fake := &fakeEngine{segments: []engine.Segment{
		{Name: "two", Data: `{"b":2}`},
		{Name: "one", Data: `[1]`},
	}}
	b := &Builder{NewEngine: func() (engine.Engine, error) { return fake, nil }}

	artifact, err := b.Build(context.Background(), scenarioDocs(), Options{})

	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"engine":"fake","segments":{"one":[1],"two":{"b":2}}}`, string(artifact))
}

func TestBuild_EngineFactoryFails(t *testing.T) {
	boom := errors.New("boom")
	b := &Builder{NewEngine: func() (engine.Engine, error) { return nil, boom }}

	_, err := b.Build(context.Background(), scenarioDocs(), Options{})

	assert.ErrorIs(t, err, ErrIndexFailed)
	assert.ErrorIs(t, err, boom)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode("not json")
	assert.Error(t, err)

	_, err = Decode(`{"version":99,"engine":"bleve","segments":{}}`)
	assert.Error(t, err)

	d, err := Decode(`{"version":1,"engine":"bleve","segments":{}}`)
	require.NoError(t, err)
	_, err = d.Mapping()
	assert.Error(t, err)
}
