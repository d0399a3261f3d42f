package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/localsearch/internal/document"
)

func TestBuild_Scenario(t *testing.T) {
	// Given: the scenario documents and store fields [id, title]
	docs := []document.Document{
		{"id": 1, "title": "a", "body": "x"},
		{"id": 2, "title": "b"},
	}

	// When: building the store
	artifact := Build(docs, []string{"id", "title"})

	// Then: projections keep order and drop unlisted fields
	data, err := artifact.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"title":"a"},{"id":2,"title":"b"}]`, string(data))
}

func TestBuild_WholeDocumentsWithoutAllowList(t *testing.T) {
	docs := []document.Document{{"id": 1, "body": "x"}}

	artifact := Build(docs, nil)

	require.Len(t, artifact, 1)
	assert.Equal(t, document.Document{"id": 1, "body": "x"}, artifact[0])

	// the store holds copies, not the caller's maps
	artifact[0]["body"] = "changed"
	assert.Equal(t, "x", docs[0]["body"])
}

func TestBuild_NoDedup(t *testing.T) {
	docs := []document.Document{{"id": 1}, {"id": 1}}

	artifact := Build(docs, nil)

	assert.Len(t, artifact, 2)
}

func TestArtifactJSON_EmptyIsArray(t *testing.T) {
	for _, a := range []Artifact{nil, Build(nil, nil)} {
		data, err := a.JSON()
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	}
}

func TestArtifactLookup(t *testing.T) {
	a := Build([]document.Document{{"id": "x"}, {"id": "y"}}, nil)

	doc, ok := a.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "y", doc["id"])

	_, ok = a.Lookup(2)
	assert.False(t, ok)
	_, ok = a.Lookup(-1)
	assert.False(t, ok)
}
