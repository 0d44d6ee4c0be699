package sparse

import (
	"testing"

	"github.com/docupipe/docupipe/internal/rag/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunksFor(filename string, texts ...string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunk.Chunk{
			Filename: filename,
			Ref:      filename + ":" + string(rune('0'+i)),
			Order:    i,
			Content:  t,
		}
	}
	return out
}

func TestScoreRanksByTermOverlap(t *testing.T) {
	idx := NewIndex()
	idx.ReplaceDocument("invoices.md", chunksFor("invoices.md",
		"quarterly invoice totals for the construction project",
		"payment schedule and invoice disputes",
	))
	idx.ReplaceDocument("recipes.md", chunksFor("recipes.md",
		"slow cooked beef stew with root vegetables",
	))

	hits := idx.Score("invoice totals", 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "invoices.md", hits[0].Filename)
	for _, h := range hits {
		assert.NotEqual(t, "recipes.md", h.Filename, "zero-overlap chunk must not appear")
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestScoreEmptyIndexAndEmptyQuery(t *testing.T) {
	idx := NewIndex()
	assert.Nil(t, idx.Score("anything", 5))

	idx.ReplaceDocument("a.md", chunksFor("a.md", "some content"))
	assert.Nil(t, idx.Score("", 5))
	assert.Nil(t, idx.Score("the and of", 5), "all-stopword query has no scoreable terms")
}

func TestReplaceDocumentIsIdempotent(t *testing.T) {
	idx := NewIndex()
	chunks := chunksFor("doc.md", "alpha beta gamma", "delta epsilon zeta")

	idx.ReplaceDocument("doc.md", chunks)
	first := idx.ChunkCount("doc.md")

	idx.ReplaceDocument("doc.md", chunks)
	second := idx.ChunkCount("doc.md")

	assert.Equal(t, first, second, "re-ingest must replace, not duplicate")
	assert.Equal(t, 2, second)
}

func TestRemoveDocumentDropsTermStats(t *testing.T) {
	idx := NewIndex()
	idx.ReplaceDocument("keep.md", chunksFor("keep.md", "shared vocabulary words"))
	idx.ReplaceDocument("drop.md", chunksFor("drop.md", "unique zanzibar terminology"))

	idx.RemoveDocument("drop.md")

	assert.Zero(t, idx.ChunkCount("drop.md"))
	assert.Empty(t, idx.Score("zanzibar", 5))
	assert.NotEmpty(t, idx.Score("vocabulary", 5))
}

func TestMarshalLoadRoundtrip(t *testing.T) {
	idx := NewIndex()
	idx.ReplaceDocument("doc.md", chunksFor("doc.md", "persisted index statistics"))

	data, err := idx.Marshal()
	require.NoError(t, err)

	loaded, err := Load(data)
	require.NoError(t, err)

	want := idx.Score("persisted statistics", 3)
	got := loaded.Score("persisted statistics", 3)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Ref, got[i].Ref)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-9)
	}
}

func TestLoadRejectsCorruptData(t *testing.T) {
	_, err := Load([]byte("{not json"))
	assert.Error(t, err)
}
