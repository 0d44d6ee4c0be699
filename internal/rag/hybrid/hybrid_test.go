package hybrid

import (
	"testing"

	"github.com/docupipe/docupipe/internal/rag/sparse"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineUnionsBothSets(t *testing.T) {
	dense := []vectordb.Hit{
		{Ref: "semantic.md:0", Filename: "semantic.md", Score: 0.9},
		{Ref: "both.md:0", Filename: "both.md", Score: 0.5},
	}
	sp := []sparse.Hit{
		{Ref: "keyword.md:0", Filename: "keyword.md", Score: 7.2},
		{Ref: "both.md:0", Filename: "both.md", Score: 3.1},
	}

	results := Combine(dense, sp, 0.5, 10)
	require.Len(t, results, 3)

	found := map[string]Result{}
	for _, r := range results {
		found[r.Ref] = r
	}

	//dense-only candidate carries its normalized dense score, zero sparse
	semantic := found["semantic.md:0"]
	assert.Equal(t, 1.0, semantic.Dense)
	assert.Zero(t, semantic.Sparse)
	assert.InDelta(t, 0.5, semantic.Score, 1e-9)

	//sparse-only candidate mirrors that
	keyword := found["keyword.md:0"]
	assert.Zero(t, keyword.Dense)
	assert.Equal(t, 1.0, keyword.Sparse)
	assert.InDelta(t, 0.5, keyword.Score, 1e-9)

	//shared candidate combines both components
	both := found["both.md:0"]
	assert.Zero(t, both.Dense) //min of the dense set
	assert.Zero(t, both.Sparse)
}

func TestCombineAlphaWeighting(t *testing.T) {
	dense := []vectordb.Hit{{Ref: "d:0", Score: 1.0}}
	sp := []sparse.Hit{{Ref: "s:0", Score: 1.0}}

	//alpha 1.0: dense-only candidate must win outright
	results := Combine(dense, sp, 1.0, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "d:0", results[0].Ref)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Zero(t, results[1].Score)

	//alpha 0.0: sparse side wins
	results = Combine(dense, sp, 0.0, 2)
	assert.Equal(t, "s:0", results[0].Ref)
}

func TestCombineTieBreaksOnDenseThenInsertion(t *testing.T) {
	dense := []vectordb.Hit{
		{Ref: "a:0", Score: 0.8},
		{Ref: "b:0", Score: 0.4},
		{Ref: "c:0", Score: 0.4},
	}
	results := Combine(dense, nil, 0.5, 10)
	require.Len(t, results, 3)

	assert.Equal(t, "a:0", results[0].Ref, "higher dense score first")
	//b and c tie on score and dense component, insertion order decides
	assert.Equal(t, "b:0", results[1].Ref)
	assert.Equal(t, "c:0", results[2].Ref)
}

func TestCombineTruncatesToTopK(t *testing.T) {
	var dense []vectordb.Hit
	for i := 0; i < 10; i++ {
		dense = append(dense, vectordb.Hit{Ref: string(rune('a' + i)), Score: float64(10 - i)})
	}
	results := Combine(dense, nil, 0.5, 3)
	assert.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Ref)
}

func TestCombineEmptyInputs(t *testing.T) {
	assert.Empty(t, Combine(nil, nil, 0.5, 5))
	assert.Empty(t, Combine(nil, nil, 0.5, 0))
}

func TestMinMaxSingletonScoresOne(t *testing.T) {
	out := minMax([]float64{42.0})
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0])

	out = minMax([]float64{3, 3, 3})
	for _, v := range out {
		assert.Equal(t, 1.0, v)
	}
}
