package hybrid

import (
	"sort"

	"github.com/docupipe/docupipe/internal/rag/sparse"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
)

// Result is one merged candidate. Dense and Sparse carry the normalized
// component scores so callers can see what drove the ranking.
type Result struct {
	Ref      string
	Filename string
	Content  string
	Score    float64
	Dense    float64
	Sparse   float64
}

// Combine merges a dense and a sparse top-k into one ranked list:
// min-max normalize each set, weight by alpha, union by chunk ref, sort
// descending. A candidate present in only one set keeps that set's
// normalized score and a zero for the other component. Ties break on the
// dense component, then on insertion order (dense list first).
func Combine(dense []vectordb.Hit, sparseHits []sparse.Hit, alpha float64, topK int) []Result {
	if topK <= 0 {
		return nil
	}

	denseNorm := normalizeDense(dense)
	sparseNorm := normalizeSparse(sparseHits)

	byRef := make(map[string]*Result)
	var ordered []*Result

	for i, h := range dense {
		r := &Result{
			Ref:      h.Ref,
			Filename: h.Filename,
			Content:  h.Content,
			Dense:    denseNorm[i],
		}
		byRef[h.Ref] = r
		ordered = append(ordered, r)
	}
	for i, h := range sparseHits {
		if r, seen := byRef[h.Ref]; seen {
			r.Sparse = sparseNorm[i]
			continue
		}
		r := &Result{
			Ref:      h.Ref,
			Filename: h.Filename,
			Content:  h.Content,
			Sparse:   sparseNorm[i],
		}
		byRef[h.Ref] = r
		ordered = append(ordered, r)
	}

	for _, r := range ordered {
		r.Score = alpha*r.Dense + (1-alpha)*r.Sparse
	}

	//SliceStable keeps insertion order as the final tie-break
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Dense > ordered[j].Dense
	})

	if len(ordered) > topK {
		ordered = ordered[:topK]
	}
	out := make([]Result, len(ordered))
	for i, r := range ordered {
		out[i] = *r
	}
	return out
}

// min-max over the set; a single-element or constant set scores 1.0 so one
// lone hit is not zeroed out of the merge.
func minMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

func normalizeDense(hits []vectordb.Hit) []float64 {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return minMax(scores)
}

func normalizeSparse(hits []sparse.Hit) []float64 {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return minMax(scores)
}
