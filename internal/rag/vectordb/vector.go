package vectordb

import (
	"context"

	"github.com/docupipe/docupipe/internal/rag/chunk"
)

// Hit is one dense match with enough payload to attribute and re-rank it.
type Hit struct {
	Ref      string
	Filename string
	Content  string
	Score    float64
}

// DenseIndex is the vector database capability the pipeline depends on.
// ReplaceDocument drops every prior point for the filename before upserting
// so a re-ingest never duplicates entries.
type DenseIndex interface {
	EnsureCollection(ctx context.Context) error
	ReplaceDocument(ctx context.Context, namespace string, filename string, chunks []chunk.Chunk, vectors [][]float32) error
	DeleteDocument(ctx context.Context, namespace string, filename string) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Hit, error)
}
