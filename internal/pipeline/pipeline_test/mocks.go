package pipeline_test

import (
	"context"
	"sync"

	"github.com/docupipe/docupipe/internal/rag/chunk"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
)

type MockParser struct {
	// Control fields to simulate different behaviors
	OnParse func(ctx context.Context, filename string, raw []byte) (string, error)

	mu    sync.Mutex
	Calls int
}

func (m *MockParser) Parse(ctx context.Context, filename string, raw []byte) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.OnParse != nil {
		return m.OnParse(ctx, filename, raw)
	}
	return "# parsed\n\nmocked markdown content", nil
}

type MockSummarizer struct {
	OnSummarize func(ctx context.Context, text string) (string, error)

	mu       sync.Mutex
	LastText string
}

func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.LastText = text
	m.mu.Unlock()
	if m.OnSummarize != nil {
		return m.OnSummarize(ctx, text)
	}
	return "mocked summary", nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)

	mu         sync.Mutex
	QueryCalls int
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	m.QueryCalls++
	m.mu.Unlock()
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	// Return dummy vectors matching chunk count
	vectors := make([][]float32, len(chunks))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

// MockDenseIndex keeps points in memory keyed by namespace/filename so the
// replace-not-duplicate behavior is observable.
type MockDenseIndex struct {
	OnQuery func(ctx context.Context, namespace string, vector []float32, topK int) ([]vectordb.Hit, error)

	mu     sync.Mutex
	points map[string][]chunk.Chunk
}

func key(namespace, filename string) string { return namespace + "/" + filename }

func (m *MockDenseIndex) EnsureCollection(ctx context.Context) error { return nil }

func (m *MockDenseIndex) ReplaceDocument(ctx context.Context, namespace string, filename string, chunks []chunk.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.points == nil {
		m.points = make(map[string][]chunk.Chunk)
	}
	m.points[key(namespace, filename)] = chunks
	return nil
}

func (m *MockDenseIndex) DeleteDocument(ctx context.Context, namespace string, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, key(namespace, filename))
	return nil
}

func (m *MockDenseIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectordb.Hit, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, namespace, vector, topK)
	}
	return nil, nil
}

func (m *MockDenseIndex) StoredChunks(namespace, filename string) []chunk.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[key(namespace, filename)]
}
