package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/docupipe/docupipe/internal/domain/document"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

// InMemoryRegistry is the fallback when Redis is offline. Stage state only
// survives the process, which is fine for single-instance deployments.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	docs   map[string]document.Document
	logger *logger_i.Logger
}

func InitInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		docs:   make(map[string]document.Document),
		logger: logger_i.NewLogger("InMem Registry"),
	}
}

func (r *InMemoryRegistry) Get(ctx context.Context, filename string) (document.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, found := r.docs[filename]
	return doc, found
}

func (r *InMemoryRegistry) Save(ctx context.Context, doc document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Filename] = doc
	r.logger.Debug("Saved document record", "filename", doc.Filename, "stage", doc.Stage)
	return nil
}

func (r *InMemoryRegistry) Delete(ctx context.Context, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, filename)
}

func (r *InMemoryRegistry) List(ctx context.Context) ([]document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]document.Document, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}
