package registry

import (
	"context"

	"github.com/docupipe/docupipe/internal/domain/document"
)

// DocumentRegistry is the stage-state store: one record per filename so every
// service instance observes the same pipeline position for a document.
type DocumentRegistry interface {
	Get(ctx context.Context, filename string) (document.Document, bool)
	Save(ctx context.Context, doc document.Document) error
	Delete(ctx context.Context, filename string)
	List(ctx context.Context) ([]document.Document, error)
}
