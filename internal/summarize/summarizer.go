package summarize

import "context"

// Summarizer condenses document text via an upstream language model.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
