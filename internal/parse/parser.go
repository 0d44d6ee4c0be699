package parse

import "context"

// Parser turns raw document bytes into structured markdown. Implementations
// wrap a single upstream call chain and translate provider failures into
// fault.Upstream with the retryable flag set for transient errors.
type Parser interface {
	Parse(ctx context.Context, filename string, raw []byte) (markdown string, err error)
}
