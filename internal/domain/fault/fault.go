package fault

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindValidation Kind = "VALIDATION"
	KindUpstream   Kind = "UPSTREAM"
	KindStorage    Kind = "STORAGE"
)

// Fault is the single error shape that crosses package boundaries. Every
// provider adapter translates its own failures into one of the four kinds so
// the pipeline and the handlers never have to know which SaaS blew up.
type Fault struct {
	Kind      Kind
	Message   string
	Retryable bool //only meaningful for KindUpstream
	wrapped   error
}

func (f *Fault) Error() string {
	if f.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.wrapped)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.wrapped }

func NotFound(format string, args ...any) *Fault {
	return &Fault{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Fault {
	return &Fault{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Upstream(err error, retryable bool, format string, args ...any) *Fault {
	return &Fault{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Retryable: retryable, wrapped: err}
}

func Storage(err error, format string, args ...any) *Fault {
	return &Fault{Kind: KindStorage, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// From digs a *Fault out of an error chain. Unknown errors get wrapped as
// non-retryable upstream failures so callers always see a kind.
func From(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: KindUpstream, Message: err.Error(), wrapped: err}
}

func IsKind(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}

// IsRetryable reports whether the orchestrator is allowed its single
// automatic retry for this error.
func IsRetryable(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == KindUpstream && f.Retryable
}

// HTTPStatus maps a kind onto the wire status the handlers return.
func HTTPStatus(err error) int {
	var f *Fault
	if !errors.As(err, &f) {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindStorage:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
