package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docupipe/docupipe/internal/adapter"
	"github.com/docupipe/docupipe/internal/api"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/pipeline"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

var logRH *logger_i.Logger
var pipelineService pipeline.Service

// Init wires the orchestrator into the handler package. Call once at startup
// before the router is mounted.
func Init(svc pipeline.Service) {
	pipelineService = svc
	logRH = logger_i.NewLogger("RequestHandler")
}

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func writeFaultResponse(w http.ResponseWriter, err error) {
	writeJsonResponse(w, fault.HTTPStatus(err), adapter.ToErrorResponse(err))
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, error string) {
	writeJsonResponse(w, httpCode, api.ErrorResponse{Error: error})
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.Warn("context error", "error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true
	}
}
