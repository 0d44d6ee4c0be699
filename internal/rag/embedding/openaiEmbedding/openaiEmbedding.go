package openaiEmbedding

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/rag/embedding"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	logger          *logger_i.Logger
	embeddingClient *client
	once            sync.Once
)

type client struct {
	ai        openai.Client
	model     string
	dimension int64
}

func GetOpenAIEmbeddingClient(modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		if apikey == "" {
			logger.Error("OpenAI API key missing")
			return
		}
		embeddingClient = &client{
			ai:        openai.NewClient(option.WithAPIKey(apikey)),
			model:     modelName,
			dimension: int64(config.EmbeddingOutputDimensionality),
		}
		logger.Info("OpenAI embedding client created", "model", modelName)
	})

	if embeddingClient == nil {
		return nil
	}
	return embeddingClient
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.EmbedTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureUpstreamMetrics("openai", time.Since(start)) }()
	resp, err := c.ai.Embeddings.New(callCtx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(c.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Dimensions: openai.Int(c.dimension),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, classify(err)
	}
	if len(resp.Data) != len(chunks) {
		return nil, fault.Upstream(nil, false, "embedding count mismatch: sent %d got %d", len(chunks), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
		return fault.Upstream(err, retryable, "embedding provider status %d", apiErr.StatusCode)
	}
	return fault.Upstream(err, true, "calling embedding provider")
}
