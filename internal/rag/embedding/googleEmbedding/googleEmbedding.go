package googleEmbedding

import (
	"context"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/rag/embedding"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	logger          *logger_i.Logger
	once            sync.Once
	embeddingClient *client
	dimension       int32 = config.EmbeddingOutputDimensionality
)

type client struct {
	genAi *genai.Client
	model string
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
		if err != nil {
			logger.Error("Error creating Google Embedding client:", "error", err)
			return
		}
		embeddingClient = &client{genAi: c, model: modelName}
		logger.Info("Google Embedding client created", "model", modelName)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return embeddingClient
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.EmbedTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.genAi.Models.EmbedContent(callCtx, c.model, genai.Text(query),
		&genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: "RETRIEVAL_QUERY"})
	metrics.CaptureUpstreamMetrics("google", time.Since(start))
	if err != nil {
		log.Error("Error getting Embedding from Google", "error", err.Error())
		return nil, classify(err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fault.Upstream(nil, false, "embedding provider returned no vectors")
	}
	return result.Embeddings[0].Values, nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.EmbedTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.genAi.Models.EmbedContent(callCtx, c.model, getContent(chunks),
		&genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: "RETRIEVAL_DOCUMENT"})
	metrics.CaptureUpstreamMetrics("google", time.Since(start))
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err.Error())
		return nil, classify(err)
	}
	if len(result.Embeddings) != len(chunks) {
		return nil, fault.Upstream(nil, false, "embedding count mismatch: sent %d got %d", len(chunks), len(result.Embeddings))
	}

	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, r := range result.Embeddings {
		vectors = append(vectors, r.Values)
	}
	return vectors, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func classify(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return fault.Upstream(err, true, "embedding rate limit hit")
		case codes.Unavailable, codes.DeadlineExceeded:
			return fault.Upstream(err, true, "embedding provider unavailable")
		}
	}
	return fault.Upstream(err, false, "calling embedding provider")
}
