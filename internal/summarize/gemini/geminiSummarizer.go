package gemini

import (
	"context"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/summarize"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const summarizeInstruction = "Summarize the following document concisely. " +
	"Keep the tone neutral and do not add information that is not in the text."

var (
	logger       *logger_i.Logger
	geminiClient *llmClient
	once         sync.Once
)

type llmClient struct {
	client    *genai.Client
	modelName string
}

func GetGeminiSummarizer(ctx context.Context, modelName string, apikey string) summarize.Summarizer {
	once.Do(func() {
		logger = logger_i.NewLogger("gemini_summarizer")
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
		if err != nil {
			logger.Error("Error creating Gemini client:", "error", err)
			return
		}
		geminiClient = &llmClient{client: c, modelName: modelName}
		logger.Info("Gemini summarizer client created", "model", modelName)
	})

	if geminiClient == nil {
		return nil
	}
	return geminiClient
}

func (c *llmClient) Summarize(ctx context.Context, text string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if text == "" {
		return "", fault.Validation("nothing to summarize")
	}

	callCtx, cancel := context.WithTimeout(ctx, config.SummarizeTimeout)
	defer cancel()

	systemInstruction := &genai.Content{
		Parts: []*genai.Part{{Text: summarizeInstruction}},
	}
	start := time.Now()
	defer func() { metrics.CaptureUpstreamMetrics("gemini", time.Since(start)) }()
	result, err := c.client.Models.GenerateContent(
		callCtx,
		c.modelName,
		genai.Text(text),
		&genai.GenerateContentConfig{SystemInstruction: systemInstruction},
	)
	if err != nil {
		log.Error("Gemini summarization failed", "error", err)
		return "", classify(err)
	}

	summary := result.Text()
	if summary == "" {
		return "", fault.Upstream(nil, false, "summarization returned no content")
	}
	return summary, nil
}

func classify(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded:
			return fault.Upstream(err, true, "summarization provider throttled")
		}
	}
	return fault.Upstream(err, false, "calling summarization provider")
}
