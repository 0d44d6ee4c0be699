package openaiSummarizer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/summarize"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a document summarization assistant. Produce a concise summary " +
	"of the provided document, keeping section structure where it helps. Do not invent facts."

var (
	logger         *logger_i.Logger
	summarizerInst *client
	once           sync.Once
)

type client struct {
	ai    openai.Client
	model string
}

func GetOpenAISummarizer(modelName string, apikey string) summarize.Summarizer {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_summarizer")
		if apikey == "" {
			logger.Error("OpenAI API key missing")
			return
		}
		summarizerInst = &client{
			ai:    openai.NewClient(option.WithAPIKey(apikey)),
			model: modelName,
		}
		logger.Info("OpenAI summarizer client created", "model", modelName)
	})

	if summarizerInst == nil {
		return nil
	}
	return summarizerInst
}

func (c *client) Summarize(ctx context.Context, text string) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if text == "" {
		return "", fault.Validation("nothing to summarize")
	}

	callCtx, cancel := context.WithTimeout(ctx, config.SummarizeTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureUpstreamMetrics("openai", time.Since(start)) }()
	resp, err := c.ai.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		MaxTokens: openai.Int(config.SummaryMaxTokens),
	})
	if err != nil {
		log.Error("Summarization call failed", "error", err)
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fault.Upstream(nil, false, "summarization returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps provider failures onto the shared fault kinds. Rate limits
// and server-side errors are transient, bad requests are not.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
		return fault.Upstream(err, retryable, "summarization provider status %d", apiErr.StatusCode)
	}
	return fault.Upstream(err, true, "calling summarization provider")
}
