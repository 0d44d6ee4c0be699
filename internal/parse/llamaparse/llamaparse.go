package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/customHttpClient"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/parse"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

// Client drives the LlamaParse REST flow: upload the raw file, poll the job
// until it settles, fetch the markdown result.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *logger_i.Logger
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type markdownResponse struct {
	Markdown string `json:"markdown"`
}

func NewClient(baseURL, apiKey string) parse.Parser {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: config.LlamaParsePollInterval,
		httpClient:   customHttpClient.NewPooledClient(config.ParseTimeout),
		logger:       logger_i.NewLogger("LlamaParse"),
	}
}

// NewTestClient points the adapter at an httptest server with a fast poll.
func NewTestClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       "test-key",
		pollInterval: time.Millisecond,
		httpClient:   client,
		logger:       logger_i.NewLogger("LlamaParse test"),
	}
}

func (c *Client) Parse(ctx context.Context, filename string, raw []byte) (string, error) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "filename", filename)

	jobID, err := c.uploadJob(ctx, filename, raw)
	if err != nil {
		return "", err
	}
	log.Debug("Parse job accepted", "jobId", jobID)

	if err := c.awaitJob(ctx, jobID); err != nil {
		return "", err
	}

	markdown, err := c.fetchMarkdown(ctx, jobID)
	if err != nil {
		return "", err
	}
	log.Debug("Parse job complete", "jobId", jobID, "markdownBytes", len(markdown))
	return markdown, nil
}

func (c *Client) uploadJob(ctx context.Context, filename string, raw []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fault.Upstream(err, false, "building upload request")
	}
	if _, err := part.Write(raw); err != nil {
		return "", fault.Upstream(err, false, "building upload request")
	}
	if err := writer.Close(); err != nil {
		return "", fault.Upstream(err, false, "building upload request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", fault.Upstream(err, false, "building upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var job jobResponse
	if err := c.doJSON(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fault.Upstream(nil, false, "parse service returned no job id")
	}
	return job.ID, nil
}

func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fault.Upstream(ctx.Err(), true, "parse job %s timed out", jobID)
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/job/"+jobID, nil)
			if err != nil {
				return fault.Upstream(err, false, "building job status request")
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)

			var job jobResponse
			if err := c.doJSON(req, &job); err != nil {
				return err
			}

			switch job.Status {
			case "SUCCESS":
				return nil
			case "ERROR", "CANCELED":
				return fault.Upstream(nil, false, "parse job %s ended with status %s", jobID, job.Status)
				//PENDING and friends: keep polling
			}
		}
	}
}

func (c *Client) fetchMarkdown(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/job/"+jobID+"/result/markdown", nil)
	if err != nil {
		return "", fault.Upstream(err, false, "building result request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var result markdownResponse
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	if result.Markdown == "" {
		return "", fault.Upstream(nil, false, "parse job %s produced empty markdown", jobID)
	}
	return result.Markdown, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.CaptureUpstreamMetrics("llamaparse", time.Since(start))
	if err != nil {
		//network level failures are worth one retry
		return fault.Upstream(err, true, "calling parse service")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Error("Couldn't close the parse service reader :", "error", cerr)
		}
	}()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("parse service status %d: %s", resp.StatusCode, payload)
		return fault.Upstream(err, isRetryableStatus(resp.StatusCode), "parse service rejected request")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.Upstream(errors.Join(errors.New("malformed response"), err), false, "decoding parse service response")
	}
	return nil
}

// 429 and 5xx are transient, everything else in the 4xx range means the
// input or credentials are wrong and retrying won't help.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
