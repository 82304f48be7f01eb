package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/httpx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

const (
	defaultBaseURL       = "https://api.anthropic.com"
	apiVersion           = "2023-06-01"
	defaultModel         = "claude-sonnet-4-5"
	defaultFastModel     = "claude-haiku-4-5"
	defaultCompleteAfter = 60 * time.Second
	defaultStreamAfter   = 120 * time.Second
)

// Backoff schedule for transient failures: 0.5s, 2s, 8s, then give up.
var retryBackoff = []time.Duration{500 * time.Millisecond, 2 * time.Second, 8 * time.Second}

type client struct {
	log       *logger.Logger
	baseURL   string
	apiKey    string
	model     string
	fastModel string
	http      *http.Client
	costs     *CostTable
	sink      UsageSink
}

func NewClient(log *logger.Logger, sink UsageSink) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))
	if model == "" {
		model = defaultModel
	}
	fast := strings.TrimSpace(os.Getenv("ANTHROPIC_FAST_MODEL"))
	if fast == "" {
		fast = defaultFastModel
	}

	costs, err := LoadCostTable(strings.TrimSpace(os.Getenv("ANTHROPIC_COST_TABLE")))
	if err != nil {
		return nil, fmt.Errorf("cost table: %w", err)
	}

	return &client{
		log:       log.With("service", "AnthropicClient"),
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		fastModel: fast,
		// Per-request deadlines come from the context; the transport timeout
		// is only a backstop.
		http:  &http.Client{Timeout: 5 * time.Minute},
		costs: costs,
		sink:  sink,
	}, nil
}

func (c *client) DefaultModel() string { return c.model }
func (c *client) FastModel() string    { return c.fastModel }

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Tools     []Tool    `json:"tools,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

type messagesResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Model      string         `json:"model"`
	Usage      Usage          `json:"usage"`
}

type apiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *apiHTTPError) Error() string {
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Body)
}
func (e *apiHTTPError) HTTPStatusCode() int { return e.StatusCode }

func (c *client) buildRequest(req Request, stream bool) messagesRequest {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return messagesRequest{
		Model:     model,
		System:    req.System,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
		Tools:     req.Tools,
		Stream:    stream,
	}
}

func (c *client) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := ensureDeadline(ctx, defaultCompleteAfter)
	defer cancel()

	body := c.buildRequest(req, false)
	start := time.Now()

	var resp messagesResponse
	if err := c.doWithRetry(ctx, body, &resp); err != nil {
		return nil, err
	}

	res := &Result{
		StopReason: resp.StopReason,
		Model:      resp.Model,
		Usage:      resp.Usage,
		Latency:    time.Since(start),
	}
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			res.Text += b.Text
		case "tool_use":
			res.ToolUses = append(res.ToolUses, ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	res.CostUSD = c.costs.Cost(res.Model, res.Usage)
	c.record(ctx, res, false, false)
	return res, nil
}

// doWithRetry posts /v1/messages, retrying transient failures per the backoff
// schedule and honoring Retry-After on 429.
func (c *client) doWithRetry(ctx context.Context, body messagesRequest, out *messagesResponse) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return errkind.Fatal(uErr, "anthropic decode error")
			}
			return nil
		}
		if kerr := classify(err); kerr != nil && !errkind.IsTransient(kerr) {
			return kerr
		}
		lastErr = err
		if attempt >= len(retryBackoff) {
			return errkind.Fatal(lastErr, fmt.Sprintf("anthropic: giving up after %d attempts", attempt+1))
		}
		sleepFor := httpx.RetryAfterDuration(resp, retryBackoff[attempt], 30*time.Second)
		c.log.Warn("anthropic request retrying",
			"attempt", attempt+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
	}
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &apiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// classify maps transport and HTTP failures onto the error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*apiHTTPError); ok {
		switch {
		case he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden:
			return errkind.Fatal(err, "anthropic auth failure")
		case he.StatusCode == http.StatusBadRequest,
			he.StatusCode == http.StatusNotFound,
			he.StatusCode == http.StatusUnprocessableEntity:
			return errkind.Fatal(err, "anthropic request malformed")
		case httpx.IsRetryableHTTPStatus(he.StatusCode):
			return errkind.Transient(err, "anthropic transient failure")
		default:
			return errkind.Fatal(err, "anthropic request failed")
		}
	}
	if httpx.IsRetryableError(err) {
		return errkind.Transient(err, "anthropic network failure")
	}
	return errkind.Transient(err, "anthropic request error")
}

func (c *client) record(ctx context.Context, res *Result, streamed, partial bool) {
	if c.sink == nil || res == nil {
		return
	}
	// The sink persists billing rows. A cancelled stream must still be
	// accounted, so the record path survives the request's cancellation.
	c.sink.RecordLLMUsage(context.WithoutCancel(ctx), UsageRecord{
		Model:     res.Model,
		Usage:     res.Usage,
		CostUSD:   res.CostUSD,
		LatencyMS: res.Latency.Milliseconds(),
		Streamed:  streamed,
		Partial:   partial,
	})
}

func ensureDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
