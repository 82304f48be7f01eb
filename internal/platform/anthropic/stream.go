package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

// StreamComplete opens an SSE stream. Retries apply only until the first byte
// of the response body: once output has been yielded, a failure ends the
// stream and the partial usage is still recorded for billing.
func (c *client) StreamComplete(ctx context.Context, req Request, onDelta func(delta string)) (*Result, error) {
	ctx, cancel := ensureDeadline(ctx, defaultStreamAfter)
	defer cancel()

	body := c.buildRequest(req, true)
	start := time.Now()

	var resp *http.Response
	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r, err := c.openStream(ctx, body)
		if err == nil {
			resp = r
			break
		}
		if kerr := classify(err); kerr != nil && !errkind.IsTransient(kerr) {
			return nil, kerr
		}
		lastErr = err
		if attempt >= len(retryBackoff) {
			return nil, fmt.Errorf("anthropic stream: giving up after %d attempts: %w", attempt+1, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
	defer func() { _ = resp.Body.Close() }()

	res := &Result{Model: body.Model}
	toolInputs := map[int]*strings.Builder{}
	toolByIndex := map[int]int{}

	streamErr := readSSE(resp.Body, func(event, data string) error {
		switch event {
		case "message_start":
			var msg struct {
				Message struct {
					Model string `json:"model"`
					Usage Usage  `json:"usage"`
				} `json:"message"`
			}
			if err := json.Unmarshal([]byte(data), &msg); err == nil {
				if msg.Message.Model != "" {
					res.Model = msg.Message.Model
				}
				res.Usage.InputTokens = msg.Message.Usage.InputTokens
				res.Usage.CacheCreationTokens = msg.Message.Usage.CacheCreationTokens
				res.Usage.CacheReadTokens = msg.Message.Usage.CacheReadTokens
			}
		case "content_block_start":
			var blk struct {
				Index        int          `json:"index"`
				ContentBlock ContentBlock `json:"content_block"`
			}
			if err := json.Unmarshal([]byte(data), &blk); err == nil && blk.ContentBlock.Type == "tool_use" {
				res.ToolUses = append(res.ToolUses, ToolUse{ID: blk.ContentBlock.ID, Name: blk.ContentBlock.Name})
				toolByIndex[blk.Index] = len(res.ToolUses) - 1
				toolInputs[blk.Index] = &strings.Builder{}
			}
		case "content_block_delta":
			var delta struct {
				Index int `json:"index"`
				Delta struct {
					Type        string `json:"type"`
					Text        string `json:"text"`
					PartialJSON string `json:"partial_json"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &delta); err != nil {
				return nil
			}
			switch delta.Delta.Type {
			case "text_delta":
				res.Text += delta.Delta.Text
				if onDelta != nil {
					onDelta(delta.Delta.Text)
				}
			case "input_json_delta":
				if b, ok := toolInputs[delta.Index]; ok {
					b.WriteString(delta.Delta.PartialJSON)
				}
			}
		case "message_delta":
			var md struct {
				Delta struct {
					StopReason string `json:"stop_reason"`
				} `json:"delta"`
				Usage struct {
					OutputTokens int `json:"output_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal([]byte(data), &md); err == nil {
				if md.Delta.StopReason != "" {
					res.StopReason = md.Delta.StopReason
				}
				if md.Usage.OutputTokens > 0 {
					res.Usage.OutputTokens = md.Usage.OutputTokens
				}
			}
		case "error":
			var ev struct {
				Error struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				} `json:"error"`
			}
			_ = json.Unmarshal([]byte(data), &ev)
			return fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message)
		}
		return nil
	})

	for idx, b := range toolInputs {
		pos, ok := toolByIndex[idx]
		if !ok || pos >= len(res.ToolUses) {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal([]byte(b.String()), &input); err == nil {
			res.ToolUses[pos].Input = input
		}
	}

	res.Latency = time.Since(start)
	if res.Usage.OutputTokens == 0 && res.Text != "" {
		// No usage frame arrived; approximate so the partial row is not free.
		res.Usage.OutputTokens = len(res.Text) / 4
	}
	res.CostUSD = c.costs.Cost(res.Model, res.Usage)

	if streamErr != nil {
		c.record(ctx, res, true, true)
		return res, streamErr
	}
	if err := ctx.Err(); err != nil {
		c.record(ctx, res, true, true)
		return res, err
	}
	c.record(ctx, res, true, false)
	return res, nil
}

func (c *client) openStream(ctx context.Context, body messagesRequest) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &apiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}

// readSSE parses a server-sent-events body, invoking onEvent per event.
func readSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		ev := eventName
		dataLines = nil
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = flush()
				break
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
	return nil
}
