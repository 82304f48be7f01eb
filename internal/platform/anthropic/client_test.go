package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type captureSink struct {
	mu   sync.Mutex
	recs []UsageRecord
}

func (s *captureSink) RecordLLMUsage(_ context.Context, rec UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *captureSink) records() []UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UsageRecord, len(s.recs))
	copy(out, s.recs)
	return out
}

func testClient(t *testing.T, url string, sink UsageSink) *client {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	costs, err := LoadCostTable("")
	if err != nil {
		t.Fatalf("cost table: %v", err)
	}
	return &client{
		log:       log,
		baseURL:   url,
		apiKey:    "test-key",
		model:     "claude-sonnet-4-5",
		fastModel: "claude-haiku-4-5",
		http:      &http.Client{},
		costs:     costs,
		sink:      sink,
	}
}

func TestCompleteRecordsUsageAndCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type":"text","text":"hello"}],
			"stop_reason": "end_turn",
			"model": "claude-sonnet-4-5",
			"usage": {"input_tokens": 1000000, "output_tokens": 1000000}
		}`))
	}))
	defer srv.Close()

	sink := &captureSink{}
	c := testClient(t, srv.URL, sink)

	res, err := c.Complete(context.Background(), Request{
		Messages: []Message{TextMessage(RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("text = %q", res.Text)
	}
	// 1M input @ $3 + 1M output @ $15.
	if res.CostUSD != 18.0 {
		t.Fatalf("cost = %v, want 18.0", res.CostUSD)
	}
	recs := sink.records()
	if len(recs) != 1 || recs[0].Usage.OutputTokens != 1000000 {
		t.Fatalf("usage records = %+v", recs)
	}
}

func TestCompleteRetriesTransientThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","model":"claude-haiku-4-5","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, nil)
	res, err := c.Complete(context.Background(), Request{Model: "claude-haiku-4-5", Messages: []Message{TextMessage(RoleUser, "x")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "ok" || calls != 2 {
		t.Fatalf("text=%q calls=%d", res.Text, calls)
	}
}

func TestCompleteAuthFailureIsFatal(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, nil)
	_, err := c.Complete(context.Background(), Request{Messages: []Message{TextMessage(RoleUser, "x")}})
	if err == nil {
		t.Fatal("want error")
	}
	if errkind.KindOf(err) != errkind.KindDependencyFatal {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if calls != 1 {
		t.Fatalf("auth failure retried: calls=%d", calls)
	}
}

func TestStreamCompleteYieldsDeltasAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: message_start\n" +
				"data: {\"message\":{\"model\":\"claude-sonnet-4-5\",\"usage\":{\"input_tokens\":42}}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"foo \"}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"bar\"}}\n\n" +
				"event: message_delta\n" +
				"data: {\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":7}}\n\n" +
				"event: message_stop\n" +
				"data: {}\n\n"))
	}))
	defer srv.Close()

	sink := &captureSink{}
	c := testClient(t, srv.URL, sink)

	var got string
	res, err := c.StreamComplete(context.Background(), Request{Messages: []Message{TextMessage(RoleUser, "x")}}, func(d string) { got += d })
	if err != nil {
		t.Fatalf("StreamComplete: %v", err)
	}
	if got != "foo bar" || res.Text != "foo bar" {
		t.Fatalf("deltas=%q final=%q", got, res.Text)
	}
	if res.Usage.InputTokens != 42 || res.Usage.OutputTokens != 7 {
		t.Fatalf("usage = %+v", res.Usage)
	}
	recs := sink.records()
	if len(recs) != 1 || !recs[0].Streamed || recs[0].Partial {
		t.Fatalf("records = %+v", recs)
	}
}

func TestStreamCompleteRecordsPartialOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: content_block_delta\n" +
				"data: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"partial output text\"}}\n\n" +
				"event: error\n" +
				"data: {\"error\":{\"type\":\"overloaded_error\",\"message\":\"overloaded\"}}\n\n"))
	}))
	defer srv.Close()

	sink := &captureSink{}
	c := testClient(t, srv.URL, sink)

	res, err := c.StreamComplete(context.Background(), Request{Messages: []Message{TextMessage(RoleUser, "x")}}, nil)
	if err == nil {
		t.Fatal("want stream error")
	}
	if res == nil || res.Text != "partial output text" {
		t.Fatalf("partial result = %+v", res)
	}
	recs := sink.records()
	if len(recs) != 1 || !recs[0].Partial {
		t.Fatalf("partial usage not recorded: %+v", recs)
	}
	if recs[0].Usage.OutputTokens == 0 {
		t.Fatal("partial output tokens not estimated")
	}
}

// liveCtxSink remembers whether each record arrived on a context that was
// still usable for persistence.
type liveCtxSink struct {
	mu      sync.Mutex
	recs    []UsageRecord
	ctxErrs []error
}

func (s *liveCtxSink) RecordLLMUsage(ctx context.Context, rec UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
}

func TestStreamCompleteRecordsPartialAfterCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: message_start\n" +
				"data: {\"message\":{\"model\":\"claude-sonnet-4-5\",\"usage\":{\"input_tokens\":42}}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n"))
		w.(http.Flusher).Flush()
		// Stall until the client gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := &liveCtxSink{}
	c := testClient(t, srv.URL, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := c.StreamComplete(ctx, Request{Messages: []Message{TextMessage(RoleUser, "x")}}, func(string) {
		cancel()
	})
	if err == nil {
		t.Fatal("want cancellation error")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.recs) != 1 || !sink.recs[0].Partial {
		t.Fatalf("partial usage not recorded: %+v", sink.recs)
	}
	if sink.recs[0].Usage.InputTokens != 42 {
		t.Fatalf("usage = %+v", sink.recs[0].Usage)
	}
	if sink.ctxErrs[0] != nil {
		t.Fatalf("record context already dead: %v", sink.ctxErrs[0])
	}
}

func TestCostTableSnapshotFallback(t *testing.T) {
	costs, err := LoadCostTable("")
	if err != nil {
		t.Fatalf("LoadCostTable: %v", err)
	}
	u := Usage{InputTokens: 1_000_000}
	if got := costs.Cost("claude-haiku-4-5-20251001", u); got != 1.0 {
		t.Fatalf("snapshot cost = %v, want 1.0", got)
	}
	if got := costs.Cost("unknown-model", u); got != 0 {
		t.Fatalf("unknown model cost = %v, want 0", got)
	}
}
