package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

func testClient(t *testing.T, url string) *client {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &client{
		log:        log,
		baseURL:    url,
		apiKey:     "test-key",
		embedModel: "text-embedding-3-small",
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		// Answer out of order; the client must reassemble by index.
		resp := embeddingsResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float64{float64(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vecs {
		if len(v) != 1 || v[0] != float32(i) {
			t.Fatalf("vecs[%d] = %v", i, v)
		}
	}
}

func TestEmbedRejectsOversizedBatch(t *testing.T) {
	c := testClient(t, "http://unused")
	inputs := make([]string, MaxBatchSize+1)
	for i := range inputs {
		inputs[i] = "x"
	}
	_, err := c.Embed(context.Background(), inputs)
	if errkind.KindOf(err) != errkind.KindValidation {
		t.Fatalf("kind = %v, want validation", errkind.KindOf(err))
	}
}

func TestEmbedAuthFailureNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Embed(context.Background(), []string{"a"})
	if errkind.KindOf(err) != errkind.KindDependencyFatal {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}
