package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nghyane/openbridge/internal/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		RequestTimeout:   5 * time.Second,
		RetryMaxAttempts: 3,
		RetryMaxSeconds:  2 * time.Second,
		RetryBackoff:     time.Millisecond,
		DegradeFields:    []string{"verbosity"},
	})
}

func TestClient_Call_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{
			ID:      "chatcmpl_1",
			Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Content: "hi"}}},
		})
	})

	resp, err := c.Call(context.Background(), &chat.CompletionRequest{Model: "openai/gpt-4.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Choices[0].Message.Content != "hi" {
		t.Fatalf("unexpected content: %+v", resp)
	}
}

func TestClient_Call_RetriesTransientStatus(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{ID: "ok"})
	})

	_, err := c.Call(context.Background(), &chat.CompletionRequest{Model: "openai/gpt-4.1"})
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestClient_Call_DegradesFragileFieldOnce(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		body := struct {
			Verbosity string `json:"verbosity"`
		}{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if n == 1 {
			if body.Verbosity == "" {
				t.Fatalf("expected verbosity present on first attempt")
			}
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "unknown field: verbosity"},
			})
			return
		}
		if body.Verbosity != "" {
			t.Fatalf("expected verbosity dropped on retry, got %q", body.Verbosity)
		}
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{ID: "ok"})
	})

	_, err := c.Call(context.Background(), &chat.CompletionRequest{Model: "openai/gpt-4.1", Verbosity: "low"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts (degrade once), got %d", attempts)
	}
}

func TestClient_Call_NonDegradableBadRequestFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid model"},
		})
	})

	_, err := c.Call(context.Background(), &chat.CompletionRequest{Model: "bogus"})
	if err == nil {
		t.Fatalf("expected error for non-degradable 400")
	}
}

func TestClient_CallStream_DecodesChunksAndDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi\"},\"finish_reason\":null}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	})

	events, err := c.CallStream(context.Background(), &chat.CompletionRequest{Model: "openai/gpt-4.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotChunk bool
	var gotDone bool
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		if ev.Chunk != nil {
			gotChunk = true
			if ev.Chunk.Choices[0].Delta.Content != "Hi" {
				t.Fatalf("unexpected chunk: %+v", ev.Chunk)
			}
		}
		if ev.Done {
			gotDone = true
		}
	}
	if !gotChunk || !gotDone {
		t.Fatalf("expected both a chunk and a done event, got chunk=%v done=%v", gotChunk, gotDone)
	}
}
