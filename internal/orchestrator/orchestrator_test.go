package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/store"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/nghyane/openbridge/internal/translate"
	"github.com/nghyane/openbridge/internal/upstream"
)

func newOrchestrator(t *testing.T, handler http.HandlerFunc) (*Orchestrator, store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	registry := tools.DefaultRegistry()
	reqTrans := translate.NewRequestTranslator(registry, translate.Config{MaxTokensBuffer: 100})
	respTrans := translate.NewResponseTranslator()
	client := upstream.NewClient(upstream.Config{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		RequestTimeout:   5 * time.Second,
		RetryMaxAttempts: 2,
		RetryMaxSeconds:  time.Second,
		RetryBackoff:     time.Millisecond,
	})
	st := store.NewMemoryStore()
	return New(reqTrans, respTrans, client, st, Config{StateTTL: time.Minute}), st
}

func TestOrchestrator_Handle_PlainText(t *testing.T) {
	o, st := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{
			Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Content: "Hello!"}, FinishReason: "stop"}},
		})
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi"}`)
	obj, err := o.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obj.Output) != 1 || obj.Output[0].Content[0].Text != "Hello!" {
		t.Fatalf("unexpected output: %+v", obj.Output)
	}

	turn, err := st.Get(context.Background(), obj.ID)
	if err != nil {
		t.Fatalf("expected persisted turn, got err: %v", err)
	}
	if len(turn.Messages) == 0 || turn.Messages[len(turn.Messages)-1].Content != "Hello!" {
		t.Fatalf("unexpected persisted history: %+v", turn.Messages)
	}
}

func TestOrchestrator_Handle_EmptyCompletionRetriesThenFails(t *testing.T) {
	var attempts int
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{
			Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant}, FinishReason: "stop"}},
		})
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi"}`)
	_, err := o.Handle(context.Background(), raw)
	if err == nil {
		t.Fatalf("expected bad_gateway error for repeated empty completion")
	}
	if apierrors.KindOf(err) != apierrors.KindBadGateway {
		t.Fatalf("expected bad_gateway kind, got %v", apierrors.KindOf(err))
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 upstream calls, got %d", attempts)
	}
}

func TestOrchestrator_Handle_UnknownPreviousResponseIDIsNotFound(t *testing.T) {
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be called when previous_response_id is unresolvable")
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi","previous_response_id":"resp_missing"}`)
	_, err := o.Handle(context.Background(), raw)
	if err == nil || apierrors.KindOf(err) != apierrors.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestOrchestrator_Handle_StoreFalseSkipsPersist(t *testing.T) {
	o, st := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{
			Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Content: "Hello!"}, FinishReason: "stop"}},
		})
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi","store":false}`)
	obj, err := o.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := st.Get(context.Background(), obj.ID); err == nil {
		t.Fatalf("expected no persisted turn when store:false, but one was found")
	}
}

func TestOrchestrator_Handle_MaxOutputTokensZeroSkipsEmptyRetry(t *testing.T) {
	var attempts int
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_ = json.NewEncoder(w).Encode(chat.CompletionResponse{
			Choices: []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant}, FinishReason: "length"}},
		})
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi","max_output_tokens":0}`)
	_, err := o.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("expected an empty completion with max_output_tokens:0 to succeed, got: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", attempts)
	}
}

func TestOrchestrator_HandleStream_StreamsAndPersists(t *testing.T) {
	o, st := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi\"},\"finish_reason\":null}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	})

	raw := []byte(`{"model":"gpt-4.1","input":"Hi","stream":true}`)
	events, err := o.HandleStream(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	var responseID string
	for e := range events {
		names = append(names, e.Name)
		if e.Name == "response.created" {
			var payload struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(e.Data, &payload)
			responseID = payload.ID
		}
	}
	if len(names) == 0 || names[len(names)-1] != "response.completed" {
		t.Fatalf("expected stream to end with response.completed, got %v", names)
	}
	if responseID == "" {
		t.Fatalf("expected a response id from response.created")
	}

	// Persistence happens asynchronously relative to the channel close in
	// this test only in appearance: driveStream persists before closing the
	// channel, so by the time the range loop above exits, Put has returned.
	turn, err := st.Get(context.Background(), responseID)
	if err != nil {
		t.Fatalf("expected persisted turn for streamed response, got err: %v", err)
	}
	if len(turn.Messages) == 0 || turn.Messages[len(turn.Messages)-1].Content != "Hi" {
		t.Fatalf("unexpected persisted history: %+v", turn.Messages)
	}
}
