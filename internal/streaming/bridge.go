package streaming

import (
	"strings"

	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
	"github.com/nghyane/openbridge/internal/translate"
)

// toolCallState tracks one in-flight tool-call index across chunks.
// Grounded on original_source/openbridge/streaming/bridge.py::ToolCallState.
type toolCallState struct {
	opened      bool
	callID      string
	name        string // virtualized upstream function name
	displayType string // "function_call" or "<external>_call"
	displayName string
	args        strings.Builder
}

// Bridge is the per-request streaming state machine: Idle → Opened →
// ItemOpen(kind,index) → Completed|Failed (spec §4.5). It owns its
// aggregators directly and takes no locks, since per-request state is
// never shared across goroutines (spec §5).
type Bridge struct {
	ctx       *translate.Context
	responseID string
	model      string
	createdAt  int64

	started   bool
	completed bool
	failed    bool

	textOpened bool
	text       strings.Builder

	toolStates map[int]*toolCallState
	toolOrder  []int

	finishReason string
}

// New creates a Bridge for one request. responseID/model/createdAt seed
// the eventual ResponseObject/response.created payload.
func New(ctx *translate.Context, responseID, model string, createdAt int64) *Bridge {
	return &Bridge{
		ctx:        ctx,
		responseID: responseID,
		model:      model,
		createdAt:  createdAt,
		toolStates: map[int]*toolCallState{},
	}
}

// Started reports whether any event has been emitted to the client yet.
// Once true, upstream errors must surface as response.failed rather than
// an HTTP error and must not be retried (spec §4.3/§4.5).
func (b *Bridge) Started() bool { return b.started }

// ProcessChunk consumes one upstream StreamChunk and returns the Responses
// events it produces, in emission order.
func (b *Bridge) ProcessChunk(chunk chat.StreamChunk) []Event {
	var events []Event
	if !b.started {
		b.started = true
		events = append(events, b.createdEvent())
	}
	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		if !b.textOpened {
			b.textOpened = true
			events = append(events, b.itemAddedEvent("message", 0, "", ""))
			events = append(events, newEvent("response.content_part.added", map[string]any{
				"response_id": b.responseID,
				"output_index": 0,
				"part":        map[string]any{"type": "output_text", "text": ""},
			}))
		}
		b.text.WriteString(delta.Content)
		events = append(events, newEvent("response.output_text.delta", map[string]any{
			"response_id": b.responseID,
			"output_index": 0,
			"delta":       delta.Content,
		}))
	}

	for _, td := range delta.ToolCalls {
		st, exists := b.toolStates[td.Index]
		if !exists {
			st = &toolCallState{}
			b.toolStates[td.Index] = st
			b.toolOrder = append(b.toolOrder, td.Index)
		}
		if td.ID != "" {
			st.callID = td.ID
		}
		if td.Function.Name != "" {
			st.name = td.Function.Name
		}
		if !st.opened && st.callID != "" && st.name != "" {
			st.opened = true
			if external, ok := b.ctx.ToolMap.FunctionNameMap[st.name]; ok {
				st.displayType = external + "_call"
				st.displayName = external
			} else {
				st.displayType = "function_call"
				st.displayName = st.name
			}
			events = append(events, b.itemAddedEvent(st.displayType, td.Index, st.callID, st.displayName))
		}
		if td.Function.Arguments != "" {
			st.args.WriteString(td.Function.Arguments)
			if st.opened {
				events = append(events, newEvent("response.function_call_arguments.delta", map[string]any{
					"response_id": b.responseID,
					"output_index": td.Index,
					"call_id":     st.callID,
					"delta":       td.Function.Arguments,
				}))
			}
		}
	}

	if choice.FinishReason != nil {
		b.finishReason = *choice.FinishReason
	}
	return events
}

// Finish closes every open item and emits response.completed. It must be
// called exactly once, when the upstream signals [DONE].
func (b *Bridge) Finish() []Event {
	var events []Event
	if b.textOpened {
		events = append(events, newEvent("response.output_text.done", map[string]any{
			"response_id": b.responseID,
			"output_index": 0,
			"text":        b.text.String(),
		}))
		events = append(events, newEvent("response.content_part.done", map[string]any{
			"response_id": b.responseID,
			"output_index": 0,
		}))
		events = append(events, b.itemDoneEvent(0))
	}
	for _, idx := range b.toolOrder {
		st := b.toolStates[idx]
		if !st.opened {
			continue
		}
		events = append(events, newEvent("response.function_call_arguments.done", map[string]any{
			"response_id": b.responseID,
			"output_index": idx,
			"call_id":     st.callID,
			"arguments":   st.args.String(),
		}))
		events = append(events, b.itemDoneEvent(idx))
	}
	events = append(events, newEvent("response.completed", map[string]any{
		"id":         b.responseID,
		"created_at": b.createdAt,
		"model":      b.model,
		"status":     responses.StatusCompleted,
	}))
	b.completed = true
	return events
}

// Failure emits response.failed if any event has already reached the
// client; callers must check Started() first when an upstream error
// occurs before any emission, since then an HTTP error is the correct
// response and no SSE stream should begin (spec §4.5).
func (b *Bridge) Failure(message, errType, code string) []Event {
	b.failed = true
	return []Event{newEvent("response.failed", map[string]any{
		"id": b.responseID,
		"error": ErrorPayload{Message: message, Type: errType, Code: code},
	})}
}

// FinalCompletionResponse synthesizes the equivalent Chat Completions
// response from the aggregated stream state, so the caller can run it
// through the same ResponseTranslator/store-write path as the non-stream
// flow (spec §4.5, "post-stream state write").
func (b *Bridge) FinalCompletionResponse() *chat.CompletionResponse {
	msg := chat.Message{Role: chat.RoleAssistant, Content: b.text.String()}
	for _, idx := range b.toolOrder {
		st := b.toolStates[idx]
		if !st.opened {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID: st.callID, Type: "function",
			Function: chat.ToolCallFunc{Name: st.name, Arguments: st.args.String()},
		})
	}
	return &chat.CompletionResponse{
		Model: b.model,
		Choices: []chat.Choice{{
			Message:      msg,
			FinishReason: b.finishReason,
		}},
	}
}

func (b *Bridge) createdEvent() Event {
	return newEvent("response.created", map[string]any{
		"id":         b.responseID,
		"created_at": b.createdAt,
		"model":      b.model,
	})
}

func (b *Bridge) itemAddedEvent(itemType string, index int, callID, name string) Event {
	payload := map[string]any{
		"response_id":  b.responseID,
		"output_index": index,
		"item": map[string]any{
			"type": itemType,
		},
	}
	item := payload["item"].(map[string]any)
	if callID != "" {
		item["call_id"] = callID
	}
	if name != "" && itemType != "message" {
		item["name"] = name
	}
	return newEvent("response.output_item.added", payload)
}

func (b *Bridge) itemDoneEvent(index int) Event {
	return newEvent("response.output_item.done", map[string]any{
		"response_id":  b.responseID,
		"output_index": index,
	})
}
