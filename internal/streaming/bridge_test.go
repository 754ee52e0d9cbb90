package streaming

import (
	"encoding/json"
	"testing"

	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/nghyane/openbridge/internal/translate"
)

func eventNames(events []Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestBridge_StreamingText(t *testing.T) {
	b := New(&translate.Context{}, "resp_1", "openai/gpt-4.1", 0)
	var all []Event
	for _, frag := range []string{"He", "llo", "!"} {
		all = append(all, b.ProcessChunk(chat.StreamChunk{
			Choices: []chat.StreamChoice{{Delta: chat.StreamDelta{Content: frag}}},
		})...)
	}
	all = append(all, b.Finish()...)

	want := []string{
		"response.created",
		"response.output_item.added",
		"response.content_part.added",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.done",
		"response.content_part.done",
		"response.output_item.done",
		"response.completed",
	}
	got := eventNames(all)
	if len(got) != len(want) {
		t.Fatalf("event count = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}

	var done map[string]any
	for _, e := range all {
		if e.Name == "response.output_text.done" {
			_ = json.Unmarshal(e.Data, &done)
		}
	}
	if done["text"] != "Hello!" {
		t.Fatalf("expected concatenated text 'Hello!', got %v", done["text"])
	}
}

func TestBridge_StreamingToolCall(t *testing.T) {
	ctx := &translate.Context{ToolMap: tools.Map{FunctionNameMap: map[string]string{"shell": "shell"}}}
	b := New(ctx, "resp_2", "openai/gpt-4.1", 0)

	frag := func(idx int, id, name, args string) chat.StreamChunk {
		tc := chat.StreamToolCallDelta{Index: idx, ID: id}
		tc.Function.Name = name
		tc.Function.Arguments = args
		return chat.StreamChunk{Choices: []chat.StreamChoice{{Delta: chat.StreamDelta{ToolCalls: []chat.StreamToolCallDelta{tc}}}}}
	}

	var all []Event
	all = append(all, b.ProcessChunk(frag(0, "call_9", "shell", `{"cmd":`))...)
	all = append(all, b.ProcessChunk(frag(0, "", "", `"ls"}`))...)
	all = append(all, b.Finish()...)

	names := eventNames(all)
	want := []string{
		"response.created",
		"response.output_item.added",
		"response.function_call_arguments.delta",
		"response.function_call_arguments.delta",
		"response.function_call_arguments.done",
		"response.output_item.done",
		"response.completed",
	}
	if len(names) != len(want) {
		t.Fatalf("event count = %d, want %d: %v", len(names), len(want), names)
	}

	var argsDone map[string]any
	var added map[string]any
	for _, e := range all {
		switch e.Name {
		case "response.function_call_arguments.done":
			_ = json.Unmarshal(e.Data, &argsDone)
		case "response.output_item.added":
			_ = json.Unmarshal(e.Data, &added)
		}
	}
	if argsDone["arguments"] != `{"cmd":"ls"}` {
		t.Fatalf("expected concatenated args, got %v", argsDone["arguments"])
	}
	if argsDone["call_id"] != "call_9" {
		t.Fatalf("expected call_id to round-trip, got %v", argsDone["call_id"])
	}
	item := added["item"].(map[string]any)
	if item["type"] != "shell_call" {
		t.Fatalf("expected un-virtualized shell_call item, got %v", item["type"])
	}
}
