package translate

import (
	"testing"

	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/tidwall/gjson"
)

func newTranslator() *RequestTranslator {
	return NewRequestTranslator(tools.DefaultRegistry(), Config{MaxTokensBuffer: 100})
}

func TestResolveModel(t *testing.T) {
	cases := map[string]string{
		"gpt-4.1":        "openai/gpt-4.1",
		"anthropic/c":    "anthropic/c",
	}
	for in, want := range cases {
		if got := ResolveModel(nil, in); got != want {
			t.Errorf("ResolveModel(%q) = %q, want %q", in, got, want)
		}
	}
	aliased := ResolveModel(map[string]string{"gpt-4.1": "custom/model"}, "gpt-4.1")
	if aliased != "custom/model" {
		t.Errorf("expected alias hit, got %q", aliased)
	}
}

func TestTranslate_PlainText(t *testing.T) {
	req := &responses.Request{
		Model: "gpt-4.1",
		Input: []responses.InputItem{{Type: "message", Role: "user", Content: "Hello"}},
	}
	upstream, _, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upstream.Model != "openai/gpt-4.1" {
		t.Errorf("model = %q", upstream.Model)
	}
	if len(upstream.Messages) != 1 || upstream.Messages[0].Content != "Hello" {
		t.Fatalf("unexpected messages: %+v", upstream.Messages)
	}
}

func TestTranslate_VirtualizedApplyPatch(t *testing.T) {
	req := &responses.Request{
		Model: "gpt-4.1",
		Tools: []responses.ToolDecl{{Type: "apply_patch"}},
		Input: []responses.InputItem{{Type: "message", Role: "user", Content: "patch it"}},
	}
	upstream, ctx, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(upstream.Tools) != 1 || upstream.Tools[0].Function.Name != "apply_patch" {
		t.Fatalf("expected apply_patch tool, got %+v", upstream.Tools)
	}
	if ctx.ToolMap.FunctionNameMap["apply_patch"] != "apply_patch" {
		t.Fatalf("expected bijection entry, got %+v", ctx.ToolMap.FunctionNameMap)
	}
}

func TestTranslate_InfersToolsAndForcesNone(t *testing.T) {
	req := &responses.Request{
		Model: "gpt-4.1",
		Input: []responses.InputItem{
			{Type: "function_call_output", CallID: "call_1", Output: "ok"},
		},
	}
	upstream, ctx, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.ToolsInferred {
		t.Fatalf("expected tools to be inferred")
	}
	if upstream.ToolChoice != "none" {
		t.Fatalf("expected forced tool_choice=none, got %v", upstream.ToolChoice)
	}
}

func TestTranslate_InstructionsNotPersisted(t *testing.T) {
	req := &responses.Request{
		Model:        "gpt-4.1",
		Instructions: "be terse",
		Input:        []responses.InputItem{{Type: "message", Role: "user", Content: "hi"}},
	}
	upstream, ctx, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upstream.Messages[0].Role != chat.RoleSystem || upstream.Messages[0].Content != "be terse" {
		t.Fatalf("expected instructions as first upstream message, got %+v", upstream.Messages[0])
	}
	for _, m := range ctx.History {
		if m.Role == chat.RoleSystem {
			t.Fatalf("instructions must not appear in persisted history, got %+v", ctx.History)
		}
	}
}

func TestTranslate_AllowedToolsFiltersByName(t *testing.T) {
	req := &responses.Request{
		Model: "gpt-4.1",
		Tools: []responses.ToolDecl{
			{Type: "function", Name: "get_weather", Parameters: map[string]any{"type": "object"}},
			{Type: "function", Name: "send_email", Parameters: map[string]any{"type": "object"}},
		},
		ToolChoice: gjson.Parse(`{"type":"allowed_tools","mode":"auto","tools":[{"type":"function","name":"get_weather"}]}`),
		Input:      []responses.InputItem{{Type: "message", Role: "user", Content: "weather?"}},
	}
	upstream, _, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(upstream.Tools) != 1 || upstream.Tools[0].Function.Name != "get_weather" {
		t.Fatalf("expected allowed_tools to keep only get_weather, got %+v", upstream.Tools)
	}
	if upstream.ToolChoice != "auto" {
		t.Fatalf("expected tool_choice mode auto, got %v", upstream.ToolChoice)
	}
}

func TestTranslate_MaxOutputTokensZeroSetsSkipEmptyRetry(t *testing.T) {
	zero := 0
	req := &responses.Request{
		Model:           "gpt-4.1",
		MaxOutputTokens: &zero,
		Input:           []responses.InputItem{{Type: "message", Role: "user", Content: "hi"}},
	}
	upstream, ctx, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.SkipEmptyRetry {
		t.Fatalf("expected SkipEmptyRetry for max_output_tokens: 0")
	}
	if upstream.MaxTokens != 0 {
		t.Fatalf("expected no max_tokens forwarded, got %d", upstream.MaxTokens)
	}
}

func TestTranslate_StoreFalseSetsSkipPersist(t *testing.T) {
	no := false
	req := &responses.Request{
		Model: "gpt-4.1",
		Store: &no,
		Input: []responses.InputItem{{Type: "message", Role: "user", Content: "hi"}},
	}
	_, ctx, err := newTranslator().Translate(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.SkipPersist {
		t.Fatalf("expected SkipPersist for store: false")
	}
}

func TestResponseTranslator_ToolCallUnvirtualized(t *testing.T) {
	rt := NewResponseTranslator()
	ctx := &Context{
		ToolMap: tools.Map{FunctionNameMap: map[string]string{"shell": "shell"}},
	}
	resp := &chat.CompletionResponse{
		Choices: []chat.Choice{{
			Message: chat.Message{
				ToolCalls: []chat.ToolCall{{ID: "call_9", Function: chat.ToolCallFunc{Name: "shell", Arguments: `{"cmd":"ls"}`}}},
			},
		}},
	}
	obj, _ := rt.Translate(resp, ctx, 0)
	if len(obj.Output) != 1 || obj.Output[0].Type != "shell_call" || obj.Output[0].CallID != "call_9" {
		t.Fatalf("unexpected output: %+v", obj.Output)
	}
}
