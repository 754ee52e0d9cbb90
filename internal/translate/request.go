package translate

import (
	"strings"
	"sync"

	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/tidwall/gjson"
)

// Config carries the knobs spec §6 lists under "Configuration inputs
// recognized by the core".
type Config struct {
	MaxTokensBuffer int
	ModelAliasMap   map[string]string
}

// RequestTranslator converts a parsed ResponsesRequest plus optional
// rehydrated history into an upstream Chat Completions payload and a
// Context, per spec §4.2.
type RequestTranslator struct {
	registry *tools.Registry
	cfg      Config

	aliasMu sync.RWMutex
}

func NewRequestTranslator(registry *tools.Registry, cfg Config) *RequestTranslator {
	return &RequestTranslator{registry: registry, cfg: cfg}
}

// SetModelAliasMap hot-swaps the alias map, for config.WatchModelMap's
// fsnotify-driven reload callback.
func (t *RequestTranslator) SetModelAliasMap(m map[string]string) {
	t.aliasMu.Lock()
	defer t.aliasMu.Unlock()
	t.cfg.ModelAliasMap = m
}

func (t *RequestTranslator) modelAliasMap() map[string]string {
	t.aliasMu.RLock()
	defer t.aliasMu.RUnlock()
	return t.cfg.ModelAliasMap
}

// ResolveModel applies the alias map, passing through provider-qualified
// model strings ("x/y") and otherwise prefixing "openai/" — grounded on
// original_source/openbridge/translate/request.py::resolve_model.
func ResolveModel(aliasMap map[string]string, model string) string {
	if alias, ok := aliasMap[model]; ok {
		return alias
	}
	if strings.Contains(model, "/") {
		return model
	}
	return "openai/" + model
}

// Translate runs the full request-translation pipeline (spec §4.2 steps
// 1–10) and returns the upstream payload plus the turn's Context.
func (t *RequestTranslator) Translate(req *responses.Request, priorHistory []chat.Message) (*chat.CompletionRequest, *Context, error) {
	ctx := &Context{
		DroppedFields:  NewDroppedFields(),
		RequestedModel: req.Model,
		ResolvedModel:  ResolveModel(t.modelAliasMap(), req.Model),
		SkipPersist:    req.Store != nil && !*req.Store,
	}

	history := append([]chat.Message{}, priorHistory...)
	var pendingReasoning []chat.ReasoningDetail
	var inferredNames []string
	seenInferred := map[string]bool{}
	sawCallItem := false

	appendAssistantCall := func(callID, name, arguments string) {
		sawCallItem = true
		if !seenInferred[name] {
			seenInferred[name] = true
			inferredNames = append(inferredNames, name)
		}
		if n := len(history); n > 0 && history[n-1].Role == chat.RoleAssistant && history[n-1].Content == "" {
			last := &history[n-1]
			last.ToolCalls = append(last.ToolCalls, chat.ToolCall{
				ID: callID, Type: "function",
				Function: chat.ToolCallFunc{Name: name, Arguments: arguments},
			})
			if len(pendingReasoning) > 0 {
				last.ReasoningDetails = append(last.ReasoningDetails, pendingReasoning...)
				pendingReasoning = nil
			}
			return
		}
		msg := chat.Message{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{
				ID: callID, Type: "function",
				Function: chat.ToolCallFunc{Name: name, Arguments: arguments},
			}},
		}
		if len(pendingReasoning) > 0 {
			msg.ReasoningDetails = append(msg.ReasoningDetails, pendingReasoning...)
			pendingReasoning = nil
		}
		history = append(history, msg)
	}

	for _, item := range req.Input {
		switch {
		case item.Type == "message":
			history = append(history, chat.Message{Role: chat.Role(item.Role), Content: item.Content})

		case item.Type == "function_call":
			appendAssistantCall(item.CallID, item.Name, item.Arguments)

		case item.Type == "function_call_output":
			history = append(history, chat.Message{Role: chat.RoleTool, ToolCallID: item.CallID, Content: item.Output})
			sawCallItem = true

		case item.IsBuiltinCall():
			external := item.BuiltinType()
			name := t.registry.FunctionNameForExternal(external)
			args := tools.ProjectCallArgs(item.RawFields)
			appendAssistantCall(item.CallID, name, args)

		case item.IsBuiltinCallOutput():
			history = append(history, chat.Message{Role: chat.RoleTool, ToolCallID: item.CallID, Content: item.Output})
			sawCallItem = true

		case item.Type == "reasoning" && item.Reasoning != nil:
			pendingReasoning = append(pendingReasoning, reasoningDetail(item.Reasoning))

		default:
			// Unknown item types are dropped silently (spec §4.2 step 4).
		}
	}
	ctx.ReasoningToReplay = pendingReasoning
	ctx.History = history

	// Tool declaration / inference (spec §4.2 steps 5–6).
	var declared []tools.DeclaredTool
	for _, d := range req.Tools {
		declared = append(declared, tools.DeclaredTool{
			Type: d.Type, Name: d.Name, Description: d.Description, Parameters: d.Parameters,
		})
	}
	toolChoiceProvided := req.ToolChoice.Exists()
	if len(declared) == 0 && sawCallItem {
		for _, name := range inferredNames {
			declared = append(declared, tools.DeclaredTool{
				Type: "function", Name: name, Parameters: map[string]any{"type": "object"},
			})
		}
		ctx.ToolsInferred = true
	}

	toolMap, err := t.registry.VirtualizeTools(declared)
	if err != nil {
		return nil, nil, err
	}
	ctx.ToolMap = toolMap

	upstream := &chat.CompletionRequest{
		Model:  ctx.ResolvedModel,
		Tools:  toolMap.ChatTools,
		Stream: req.Stream,
	}

	if req.Instructions != "" {
		ctx.InjectedSystemText = req.Instructions
		upstream.Messages = append(upstream.Messages, chat.Message{Role: chat.RoleSystem, Content: req.Instructions})
	}
	upstream.Messages = append(upstream.Messages, history...)

	// Tool-choice mapping (spec §4.2 step 7).
	switch {
	case ctx.ToolsInferred && !toolChoiceProvided:
		upstream.ToolChoice = "none"
	case toolChoiceProvided:
		upstream.ToolChoice = mapToolChoice(req.ToolChoice, &upstream.Tools)
	}

	if req.MaxOutputTokens != nil {
		ctx.SkipEmptyRetry = *req.MaxOutputTokens == 0
		if *req.MaxOutputTokens > 0 {
			upstream.MaxTokens = *req.MaxOutputTokens + t.cfg.MaxTokensBuffer
		}
	}

	if req.Text != nil {
		switch req.Text.Kind {
		case "json_schema":
			upstream.ResponseFormat = &chat.ResponseFormat{
				Type: "json_schema",
				JSONSchema: &chat.JSONSchemaSpec{
					Name: req.Text.Name, Strict: req.Text.Strict, Schema: req.Text.JSONSchema,
				},
			}
		case "json_object":
			upstream.ResponseFormat = &chat.ResponseFormat{Type: "json_object"}
		}
	}

	upstream.Temperature = req.Temperature
	upstream.TopP = req.TopP
	upstream.ParallelToolCalls = req.ParallelToolCalls
	upstream.Reasoning = req.Reasoning
	upstream.Verbosity = req.Verbosity

	return upstream, ctx, nil
}

func reasoningDetail(rb *responses.ReasoningBlock) chat.ReasoningDetail {
	d := chat.ReasoningDetail{}
	if rb.Summary != "" {
		d["summary"] = rb.Summary
	}
	if len(rb.Details) > 0 {
		d["details"] = rb.Details
	}
	if rb.Encrypted != "" {
		d["encrypted"] = rb.Encrypted
	}
	return d
}

// mapToolChoice implements spec §4.2 step 7: pass through auto/none/required,
// map a function selector, and degrade an allowed_tools filter by pruning
// the declared tool list and reducing to the selector's bare mode.
func mapToolChoice(tc gjson.Result, declaredTools *[]tools.ChatTool) any {
	if tc.Type == gjson.String {
		return tc.String()
	}
	switch tc.Get("type").String() {
	case "function":
		return map[string]any{"type": "function", "function": map[string]any{"name": tc.Get("name").String()}}
	case "allowed_tools":
		var allowed []string
		for _, a := range tc.Get("tools").Array() {
			allowed = append(allowed, allowedToolName(a))
		}
		if len(allowed) > 0 {
			var filtered []tools.ChatTool
			for _, ct := range *declaredTools {
				for _, a := range allowed {
					if ct.Function.Name == a {
						filtered = append(filtered, ct)
						break
					}
				}
			}
			*declaredTools = filtered
		}
		return tc.Get("mode").String()
	default:
		return "auto"
	}
}

// allowedToolName extracts the name from one allowed_tools entry, mirroring
// original_source/openbridge/translate/request.py::filter_tools_by_allowed:
// a nested function selector's name, else a flat name, else the bare type
// (for non-function built-in entries like {"type":"shell"}).
func allowedToolName(entry gjson.Result) string {
	if name := entry.Get("function.name").String(); name != "" {
		return name
	}
	if name := entry.Get("name").String(); name != "" {
		return name
	}
	return entry.Get("type").String()
}
