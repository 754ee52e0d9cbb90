package translate

import (
	"github.com/google/uuid"
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
)

// ResponseTranslator converts a Chat Completions response into a
// ResponseObject, consulting the turn's ToolMap to un-virtualize tool
// calls, per spec §4.4.
type ResponseTranslator struct{}

func NewResponseTranslator() *ResponseTranslator {
	return &ResponseTranslator{}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Translate builds the ResponseObject for a completed (non-streaming)
// upstream call and returns the assistant message to append to
// ctx.History so the caller can build the next StoredTurn.
func (t *ResponseTranslator) Translate(resp *chat.CompletionResponse, ctx *Context, createdAt int64) (*responses.Object, chat.Message) {
	var message chat.Message
	finishReason := ""
	if len(resp.Choices) > 0 {
		message = resp.Choices[0].Message
		finishReason = resp.Choices[0].FinishReason
	}

	var output []responses.OutputItem

	if len(message.ReasoningDetails) > 0 {
		output = append(output, reasoningOutputItem(message.ReasoningDetails))
	}

	for _, tc := range message.ToolCalls {
		output = append(output, toolCallOutputItem(tc, ctx))
	}

	if message.Content != "" {
		output = append(output, responses.OutputItem{
			ID:   newID("item"),
			Type: "message",
			Role: "assistant",
			Content: []responses.ContentPart{{
				Type: "output_text",
				Text: message.Content,
			}},
		})
	}

	status := responses.StatusCompleted
	if finishReason == "length" {
		status = responses.StatusIncomplete
	}

	obj := &responses.Object{
		ID:        newID("resp"),
		CreatedAt: createdAt,
		Model:     ctx.ResolvedModel,
		Status:    status,
		Output:    output,
	}
	if resp.Usage != nil {
		obj.Usage = &responses.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	return obj, message
}

// toolCallOutputItem un-virtualizes a single upstream tool call back into
// its external Responses shape: a built-in *_call item if the function
// name resolves through the ToolMap, otherwise a plain function_call item.
func toolCallOutputItem(tc chat.ToolCall, ctx *Context) responses.OutputItem {
	if external, ok := ctx.ToolMap.FunctionNameMap[tc.Function.Name]; ok {
		return responses.OutputItem{
			ID:        newID("item"),
			Type:      external + "_call",
			CallID:    tc.ID,
			Name:      external,
			Arguments: tc.Function.Arguments,
		}
	}
	return responses.OutputItem{
		ID:        newID("item"),
		Type:      "function_call",
		CallID:    tc.ID,
		Name:      tc.Function.Name,
		Arguments: tc.Function.Arguments,
	}
}

func reasoningOutputItem(details []chat.ReasoningDetail) responses.OutputItem {
	item := responses.OutputItem{ID: newID("item"), Type: "reasoning"}
	for _, d := range details {
		if s, ok := d["summary"].(string); ok && s != "" {
			item.Summary = s
		}
		if enc, ok := d["encrypted"].(string); ok && enc != "" {
			item.Encrypted = enc
		}
		if raw, ok := d["details"].([]map[string]any); ok {
			item.Details = append(item.Details, raw...)
		} else if raw, ok := d["details"].([]any); ok {
			for _, r := range raw {
				if m, ok := r.(map[string]any); ok {
					item.Details = append(item.Details, m)
				}
			}
		}
	}
	if item.Details == nil {
		item.Details = []map[string]any{}
	}
	return item
}
