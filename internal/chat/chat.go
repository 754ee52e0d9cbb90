// Package chat models the OpenRouter-style Chat Completions wire shapes:
// the upstream request/response bodies and the tagged-variant message type
// the translator builds and consumes.
package chat

import "github.com/nghyane/openbridge/internal/tools"

// Role is one of the four Chat Completions message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one entry in an assistant message's tool_calls array.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc carries the function name and joined JSON arguments.
type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ReasoningDetail is one opaque reasoning block replayed verbatim across
// turns via the assistant message's reasoning_details field.
type ReasoningDetail map[string]any

// Message is a single Chat Completions turn. It is modeled as one struct
// with role-dependent optional fields rather than a closed tagged union,
// matching the wire shape every OpenAI-compatible backend expects; callers
// must still treat it as a tagged variant by role (spec §9 — do not reach
// for class hierarchies, but a flat struct keyed by Role is not one).
type Message struct {
	Role             Role              `json:"role"`
	Content          string            `json:"content,omitempty"`
	ToolCalls        []ToolCall        `json:"tool_calls,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
	ToolCallID       string            `json:"tool_call_id,omitempty"`
}

// HasContent reports whether the message carries visible text or tool
// calls (used by the empty-completion retry check in spec §4.3).
func (m Message) HasContent() bool {
	return m.Content != "" || len(m.ToolCalls) > 0
}

// ResponseFormat mirrors the upstream response_format field.
type ResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *JSONSchemaSpec `json:"json_schema,omitempty"`
}

// JSONSchemaSpec is the json_schema variant of ResponseFormat.
type JSONSchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict,omitempty"`
	Schema map[string]any `json:"schema"`
}

// CompletionRequest is the upstream Chat Completions request body.
type CompletionRequest struct {
	Model             string           `json:"model"`
	Messages          []Message        `json:"messages"`
	Tools             []tools.ChatTool `json:"tools,omitempty"`
	ToolChoice        any              `json:"tool_choice,omitempty"`
	MaxTokens         int              `json:"max_tokens,omitempty"`
	Temperature       *float64         `json:"temperature,omitempty"`
	TopP              *float64         `json:"top_p,omitempty"`
	ParallelToolCalls *bool            `json:"parallel_tool_calls,omitempty"`
	Stream            bool             `json:"stream,omitempty"`
	ResponseFormat    *ResponseFormat  `json:"response_format,omitempty"`
	Reasoning         any              `json:"reasoning,omitempty"`
	Verbosity         string           `json:"verbosity,omitempty"`
}

// Choice is one entry in a CompletionResponse's choices array.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage mirrors the upstream token usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the upstream non-streaming Chat Completions body.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// StreamDelta is one streamed chunk's per-choice delta.
type StreamDelta struct {
	Role      Role                  `json:"role,omitempty"`
	Content   string                `json:"content,omitempty"`
	ToolCalls []StreamToolCallDelta `json:"tool_calls,omitempty"`
}

// StreamToolCallDelta is one indexed tool-call fragment within a stream
// chunk; Function fields arrive incrementally across chunks.
type StreamToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}

// StreamChoice is one entry of a StreamChunk's choices array.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamChunk is one `data:` frame of the upstream SSE stream.
type StreamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}
