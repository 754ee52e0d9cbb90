// Package responses models the OpenAI-style Responses API shapes: the
// inbound ResponsesRequest, its InputItem tagged variants, and the
// outbound ResponseObject. Parsing leans on gjson the way the teacher's
// to_ir/openai.go auto-detecting parser does; each passthrough field
// (temperature, top_p, parallel_tool_calls, ...) has its own Request
// field, and request fields not listed in Request are not carried over.
package responses

import (
	"github.com/tidwall/gjson"
)

// InputItem is the tagged variant described in spec §3. Only the fields
// relevant to the active Type are populated; unused fields are zero.
type InputItem struct {
	Type string

	// message
	Role    string
	Content string

	// function_call / *_call
	CallID    string
	Name      string
	Arguments string

	// function_call_output / *_call_output
	Output       string
	OutputIsJSON bool // true when Output holds a JSON-encoded structured value

	// reasoning
	Reasoning *ReasoningBlock

	// RawFields holds every field of the original item verbatim (minus
	// type/id/call_id), used to project built-in *_call arguments.
	RawFields map[string]any
}

// ReasoningBlock is an opaque reasoning item replayed across turns.
type ReasoningBlock struct {
	Summary   string
	Details   []map[string]any
	Encrypted string
}

// IsBuiltinCall reports whether Type is a virtualized built-in call item,
// i.e. "<something>_call" that is not the generic "function_call".
func (i InputItem) IsBuiltinCall() bool {
	return i.Type != "function_call" && len(i.Type) > len("_call") && i.Type[len(i.Type)-len("_call"):] == "_call"
}

// IsBuiltinCallOutput reports whether Type is a virtualized built-in call
// output item, i.e. "<something>_call_output" that is not the generic
// "function_call_output".
func (i InputItem) IsBuiltinCallOutput() bool {
	const suffix = "_call_output"
	return i.Type != "function_call_output" && len(i.Type) > len(suffix) && i.Type[len(i.Type)-len(suffix):] == suffix
}

// BuiltinType extracts "shell" from "shell_call" or "shell_call_output".
func (i InputItem) BuiltinType() string {
	switch {
	case i.IsBuiltinCall():
		return i.Type[:len(i.Type)-len("_call")]
	case i.IsBuiltinCallOutput():
		return i.Type[:len(i.Type)-len("_call_output")]
	default:
		return ""
	}
}

// ToolDecl is one normalized tool declaration from the request's "tools"
// array, already flattened to {type, name, description, parameters}.
type ToolDecl struct {
	Type        string
	Name        string
	Description string
	Parameters  map[string]any
}

// TextFormat mirrors the request's text.format field.
type TextFormat struct {
	Kind       string // "json_schema" | "json_object" | "" (plain)
	Name       string
	Strict     bool
	JSONSchema map[string]any
}

// Request is the parsed ResponsesRequest (spec §3).
type Request struct {
	Model              string
	Instructions       string
	Input              []InputItem
	Tools              []ToolDecl
	ToolChoice         gjson.Result // raw: string mode, function selector, or allowed_tools filter
	ParallelToolCalls  *bool
	MaxOutputTokens    *int
	Temperature        *float64
	TopP               *float64
	Verbosity          string
	Text               *TextFormat
	Stream             bool
	PreviousResponseID string
	Reasoning          map[string]any
	Store              *bool
}

// ContentPart is one entry of a message output item's content array.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// OutputItem is one entry of ResponseObject.Output (spec §3). It is a
// single flat struct covering every output item kind (message,
// function_call, virtualized *_call, reasoning); only the fields for the
// active Type are populated and the rest are omitted from JSON.
type OutputItem struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Role      string           `json:"role,omitempty"`
	Content   []ContentPart    `json:"content,omitempty"`
	CallID    string           `json:"call_id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Arguments string           `json:"arguments,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Details   []map[string]any `json:"details,omitempty"`
	Encrypted string           `json:"encrypted,omitempty"`
}

// Usage mirrors the token usage block surfaced to Responses clients.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Status values for ResponseObject.Status.
const (
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusIncomplete = "incomplete"
)

// Object is the ResponseObject from spec §3.
type Object struct {
	ID        string       `json:"id"`
	CreatedAt int64        `json:"created_at"`
	Model     string       `json:"model"`
	Status    string       `json:"status"`
	Output    []OutputItem `json:"output"`
	Usage     *Usage       `json:"usage,omitempty"`
	Reasoning any          `json:"reasoning,omitempty"`
}
