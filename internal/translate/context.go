// Package translate implements the RequestTranslator and
// ResponseTranslator (non-stream): the bidirectional mapping between the
// Responses and Chat Completions shapes described in spec §4.2/§4.4.
package translate

import (
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/tools"
)

// Context is the per-turn TranslationContext from spec §3: the artifacts
// produced by RequestTranslator and consumed by ResponseTranslator and the
// StreamingBridge. It is created on request entry and discarded once the
// response is emitted — no ambient state leaks between requests.
type Context struct {
	ToolMap             tools.Map
	DroppedFields       map[string]bool
	ToolsInferred       bool
	InjectedSystemText  string
	ReasoningToReplay   []chat.ReasoningDetail
	ResolvedModel       string
	RequestedModel      string

	// SkipEmptyRetry is set when the request explicitly asked for
	// max_output_tokens: 0, in which case an empty completion is the
	// expected result and must not trigger the orchestrator's
	// empty-completion retry (spec §4.7, original_source's
	// routes.py: "max_output_tokens is None or > 0").
	SkipEmptyRetry bool

	// SkipPersist mirrors original_source/openbridge/api/routes.py's
	// "payload.store is not False" gate: the orchestrator skips writing
	// conversation state for this turn when the client passed
	// "store": false.
	SkipPersist bool

	// History is the reduced messages list (rehydrated history plus this
	// turn's input items), WITHOUT the injected instructions system
	// message. The orchestrator appends the assistant message returned by
	// ResponseTranslator to a copy of this slice and that becomes the next
	// StoredTurn.Messages (spec §3, "instructions are explicitly excluded").
	History []chat.Message
}

// NewDroppedFields returns an empty field-drop set for a fresh Context.
// The upstream client's degrade-field retry keeps its own per-call record
// of removed fields and does not write to this set.
func NewDroppedFields() map[string]bool {
	return map[string]bool{}
}
