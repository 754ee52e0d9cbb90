// Package store implements the ConversationStore interface from spec §4.6:
// a three-method abstraction over persisted StoredTurn entries, with
// in-memory, Redis, and disabled backends.
package store

import (
	"context"
	"time"

	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
	"github.com/nghyane/openbridge/internal/tools"
)

// StoredTurn is the conversation-store entry from spec §3. Instructions
// are explicitly excluded; Messages is the reduced post-turn history used
// to seed the next turn's translation. Response carries the same
// ResponseObject the client originally received, so GET /v1/responses/:id
// can return the real external-interface shape (spec §6) instead of the
// reduced continuation state.
type StoredTurn struct {
	Messages []chat.Message    `json:"messages"`
	ToolMap  tools.Map         `json:"tool_map"`
	Model    string            `json:"model"`
	Response *responses.Object `json:"response,omitempty"`
}

// Store is the three-method interface; swapping backends must not touch
// the orchestrator (spec §9).
type Store interface {
	Get(ctx context.Context, responseID string) (StoredTurn, error)
	Put(ctx context.Context, responseID string, turn StoredTurn, ttl time.Duration) error
	Delete(ctx context.Context, responseID string) (bool, error)
}

// ErrUnavailable is returned by the disabled backend for every operation.
// The orchestrator maps it to not_implemented per spec §4.6/§4.7.
var ErrUnavailable = apierrors.New(apierrors.KindNotImplemented, "conversation store is disabled")

// ErrNotFound is returned by Get when the id is unknown or its entry has
// expired. The orchestrator maps it to not_found per spec §4.2/§4.7.
var ErrNotFound = apierrors.New(apierrors.KindNotFound, "response id not found")
