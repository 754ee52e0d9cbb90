package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/orchestrator"
	"github.com/tidwall/gjson"
)

// Handlers wires the orchestrator into gin route handlers, per spec §4.8.
type Handlers struct {
	orch *orchestrator.Orchestrator
}

func NewHandlers(orch *orchestrator.Orchestrator) *Handlers {
	return &Handlers{orch: orch}
}

// CreateResponse handles POST /v1/responses: single-shot for a plain
// request, SSE for one with "stream": true.
func (h *Handlers) CreateResponse(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, string(apierrors.KindInvalidRequest), "failed to read request body")
		return
	}

	if gjson.GetBytes(raw, "stream").Bool() {
		h.streamResponse(c, raw)
		return
	}

	obj, err := h.orch.Handle(c.Request.Context(), raw)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (h *Handlers) streamResponse(c *gin.Context, raw []byte) {
	events, err := h.orch.HandleStream(c.Request.Context(), raw)
	if err != nil {
		writeAPIError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for ev := range events {
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// GetResponse handles GET /v1/responses/:id, returning the ResponseObject
// the client originally received (spec §6). Entries written before
// StoredTurn carried a Response fall back to the reduced continuation
// state rather than a 500.
func (h *Handlers) GetResponse(c *gin.Context) {
	id := c.Param("id")
	turn, err := h.orch.Get(c.Request.Context(), id)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	if turn.Response != nil {
		c.JSON(http.StatusOK, turn.Response)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// DeleteResponse handles DELETE /v1/responses/:id. Deletion is idempotent
// (spec §6/§8): deleting an id that is already gone still answers 200,
// with "deleted" reporting whether the id existed (false the second time).
func (h *Handlers) DeleteResponse(c *gin.Context) {
	id := c.Param("id")
	existed, err := h.orch.Delete(c.Request.Context(), id)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": existed})
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		writeError(c, apiErr.StatusCode(), string(apiErr.Kind), apiErr.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, string(apierrors.KindInternal), err.Error())
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"type":    kind,
			"message": message,
		},
	})
}
