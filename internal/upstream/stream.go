package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/chat"
)

// StreamEvent is one item off the upstream SSE stream: either a decoded
// chunk or a terminal error. Exactly one of Chunk/Err/Done is set.
type StreamEvent struct {
	Chunk *chat.StreamChunk
	Err   error
	Done  bool
}

// CallStream opens the upstream SSE stream and returns a channel of
// decoded chunks. The channel is closed after a Done event, after a
// terminal Err event, or, with neither, when the body ends without a
// [DONE] frame. Grounded on the teacher's streaming executor
// pattern in internal/runtime/executor/openai_compat_executor.go and
// original_source/openbridge/clients/openrouter.py's httpx_sse usage.
func (c *Client) CallStream(ctx context.Context, req *chat.CompletionRequest) (<-chan StreamEvent, error) {
	req.Stream = true
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apierrors.Internal(err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apierrors.Internal(err)
	}
	c.applyHeaders(httpReq, true)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierrors.UpstreamError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, decodeErr := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
		if decodeErr != nil {
			resp.Body.Close()
			return nil, apierrors.UpstreamError(decodeErr)
		}
		defer body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(body)
		return nil, apierrors.UpstreamError(fmt.Errorf("upstream status %d: %s", resp.StatusCode, buf.String()))
	}

	body, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		resp.Body.Close()
		return nil, apierrors.UpstreamError(err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				events <- StreamEvent{Done: true}
				return
			}
			var chunk chat.StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				events <- StreamEvent{Err: apierrors.UpstreamError(fmt.Errorf("decode stream chunk: %w", err))}
				return
			}
			events <- StreamEvent{Chunk: &chunk}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: apierrors.UpstreamError(err)}
		}
	}()

	return events, nil
}
