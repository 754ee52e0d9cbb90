// Package upstream implements the UpstreamClient from spec §4.3: a
// single-shot and streaming HTTP caller against an OpenRouter-style Chat
// Completions backend, with retry/backoff, field-degradation, and
// response decompression.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/tidwall/sjson"
)

// Config carries the knobs spec §6 lists for the upstream call.
type Config struct {
	BaseURL          string
	APIKey           string
	HTTPReferer      string
	XTitle           string
	RequestTimeout   time.Duration
	RetryMaxAttempts int
	RetryMaxSeconds  time.Duration
	RetryBackoff     time.Duration
	DegradeFields    []string
}

// Client is the UpstreamClient. Grounded on the teacher's
// internal/runtime/executor/openai_compat_executor.go for request
// construction and status categorization.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.RequestTimeout}}
}

var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

type callResult struct {
	status int
	body   []byte
}

// Call performs a single-shot (non-streaming) upstream call, applying the
// exponential-backoff retry policy for transient failures and the
// field-degradation retry for fragile-field 4xx errors (spec §4.3).
func (c *Client) Call(ctx context.Context, req *chat.CompletionRequest) (*chat.CompletionResponse, error) {
	req.Stream = false
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apierrors.Internal(err)
	}

	degraded := map[string]bool{}
	for {
		res, err := c.doWithBackoff(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apierrors.Timeout(err)
			}
			return nil, apierrors.UpstreamError(err)
		}

		if res.status >= 200 && res.status < 300 {
			var out chat.CompletionResponse
			if err := json.Unmarshal(res.body, &out); err != nil {
				return nil, apierrors.UpstreamError(fmt.Errorf("decode upstream response: %w", err))
			}
			return &out, nil
		}

		if res.status >= 400 && res.status < 500 {
			if field, ok := c.fragileFieldIn(payload, res.body, degraded); ok {
				degraded[field] = true
				payload, _ = sjson.DeleteBytes(payload, field)
				continue
			}
		}
		return nil, apierrors.UpstreamError(fmt.Errorf("upstream status %d: %s", res.status, string(res.body)))
	}
}

// fragileFieldIn implements spec §4.3's degrade-field rule: the first
// configured field that both is present in the payload and is referenced
// by the error body's message text, and has not already been dropped this
// call. Grounded on
// original_source/openbridge/services/upstream.py::apply_degrade_fields.
func (c *Client) fragileFieldIn(payload, errBody []byte, degraded map[string]bool) (string, bool) {
	message := extractErrorMessage(errBody)
	for _, field := range c.cfg.DegradeFields {
		if degraded[field] {
			continue
		}
		if !bytes.Contains(payload, []byte(`"`+field+`"`)) {
			continue
		}
		if message != "" && bytesContainsFold(message, field) {
			return field, true
		}
	}
	return "", false
}

func extractErrorMessage(body []byte) string {
	var wrapper struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	return string(body)
}

func bytesContainsFold(haystack string, needle string) bool {
	return len(haystack) > 0 && len(needle) > 0 &&
		strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// doWithBackoff sends one request, retrying transient failures
// (connection errors, read timeouts, 429/5xx) with exponential backoff and
// jitter, capped by RetryMaxAttempts and RetryMaxSeconds.
func (c *Client) doWithBackoff(ctx context.Context, payload []byte) (callResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBackoff
	if b.InitialInterval <= 0 {
		b.InitialInterval = 500 * time.Millisecond
	}

	maxTries := uint(c.cfg.RetryMaxAttempts)
	if maxTries == 0 {
		maxTries = 1
	}
	maxElapsed := c.cfg.RetryMaxSeconds
	if maxElapsed <= 0 {
		maxElapsed = 15 * time.Second
	}

	return backoff.Retry(ctx, func() (callResult, error) {
		res, err := c.send(ctx, payload, false)
		if err != nil {
			return callResult{}, err
		}
		if retryableStatus[res.status] {
			return callResult{}, fmt.Errorf("retryable upstream status %d", res.status)
		}
		return res, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries), backoff.WithMaxElapsedTime(maxElapsed))
}

// send performs exactly one HTTP round trip and returns the (possibly
// decompressed) status/body.
func (c *Client) send(ctx context.Context, payload []byte, stream bool) (callResult, error) {
	url := c.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return callResult{}, backoff.Permanent(err)
	}
	c.applyHeaders(httpReq, stream)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return callResult{}, err
	}
	defer resp.Body.Close()

	body, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return callResult{}, backoff.Permanent(err)
	}
	data, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return callResult{}, err
	}
	return callResult{status: resp.StatusCode, body: data}, nil
}

// applyHeaders sets auth and attribution headers, grounded on the
// teacher's ApplyAPIHeaders/HeaderConfig pattern and
// original_source/openbridge/clients/openrouter.py's header assembly.
func (c *Client) applyHeaders(req *http.Request, stream bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if c.cfg.HTTPReferer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.HTTPReferer)
	}
	if c.cfg.XTitle != "" {
		req.Header.Set("X-Title", c.cfg.XTitle)
	}
}
