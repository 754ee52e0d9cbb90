// Package orchestrator implements the per-request controller from spec
// §4.7: it sequences conversation-state load, request translation, the
// upstream call (with its empty-completion retry), response translation,
// and the post-call state write, for both the single-shot and streaming
// paths.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nghyane/openbridge/internal/apierrors"
	"github.com/nghyane/openbridge/internal/chat"
	"github.com/nghyane/openbridge/internal/responses"
	"github.com/nghyane/openbridge/internal/store"
	"github.com/nghyane/openbridge/internal/streaming"
	"github.com/nghyane/openbridge/internal/translate"
	"github.com/nghyane/openbridge/internal/upstream"
)

// Config carries the orchestrator's own knobs (the rest live in
// translate.Config and upstream.Config, each owned by its component).
type Config struct {
	StateTTL time.Duration
}

// Orchestrator is the single place that knows the full request lifecycle,
// for both the single-shot and the streaming path. Grounded on
// original_source/openbridge/api/routes.py's route-handler control flow.
type Orchestrator struct {
	reqTrans  *translate.RequestTranslator
	respTrans *translate.ResponseTranslator
	upstream  *upstream.Client
	store     store.Store
	cfg       Config
}

func New(reqTrans *translate.RequestTranslator, respTrans *translate.ResponseTranslator, client *upstream.Client, st store.Store, cfg Config) *Orchestrator {
	return &Orchestrator{reqTrans: reqTrans, respTrans: respTrans, upstream: client, store: st, cfg: cfg}
}

// Handle runs the full non-streaming request lifecycle and returns the
// ResponseObject to serialize back to the client.
func (o *Orchestrator) Handle(ctx context.Context, raw []byte) (*responses.Object, error) {
	req, err := responses.ParseRequest(raw)
	if err != nil {
		return nil, apierrors.InvalidRequest(err.Error())
	}
	req.Stream = false

	priorHistory, err := o.loadPriorHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	upstreamReq, tctx, err := o.reqTrans.Translate(req, priorHistory)
	if err != nil {
		return nil, err
	}

	resp, err := o.callWithEmptyRetry(ctx, upstreamReq, tctx.SkipEmptyRetry)
	if err != nil {
		return nil, err
	}

	obj, message := o.respTrans.Translate(resp, tctx, time.Now().Unix())
	o.persist(ctx, obj.ID, tctx, message, obj)
	return obj, nil
}

// HandleStream runs the streaming request lifecycle up to the point where
// the SSE stream may begin. A non-nil error here means no byte has been
// written to the client yet, so the caller should respond with a plain
// HTTP error. Once the returned channel is non-nil, every failure surfaces
// as a response.failed event on it instead (spec §4.5).
func (o *Orchestrator) HandleStream(ctx context.Context, raw []byte) (<-chan streaming.Event, error) {
	req, err := responses.ParseRequest(raw)
	if err != nil {
		return nil, apierrors.InvalidRequest(err.Error())
	}
	req.Stream = true

	priorHistory, err := o.loadPriorHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	upstreamReq, tctx, err := o.reqTrans.Translate(req, priorHistory)
	if err != nil {
		return nil, err
	}

	events, err := o.upstream.CallStream(ctx, upstreamReq)
	if err != nil {
		return nil, err
	}

	responseID := newResponseID()
	out := make(chan streaming.Event)
	go o.driveStream(ctx, events, tctx, responseID, out)
	return out, nil
}

// driveStream pumps upstream.StreamEvents through a streaming.Bridge and
// forwards the resulting Responses events, persisting conversation state
// once the stream completes successfully.
func (o *Orchestrator) driveStream(ctx context.Context, events <-chan upstream.StreamEvent, tctx *translate.Context, responseID string, out chan<- streaming.Event) {
	defer close(out)

	bridge := streaming.New(tctx, responseID, tctx.ResolvedModel, time.Now().Unix())
	for ev := range events {
		switch {
		case ev.Err != nil:
			if bridge.Started() {
				for _, e := range bridge.Failure(ev.Err.Error(), string(apierrors.KindOf(ev.Err)), "") {
					out <- e
				}
			}
			return

		case ev.Done:
			for _, e := range bridge.Finish() {
				out <- e
			}
			final := bridge.FinalCompletionResponse()
			obj, message := o.respTrans.Translate(final, tctx, time.Now().Unix())
			obj.ID = responseID
			o.persist(ctx, responseID, tctx, message, obj)
			return

		case ev.Chunk != nil:
			for _, e := range bridge.ProcessChunk(*ev.Chunk) {
				out <- e
			}
		}
	}
}

// Get returns the stored turn for a prior response id, for the responses
// retrieval endpoint and for continuation lookups.
func (o *Orchestrator) Get(ctx context.Context, responseID string) (store.StoredTurn, error) {
	return o.store.Get(ctx, responseID)
}

// Delete removes a stored turn, for the responses deletion endpoint.
func (o *Orchestrator) Delete(ctx context.Context, responseID string) (bool, error) {
	return o.store.Delete(ctx, responseID)
}

// loadPriorHistory resolves previous_response_id into the chat history to
// seed the next turn's translation, per spec §4.2/§4.7: a disabled store
// surfaces as not_implemented, an unknown or expired id as not_found.
func (o *Orchestrator) loadPriorHistory(ctx context.Context, req *responses.Request) ([]chat.Message, error) {
	if req.PreviousResponseID == "" {
		return nil, nil
	}
	turn, err := o.store.Get(ctx, req.PreviousResponseID)
	if err != nil {
		return nil, err
	}
	return turn.Messages, nil
}

// callWithEmptyRetry implements spec §4.7's empty-completion rule: a
// completion with no text and no tool calls is retried exactly once before
// surfacing as bad_gateway. Grounded on
// original_source/openbridge/api/routes.py's double-call-then-502 flow,
// which only applies this rule when max_output_tokens is absent or > 0 —
// an explicit max_output_tokens: 0 makes an empty completion expected, so
// skipEmptyRetry suppresses the check entirely.
func (o *Orchestrator) callWithEmptyRetry(ctx context.Context, req *chat.CompletionRequest, skipEmptyRetry bool) (*chat.CompletionResponse, error) {
	resp, err := o.upstream.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if skipEmptyRetry || hasContent(resp) {
		return resp, nil
	}
	resp, err = o.upstream.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if !hasContent(resp) {
		return nil, apierrors.BadGateway("upstream returned an empty completion twice in a row")
	}
	return resp, nil
}

func hasContent(resp *chat.CompletionResponse) bool {
	return len(resp.Choices) > 0 && resp.Choices[0].Message.HasContent()
}

// persist appends the turn's new assistant message to its translated
// history and writes the result, including the client-visible
// ResponseObject, to the store. It is a no-op when the request carried
// "store": false (tctx.SkipPersist). Store failures (including
// ErrUnavailable for a disabled backend) are intentionally swallowed: the
// conversation store is an optimization for previous_response_id
// continuation and retrieval, not a requirement for answering the current
// request.
func (o *Orchestrator) persist(ctx context.Context, responseID string, tctx *translate.Context, message chat.Message, obj *responses.Object) {
	if tctx.SkipPersist {
		return
	}
	history := append(append([]chat.Message{}, tctx.History...), message)
	turn := store.StoredTurn{Messages: history, ToolMap: tctx.ToolMap, Model: tctx.ResolvedModel, Response: obj}
	_ = o.store.Put(ctx, responseID, turn, o.cfg.StateTTL)
}

func newResponseID() string {
	return "resp_" + uuid.NewString()
}
