package talk

import (
	"context"

	"github.com/mirubo/pixpal/pkg/convo"
)

// captureFailedNote is injected as a user turn when a vision directive
// was honored but the capture produced nothing.
const captureFailedNote = "The image capture failed. Tell the user you could not see anything just now."

// Outcome is the finalized result of one Converse call.
type Outcome struct {
	// Kind is KindContent or KindFuncCall on success. On error it
	// carries the terminal classification of the failed sub-turn.
	Kind Kind

	// Text is everything received across all sub-turns, markers
	// included, in arrival order.
	Text string

	// FuncCall is set when Kind is KindFuncCall. Arguments is the
	// concatenated argument document, repaired when needed.
	FuncCall *convo.FuncCall

	// Messages are the turns committed during the session, for the
	// caller to merge into its durable history.
	Messages []*convo.Message
}

// TurnOption configures a single Converse call.
type TurnOption func(*turnConfig)

type turnConfig struct {
	useFunctions bool
	extraParams  map[string]any
	deltas       func(string)
	conversation string
}

// WithFunctionCalling toggles tool declarations for this call. It has
// no effect when the engine's model variant does not support tools.
func WithFunctionCalling(enabled bool) TurnOption {
	return func(cfg *turnConfig) {
		cfg.useFunctions = enabled
	}
}

// WithRequestParams merges extra keys into the top level of this
// call's request bodies, after the engine-level custom parameters.
func WithRequestParams(params map[string]any) TurnOption {
	return func(cfg *turnConfig) {
		cfg.extraParams = params
	}
}

// WithDeltas streams every extracted text increment to fn in arrival
// order, as it is decoded.
func WithDeltas(fn func(delta string)) TurnOption {
	return func(cfg *turnConfig) {
		cfg.deltas = fn
	}
}

// WithConversation names the durable conversation this call belongs
// to. When the engine has an archive, finalized turns are appended to
// it under this id.
func WithConversation(id string) TurnOption {
	return func(cfg *turnConfig) {
		cfg.conversation = id
	}
}

// Converse runs one logical request: send, reassemble the streamed
// response, honor at most one vision continuation, and finalize.
//
// history is never mutated; the committed turns come back in
// Outcome.Messages for the caller to merge. On failure the returned
// Outcome still carries any turns committed by earlier successful
// sub-turns, alongside the error.
func (e *Engine) Converse(ctx context.Context, history []*convo.Message, opts ...TurnOption) (*Outcome, error) {
	cfg := &turnConfig{useFunctions: true}
	for _, opt := range opts {
		opt(cfg)
	}

	s := newSession(history)
	s.setDeltas(cfg.deltas)
	base := len(s.contexts)
	e.store.add(s)
	setActiveSessions(e.store.size())
	e.log.Debug("talk/converse: session opened", "session", s.id, "history", base)

	for {
		if err := e.runTurn(ctx, s, cfg); err != nil {
			// The driver already retired the session.
			return e.outcome(s, base), err
		}

		text, kind, _ := s.turnResult()
		if kind != KindContent {
			break
		}
		tags := ExtractTags(text)
		if len(tags) == 0 {
			break
		}
		if e.onTags != nil {
			e.onTags(tags, s)
		}
		source, ok := tags[TagVision]
		if !ok || !s.takeVision() {
			break
		}
		e.appendCaptureTurn(ctx, s, source)
	}

	e.store.remove(s.id)
	setActiveSessions(e.store.size())
	out := e.outcome(s, base)
	e.log.Debug("talk/converse: session finalized", "session", s.id, "kind", out.Kind.String(), "turns", len(out.Messages))

	if e.archive != nil && cfg.conversation != "" {
		e.archiveExchange(ctx, cfg.conversation, s, base, out)
	}
	return out, nil
}

// archiveExchange persists the finished exchange: the user turn that
// triggered this call (the last history message, when it is one) and
// every turn committed during the session.
func (e *Engine) archiveExchange(ctx context.Context, conversation string, s *Session, base int, out *Outcome) {
	turns := out.Messages
	if base > 0 {
		if all := s.committedSince(base - 1); len(all) > 0 && all[0].Role == convo.RoleUser {
			turns = all
		}
	}
	if len(turns) == 0 {
		return
	}
	if err := e.archive.AppendTurns(ctx, conversation, turns); err != nil {
		e.log.Warn("talk/converse: archive append failed", "conversation", conversation, "err", err)
	}
}

// appendCaptureTurn honors a vision directive: capture a still from
// the hinted source and append it as a user turn. A failed capture is
// absorbed into a fallback turn; it never fails the conversation.
func (e *Engine) appendCaptureTurn(ctx context.Context, s *Session, source string) {
	blob := e.captureBlob(ctx, source)
	if blob == nil {
		recordCapture("failed")
		s.appendContext(convo.NewText(convo.RoleUser, captureFailedNote))
		return
	}
	recordCapture("ok")
	note := "Here is the captured image."
	if source != "" {
		note = "Here is the captured image from " + source + "."
	}
	s.appendContext(convo.NewBlob(convo.RoleUser, blob.MIMEType, blob.Data, note))
}

func (e *Engine) captureBlob(ctx context.Context, source string) *convo.Blob {
	if e.capture == nil {
		e.log.Warn("talk/converse: vision directive with no capturer configured", "source", source)
		return nil
	}
	blob, err := e.capture.Capture(ctx, source)
	if err != nil {
		e.log.Warn("talk/converse: image capture failed", "source", source, "err", err)
		return nil
	}
	if blob == nil || len(blob.Data) == 0 {
		return nil
	}
	return blob
}

func (e *Engine) outcome(s *Session, base int) *Outcome {
	text, kind, funcName := s.turnResult()
	out := &Outcome{
		Kind:     kind,
		Text:     s.Text(),
		Messages: s.committedSince(base),
	}
	if kind == KindFuncCall {
		out.FuncCall = &convo.FuncCall{Name: funcName, Arguments: normalizeArgs(text)}
	}
	return out
}
