package talk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mirubo/pixpal/pkg/bridge"
)

// Deliver is the inbound chunk callback handed to the transport
// bridge: payload is the session id, bridge.Separator, then one raw
// stream fragment. The fragment may contain the separator itself, so
// the payload splits on the first occurrence only. Fragments for
// unknown or already-finalized sessions are logged and dropped;
// Deliver never fails the caller.
func (e *Engine) Deliver(payload string) {
	id, raw, ok := strings.Cut(payload, bridge.Separator)
	if !ok || id == "" {
		e.log.Warn("talk/decode: dropping delivery without session id", "payload_len", len(payload))
		recordChunk("invalid")
		return
	}
	s, ok := e.store.get(id)
	if !ok {
		e.log.Warn("talk/decode: dropping chunk for unknown session", "session", id)
		recordChunk("unknown_session")
		return
	}
	e.ingest(s, raw)
}

// FailDelivery reports a transport-level failure for an in-flight
// session. The driver observes it on its next tick.
func (e *Engine) FailDelivery(sessionID string, cause error) {
	s, ok := e.store.get(sessionID)
	if !ok {
		e.log.Warn("talk/decode: failure for unknown session", "session", sessionID, "err", cause)
		return
	}
	s.fail(cause)
}

// ingest normalizes one raw fragment and folds it into the session.
//
// The remote streams a JSON array one element at a time, so fragments
// arrive wrapped in framing bytes: a leading "[" on the first, a
// leading "," between elements, and a trailing "]" on the last. An
// empty fragment also means end-of-stream. Framing evidence marks the
// stream done even when the element between the framing bytes does
// not parse.
func (e *Engine) ingest(s *Session, raw string) {
	chunk := strings.TrimSpace(raw)
	if chunk == "" {
		s.markComplete()
		return
	}
	if chunk[0] == '[' || chunk[0] == ',' {
		chunk = strings.TrimSpace(chunk[1:])
	}
	if n := len(chunk); n > 0 && chunk[n-1] == ']' {
		s.markComplete()
		chunk = strings.TrimSpace(chunk[:n-1])
	}
	if chunk == "" {
		return
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(chunk), &resp); err != nil {
		// Truncated elements show up routinely mid-stream. Drop them;
		// the stream stays healthy and later chunks keep appending.
		e.log.Debug("talk/decode: discarding unparseable fragment", "session", s.id, "size", len(chunk))
		recordChunk("malformed")
		return
	}
	if resp.Error != nil {
		s.fail(fmt.Errorf("provider error %d (%s): %s", resp.Error.Code, resp.Error.Status, resp.Error.Message))
		recordChunk("provider_error")
		return
	}

	if call := firstFuncCall(&resp); call != nil {
		s.noteFuncCall(call.Name)
		s.appendDelta(argDelta(call))
	} else if text := textDelta(&resp); text != "" {
		s.noteContent()
		s.appendDelta(text)
	}
	recordChunk("ok")
}

// firstFuncCall returns the fragment's function call, if any. A
// function call takes precedence over text parts in the same fragment.
func firstFuncCall(resp *wireResponse) *wireFuncCall {
	if len(resp.Candidates) == 0 {
		return nil
	}
	for i := range resp.Candidates[0].Content.Parts {
		if fc := resp.Candidates[0].Content.Parts[i].FunctionCall; fc != nil {
			return fc
		}
	}
	return nil
}

func textDelta(resp *wireResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// argDelta serializes a function-call argument increment back to text.
// Callers reconstruct the full argument document by concatenating the
// increments in arrival order.
func argDelta(call *wireFuncCall) string {
	if len(call.Args) == 0 {
		return "{}"
	}
	return string(call.Args)
}
