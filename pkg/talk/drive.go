package talk

import (
	"context"
	"fmt"
	"time"

	"github.com/mirubo/pixpal/pkg/bridge"
	"github.com/mirubo/pixpal/pkg/convo"
)

// runTurn sends one request for the session and polls until the
// stream finishes, fails, times out or the caller cancels. On success
// the sub-turn text is committed to the session's contexts; on any
// failure the contexts are left untouched, the session is removed and
// the failure is returned.
func (e *Engine) runTurn(ctx context.Context, s *Session, cfg *turnConfig) error {
	s.resetTurn()
	start := time.Now()

	body, err := e.buildRequestBody(s.Contexts(), cfg)
	if err != nil {
		e.finishTurn(s, KindError, start)
		return failTransport(err)
	}

	req := &bridge.Request{
		Target:     e.target,
		SessionID:  s.id,
		URL:        fmt.Sprintf("%s/models/%s:streamGenerateContent", e.endpoint, e.model),
		Credential: e.credential,
		Headers:    e.headers,
		Body:       body,
	}
	if len(req.Headers) > 0 {
		if hs, ok := e.bridge.(bridge.HeaderSupport); ok && !hs.SupportsHeaders() {
			e.log.Warn("talk/drive: bridge cannot carry custom headers, sending without", "session", s.id)
			req.Headers = nil
		}
	}

	if err := e.bridge.Send(ctx, req); err != nil {
		e.finishTurn(s, KindError, start)
		return failTransport(err)
	}

	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()

	// Chunks land asynchronously, so the driver cooperates by
	// suspending a tick between checks. Checked in strict order:
	// success, no-data timeout, bridge failure, cancellation.
	for {
		<-tick.C

		hasData, complete, failed, cause := s.state()
		if hasData && complete {
			break
		}
		if !hasData && time.Since(start) >= e.noDataTimeout {
			e.abort(s)
			e.finishTurn(s, KindTimeout, start)
			return failTimeout(e.noDataTimeout)
		}
		if failed {
			e.finishTurn(s, KindError, start)
			if cause == nil {
				cause = fmt.Errorf("delivery failed")
			}
			return failTransport(cause)
		}
		if err := ctx.Err(); err != nil {
			e.abort(s)
			e.finishTurn(s, KindError, start)
			return failCanceled(err)
		}
	}

	text, kind, _ := s.turnResult()
	if kind == KindContent {
		// The committed turn carries the text with directive markers
		// stripped so the model never sees its own directives echoed
		// back on the next request.
		s.appendContext(convo.NewText(convo.RoleModel, StripTags(text)))
	}
	recordTurn("ok", time.Since(start))
	return nil
}

// abort tells the bridge to tear down the in-flight transport call.
// The driver calls it at most once per sub-turn, on the timeout and
// cancellation paths only.
func (e *Engine) abort(s *Session) {
	if err := e.bridge.Abort(s.id); err != nil {
		e.log.Warn("talk/drive: abort failed", "session", s.id, "err", err)
	}
}

// finishTurn records a terminal failure classification and retires the
// session. Removal happens exactly once, here or at finalization,
// whichever comes first.
func (e *Engine) finishTurn(s *Session, kind Kind, start time.Time) {
	s.setTerminalKind(kind)
	e.store.remove(s.id)
	setActiveSessions(e.store.size())
	switch kind {
	case KindTimeout:
		recordTurn("timeout", time.Since(start))
	default:
		recordTurn("error", time.Since(start))
	}
}
