// Package talk implements the streaming conversation engine: it issues
// generation requests through a transport bridge it does not control,
// reassembles complete responses from ordered JSON fragments delivered
// out-of-band, classifies them as text or function calls, and drives
// directive continuation turns such as a one-shot camera capture.
//
// The engine never talks to the network itself. A bridge.Bridge sends
// requests and aborts them; chunks come back through Deliver, tagged
// with the session id the engine assigned. The driver reconciles the
// two sides by polling session state on a short tick.
package talk

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirubo/pixpal/pkg/bridge"
	"github.com/mirubo/pixpal/pkg/convo"
)

// TagVision is the directive asking for a camera capture continuation.
const TagVision = "vision"

const (
	defaultEndpoint      = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel         = "gemini-2.0-flash"
	defaultNoDataTimeout = 15 * time.Second
	defaultPollInterval  = 50 * time.Millisecond
)

var _ bridge.Sink = (*Engine)(nil)

// Capturer takes a still image for a vision continuation turn. source
// is the directive payload, a hint such as "front". A nil blob means
// the capture produced nothing; errors are treated the same way and
// never fail the turn.
type Capturer interface {
	Capture(ctx context.Context, source string) (*convo.Blob, error)
}

// CaptureFunc adapts a function to the Capturer interface.
type CaptureFunc func(ctx context.Context, source string) (*convo.Blob, error)

func (f CaptureFunc) Capture(ctx context.Context, source string) (*convo.Blob, error) {
	return f(ctx, source)
}

// TagHandler observes the directive tags of a finished sub-turn. It is
// notified whenever at least one tag is present, before any
// continuation runs; its effects never feed back into the turn.
type TagHandler func(tags map[string]string, s *Session)

// Archiver persists finalized turns. *history.Archive satisfies it.
type Archiver interface {
	AppendTurns(ctx context.Context, conversation string, msgs []*convo.Message) error
}

// Engine reconstructs logical responses from chunked streams, one
// session per in-flight request. Engines are safe for concurrent use.
type Engine struct {
	bridge bridge.Bridge
	store  *sessionStore
	log    *slog.Logger

	model        string
	endpoint     string
	credential   string
	target       string
	headers      map[string]string
	systemPrompt string
	genParams    *GenerationParams
	customParams map[string]any
	tools        []*FuncTool
	toolSupport  bool

	capture Capturer
	onTags  TagHandler
	archive Archiver

	noDataTimeout time.Duration
	pollInterval  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// New creates an engine speaking through b. Bridges implementing
// bridge.Binder get the engine wired in as their delivery sink.
func New(b bridge.Bridge, opts ...Option) *Engine {
	e := &Engine{
		bridge:        b,
		store:         newSessionStore(),
		log:           slog.Default(),
		model:         defaultModel,
		endpoint:      defaultEndpoint,
		toolSupport:   true,
		noDataTimeout: defaultNoDataTimeout,
		pollInterval:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if binder, ok := b.(bridge.Binder); ok {
		binder.Bind(e)
	}
	return e
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithModel sets the model name used to compose the request URL.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithEndpoint sets the API base URL.
func WithEndpoint(url string) Option {
	return func(e *Engine) {
		e.endpoint = url
	}
}

// WithCredential sets the API credential passed to the bridge.
func WithCredential(credential string) Option {
	return func(e *Engine) {
		e.credential = credential
	}
}

// WithTarget sets the opaque routing identifier some bridges need to
// address their transport object.
func WithTarget(target string) Option {
	return func(e *Engine) {
		e.target = target
	}
}

// WithHeaders sets custom request headers. Bridges that cannot carry
// them log a warning and send without.
func WithHeaders(headers map[string]string) Option {
	return func(e *Engine) {
		e.headers = headers
	}
}

// WithSystemPrompt sets the system instruction sent on every turn.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithGenerationParams sets the sampling parameters sent on each turn.
func WithGenerationParams(p *GenerationParams) Option {
	return func(e *Engine) {
		e.genParams = p
	}
}

// WithCustomParams merges extra keys into the top level of every
// request body.
func WithCustomParams(params map[string]any) Option {
	return func(e *Engine) {
		e.customParams = params
	}
}

// WithTools registers the functions the model may call.
func WithTools(tools ...*FuncTool) Option {
	return func(e *Engine) {
		e.tools = append(e.tools, tools...)
	}
}

// WithToolSupport declares whether the model variant accepts tool
// declarations. When false they are omitted from every request even if
// tools are registered.
func WithToolSupport(enabled bool) Option {
	return func(e *Engine) {
		e.toolSupport = enabled
	}
}

// WithCapturer sets the camera collaborator for vision continuations.
func WithCapturer(c Capturer) Option {
	return func(e *Engine) {
		e.capture = c
	}
}

// WithTagHandler sets the directive tag observer.
func WithTagHandler(h TagHandler) Option {
	return func(e *Engine) {
		e.onTags = h
	}
}

// WithArchive persists finished exchanges of conversations that carry
// an id (see WithConversation): the triggering user turn plus every
// turn committed during the session.
func WithArchive(a Archiver) Option {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithNoDataTimeout bounds how long a sub-turn may stay silent before
// it is aborted. Measured from turn start; a stream that has begun
// emitting is bounded only by cancellation.
func WithNoDataTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.noDataTimeout = d
		}
	}
}

// WithPollInterval sets the driver's tick.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// ActiveSessions reports how many requests are currently in flight.
func (e *Engine) ActiveSessions() int {
	return e.store.size()
}
