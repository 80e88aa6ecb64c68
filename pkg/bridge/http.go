package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
)

// HTTP bridges to a real endpoint speaking the streamGenerateContent
// array protocol: it POSTs the request body and forwards each array
// element of the chunked response as one fragment, followed by the
// closing bracket as the end-of-stream marker.
type HTTP struct {
	client *http.Client
	log    *slog.Logger

	mu       sync.Mutex
	sink     Sink
	inflight map[string]context.CancelFunc
	closed   bool
}

var (
	_ Bridge        = (*HTTP)(nil)
	_ Binder        = (*HTTP)(nil)
	_ HeaderSupport = (*HTTP)(nil)
)

// HTTPOption configures the HTTP bridge.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the underlying client. The default client has no
// timeout; response bodies stream for the lifetime of a session.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTP) {
		b.client = c
	}
}

// WithHTTPLogger sets the bridge's logger.
func WithHTTPLogger(log *slog.Logger) HTTPOption {
	return func(b *HTTP) {
		b.log = log
	}
}

// NewHTTP creates an HTTP bridge.
func NewHTTP(opts ...HTTPOption) *HTTP {
	b := &HTTP{
		client:   &http.Client{},
		log:      slog.Default(),
		inflight: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind wires the engine's sink.
func (b *HTTP) Bind(sink Sink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// SupportsHeaders reports true; custom headers go out on the request.
func (b *HTTP) SupportsHeaders() bool {
	return true
}

func (b *HTTP) Send(ctx context.Context, req *Request) error {
	b.mu.Lock()
	sink, closed := b.sink, b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if sink == nil {
		return fmt.Errorf("bridge: http send before sink bound")
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("bridge: parse url: %w", err)
	}
	if req.Credential != "" {
		q := u.Query()
		q.Set("key", req.Credential)
		u.RawQuery = q.Encode()
	}

	// The stream must outlive the Send call's context; teardown
	// belongs to Abort alone.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	httpReq, err := http.NewRequestWithContext(sctx, http.MethodPost, u.String(), bytes.NewReader(req.Body))
	if err != nil {
		cancel()
		return fmt.Errorf("bridge: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		cancel()
		return fmt.Errorf("bridge: send: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		return statusError(resp)
	}

	b.track(req.SessionID, cancel)
	go b.readStream(sctx, req.SessionID, sink, resp.Body)
	return nil
}

// Abort cancels the in-flight call for the session. Fragments already
// queued behind the cancel fall into the engine's unknown-session
// discard path.
func (b *HTTP) Abort(sessionID string) error {
	b.mu.Lock()
	cancel := b.inflight[sessionID]
	delete(b.inflight, sessionID)
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close aborts every in-flight call.
func (b *HTTP) Close() error {
	b.mu.Lock()
	b.closed = true
	cancels := make([]context.CancelFunc, 0, len(b.inflight))
	for _, c := range b.inflight {
		cancels = append(cancels, c)
	}
	clear(b.inflight)
	b.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	return nil
}

func (b *HTTP) track(sessionID string, cancel context.CancelFunc) {
	b.mu.Lock()
	closed := b.closed
	if !closed {
		b.inflight[sessionID] = cancel
	}
	b.mu.Unlock()
	if closed {
		cancel()
	}
}

func (b *HTTP) untrack(sessionID string) {
	b.mu.Lock()
	delete(b.inflight, sessionID)
	b.mu.Unlock()
}

// readStream forwards the response body, element by element, until the
// array closes or the connection dies.
func (b *HTTP) readStream(ctx context.Context, sessionID string, sink Sink, body io.ReadCloser) {
	defer body.Close()
	defer b.untrack(sessionID)

	dec := json.NewDecoder(body)
	if _, err := dec.Token(); err != nil {
		b.failStream(ctx, sessionID, sink, fmt.Errorf("open stream array: %w", err))
		return
	}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			b.failStream(ctx, sessionID, sink, fmt.Errorf("read stream element: %w", err))
			return
		}
		sink.Deliver(sessionID + Separator + string(raw))
	}
	// More() goes false on a dead connection too; only a real closing
	// bracket may mark the stream complete.
	if _, err := dec.Token(); err != nil {
		b.failStream(ctx, sessionID, sink, fmt.Errorf("close stream array: %w", err))
		return
	}
	sink.Deliver(sessionID + Separator + "]")
}

func (b *HTTP) failStream(ctx context.Context, sessionID string, sink Sink, err error) {
	if ctx.Err() != nil {
		// Aborted locally; the engine has already moved on.
		return
	}
	b.log.Warn("bridge/http: stream failed", "session", sessionID, "err", err)
	sink.FailDelivery(sessionID, err)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	data = bytes.TrimSpace(data)
	data = bytes.TrimPrefix(data, []byte("["))
	var e struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("bridge: endpoint returned %d (%s): %s", resp.StatusCode, e.Error.Status, e.Error.Message)
	}
	return fmt.Errorf("bridge: endpoint returned %d", resp.StatusCode)
}
