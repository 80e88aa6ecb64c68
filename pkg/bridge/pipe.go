package bridge

import (
	"context"
	"sync"
)

// NewPipe creates a connected in-process pair: the engine-side bridge
// and a stand-in for the remote endpoint. Requests flow to the remote
// through a bounded queue; fragments flow back through another, so
// delivery order is preserved and producers get flow control.
func NewPipe() (*Pipe, *PipeRemote) {
	shared := &pipeShared{
		requests: NewQueue[*Request](32),
		events:   NewQueue[pipeEvent](256),
		aborts:   make(map[string]int),
	}
	return &Pipe{shared: shared}, &PipeRemote{shared: shared}
}

type pipeEvent struct {
	fail    bool
	session string
	payload string
	cause   error
}

// pipeShared is the state both ends see.
type pipeShared struct {
	requests *Queue[*Request]
	events   *Queue[pipeEvent]

	mu     sync.Mutex
	aborts map[string]int
	closed bool
}

func (sh *pipeShared) isClosed() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.closed
}

// Pipe is the engine side of the pair.
type Pipe struct {
	shared *pipeShared

	mu      sync.Mutex
	sink    Sink
	pumping bool
}

var (
	_ Bridge        = (*Pipe)(nil)
	_ Binder        = (*Pipe)(nil)
	_ HeaderSupport = (*Pipe)(nil)
)

// Bind wires the engine's sink and starts the delivery pump.
func (p *Pipe) Bind(sink Sink) {
	p.mu.Lock()
	p.sink = sink
	start := !p.pumping && sink != nil
	if start {
		p.pumping = true
	}
	p.mu.Unlock()
	if start {
		go p.pump()
	}
}

// pump drains the remote's fragments into the sink, one at a time, in
// order.
func (p *Pipe) pump() {
	for {
		ev, err := p.shared.events.Next()
		if err != nil {
			return
		}
		p.mu.Lock()
		sink := p.sink
		p.mu.Unlock()
		if sink == nil {
			continue
		}
		if ev.fail {
			sink.FailDelivery(ev.session, ev.cause)
			continue
		}
		sink.Deliver(ev.session + Separator + ev.payload)
	}
}

func (p *Pipe) Send(_ context.Context, req *Request) error {
	if p.shared.isClosed() {
		return ErrClosed
	}
	return p.shared.requests.Push(req)
}

func (p *Pipe) Abort(sessionID string) error {
	p.shared.mu.Lock()
	p.shared.aborts[sessionID]++
	p.shared.mu.Unlock()
	return nil
}

// SupportsHeaders reports true; the pipe carries requests verbatim.
func (p *Pipe) SupportsHeaders() bool {
	return true
}

// Close tears down both directions. Pending Sends fail with ErrClosed;
// buffered fragments still drain.
func (p *Pipe) Close() error {
	p.shared.mu.Lock()
	already := p.shared.closed
	p.shared.closed = true
	p.shared.mu.Unlock()
	if already {
		return nil
	}
	p.shared.requests.CloseWithError(ErrClosed)
	p.shared.events.CloseWrite()
	return nil
}

// PipeRemote plays the remote endpoint plus transport: tests and
// simulators receive the engine's requests from it and script the
// fragments flowing back.
type PipeRemote struct {
	shared *pipeShared
}

// NextRequest blocks until the engine sends a request, or returns
// ErrQueueDone once the pipe closes.
func (r *PipeRemote) NextRequest() (*Request, error) {
	return r.shared.requests.Next()
}

// Deliver queues one raw stream fragment for the session.
func (r *PipeRemote) Deliver(sessionID, fragment string) error {
	return r.shared.events.Push(pipeEvent{session: sessionID, payload: fragment})
}

// DeliverAll queues fragments in order.
func (r *PipeRemote) DeliverAll(sessionID string, fragments ...string) error {
	for _, f := range fragments {
		if err := r.Deliver(sessionID, f); err != nil {
			return err
		}
	}
	return nil
}

// Fail reports a transport failure for the session.
func (r *PipeRemote) Fail(sessionID string, cause error) error {
	return r.shared.events.Push(pipeEvent{fail: true, session: sessionID, cause: cause})
}

// Aborts reports how many aborts the engine issued for the session.
func (r *PipeRemote) Aborts(sessionID string) int {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	return r.shared.aborts[sessionID]
}

// Close is the remote hanging up.
func (r *PipeRemote) Close() error {
	r.shared.mu.Lock()
	already := r.shared.closed
	r.shared.closed = true
	r.shared.mu.Unlock()
	if already {
		return nil
	}
	r.shared.requests.CloseWithError(ErrClosed)
	r.shared.events.CloseWrite()
	return nil
}
