// Package bridge defines the transport boundary of the conversation
// engine. The engine never owns a network connection: it hands fully
// serialized requests to a Bridge and receives raw stream fragments
// back through a Sink, tagged with the session id it assigned. The
// package ships two bridges, an in-process pipe pair for tests and
// simulators, and an HTTP client for real endpoints.
package bridge

import (
	"context"
	"errors"
)

// Separator joins the session id and the raw fragment on the delivery
// wire. Fragments may contain the separator themselves; receivers must
// split on the first occurrence only.
const Separator = "|"

// ErrClosed is returned by operations on a closed bridge.
var ErrClosed = errors.New("bridge: closed")

// Request is one outbound generation call, fully composed by the
// engine. The bridge treats the body as opaque bytes.
type Request struct {
	// Target is an opaque routing identifier for bridges that multiplex
	// several transport objects. Bridges that don't ignore it.
	Target string

	// SessionID keys the delivery of this request's stream fragments.
	SessionID string

	// URL is the full endpoint URL, without the credential.
	URL string

	// Credential authenticates the call. How it is attached is
	// transport-specific.
	Credential string

	// Headers are optional custom request headers. Bridges that cannot
	// carry them report it via SupportsHeaders.
	Headers map[string]string

	// Body is the single serialized JSON request document.
	Body []byte
}

// Bridge issues generation requests and aborts them. Send returns once
// the request is underway; stream fragments arrive later through the
// Sink, never as a return value.
type Bridge interface {
	Send(ctx context.Context, req *Request) error

	// Abort tears down the in-flight call for a session. Aborting an
	// unknown or already-finished session is a no-op.
	Abort(sessionID string) error
}

// Sink receives the inbound side of the bridge. The engine implements
// it.
type Sink interface {
	// Deliver hands over one raw stream fragment as
	// sessionID + Separator + fragment.
	Deliver(payload string)

	// FailDelivery reports that a session's stream failed and no
	// further fragments will arrive.
	FailDelivery(sessionID string, cause error)
}

// Binder is implemented by bridges that need the engine's sink wired
// in after construction. The engine binds itself when it is created.
type Binder interface {
	Bind(sink Sink)
}

// HeaderSupport is implemented by bridges that can declare whether
// per-request custom headers survive their transport.
type HeaderSupport interface {
	SupportsHeaders() bool
}
