// Package transport provides a scheme-keyed registry of connection
// backends (WebSocket, TCP, Unix domain sockets, in-process loopback),
// mirroring the way internal/meshage and pkg/miniclient each wrap a raw
// net.Conn with their own framing but expose a uniform send/receive
// surface to the layer above them.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// Frame is one message boundary exchanged over a Conn: an opaque byte
// payload (a JSON-encoded RPC envelope, almost always) plus any file
// descriptors riding alongside it for transports that support passing
// them (currently only unix).
type Frame struct {
	Payload []byte
	Fds     []int
}

// Conn is the uniform interface every transport backend exposes once a
// connection is established, either by Dial or by a Listener's accept
// loop. It deliberately looks like a message-oriented socket rather than
// a byte stream: RPC connections never need partial reads.
type Conn interface {
	// Send writes one frame. Implementations must be safe to call from
	// multiple goroutines; most connection code still serializes sends
	// through a single writer goroutine, but the registry doesn't require
	// it.
	Send(Frame) error

	// Receive blocks until the next frame arrives, ctx is canceled, or the
	// connection closes.
	Receive(ctx context.Context) (Frame, error)

	// LocalAddr and RemoteAddr describe the two endpoints for logging.
	LocalAddr() string
	RemoteAddr() string

	io.Closer
}

// Listener accepts inbound Conns for a scheme that supports listening.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	io.Closer
}

// Transport is what a scheme registers: hooks to dial out or listen.
// Schemes that are dial-only (none currently) may leave Listen nil.
type Transport struct {
	Dial   func(ctx context.Context, u *url.URL) (Conn, error)
	Listen func(ctx context.Context, u *url.URL) (Listener, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Transport)
)

// Register installs a Transport under a URI scheme, e.g. "ws", "tcp",
// "unix". Re-registering a scheme replaces the previous entry, mainly to
// let tests swap in fakes.
func Register(scheme string, t Transport) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = t
}

func lookup(scheme string) (Transport, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[scheme]
	return t, ok
}

// Dial parses uri and dispatches to the registered transport for its
// scheme.
func Dial(ctx context.Context, uri string) (Conn, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing %q: %w", uri, err)
	}

	t, ok := lookup(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("transport: no transport registered for scheme %q", u.Scheme)
	}
	if t.Dial == nil {
		return nil, fmt.Errorf("transport: scheme %q does not support dialing", u.Scheme)
	}

	return t.Dial(ctx, u)
}

// Listen parses uri and dispatches to the registered transport's Listen
// hook.
func Listen(ctx context.Context, uri string) (Listener, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing %q: %w", uri, err)
	}

	t, ok := lookup(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("transport: no transport registered for scheme %q", u.Scheme)
	}
	if t.Listen == nil {
		return nil, fmt.Errorf("transport: scheme %q does not support listening", u.Scheme)
	}

	return t.Listen(ctx, u)
}
