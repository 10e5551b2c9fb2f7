// Package boxrpc is the public facade over internal/rpc and
// internal/transport: a peer dials or listens on a URI (ws://, tcp://,
// unix://, loopback://), registers or calls named methods that carry
// pkg/object values as arguments and results, the way pkg/miniclient
// wraps a raw unix socket dial behind a small Conn type instead of
// exposing net.Conn directly (pkg/miniclient_ref/client.go).
package boxrpc

import (
	"context"
	"io"
	"time"

	"github.com/sandia-minimega/boxrpc/internal/rpc"
	"github.com/sandia-minimega/boxrpc/internal/transport"
	"github.com/sandia-minimega/boxrpc/pkg/object"
)

// Re-exported so callers never need to import internal/rpc directly --
// Go's internal/ visibility rule would block them from doing so anyway
// once this module is imported from outside its own tree.
type (
	Call   = rpc.Call
	Status = rpc.Status
	State  = rpc.State
	Cookie = rpc.Cookie
)

const (
	StatusPending    = rpc.StatusPending
	StatusInProgress = rpc.StatusInProgress
	StatusDone       = rpc.StatusDone
	StatusError      = rpc.StatusError
	StatusAborted    = rpc.StatusAborted
)

const (
	StateInit       = rpc.StateInit
	StateConnecting = rpc.StateConnecting
	StateOpen       = rpc.StateOpen
	StateClosing    = rpc.StateClosing
	StateClosed     = rpc.StateClosed
	StateError      = rpc.StateError
)

// Handler is the body of a registered method: it receives a Cookie for
// yielding streamed fragments and polling for abort, plus the caller's
// args (a Null Object if the caller passed nil), and returns the Object that becomes the call's
// terminal result, or an Error Object to fail the call.
type Handler = rpc.Handler

// Context is a method table: build one with NewContext, register methods
// on it, then either hand it to Listen to serve it, or to Connect to let
// the peer on the other end call back into it too.
type Context struct {
	inner *rpc.Context
}

// NewContext allocates an empty method table with its handler worker pool
// already running.
func NewContext() *Context {
	return &Context{inner: rpc.NewContext()}
}

// RegisterMethod adds name to the table. schema is optional and purely
// descriptive.
func (c *Context) RegisterMethod(name, description string, schema *object.Object, handler Handler) {
	c.inner.RegisterMethod(name, description, schema, handler)
}

// Unregister removes a previously registered method.
func (c *Context) Unregister(name string) {
	c.inner.Unregister(name)
}

// Connection is one peer-to-peer link: the client side of a Call, and
// optionally the server side if it was built with a Context of its own
// (a peer can call back into a Dial'd Connection just as a Listen'd one
// can call out).
type Connection struct {
	inner *rpc.Connection
}

// Connect dials uri (ws://, wss://, tcp://, unix://, or loopback://) and
// returns an open Connection. ctx may be nil for a pure caller that never
// serves inbound calls.
func Connect(parent context.Context, uri string, ctx *Context) (*Connection, error) {
	var inner *rpc.Context
	if ctx != nil {
		inner = ctx.inner
	}

	conn, err := rpc.Dial(parent, uri, inner)
	if err != nil {
		return nil, err
	}
	return &Connection{inner: conn}, nil
}

// State reports the Connection's lifecycle stage.
func (c *Connection) State() State { return c.inner.State() }

// CallAsync starts a method invocation without blocking for its result.
func (c *Connection) CallAsync(method string, args *object.Object) (*Call, error) {
	return c.inner.CallAsync(method, args)
}

// CallSync starts a method invocation and blocks for its result (or the
// given timeout; timeout <= 0 uses the package default from
// internal/config). The returned Object is always non-nil: success or
// failure alike is an Object the caller owns and must Release.
func (c *Connection) CallSync(method string, args *object.Object, timeout time.Duration) *object.Object {
	return c.inner.CallSync(method, args, timeout)
}

// Close shuts the Connection down, resolving every in-flight Call to a
// connection-closed Error.
func (c *Connection) Close() error { return c.inner.Close() }

// Server accepts Connections on one or more URIs and dispatches their
// calls against a shared Context.
type Server struct {
	inner *rpc.Server
}

// SetAcceptFunc installs fn as the Server's accept filter: it is called
// with the remote address of every inbound connection before any RPC state
// is built for it, and returning false refuses the peer. Pass nil to
// accept everything (the default).
func (s *Server) SetAcceptFunc(fn func(remoteAddr string) bool) {
	if fn == nil {
		s.inner.SetAcceptFunc(nil)
		return
	}
	s.inner.SetAcceptFunc(func(conn transport.Conn) bool {
		return fn(conn.RemoteAddr())
	})
}

// Listen starts a Server dispatching against ctx, accepting Connections
// on uri. Call Listen again on the returned Server to add more URIs.
func Listen(parent context.Context, uri string, ctx *Context) (*Server, error) {
	s := &Server{inner: rpc.NewServer(ctx.inner)}
	if err := s.inner.Listen(parent, uri); err != nil {
		return nil, err
	}
	return s, nil
}

// Listen adds another URI for an already-running Server to accept
// Connections on.
func (s *Server) Listen(parent context.Context, uri string) error {
	return s.inner.Listen(parent, uri)
}

// Connections returns the Server's currently active Connections.
func (s *Server) Connections() []*Connection {
	inner := s.inner.Connections()
	out := make([]*Connection, len(inner))
	for i, c := range inner {
		out[i] = &Connection{inner: c}
	}
	return out
}

// DebugTable writes a table of the Server's registered methods to w.
func (s *Server) DebugTable(w io.Writer) { s.inner.DebugTable(w) }

// Close stops the Server's listeners and closes every active Connection.
func (s *Server) Close() error { return s.inner.Close() }
