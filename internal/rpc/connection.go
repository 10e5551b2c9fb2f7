package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sandia-minimega/boxrpc/internal/config"
	"github.com/sandia-minimega/boxrpc/internal/transport"
	"github.com/sandia-minimega/boxrpc/pkg/object"
	"github.com/sandia-minimega/boxrpc/pkg/rpclog"
)

// State is a Connection's lifecycle stage.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Connection is one peer-to-peer RPC link: a transport.Conn plus the call
// registry and dispatch loop layered on top of it. It is built the same
// way minitunnel's Tunnel wraps a raw transport with a mux goroutine and a
// chans-style registry (internal/minitunnel_ref/mux.go), generalized from
// minitunnel's integer transaction ids to this package's uuid call ids and
// from a single message type to the full envelope name set.
type Connection struct {
	conn transport.Conn
	ctx  *Context // method table for inbound calls; nil for a pure client

	stateMu sync.Mutex
	state   State

	callsMu sync.Mutex
	calls   map[string]*Call

	// serverMu guards serverCalls, the set of inbound calls this Connection
	// is currently servicing as the server side. Tracked separately from
	// calls (which holds calls this Connection initiated) so a duplicate
	// incoming call id and an abort envelope for an in-progress handler can
	// both be resolved without conflating caller-side and callee-side state.
	serverMu    sync.Mutex
	serverCalls map[string]*Cookie

	sendCh chan *object.Object
	quit   chan struct{}
	quitOnce sync.Once

	wg sync.WaitGroup
}

// Dial opens a Connection to uri using whichever transport scheme the URI
// names (ws, wss, tcp, unix, loopback). ctx may be nil for a client that
// only ever initiates calls and never serves any.
func Dial(parent context.Context, uri string, ctx *Context) (*Connection, error) {
	c := &Connection{
		ctx:         ctx,
		state:       StateConnecting,
		calls:       make(map[string]*Call),
		serverCalls: make(map[string]*Cookie),
		sendCh:      make(chan *object.Object, config.FragmentQueueSize()),
		quit:        make(chan struct{}),
	}

	conn, err := transport.Dial(parent, uri)
	if err != nil {
		c.state = StateError
		return nil, errors.Wrapf(err, "dialing %s", uri)
	}

	c.conn = conn
	c.setState(StateOpen)
	c.start()
	return c, nil
}

// newAccepted wraps an already-established transport.Conn (from a
// Listener's Accept) into an open Connection, for server-side use.
func newAccepted(conn transport.Conn, ctx *Context) *Connection {
	c := &Connection{
		conn:        conn,
		ctx:         ctx,
		state:       StateOpen,
		calls:       make(map[string]*Call),
		serverCalls: make(map[string]*Cookie),
		sendCh:      make(chan *object.Object, config.FragmentQueueSize()),
		quit:        make(chan struct{}),
	}
	c.start()
	return c
}

func (c *Connection) start() {
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
}

func (c *Connection) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// State returns the Connection's current lifecycle stage.
func (c *Connection) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// CallAsync starts a method invocation and returns immediately with a Call
// the caller can Wait on. It fails fast with a non-nil error if the
// Connection isn't open; CallSync turns that error into a connection-closed
// Error Object.
func (c *Connection) CallAsync(method string, args *object.Object) (*Call, error) {
	if c.State() != StateOpen {
		return nil, fmt.Errorf("rpc: connection is %s, not open", c.State())
	}

	call := newCall(c, method)

	c.callsMu.Lock()
	if _, exists := c.calls[call.ID]; exists {
		c.callsMu.Unlock()
		// uuid collision is not realistically reachable; treat it as a
		// protocol-level bug rather than silently overwriting the call.
		return nil, errors.New("rpc: call id collision")
	}
	c.calls[call.ID] = call
	c.callsMu.Unlock()

	env := Envelope{
		Namespace: NamespaceRPC,
		Name:      NameCall,
		ID:        call.ID,
		Args:      callArgs(method, args),
	}
	obj := env.ToObject()
	object.Release(env.Args)

	select {
	case c.sendCh <- obj:
	case <-c.quit:
		object.Release(obj)
		c.failCall(call.ID, object.NewKindError(object.KindConnectionClosed, "connection closed"))
		return call, nil
	}

	return call, nil
}

// CallSync is CallAsync followed by a bounded Wait, returning the Call's
// Result directly. timeout <= 0 uses internal/config's CallTimeout.
func (c *Connection) CallSync(method string, args *object.Object, timeout time.Duration) *object.Object {
	call, err := c.CallAsync(method, args)
	if err != nil {
		errObj := object.NewKindError(object.KindConnectionClosed, err.Error())
		object.SetLastError(errObj)
		return errObj
	}

	if timeout <= 0 {
		timeout = config.CallTimeout()
	}

	call.Wait(timeout)
	result := call.Result()

	c.callsMu.Lock()
	delete(c.calls, call.ID)
	c.callsMu.Unlock()
	call.release()

	if result != nil && result.Type() == object.Error {
		object.SetLastError(result)
	}
	return result
}

// sendFragment queues one fragment envelope for a streaming call being
// serviced by this Connection's Context. Blocking on sendCh when it's full
// is the back-pressure mechanism: it suspends the handler goroutine (which
// runs on the worker pool, never the I/O loop) until the write loop has
// drained room, or the connection closes.
func (c *Connection) sendFragment(callID string, v *object.Object) {
	env := Envelope{Namespace: NamespaceRPC, Name: NameFragment, ID: callID, Args: object.Retain(v)}
	obj := env.ToObject()
	object.Release(env.Args)
	select {
	case c.sendCh <- obj:
	case <-c.quit:
		object.Release(obj)
	}
}

func (c *Connection) sendAbort(callID string) {
	env := Envelope{Namespace: NamespaceRPC, Name: NameAbort, ID: callID}
	obj := env.ToObject()
	select {
	case c.sendCh <- obj:
	case <-c.quit:
		object.Release(obj)
	}
}

// sendEnvelope packs and queues env for the write loop. It takes ownership
// of env.Args: ToObject retains its own reference into the wire Dictionary,
// so the caller's reference is released here once that copy exists.
func (c *Connection) sendEnvelope(env Envelope) {
	obj := env.ToObject()
	object.Release(env.Args)
	select {
	case c.sendCh <- obj:
	case <-c.quit:
		object.Release(obj)
	}
}

// Close begins an orderly shutdown: it stops accepting new sends, closes
// the underlying transport, and resolves every Call still pending to a
// connection-closed Error so no caller blocks on Wait forever.
func (c *Connection) Close() error {
	c.setState(StateClosing)

	var err error
	c.quitOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close()
	})

	c.wg.Wait()
	c.setState(StateClosed)
	c.failAllCalls()
	return err
}

func (c *Connection) failCall(id string, errObj *object.Object) {
	c.callsMu.Lock()
	call, ok := c.calls[id]
	if ok {
		delete(c.calls, id)
	}
	c.callsMu.Unlock()

	if ok {
		call.transitionOnce(StatusError, errObj)
	}
	object.Release(errObj)
}

func (c *Connection) failAllCalls() {
	c.callsMu.Lock()
	calls := c.calls
	c.calls = make(map[string]*Call)
	c.callsMu.Unlock()

	for _, call := range calls {
		errObj := object.NewKindError(object.KindConnectionClosed, "connection closed")
		call.transitionOnce(StatusError, errObj)
		object.Release(errObj)
	}
}

func (c *Connection) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case obj := <-c.sendCh:
			payload, err := object.ToJSON(obj)
			object.Release(obj)
			if err != nil {
				rpclog.Error("rpc: encoding envelope: %v", err)
				continue
			}
			if err := c.conn.Send(transport.Frame{Payload: payload}); err != nil {
				rpclog.Debug("rpc: send failed, closing connection: %v", err)
				go c.Close()
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Connection) readLoop() {
	defer c.wg.Done()

	ctx := context.Background()
	for {
		f, err := c.conn.Receive(ctx)
		if err != nil {
			rpclog.Debug("rpc: receive failed, closing connection: %v", err)
			go c.Close()
			return
		}

		obj, err := object.FromJSON(f.Payload)
		if err != nil {
			rpclog.Warn("rpc: malformed frame: %v", err)
			continue
		}

		env, ok := EnvelopeFromObject(obj)
		object.Release(obj)
		if !ok {
			rpclog.Warn("rpc: malformed envelope")
			continue
		}

		c.dispatch(env)

		select {
		case <-c.quit:
			return
		default:
		}
	}
}

func (c *Connection) dispatch(env Envelope) {
	defer func() {
		if env.Args != nil {
			object.Release(env.Args)
		}
	}()

	if env.Namespace != NamespaceRPC {
		// Anything outside the rpc namespace is not this package's
		// business beyond having routed it here; it's dropped rather than
		// interpreted.
		return
	}

	switch env.Name {
	case NameCall:
		c.handleIncomingCall(env)
	case NameResponse:
		c.completeCall(env.ID, env.Args, StatusDone)
	case NameFragment:
		c.fragmentCall(env.ID, env.Args)
	case NameEnd:
		c.completeCall(env.ID, nil, StatusDone)
	case NameError:
		c.completeCall(env.ID, env.Args, StatusError)
	case NameAbort:
		// A peer may be asking us (as client) to cancel a Call we sent
		// ourselves mirrored back for bookkeeping, or (as server) to cancel
		// a handler we're currently running on its behalf. Check both.
		c.callsMu.Lock()
		call, callOK := c.calls[env.ID]
		if callOK {
			delete(c.calls, env.ID)
		}
		c.callsMu.Unlock()
		if callOK {
			call.transitionOnce(StatusAborted, nil)
		}

		c.serverMu.Lock()
		cookie, cookieOK := c.serverCalls[env.ID]
		c.serverMu.Unlock()
		if cookieOK {
			cookie.markAborted()
		}
	case NameEvents:
		// Reserved for a pub/sub layer this package doesn't implement.
	default:
		c.sendEnvelope(Envelope{
			Namespace: NamespaceRPC,
			Name:      NameError,
			ID:        env.ID,
			Args:      object.NewKindError(object.KindProtocol, "unknown envelope name "+env.Name),
		})
	}
}

func (c *Connection) completeCall(id string, result *object.Object, status Status) {
	c.callsMu.Lock()
	call, ok := c.calls[id]
	if ok {
		delete(c.calls, id)
	}
	c.callsMu.Unlock()

	if !ok {
		return
	}
	call.transitionOnce(status, result)
}

func (c *Connection) fragmentCall(id string, payload *object.Object) {
	c.callsMu.Lock()
	call, ok := c.calls[id]
	c.callsMu.Unlock()

	if !ok || payload == nil {
		return
	}
	call.appendFragment(payload)
}

// methodNotFound builds the error payload for a call naming no registered
// method: the method name travels in extra as its own field, not just
// folded into the message text.
func methodNotFound(method string) *object.Object {
	name := object.NewString(method)
	errObj := object.NewError(int(object.KindMethodNotFound), "method not found: "+method, name, nil)
	object.Release(name)
	return errObj
}

// handleIncomingCall looks up the requested method in the Connection's
// Context and runs it, replying with a response or error envelope. It's
// the server side of the protocol; a Connection built without a Context
// replies method-not-found to everything.
func (c *Connection) handleIncomingCall(env Envelope) {
	method := ""
	var args *object.Object
	if env.Args != nil && env.Args.Type() == object.Dictionary {
		if m := object.DictGet(env.Args, "method"); m != nil && m.Type() == object.String {
			method = object.GetString(m)
		}
		// Retained: env.Args is released by dispatch's caller once this
		// function returns, but the handler runs later on the worker
		// pool and needs args to still be alive then.
		args = object.Retain(object.DictGet(env.Args, "args"))
	}

	if c.ctx == nil {
		c.sendEnvelope(Envelope{
			Namespace: NamespaceRPC,
			Name:      NameError,
			ID:        env.ID,
			Args:      methodNotFound(method),
		})
		return
	}

	entry, ok := c.ctx.lookup(method)
	if !ok {
		object.Release(args)
		c.sendEnvelope(Envelope{
			Namespace: NamespaceRPC,
			Name:      NameError,
			ID:        env.ID,
			Args:      methodNotFound(method),
		})
		return
	}

	cookie := &Cookie{id: env.ID, conn: c}
	c.serverMu.Lock()
	if _, dup := c.serverCalls[env.ID]; dup {
		c.serverMu.Unlock()
		object.Release(args)
		c.sendEnvelope(Envelope{
			Namespace: NamespaceRPC,
			Name:      NameError,
			ID:        env.ID,
			Args:      object.NewKindError(object.KindProtocol, "duplicate call id "+env.ID),
		})
		return
	}
	c.serverCalls[env.ID] = cookie
	c.serverMu.Unlock()

	c.wg.Add(1)
	queued := c.ctx.dispatch(func() {
		defer c.wg.Done()
		defer object.Release(args)
		defer func() {
			c.serverMu.Lock()
			delete(c.serverCalls, env.ID)
			c.serverMu.Unlock()
		}()

		result := entry.Handler(cookie, args)

		if cookie.IsAborted() {
			// The client already moved its Call to Aborted locally; no
			// terminal envelope is expected back.
			object.Release(result)
			return
		}
		if result != nil && result.Type() == object.Error {
			c.sendEnvelope(Envelope{Namespace: NamespaceRPC, Name: NameError, ID: env.ID, Args: result})
			return
		}
		if cookie.didYield() {
			// The client already has every fragment; "end" just closes out
			// the sequence. The handler's return value rides along as its
			// Args, but the client side ignores an end envelope's payload.
			c.sendEnvelope(Envelope{Namespace: NamespaceRPC, Name: NameEnd, ID: env.ID, Args: result})
			return
		}
		c.sendEnvelope(Envelope{Namespace: NamespaceRPC, Name: NameResponse, ID: env.ID, Args: result})
	})
	if !queued {
		c.wg.Done()
		object.Release(args)
		c.serverMu.Lock()
		delete(c.serverCalls, env.ID)
		c.serverMu.Unlock()
	}
}
