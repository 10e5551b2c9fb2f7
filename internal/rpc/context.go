package rpc

import (
	"sync"

	"github.com/sandia-minimega/boxrpc/internal/config"
	"github.com/sandia-minimega/boxrpc/pkg/object"
	"github.com/sandia-minimega/boxrpc/pkg/rpclog"
)

// Handler runs a registered method's body. args is the Object the caller
// sent (a Null Object if the caller passed nil args); cookie lets
// a streaming handler call Yield one or more times before returning and
// lets any handler poll IsAborted for cooperative cancellation. The
// returned Object becomes the terminal envelope's payload: "response" (or
// "end", if the handler yielded any fragments first), or the "error"
// envelope's payload if it's an Error object.
type Handler func(cookie *Cookie, args *object.Object) *object.Object

// MethodEntry is one registered method: its handler plus the metadata a
// debug listing or introspection call can surface.
type MethodEntry struct {
	Name        string
	Description string
	Schema      *object.Object // optional, may be nil
	Handler     Handler
}

// Context is the method table a Server (or a bare Connection acting as a
// peer) dispatches inbound calls against. Handlers run on a fixed worker
// pool sized by internal/config's Workers, the same decoupling ron's
// Server gets from running responseHandler and clientHandler as separate
// goroutines off the accept loop (internal/ron_ref/server.go) so one slow
// handler can't stall frame delivery for every other call on the
// Connection.
type Context struct {
	mu      sync.RWMutex
	methods map[string]MethodEntry

	work     chan func()
	workOnce sync.Once
	stop     chan struct{}
}

// NewContext allocates a Context and starts its worker pool.
func NewContext() *Context {
	c := &Context{
		methods: make(map[string]MethodEntry),
		work:    make(chan func(), config.FragmentQueueSize()),
		stop:    make(chan struct{}),
	}
	n := config.Workers()
	for i := 0; i < n; i++ {
		go c.worker()
	}
	return c
}

func (c *Context) worker() {
	for {
		select {
		case fn := <-c.work:
			fn()
		case <-c.stop:
			return
		}
	}
}

// dispatch queues fn to run on the worker pool. Called by Connection once
// per inbound "call" envelope. Returns false without running fn when the
// pool has already been stopped, so the caller can unwind its own
// bookkeeping for the dropped invocation.
func (c *Context) dispatch(fn func()) bool {
	select {
	case c.work <- fn:
		return true
	case <-c.stop:
		rpclog.Debug("rpc: context stopped, dropping queued handler invocation")
		return false
	}
}

// Stop shuts the worker pool down. Safe to call multiple times.
func (c *Context) Stop() {
	c.workOnce.Do(func() { close(c.stop) })
}

// RegisterMethod adds name to the method table. schema may be nil; it's
// purely descriptive and never validated against at call time (callers
// that want argument validation should check args themselves inside
// handler).
func (c *Context) RegisterMethod(name, description string, schema *object.Object, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[name] = MethodEntry{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler:     handler,
	}
}

// Unregister removes a method previously added with RegisterMethod.
func (c *Context) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.methods, name)
}

func (c *Context) lookup(name string) (MethodEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.methods[name]
	return e, ok
}

// Methods returns a snapshot of the registered method entries in no
// particular order; callers sort it if order matters -- used by
// Server.DebugTable.
func (c *Context) Methods() []MethodEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]MethodEntry, 0, len(c.methods))
	for _, e := range c.methods {
		out = append(out, e)
	}
	return out
}
