package rpc

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/sandia-minimega/boxrpc/internal/transport"
	"github.com/sandia-minimega/boxrpc/pkg/rpclog"
)

// Server listens for inbound Connections on one or more transport URIs and
// dispatches their calls against a shared Context, the way ron's Server
// fans a single client/command registry out across however many listeners
// (TCP, Unix, serial) happen to be active (internal/ron_ref/server.go).
type Server struct {
	ctx *Context

	mu     sync.Mutex
	lns    []transport.Listener
	conns  map[*Connection]struct{}
	accept AcceptFunc

	wg sync.WaitGroup
}

// AcceptFunc vets an inbound transport connection before the Server wraps
// it in a Connection. Returning false closes the connection immediately.
// This is the single point where application code can refuse a peer.
type AcceptFunc func(conn transport.Conn) bool

// NewServer builds a Server dispatching against ctx. Pass a fresh
// NewContext() if the caller hasn't built one already.
func NewServer(ctx *Context) *Server {
	return &Server{
		ctx:   ctx,
		conns: make(map[*Connection]struct{}),
	}
}

// Context returns the Server's method table, for registering methods
// before or after Listen is called.
func (s *Server) Context() *Context { return s.ctx }

// SetAcceptFunc installs fn as the Server's accept filter. Pass nil to
// accept everything (the default).
func (s *Server) SetAcceptFunc(fn AcceptFunc) {
	s.mu.Lock()
	s.accept = fn
	s.mu.Unlock()
}

// Listen starts accepting Connections on uri. It can be called more than
// once to serve several transports (e.g. a tcp:// and a unix:// listener)
// out of the same Server.
func (s *Server) Listen(parent context.Context, uri string) error {
	ln, err := transport.Listen(parent, uri)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", uri)
	}

	s.mu.Lock()
	s.lns = append(s.lns, ln)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serve(parent, ln)
	return nil
}

func (s *Server) serve(parent context.Context, ln transport.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept(parent)
		if err != nil {
			rpclog.Debug("rpc: listener %s stopped accepting: %v", ln.Addr(), err)
			return
		}

		s.mu.Lock()
		accept := s.accept
		s.mu.Unlock()
		if accept != nil && !accept(conn) {
			rpclog.Info("rpc: refused connection from %s", conn.RemoteAddr())
			conn.Close()
			continue
		}

		c := newAccepted(conn, s.ctx)

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		go s.reap(c)
	}
}

// reap removes a Connection from the active set once it closes, the
// bookkeeping half of ron's clientReaper (internal/ron_ref/server.go),
// generalized from a heartbeat timeout sweep to "the readLoop noticed the
// transport died".
func (s *Server) reap(c *Connection) {
	<-c.quit

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Connections returns a snapshot of the currently active Connections.
func (s *Server) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Close stops every listener and closes every active Connection,
// resolving their in-flight Calls to connection-closed errors.
func (s *Server) Close() error {
	s.mu.Lock()
	lns := s.lns
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var firstErr error
	for _, ln := range lns {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range conns {
		c.Close()
	}

	s.wg.Wait()
	s.ctx.Stop()
	return firstErr
}

// DebugTable writes a human-readable table of registered methods to w,
// the way phenix's util.PrintTableOfConfigs renders an ASCII table with
// olekukonko/tablewriter (phenix_ref/util/printer.go).
func (s *Server) DebugTable(w io.Writer) {
	methods := s.ctx.Methods()
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Description"})

	for _, m := range methods {
		table.Append([]string{m.Name, m.Description})
	}

	table.Render()
}
