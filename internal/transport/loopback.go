package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
)

// loopback is an in-process transport built on net.Pipe, the same
// mechanism minitunnel's own tests use to exercise a Tunnel without a real
// socket. It's registered under the "loopback" scheme and is mainly useful
// for tests and same-process client/server wiring: Dial("loopback://name")
// connects to whatever previously called Listen("loopback://name").
func init() {
	Register("loopback", Transport{Dial: dialLoopback, Listen: listenLoopback})
}

type loopbackListener struct {
	name     string
	accepted chan Conn
	closed   chan struct{}
	closeOne sync.Once
}

var (
	loopbackMu   sync.Mutex
	loopbackRegs = make(map[string]*loopbackListener)
)

func listenLoopback(ctx context.Context, u *url.URL) (Listener, error) {
	name := loopbackName(u)

	loopbackMu.Lock()
	defer loopbackMu.Unlock()

	if _, ok := loopbackRegs[name]; ok {
		return nil, fmt.Errorf("loopback: already listening on %q", name)
	}

	l := &loopbackListener{
		name:     name,
		accepted: make(chan Conn, 16),
		closed:   make(chan struct{}),
	}
	loopbackRegs[name] = l
	return l, nil
}

func dialLoopback(ctx context.Context, u *url.URL) (Conn, error) {
	name := loopbackName(u)

	loopbackMu.Lock()
	l, ok := loopbackRegs[name]
	loopbackMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("loopback: nothing listening on %q", name)
	}

	client, server := net.Pipe()

	select {
	case <-l.closed:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("loopback: listener %q is closed", name)
	case l.accepted <- newStreamConn(server):
		return newStreamConn(client), nil
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	}
}

func loopbackName(u *url.URL) string {
	if u.Host != "" {
		return u.Host
	}
	return u.Opaque
}

func (l *loopbackListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, fmt.Errorf("loopback: listener %q is closed", l.name)
	case c := <-l.accepted:
		return c, nil
	}
}

func (l *loopbackListener) Addr() string { return "loopback://" + l.name }

func (l *loopbackListener) Close() error {
	l.closeOne.Do(func() {
		close(l.closed)

		loopbackMu.Lock()
		delete(loopbackRegs, l.name)
		loopbackMu.Unlock()
	})
	return nil
}
