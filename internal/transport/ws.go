package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sandia-minimega/boxrpc/pkg/rpclog"
)

// ws/wss framing follows phenix's broker.Client: writeMu serializes every
// write to the gorilla/websocket.Conn (only one goroutine may call its
// Write* methods at a time), ping/pong keeps NAT state alive, and inbound frames are
// delivered to whichever goroutine is blocked in Receive.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

func init() {
	Register("ws", Transport{Dial: dialWS, Listen: listenWS})
	Register("wss", Transport{Dial: dialWS, Listen: listenWS})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	wc := &wsConn{conn: c, done: make(chan struct{})}
	go wc.pingLoop()
	return wc
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Send(f Frame) error {
	if len(f.Fds) > 0 {
		return fmt.Errorf("ws: transport cannot pass file descriptors")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, f.Payload)
}

func (c *wsConn) Receive(ctx context.Context) (Frame, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		_, data, err := c.conn.ReadMessage()
		ch <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return Frame{}, r.err
		}
		return Frame{Payload: r.data}, nil
	}
}

func (c *wsConn) LocalAddr() string  { return c.conn.LocalAddr().String() }
func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}

func dialWS(ctx context.Context, u *url.URL) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	scheme := "ws"
	if u.Scheme == "wss" {
		scheme = "wss"
	}
	target := *u
	target.Scheme = scheme

	c, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", target.String(), err)
	}
	return newWSConn(c), nil
}

type wsListener struct {
	ln       net.Listener
	srv      *http.Server
	accepted chan *wsConn
	closed   chan struct{}
	closeOne sync.Once
}

func listenWS(ctx context.Context, u *url.URL) (Listener, error) {
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("ws: listen %s: %w", u.Host, err)
	}

	wl := &wsListener{
		ln:       ln,
		accepted: make(chan *wsConn, 16),
		closed:   make(chan struct{}),
	}

	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(wl.handleUpgrade)

	wl.srv = &http.Server{Handler: router}
	go func() {
		if err := wl.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			rpclog.Error("ws listener on %s: %v", u.Host, err)
		}
	}()

	return wl, nil
}

func (wl *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		rpclog.Error("ws upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	wc := newWSConn(c)
	select {
	case wl.accepted <- wc:
	case <-wl.closed:
		wc.Close()
	}
}

func (wl *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wl.closed:
		return nil, fmt.Errorf("ws: listener %s is closed", wl.Addr())
	case c := <-wl.accepted:
		return c, nil
	}
}

func (wl *wsListener) Addr() string {
	return wl.ln.Addr().String()
}

func (wl *wsListener) Close() error {
	wl.closeOne.Do(func() { close(wl.closed) })
	return wl.srv.Close()
}
