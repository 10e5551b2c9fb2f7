package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
)

// tcp framing wraps a plain net.Conn the way internal/meshage wraps one
// with a gob.Encoder/gob.Decoder pair, except the wire payload here is a
// JSON-encoded envelope rather than a gob value, so each frame needs an
// explicit length prefix: gob self-delimits on the wire, JSON does not.
func init() {
	Register("tcp", Transport{Dial: dialTCP, Listen: listenTCP})
}

const maxFrameSize = 64 << 20 // 64MiB, generous for any single RPC envelope

type streamConn struct {
	conn net.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newStreamConn(c net.Conn) *streamConn {
	return &streamConn{conn: c}
}

func (c *streamConn) Send(f Frame) error {
	if len(f.Fds) > 0 {
		return fmt.Errorf("tcp: transport cannot pass file descriptors")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(f.Payload)))

	if _, err := c.conn.Write(header[:]); err != nil {
		return err
	}
	_, err := c.conn.Write(f.Payload)
	return err
}

func (c *streamConn) Receive(ctx context.Context) (Frame, error) {
	type result struct {
		f   Frame
		err error
	}
	ch := make(chan result, 1)

	go func() {
		c.readMu.Lock()
		defer c.readMu.Unlock()

		var header [4]byte
		if _, err := io.ReadFull(c.conn, header[:]); err != nil {
			ch <- result{err: err}
			return
		}

		n := binary.BigEndian.Uint32(header[:])
		if n > maxFrameSize {
			ch <- result{err: fmt.Errorf("tcp: frame of %d bytes exceeds limit", n)}
			return
		}

		buf := make([]byte, n)
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{f: Frame{Payload: buf}}
	}()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case r := <-ch:
		return r.f, r.err
	}
}

func (c *streamConn) LocalAddr() string  { return c.conn.LocalAddr().String() }
func (c *streamConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *streamConn) Close() error       { return c.conn.Close() }

func dialTCP(ctx context.Context, u *url.URL) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", u.Host, err)
	}
	return newStreamConn(conn), nil
}

type streamListener struct {
	ln net.Listener
}

func listenTCP(ctx context.Context, u *url.URL) (Listener, error) {
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", u.Host, err)
	}
	return &streamListener{ln: ln}, nil
}

func (l *streamListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		l.ln.Close()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return newStreamConn(r.conn), nil
	}
}

func (l *streamListener) Addr() string { return l.ln.Addr().String() }
func (l *streamListener) Close() error { return l.ln.Close() }
