package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"
)

// unix sockets use the same length-prefixed byte framing as tcp, plus
// SCM_RIGHTS ancillary data when a Frame carries file descriptors, the way
// ron's ListenUnix and miniclient's Unix dialing share a socket path
// convention for local control connections. Passing descriptors piggybacks
// on the header+payload write/read pair: the header goes out as a plain
// Write, then the payload (and any fds) go out together via WriteMsgUnix so
// the kernel associates the ancillary data with that segment.
const maxPassedFds = 16

func init() {
	Register("unix", Transport{Dial: dialUnix, Listen: listenUnix})
}

type unixConn struct {
	conn *net.UnixConn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newUnixConn(c *net.UnixConn) *unixConn {
	return &unixConn{conn: c}
}

func (c *unixConn) Send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(f.Payload)))
	if _, err := c.conn.Write(header[:]); err != nil {
		return err
	}

	if len(f.Fds) == 0 {
		_, err := c.conn.Write(f.Payload)
		return err
	}

	oob := syscall.UnixRights(f.Fds...)
	_, _, err := c.conn.WriteMsgUnix(f.Payload, oob, nil)
	return err
}

func (c *unixConn) Receive(ctx context.Context) (Frame, error) {
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
			ch <- result{err: fmt.Errorf("unix: frame of %d bytes exceeds limit", n)}
			return
		}

		buf := make([]byte, n)
		oob := make([]byte, syscall.CmsgSpace(maxPassedFds*4))

		read := 0
		var fds []int
		for read < len(buf) {
			dn, oobn, _, _, err := c.conn.ReadMsgUnix(buf[read:], oob)
			if err != nil {
				ch <- result{err: err}
				return
			}
			if oobn > 0 {
				parsed, err := parseUnixRights(oob[:oobn])
				if err == nil {
					fds = append(fds, parsed...)
				}
			}
			read += dn
		}

		ch <- result{f: Frame{Payload: buf, Fds: fds}}
	}()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case r := <-ch:
		return r.f, r.err
	}
}

func parseUnixRights(oob []byte) ([]int, error) {
	msgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, m := range msgs {
		fds, err := syscall.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		out = append(out, fds...)
	}
	return out, nil
}

func (c *unixConn) LocalAddr() string  { return c.conn.LocalAddr().String() }
func (c *unixConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *unixConn) Close() error       { return c.conn.Close() }

// dialUnix retries on a temporary dial error with exponential backoff, the
// same pattern miniclient's Dial uses against a local daemon that may
// still be coming up when the first connection attempt lands.
func dialUnix(ctx context.Context, u *url.URL) (Conn, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unix: resolving %s: %w", path, err)
	}

	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		conn, err := net.DialUnix("unix", nil, addr)
		if err == nil {
			return newUnixConn(conn), nil
		}

		opErr, ok := err.(*net.OpError)
		if !ok || !opErr.Temporary() {
			return nil, fmt.Errorf("unix: dial %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

type unixListener struct {
	ln *net.UnixListener
}

func listenUnix(ctx context.Context, u *url.URL) (Listener, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unix: resolving %s: %w", path, err)
	}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("unix: listen %s: %w", path, err)
	}
	return &unixListener{ln: ln}, nil
}

func (l *unixListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn *net.UnixConn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.AcceptUnix()
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
		return newUnixConn(r.conn), nil
	}
}

func (l *unixListener) Addr() string { return l.ln.Addr().String() }
func (l *unixListener) Close() error { return l.ln.Close() }
