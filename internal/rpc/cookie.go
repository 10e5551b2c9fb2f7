package rpc

import (
	"sync/atomic"

	"github.com/sandia-minimega/boxrpc/pkg/object"
)

// Cookie is the opaque per-call context a Handler uses to yield fragments
// ahead of its final return value and to notice a client-issued abort.
// Grounded on the same cookie-per-dispatch shape internal/ron_ref's
// clientHandler passes through to long-running command bodies so they can
// write partial output back to the same connection that's still reading
// further commands from the wire.
type Cookie struct {
	id   string
	conn *Connection

	aborted int32 // atomic; set by the read loop on an inbound abort envelope
	yielded int32 // atomic; >0 once Yield has been called at least once
}

// Yield sends v as a fragment of the streaming response. It blocks if the
// connection's send queue is full, suspending the calling handler goroutine
// (never the I/O loop) until room frees up or the connection closes.
func (k *Cookie) Yield(v *object.Object) {
	atomic.StoreInt32(&k.yielded, 1)
	k.conn.sendFragment(k.id, v)
}

func (k *Cookie) didYield() bool {
	return atomic.LoadInt32(&k.yielded) != 0
}

// IsAborted reports whether the client has asked this call to stop, or the
// connection it arrived on has gone away. A streaming handler should poll
// it between yields and return promptly when true; cancellation is
// cooperative and never preempts a running handler.
func (k *Cookie) IsAborted() bool {
	if atomic.LoadInt32(&k.aborted) != 0 {
		return true
	}
	select {
	case <-k.conn.quit:
		return true
	default:
		return false
	}
}

func (k *Cookie) markAborted() {
	atomic.StoreInt32(&k.aborted, 1)
}
