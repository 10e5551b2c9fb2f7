package rpc

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/sandia-minimega/boxrpc/pkg/object"
)

// Status is a Call's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusDone
	StatusError
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Call is the client-visible handle for one in-flight method invocation.
// It is jointly owned by the caller and the Connection's call registry
// until it reaches a terminal status (Done, Error, Aborted), matching the
// joint-ownership rule for in-flight Calls.
type Call struct {
	ID     string
	Method string

	mu        sync.Mutex
	status    Status
	result    *object.Object // retained; owned by Call until released
	fragments []*object.Object

	done chan struct{} // closed exactly once, on first terminal transition

	conn *Connection
}

// newCall allocates a Call with a fresh id and Pending status. The id is a
// gofrs/uuid v4, the same dependency phenix's request/session tracking
// (phenix_ref/web/server.go) pulls in for unguessable identifiers.
func newCall(conn *Connection, method string) *Call {
	id, err := uuid.NewV4()
	idStr := ""
	if err == nil {
		idStr = id.String()
	} else {
		// Practically never happens (NewV4 only fails if the system RNG
		// is unavailable); fall back to a timestamp so the call still has
		// a usable, if weaker, identifier instead of an empty one.
		idStr = time.Now().UTC().Format(time.RFC3339Nano)
	}

	return &Call{
		ID:     idStr,
		Method: method,
		status: StatusPending,
		done:   make(chan struct{}),
		conn:   conn,
	}
}

// Status returns the Call's current lifecycle state.
func (c *Call) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Wait blocks until the Call reaches a terminal status or timeout elapses
// (timeout <= 0 means wait forever). It returns the terminal Status.
func (c *Call) Wait(timeout time.Duration) Status {
	if timeout <= 0 {
		<-c.done
		return c.Status()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.Status()
	case <-timer.C:
		return c.Status()
	}
}

// Result returns the Call's final value: the accumulated result (or
// fragments assembled into an Array, for a streaming call) on success, or
// an Error Object on failure/timeout/abort. Calling it before the Call is
// terminal returns an Error of kind timeout as a conservative sentinel --
// callers should Wait first.
func (c *Call) Result() *object.Object {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusDone:
		if len(c.fragments) > 0 {
			arr := object.NewArray(c.fragments...)
			return arr
		}
		if c.result != nil {
			return object.Retain(c.result)
		}
		return object.NewNull()
	case StatusError:
		if c.result != nil {
			return object.Retain(c.result)
		}
		return object.NewKindError(object.KindLogic, "call failed with no error payload")
	case StatusAborted:
		return object.NewKindError(object.KindCallAborted, "call aborted")
	default:
		return object.NewKindError(object.KindTimeout, "call has not completed")
	}
}

// Abort transitions the Call to Aborted locally and asks the Connection to
// send a best-effort abort envelope on the wire.
func (c *Call) Abort() {
	if c.transitionOnce(StatusAborted, nil) {
		c.conn.sendAbort(c.ID)
	}
}

func (c *Call) appendFragment(v *object.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPending && c.status != StatusInProgress {
		return
	}
	c.status = StatusInProgress
	c.fragments = append(c.fragments, object.Retain(v))
}

// transitionOnce moves the Call to a terminal status exactly once,
// retaining result for the Call's own lifetime. Returns false if the Call
// was already terminal.
func (c *Call) transitionOnce(status Status, result *object.Object) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusDone || c.status == StatusError || c.status == StatusAborted {
		return false
	}

	c.status = status
	if result != nil {
		c.result = object.Retain(result)
	}
	close(c.done)
	return true
}

// release drops the Call's retained references. Called once the registry
// no longer needs the Call (terminal status reached and the caller has
// observed the result).
func (c *Call) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	object.Release(c.result)
	c.result = nil
	for _, f := range c.fragments {
		object.Release(f)
	}
	c.fragments = nil
}
