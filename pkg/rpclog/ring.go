package rpclog

import (
	"container/ring"
	"sync"
	"time"
)

// Ring retains the most recent log lines in memory so a debug surface
// (History, a failing test) can show what led up to a problem
// without a file handle. Capacity comes from container/ring itself; lines
// are stored raw with their arrival time and only rendered on Dump.
type Ring struct {
	mu sync.Mutex
	r  *ring.Ring
}

type ringEntry struct {
	when time.Time
	msg  string
}

func NewRing(size int) *Ring {
	return &Ring{r: ring.New(size)}
}

// Append records one already-formatted log line, evicting the oldest
// retained line once the ring is full.
func (l *Ring) Append(msg string) {
	e := ringEntry{when: time.Now(), msg: msg}

	l.mu.Lock()
	l.r = l.r.Next()
	l.r.Value = e
	l.mu.Unlock()
}

// Dump returns the retained lines oldest to newest, each prefixed with its
// arrival time in the same layout the stderr sink uses.
func (l *Ring) Dump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, 0, l.r.Len())
	l.r.Next().Do(func(v interface{}) {
		e, ok := v.(ringEntry)
		if !ok {
			return
		}
		res = append(res, e.when.Format("2006/01/02 15:04:05")+" "+e.msg)
	})
	return res
}
