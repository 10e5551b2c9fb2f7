package object

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// lastErrors approximates the C library's thread-local "last error" slot.
// Go has no language-level thread-local storage, so this keys off the
// calling goroutine's id, extracted from runtime.Stack the way net/http's
// httptrace-adjacent debugging helpers do. Entries are never proactively
// removed; goroutine ids are reused once a goroutine exits; so leaking a
// stale *Object means releasing it one goroutine-id-reuse later rather than
// immediately, acceptable for a diagnostic convenience API.
var (
	lastErrorMu sync.Mutex
	lastErrors  = make(map[uint64]*Object)
)

// SetLastError records err as the calling goroutine's last error,
// replacing and releasing whatever was there before. Passing nil clears it.
func SetLastError(err *Object) {
	id := goroutineID()

	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()

	if old, ok := lastErrors[id]; ok {
		Release(old)
	}
	if err == nil {
		delete(lastErrors, id)
		return
	}
	lastErrors[id] = Retain(err)
}

// GetLastError returns the calling goroutine's last recorded error, or nil
// if none has been set.
func GetLastError() *Object {
	id := goroutineID()

	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()

	return lastErrors[id]
}

// ClearLastError discards the calling goroutine's last error, if any.
func ClearLastError() {
	SetLastError(nil)
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	// runtime.Stack begins with "goroutine <id> [running]:\n"
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}

	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
