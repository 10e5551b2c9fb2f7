package object

import (
	"fmt"
	"time"
)

// --- payload types, one per variant ---

type nullPayload struct{}

func (nullPayload) kind() Type { return Null }

type boolPayload bool

func (boolPayload) kind() Type { return Bool }

type int64Payload int64

func (int64Payload) kind() Type { return Int64 }

type uint64Payload uint64

func (uint64Payload) kind() Type { return UInt64 }

type doublePayload float64

func (doublePayload) kind() Type { return Double }

type datePayload int64 // unix seconds

func (datePayload) kind() Type { return Date }

type stringPayload struct {
	s string
}

func (stringPayload) kind() Type { return String }

type binaryPayload struct {
	buf   []byte
	owned bool
}

func (binaryPayload) kind() Type { return Binary }

type fdPayload struct {
	fd int
}

func (fdPayload) kind() Type { return Fd }

type errorPayload struct {
	code    int
	message string
	extra   *Object
	stack   *Object
}

func (errorPayload) kind() Type { return Error }

type arrayPayload struct {
	items []*Object
}

func (arrayPayload) kind() Type { return Array }

// dictPayload preserves insertion order in keys while vals gives O(1)
// lookup, so iteration order always matches insertion order.
type dictPayload struct {
	keys []string
	vals map[string]*Object
}

func (dictPayload) kind() Type { return Dictionary }

type shmemPayload struct {
	name string
	size int
	data []byte // non-nil only on platforms where mapping succeeded
}

func (shmemPayload) kind() Type { return Shmem }

// --- constructors ---

func NewNull() *Object {
	return newObject(Null, nullPayload{})
}

func NewBool(v bool) *Object {
	return newObject(Bool, boolPayload(v))
}

func NewInt64(v int64) *Object {
	return newObject(Int64, int64Payload(v))
}

func NewUInt64(v uint64) *Object {
	return newObject(UInt64, uint64Payload(v))
}

func NewDouble(v float64) *Object {
	return newObject(Double, doublePayload(v))
}

func NewDate(unix int64) *Object {
	return newObject(Date, datePayload(unix))
}

// NewDateNow returns a Date object carrying the current wall clock time.
func NewDateNow() *Object {
	return NewDate(time.Now().Unix())
}

func NewString(s string) *Object {
	return newObject(String, stringPayload{s: s})
}

// NewStringFromBytes builds a String object from a raw byte slice of known
// length, copying the bytes.
func NewStringFromBytes(b []byte) *Object {
	buf := make([]byte, len(b))
	copy(buf, b)
	return newObject(String, stringPayload{s: string(buf)})
}

// NewStringWithFormat builds a String object using printf-style formatting,
// mirroring rpc_string_create_with_format.
func NewStringWithFormat(format string, args ...interface{}) *Object {
	return NewString(fmt.Sprintf(format, args...))
}

// NewBinary builds a Binary object from buf. If copy is true the buffer is
// duplicated and the result owns it; otherwise the result borrows buf and
// will not free it on release.
func NewBinary(buf []byte, copyBuf bool) *Object {
	if copyBuf {
		b := make([]byte, len(buf))
		copy(b, buf)
		return newObject(Binary, binaryPayload{buf: b, owned: true})
	}
	return newObject(Binary, binaryPayload{buf: buf, owned: false})
}

// NewFd wraps an OS file descriptor. The Object owns fd: the final Release
// closes it. DupFd yields an independent descriptor with its own Object.
func NewFd(fd int) *Object {
	return newObject(Fd, fdPayload{fd: fd})
}

// NewError builds an Error object. extra and stack may be nil; if non-nil
// they are retained.
func NewError(code int, message string, extra, stack *Object) *Object {
	if extra != nil {
		Retain(extra)
	}
	if stack != nil {
		Retain(stack)
	}
	return newObject(Error, errorPayload{code: code, message: message, extra: extra, stack: stack})
}

func NewArray(items ...*Object) *Object {
	cp := make([]*Object, len(items))
	for i, it := range items {
		Retain(it)
		cp[i] = it
	}
	return newObject(Array, arrayPayload{items: cp})
}

func NewDictionary() *Object {
	return newObject(Dictionary, dictPayload{vals: make(map[string]*Object)})
}

// NewShmem creates a Shmem handle of the given size. On platforms without a
// backing implementation, or when the mapping fails, it returns a
// transport-kind Error Object instead of a Shmem.
func NewShmem(name string, size int) *Object {
	return newShmem(name, size)
}
