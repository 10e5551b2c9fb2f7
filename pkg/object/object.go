package object

import "sync/atomic"

// Location records where an Object was parsed from: line and column in the
// source document. Nothing in this package fills it in, so it is zero
// for every Object, including those decoded by FromJSON.
type Location struct {
	Line   int
	Column int
}

// Object is the boxed, reference-counted polymorphic value. Unlike most Go
// value types, Object is always handled through its pointer: the pointer
// itself is the handle, and Retain/Release manage the shared refcount behind
// it. Callers never copy an *Object by dereferencing it; use Copy for that.
type Object struct {
	typ      Type
	refcount int32
	loc      Location

	payload payload
}

// payload is implemented by one concrete type per Type. It exists purely to
// give the compiler a closed set of payload shapes; callers never see it --
// they go through the typed accessors in accessors.go and construct.go.
type payload interface {
	kind() Type
}

// Type returns the object's immutable type tag.
func (o *Object) Type() Type {
	return o.typ
}

// Location returns where this object was parsed from, if known.
func (o *Object) Location() Location {
	return o.loc
}

// RefCount returns the current reference count. Intended for diagnostics
// and tests; do not build control flow around its exact value beyond the
// zero/nonzero boundary, since other goroutines may be retaining/releasing
// concurrently.
func (o *Object) RefCount() int32 {
	return atomic.LoadInt32(&o.refcount)
}

func newObject(typ Type, p payload) *Object {
	return &Object{typ: typ, refcount: 1, payload: p}
}
