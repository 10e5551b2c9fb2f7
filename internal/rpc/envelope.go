// Package rpc implements the message envelope, call registry, connection
// state machine, and server/context dispatch that sit on top of
// pkg/object and internal/transport: the layer that actually moves Calls
// between peers.
package rpc

import (
	"github.com/sandia-minimega/boxrpc/pkg/object"
)

// Namespace values for the envelope's "namespace" field. "rpc" is the only
// namespace this package interprets; envelopes in any other namespace are
// dropped on receipt. Within "rpc", the "events" name is reserved for a
// pub/sub layer; this package routes it but ignores it.
const NamespaceRPC = "rpc"

// Name values for envelopes in the "rpc" namespace.
const (
	NameCall     = "call"
	NameResponse = "response"
	NameFragment = "fragment"
	NameEnd      = "end"
	NameError    = "error"
	NameAbort    = "abort"
	NameEvents   = "events"
)

// Envelope is the Dictionary-shaped wire message: {namespace, name, id,
// args}. id is always a string (uuid) except for one-way namespaces that
// don't need a reply correlation.
type Envelope struct {
	Namespace string
	Name      string
	ID        string
	Args      *object.Object // retained; caller must Release
}

// ToObject packs the envelope into a Dictionary Object ready for the
// wire codec. The returned Object is retained; the caller owns it.
func (e Envelope) ToObject() *object.Object {
	d := object.NewDictionary()

	ns := object.NewString(e.Namespace)
	object.DictSet(d, "namespace", ns)
	object.Release(ns)

	name := object.NewString(e.Name)
	object.DictSet(d, "name", name)
	object.Release(name)

	if e.ID != "" {
		id := object.NewString(e.ID)
		object.DictSet(d, "id", id)
		object.Release(id)
	}

	if e.Args != nil {
		object.DictSet(d, "args", e.Args)
	} else {
		n := object.NewNull()
		object.DictSet(d, "args", n)
		object.Release(n)
	}

	return d
}

// EnvelopeFromObject unpacks a Dictionary Object into an Envelope. It
// returns ok=false if o isn't a well-formed envelope (missing namespace or
// name, or the wrong container type), the protocol-error case callers
// should report back to the peer.
func EnvelopeFromObject(o *object.Object) (Envelope, bool) {
	if o == nil || o.Type() != object.Dictionary {
		return Envelope{}, false
	}

	nsObj := object.DictGet(o, "namespace")
	nameObj := object.DictGet(o, "name")
	if nsObj == nil || nsObj.Type() != object.String {
		return Envelope{}, false
	}
	if nameObj == nil || nameObj.Type() != object.String {
		return Envelope{}, false
	}

	e := Envelope{
		Namespace: object.GetString(nsObj),
		Name:      object.GetString(nameObj),
		// o's Release recursively destroys its children once o's own
		// count hits zero, which can happen the moment the caller is
		// done decoding the frame; Retain so Args outlives o.
		Args: object.Retain(object.DictGet(o, "args")),
	}

	if idObj := object.DictGet(o, "id"); idObj != nil && idObj.Type() == object.String {
		e.ID = object.GetString(idObj)
	}

	return e, true
}

// callArgs builds the {method, args} Dictionary a "call" envelope's Args
// field carries.
func callArgs(method string, args *object.Object) *object.Object {
	d := object.NewDictionary()

	m := object.NewString(method)
	object.DictSet(d, "method", m)
	object.Release(m)

	if args != nil {
		object.DictSet(d, "args", args)
	} else {
		n := object.NewNull()
		object.DictSet(d, "args", n)
		object.Release(n)
	}

	return d
}
