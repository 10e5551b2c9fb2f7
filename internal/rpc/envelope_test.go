package rpc_test

import (
	"testing"

	. "github.com/sandia-minimega/boxrpc/internal/rpc"
	"github.com/sandia-minimega/boxrpc/pkg/object"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	args := object.Pack("{i,s}", "count", int64(3), "name", "widget")
	defer object.Release(args)

	e := Envelope{Namespace: NamespaceRPC, Name: NameCall, ID: "abc-123", Args: args}
	obj := e.ToObject()
	defer object.Release(obj)

	got, ok := EnvelopeFromObject(obj)
	if !ok {
		t.Fatalf("EnvelopeFromObject returned ok=false for a well-formed envelope")
	}
	defer object.Release(got.Args)

	if got.Namespace != NamespaceRPC || got.Name != NameCall || got.ID != "abc-123" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !object.Equal(got.Args, args) {
		t.Fatalf("args did not round trip: got %s want %s", object.Describe(got.Args), object.Describe(args))
	}
}

func TestEnvelopeFromObjectRejectsMalformed(t *testing.T) {
	notDict := object.NewInt64(5)
	defer object.Release(notDict)

	if _, ok := EnvelopeFromObject(notDict); ok {
		t.Fatalf("EnvelopeFromObject should reject a non-Dictionary")
	}

	missingName := object.NewDictionary()
	defer object.Release(missingName)
	ns := object.NewString(NamespaceRPC)
	object.DictSet(missingName, "namespace", ns)
	object.Release(ns)

	if _, ok := EnvelopeFromObject(missingName); ok {
		t.Fatalf("EnvelopeFromObject should reject a Dictionary missing name")
	}
}

func TestEnvelopeArgsOutlivesSourceObject(t *testing.T) {
	args := object.Pack("{b}", "ok", true)
	e := Envelope{Namespace: NamespaceRPC, Name: NameResponse, ID: "x", Args: args}
	obj := e.ToObject()
	object.Release(args) // the caller's own reference; ToObject retained its own copy

	got, ok := EnvelopeFromObject(obj)
	if !ok {
		t.Fatalf("EnvelopeFromObject returned ok=false")
	}
	object.Release(obj) // simulates the frame decoder releasing the raw envelope

	if object.GetBool(object.DictGet(got.Args, "ok")) != true {
		t.Fatalf("Args did not survive release of the source envelope object")
	}
	object.Release(got.Args)
}
