package object_test

import (
	"testing"

	. "github.com/sandia-minimega/boxrpc/pkg/object"
)

func TestPackScalars(t *testing.T) {
	o := Pack("i", int64(42))
	defer Release(o)

	if o.Type() != Int64 {
		t.Fatalf("Pack(\"i\", ...) produced %v, want Int64", o.Type())
	}
	if GetInt64(o) != 42 {
		t.Fatalf("GetInt64 = %d, want 42", GetInt64(o))
	}
}

func TestPackDictionary(t *testing.T) {
	o := Pack("{i,s}", "count", int64(3), "name", "widget")
	defer Release(o)

	if o.Type() == Error {
		t.Fatalf("Pack failed: %s", GetErrorMessage(o))
	}
	if GetInt64(DictGet(o, "count")) != 3 {
		t.Fatalf("count = %d, want 3", GetInt64(DictGet(o, "count")))
	}
	if GetString(DictGet(o, "name")) != "widget" {
		t.Fatalf("name = %q, want widget", GetString(DictGet(o, "name")))
	}
}

func TestPackArray(t *testing.T) {
	o := Pack("[iii]", int64(1), int64(2), int64(3))
	defer Release(o)

	if ArrayLen(o) != 3 {
		t.Fatalf("ArrayLen = %d, want 3", ArrayLen(o))
	}
	for i := 0; i < 3; i++ {
		if GetInt64(ArrayGet(o, i)) != int64(i+1) {
			t.Fatalf("element %d = %d, want %d", i, GetInt64(ArrayGet(o, i)), i+1)
		}
	}
}

func TestPackNested(t *testing.T) {
	o := Pack("{[ii]}", "pair", int64(10), int64(20))
	defer Release(o)

	if o.Type() == Error {
		t.Fatalf("Pack failed: %s", GetErrorMessage(o))
	}
	pair := DictGet(o, "pair")
	if ArrayLen(pair) != 2 {
		t.Fatalf("pair length = %d, want 2", ArrayLen(pair))
	}
}

func TestPackMalformedReturnsError(t *testing.T) {
	o := Pack("{i", "only-key", int64(1))
	defer Release(o)

	if o.Type() != Error {
		t.Fatalf("unterminated dictionary should produce an Error Object, got %v", o.Type())
	}
}

func TestPackArgTypeMismatchReturnsError(t *testing.T) {
	o := Pack("i", "not an int")
	defer Release(o)

	if o.Type() != Error {
		t.Fatalf("wrong argument type should produce an Error Object, got %v", o.Type())
	}
}

func TestUnpackRoundTrip(t *testing.T) {
	packed := Pack("{i,s}", "count", int64(3), "name", "widget")
	defer Release(packed)

	var count int64
	var name string
	n := Unpack(packed, "{i,s}", "count", &count, "name", &name)

	if n < 0 {
		t.Fatalf("Unpack failed with code %d", n)
	}
	if count != 3 || name != "widget" {
		t.Fatalf("unpacked (count=%d, name=%q), want (3, widget)", count, name)
	}
}

func TestUnpackArraySkipAndRemainder(t *testing.T) {
	arr := Pack("[iiii]", int64(1), int64(2), int64(3), int64(4))
	defer Release(arr)

	var first int64
	var rest *Object
	n := Unpack(arr, "[i*R]", &first, &rest)
	defer Release(rest)

	if n < 0 {
		t.Fatalf("Unpack failed with code %d", n)
	}
	if first != 1 {
		t.Fatalf("first = %d, want 1", first)
	}
	if ArrayLen(rest) != 2 {
		t.Fatalf("remainder length = %d, want 2 (indices 2,3)", ArrayLen(rest))
	}
}

func TestUnpackTypeMismatchNegative(t *testing.T) {
	o := NewString("hello")
	defer Release(o)

	var i int64
	n := Unpack(o, "i", &i)
	if n >= 0 {
		t.Fatalf("Unpack of a String against format \"i\" should fail, got %d", n)
	}
}

func TestFailedUnpackSetsLastError(t *testing.T) {
	ClearLastError()

	o := NewString("hello")
	defer Release(o)

	var i int64
	if n := Unpack(o, "i", &i); n >= 0 {
		t.Fatalf("Unpack of a String against format \"i\" should fail, got %d", n)
	}

	last := GetLastError()
	if !IsKind(last, KindInvalidArgument) {
		t.Fatalf("expected an invalid-argument last error, got %s", Describe(last))
	}
	ClearLastError()
}
