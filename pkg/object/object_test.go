package object_test

import (
	"testing"

	. "github.com/sandia-minimega/boxrpc/pkg/object"
)

func TestRefcountLifecycle(t *testing.T) {
	o := NewString("hello")
	if o.RefCount() != 1 {
		t.Fatalf("new object refcount = %d, want 1", o.RefCount())
	}

	Retain(o)
	if o.RefCount() != 2 {
		t.Fatalf("after Retain refcount = %d, want 2", o.RefCount())
	}

	if n := Release(o); n != 1 {
		t.Fatalf("Release returned %d, want 1", n)
	}
	if n := Release(o); n != 0 {
		t.Fatalf("final Release returned %d, want 0", n)
	}
}

func TestContainerRetainsChildren(t *testing.T) {
	child := NewInt64(42)
	arr := NewArray(child)

	// NewArray retains; our local ref plus the array's is 2.
	if child.RefCount() != 2 {
		t.Fatalf("child refcount after NewArray = %d, want 2", child.RefCount())
	}

	Release(arr)
	if child.RefCount() != 1 {
		t.Fatalf("child refcount after array release = %d, want 1", child.RefCount())
	}
	Release(child)
}

func TestArrayAppendGetSet(t *testing.T) {
	arr := NewArray()
	defer Release(arr)

	one := NewInt64(1)
	ArrayAppend(arr, one)
	Release(one)

	if ArrayLen(arr) != 1 {
		t.Fatalf("ArrayLen = %d, want 1", ArrayLen(arr))
	}
	if GetInt64(ArrayGet(arr, 0)) != 1 {
		t.Fatalf("ArrayGet(0) = %d, want 1", GetInt64(ArrayGet(arr, 0)))
	}

	five := NewInt64(5)
	ArraySet(arr, 3, five)
	Release(five)

	if ArrayLen(arr) != 4 {
		t.Fatalf("ArrayLen after sparse set = %d, want 4", ArrayLen(arr))
	}
	if ArrayGet(arr, 1).Type() != Null {
		t.Fatalf("gap-filled index 1 should be Null, got %v", ArrayGet(arr, 1).Type())
	}
	if GetInt64(ArrayGet(arr, 3)) != 5 {
		t.Fatalf("ArrayGet(3) = %d, want 5", GetInt64(ArrayGet(arr, 3)))
	}
}

func TestDictSetGetDelete(t *testing.T) {
	dict := NewDictionary()
	defer Release(dict)

	v := NewString("bar")
	DictSet(dict, "foo", v)
	Release(v)

	if GetString(DictGet(dict, "foo")) != "bar" {
		t.Fatalf("DictGet(foo) = %q, want bar", GetString(DictGet(dict, "foo")))
	}

	DictDelete(dict, "foo")
	if DictGet(dict, "foo") != nil {
		t.Fatalf("DictGet after delete should be nil")
	}
	if DictLen(dict) != 0 {
		t.Fatalf("DictLen after delete = %d, want 0", DictLen(dict))
	}
}

func TestDictKeysPreserveInsertionOrder(t *testing.T) {
	dict := NewDictionary()
	defer Release(dict)

	for _, k := range []string{"c", "a", "b"} {
		v := NewBool(true)
		DictSet(dict, k, v)
		Release(v)
	}

	keys := DictKeys(dict)
	want := []string{"c", "a", "b"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("DictKeys()[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestCopyIsIndependent(t *testing.T) {
	arr := NewArray(NewInt64(1), NewInt64(2))
	defer Release(arr)

	cp := Copy(arr)
	defer Release(cp)

	five := NewInt64(5)
	ArraySet(cp, 0, five)
	Release(five)

	if GetInt64(ArrayGet(arr, 0)) != 1 {
		t.Fatalf("mutating the copy affected the original")
	}
	if GetInt64(ArrayGet(cp, 0)) != 5 {
		t.Fatalf("copy did not take the mutation")
	}
}

func TestSliceClampsAndHandlesMinusOne(t *testing.T) {
	arr := NewArray(NewInt64(0), NewInt64(1), NewInt64(2), NewInt64(3))
	defer Release(arr)

	s := Slice(arr, 1, -1)
	defer Release(s)
	if ArrayLen(s) != 3 {
		t.Fatalf("Slice(1, -1) length = %d, want 3", ArrayLen(s))
	}

	s2 := Slice(arr, 2, 100)
	defer Release(s2)
	if ArrayLen(s2) != 2 {
		t.Fatalf("Slice(2, 100) length = %d, want 2 (clamped)", ArrayLen(s2))
	}
}

func TestSortIsStable(t *testing.T) {
	twoA, oneA, twoB, oneB := NewInt64(2), NewInt64(1), NewInt64(2), NewInt64(1)
	arr := NewArray(twoA, oneA, twoB, oneB)
	defer Release(arr)

	Sort(arr, Compare)

	want := []int64{1, 1, 2, 2}
	for i, w := range want {
		if GetInt64(ArrayGet(arr, i)) != w {
			t.Fatalf("after sort index %d = %d, want %d", i, GetInt64(ArrayGet(arr, i)), w)
		}
	}

	// Equal values keep their original relative order.
	wantOrder := []*Object{oneA, oneB, twoA, twoB}
	for i, w := range wantOrder {
		if ArrayGet(arr, i) != w {
			t.Fatalf("after sort index %d holds a different object than the stable order", i)
		}
	}
}

func TestEqualAndCompareCrossType(t *testing.T) {
	n := NewNull()
	defer Release(n)
	b := NewBool(false)
	defer Release(b)

	if Equal(n, b) {
		t.Fatalf("objects of different types should never be Equal")
	}
	if Compare(n, b) == 0 {
		t.Fatalf("Compare across types should never be 0")
	}
}

func TestEqualDictionaryIgnoresOrder(t *testing.T) {
	a := NewDictionary()
	defer Release(a)
	b := NewDictionary()
	defer Release(b)

	av, bv := NewInt64(1), NewInt64(2)
	DictSet(a, "x", av)
	DictSet(a, "y", bv)
	DictSet(b, "y", bv)
	DictSet(b, "x", av)
	Release(av)
	Release(bv)

	if !Equal(a, b) {
		t.Fatalf("dictionaries with same entries in different order should be Equal")
	}
}

func TestHashStableAcrossEqual(t *testing.T) {
	a := NewDictionary()
	defer Release(a)
	b := NewDictionary()
	defer Release(b)

	v1, v2 := NewInt64(1), NewInt64(2)
	DictSet(a, "x", v1)
	DictSet(a, "y", v2)
	DictSet(b, "y", v2)
	DictSet(b, "x", v1)
	Release(v1)
	Release(v2)

	if Hash(a) != Hash(b) {
		t.Fatalf("Hash should agree for Equal dictionaries regardless of insertion order")
	}
}

func TestDescribeRoundtripShape(t *testing.T) {
	arr := NewArray(NewInt64(1), NewString("hi"))
	defer Release(arr)

	got := Describe(arr)
	want := `[1, "hi"]`
	if got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
}

func TestGetAccessorsNeverPanicOnWrongType(t *testing.T) {
	o := NewString("not a bool")
	defer Release(o)

	if GetBool(o) != false {
		t.Fatalf("GetBool on a String should return the false sentinel")
	}
	if GetInt64(o) != 0 {
		t.Fatalf("GetInt64 on a String should return the 0 sentinel")
	}
	if GetBinary(nil) != nil {
		t.Fatalf("GetBinary(nil) should return nil")
	}
}
