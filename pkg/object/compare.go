package object

import (
	"bytes"
	"hash/fnv"
	"math"
	"sort"
)

// Equal reports whether a and b are structurally equal: same tag, equal
// payload. Dictionaries compare ignoring insertion order but require
// identical key sets and pairwise equal values; arrays are order-sensitive.
func Equal(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.typ != b.typ {
		return false
	}

	switch a.typ {
	case Null:
		return true
	case Bool:
		return a.payload.(boolPayload) == b.payload.(boolPayload)
	case Int64:
		return a.payload.(int64Payload) == b.payload.(int64Payload)
	case UInt64:
		return a.payload.(uint64Payload) == b.payload.(uint64Payload)
	case Double:
		return a.payload.(doublePayload) == b.payload.(doublePayload)
	case Date:
		return a.payload.(datePayload) == b.payload.(datePayload)
	case String:
		return a.payload.(stringPayload).s == b.payload.(stringPayload).s
	case Binary:
		return bytes.Equal(a.payload.(binaryPayload).buf, b.payload.(binaryPayload).buf)
	case Fd:
		return a.payload.(fdPayload).fd == b.payload.(fdPayload).fd
	case Error:
		pa, pb := a.payload.(errorPayload), b.payload.(errorPayload)
		return pa.code == pb.code && pa.message == pb.message &&
			Equal(pa.extra, pb.extra) && Equal(pa.stack, pb.stack)
	case Array:
		pa, pb := a.payload.(arrayPayload), b.payload.(arrayPayload)
		if len(pa.items) != len(pb.items) {
			return false
		}
		for i := range pa.items {
			if !Equal(pa.items[i], pb.items[i]) {
				return false
			}
		}
		return true
	case Dictionary:
		pa, pb := a.payload.(dictPayload), b.payload.(dictPayload)
		if len(pa.keys) != len(pb.keys) {
			return false
		}
		for k, v := range pa.vals {
			ov, ok := pb.vals[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	case Shmem:
		pa, pb := a.payload.(shmemPayload), b.payload.(shmemPayload)
		return pa.name == pb.name && pa.size == pb.size
	default:
		return false
	}
}

// Compare yields a total preorder: cross-type comparisons order by Type's
// enum value; same-type comparisons use the natural order for that variant.
// Doubles may compare NaN-unequal to themselves, matching IEEE-754.
func Compare(a, b *Object) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if a.typ != b.typ {
		return int(a.typ) - int(b.typ)
	}

	switch a.typ {
	case Null:
		return 0
	case Bool:
		av, bv := a.payload.(boolPayload), b.payload.(boolPayload)
		return boolCompare(bool(av), bool(bv))
	case Int64:
		return int64Compare(int64(a.payload.(int64Payload)), int64(b.payload.(int64Payload)))
	case UInt64:
		return uint64Compare(uint64(a.payload.(uint64Payload)), uint64(b.payload.(uint64Payload)))
	case Double:
		av, bv := float64(a.payload.(doublePayload)), float64(b.payload.(doublePayload))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0 // NaN falls here as "not <, not >" -- neither equal nor ordered
		}
	case Date:
		return int64Compare(int64(a.payload.(datePayload)), int64(b.payload.(datePayload)))
	case String:
		return bytesCompareStr(a.payload.(stringPayload).s, b.payload.(stringPayload).s)
	case Binary:
		return bytes.Compare(a.payload.(binaryPayload).buf, b.payload.(binaryPayload).buf)
	case Fd:
		return int64Compare(int64(a.payload.(fdPayload).fd), int64(b.payload.(fdPayload).fd))
	case Error:
		pa, pb := a.payload.(errorPayload), b.payload.(errorPayload)
		if pa.code != pb.code {
			return pa.code - pb.code
		}
		return bytesCompareStr(pa.message, pb.message)
	case Array:
		pa, pb := a.payload.(arrayPayload), b.payload.(arrayPayload)
		for i := 0; i < len(pa.items) && i < len(pb.items); i++ {
			if c := Compare(pa.items[i], pb.items[i]); c != 0 {
				return c
			}
		}
		return len(pa.items) - len(pb.items)
	case Dictionary:
		return compareDict(a.payload.(dictPayload), b.payload.(dictPayload))
	case Shmem:
		pa, pb := a.payload.(shmemPayload), b.payload.(shmemPayload)
		if pa.name != pb.name {
			return bytesCompareStr(pa.name, pb.name)
		}
		return pa.size - pb.size
	default:
		return 0
	}
}

func compareDict(pa, pb dictPayload) int {
	ka := append([]string(nil), pa.keys...)
	kb := append([]string(nil), pb.keys...)
	sort.Strings(ka)
	sort.Strings(kb)

	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := bytesCompareStr(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := Compare(pa.vals[ka[i]], pb.vals[kb[i]]); c != 0 {
			return c
		}
	}
	return len(ka) - len(kb)
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uint64Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func bytesCompareStr(a, b string) int {
	return bytes.Compare([]byte(a), []byte(b))
}

// Hash returns a numerical hash, stable across equal objects and computed
// recursively. Dictionary hashing is order-independent: it XORs
// hash(key)*hash(value) over entries so two dictionaries built in different
// insertion orders hash the same.
func Hash(o *Object) uint64 {
	if o == nil {
		return 0
	}

	h := fnv.New64a()
	writeTag(h, o.typ)

	switch o.typ {
	case Null:
	case Bool:
		if bool(o.payload.(boolPayload)) {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case Int64:
		writeUint64(h, uint64(o.payload.(int64Payload)))
	case UInt64:
		writeUint64(h, uint64(o.payload.(uint64Payload)))
	case Double:
		writeUint64(h, doubleBits(float64(o.payload.(doublePayload))))
	case Date:
		writeUint64(h, uint64(o.payload.(datePayload)))
	case String:
		h.Write([]byte(o.payload.(stringPayload).s))
	case Binary:
		h.Write(o.payload.(binaryPayload).buf)
	case Fd:
		writeUint64(h, uint64(o.payload.(fdPayload).fd))
	case Error:
		p := o.payload.(errorPayload)
		writeUint64(h, uint64(p.code))
		h.Write([]byte(p.message))
		writeUint64(h, Hash(p.extra))
		writeUint64(h, Hash(p.stack))
	case Array:
		for _, v := range o.payload.(arrayPayload).items {
			writeUint64(h, Hash(v))
		}
	case Dictionary:
		var acc uint64
		for k, v := range o.payload.(dictPayload).vals {
			kh := fnv.New64a()
			kh.Write([]byte(k))
			acc ^= kh.Sum64() * Hash(v)
		}
		return acc
	case Shmem:
		p := o.payload.(shmemPayload)
		h.Write([]byte(p.name))
		writeUint64(h, uint64(p.size))
	}

	return h.Sum64()
}

func writeTag(h interface{ Write([]byte) (int, error) }, t Type) {
	h.Write([]byte{byte(t)})
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}

func doubleBits(f float64) uint64 {
	return math.Float64bits(f)
}
