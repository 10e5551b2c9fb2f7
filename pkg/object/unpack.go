package object

import "fmt"

// Unpack is the mirror of Pack: it walks format against o and writes into
// the given out-pointers. It returns the count of scalar format characters
// successfully consumed, or a negative number on the first type mismatch or
// malformed format/structure (the count to that point, negated minus one,
// so callers can distinguish "0 scalars, but valid" from "failed
// immediately").
//
// Inside an array position, '*' skips that index without consuming an
// out-pointer, and 'R' captures everything from that index to the end of
// the array into a *object.Object out-pointer holding a new sub-Array.
// Missing keys or indices are type-mismatch failures, same as a type
// mismatch on a present value.
func Unpack(o *Object, format string, outs ...interface{}) int {
	u := &unpacker{format: stripSeparators(format), outs: outs}

	if !u.value(o) || u.pos != len(u.format) {
		err := NewKindError(KindInvalidArgument,
			fmt.Sprintf("unpack: mismatch at format offset %d after %d values", u.pos, u.count))
		SetLastError(err)
		Release(err)
		return -(u.count + 1)
	}
	return u.count
}

type unpacker struct {
	format []rune
	pos    int

	outs   []interface{}
	outPos int

	count int
}

func (u *unpacker) nextOut() (interface{}, bool) {
	if u.outPos >= len(u.outs) {
		return nil, false
	}
	o := u.outs[u.outPos]
	u.outPos++
	return o, true
}

// value consumes one format character (and its nested contents) and
// validates/extracts obj into the matching out-pointer. Returns false on
// any mismatch.
func (u *unpacker) value(obj *Object) bool {
	if u.pos >= len(u.format) {
		return false
	}
	c := u.format[u.pos]
	u.pos++

	switch c {
	case 'v':
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(**Object)
		if !ok {
			return false
		}
		*ptr = obj
		u.count++
		return true

	case 'n':
		if obj == nil || obj.Type() != Null {
			return false
		}
		u.count++
		return true

	case 'b':
		if obj == nil || obj.Type() != Bool {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*bool)
		if !ok {
			return false
		}
		*ptr = GetBool(obj)
		u.count++
		return true

	case 'B':
		if obj == nil || obj.Type() != Binary {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*[]byte)
		if !ok {
			return false
		}
		*ptr = GetBinary(obj)
		u.count++
		return true

	case 'f':
		if obj == nil || obj.Type() != Fd {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*int)
		if !ok {
			return false
		}
		*ptr = GetFd(obj)
		u.count++
		return true

	case 'i':
		if obj == nil || obj.Type() != Int64 {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*int64)
		if !ok {
			return false
		}
		*ptr = GetInt64(obj)
		u.count++
		return true

	case 'u':
		if obj == nil || obj.Type() != UInt64 {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*uint64)
		if !ok {
			return false
		}
		*ptr = GetUInt64(obj)
		u.count++
		return true

	case 'd':
		if obj == nil || obj.Type() != Double {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*float64)
		if !ok {
			return false
		}
		*ptr = GetDouble(obj)
		u.count++
		return true

	case 's':
		if obj == nil || obj.Type() != String {
			return false
		}
		out, ok := u.nextOut()
		if !ok {
			return false
		}
		ptr, ok := out.(*string)
		if !ok {
			return false
		}
		*ptr = GetString(obj)
		u.count++
		return true

	case '{':
		if obj == nil || obj.Type() != Dictionary {
			return false
		}
		for u.pos < len(u.format) && u.format[u.pos] != '}' {
			keyArg, ok := u.nextOut()
			if !ok {
				return false
			}
			key, ok := keyArg.(string)
			if !ok {
				return false
			}
			v := DictGet(obj, key)
			if v == nil {
				return false
			}
			if !u.value(v) {
				return false
			}
		}
		if u.pos >= len(u.format) {
			return false
		}
		u.pos++ // consume '}'
		return true

	case '[':
		if obj == nil || obj.Type() != Array {
			return false
		}
		idx := 0
		for u.pos < len(u.format) && u.format[u.pos] != ']' {
			ec := u.format[u.pos]

			if ec == '*' {
				u.pos++
				idx++
				continue
			}
			if ec == 'R' {
				u.pos++
				out, ok := u.nextOut()
				if !ok {
					return false
				}
				ptr, ok := out.(**Object)
				if !ok {
					return false
				}
				*ptr = Slice(obj, idx, -1)
				idx = ArrayLen(obj)
				continue
			}

			v := ArrayGet(obj, idx)
			if v == nil {
				return false
			}
			if !u.value(v) {
				return false
			}
			idx++
		}
		if u.pos >= len(u.format) {
			return false
		}
		u.pos++ // consume ']'
		return true

	default:
		return false
	}
}
