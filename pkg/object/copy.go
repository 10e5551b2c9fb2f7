package object

// Copy produces a deep, independent copy of o with a fresh refcount of 1.
// Containers get unshared backing stores; Binary duplicates its buffer;
// Fd is duplicated at the OS level; Shmem copies the handle but not the
// mapped pages.
func Copy(o *Object) *Object {
	if o == nil {
		return nil
	}

	switch o.typ {
	case Null:
		return NewNull()
	case Bool:
		return NewBool(bool(o.payload.(boolPayload)))
	case Int64:
		return NewInt64(int64(o.payload.(int64Payload)))
	case UInt64:
		return NewUInt64(uint64(o.payload.(uint64Payload)))
	case Double:
		return NewDouble(float64(o.payload.(doublePayload)))
	case Date:
		return NewDate(int64(o.payload.(datePayload)))
	case String:
		return NewString(o.payload.(stringPayload).s)
	case Binary:
		p := o.payload.(binaryPayload)
		return NewBinary(p.buf, true)
	case Fd:
		return DupFd(o)
	case Error:
		p := o.payload.(errorPayload)
		var extra, stack *Object
		if p.extra != nil {
			extra = Copy(p.extra)
		}
		if p.stack != nil {
			stack = Copy(p.stack)
		}
		c := NewError(p.code, p.message, extra, stack)
		// NewError retained extra/stack; release our temporary Copy refs
		// since NewError took its own.
		Release(extra)
		Release(stack)
		return c
	case Array:
		p := o.payload.(arrayPayload)
		items := make([]*Object, len(p.items))
		for i, it := range p.items {
			items[i] = Copy(it)
		}
		c := NewArray(items...)
		for _, it := range items {
			Release(it)
		}
		return c
	case Dictionary:
		p := o.payload.(dictPayload)
		c := NewDictionary()
		for _, k := range p.keys {
			v := Copy(p.vals[k])
			DictSet(c, k, v)
			Release(v)
		}
		return c
	case Shmem:
		p := o.payload.(shmemPayload)
		return newObject(Shmem, shmemPayload{name: p.name, size: p.size})
	default:
		return NewNull()
	}
}
