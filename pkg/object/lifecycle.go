package object

import "sync/atomic"

// Retain increments object's reference count and returns it, for convenient
// chaining at call sites (matches rpc_retain's signature).
func Retain(o *Object) *Object {
	if o == nil {
		return nil
	}
	atomic.AddInt32(&o.refcount, 1)
	return o
}

// Release decrements object's reference count. At zero it recursively
// releases contained objects, frees owned buffers, closes owned file
// descriptors, and unmaps Shmem -- exactly once. The caller must not use o
// after Release brings the count to zero (mirrors the rpc_release macro's
// "set to NULL" convention, modulo Go having no way to null the caller's
// variable for them).
func Release(o *Object) int32 {
	if o == nil {
		return 0
	}

	n := atomic.AddInt32(&o.refcount, -1)
	if n > 0 {
		return n
	}
	if n < 0 {
		// Over-release: nothing sane to do but surface it loudly rather
		// than double-destroy.
		return n
	}

	destroy(o)
	return 0
}

func destroy(o *Object) {
	switch o.typ {
	case Binary:
		p := o.payload.(binaryPayload)
		if p.owned {
			p.buf = nil
		}
	case Fd:
		p := o.payload.(fdPayload)
		closeFd(p.fd)
	case Error:
		p := o.payload.(errorPayload)
		Release(p.extra)
		Release(p.stack)
	case Array:
		p := o.payload.(arrayPayload)
		for _, item := range p.items {
			Release(item)
		}
	case Dictionary:
		p := o.payload.(dictPayload)
		for _, v := range p.vals {
			Release(v)
		}
	case Shmem:
		releaseShmem(o.payload.(shmemPayload))
	}
}
