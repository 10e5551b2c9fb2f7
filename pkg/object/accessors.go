package object

// This file holds typed convenience accessors that never panic: given the
// wrong variant or a nil Object they return the type's zero value. Callers
// that need to distinguish "absent" from "present but zero" should check
// Type() directly instead.

func GetBool(o *Object) bool {
	if o == nil || o.typ != Bool {
		return false
	}
	return bool(o.payload.(boolPayload))
}

func GetInt64(o *Object) int64 {
	if o == nil || o.typ != Int64 {
		return 0
	}
	return int64(o.payload.(int64Payload))
}

func GetUInt64(o *Object) uint64 {
	if o == nil || o.typ != UInt64 {
		return 0
	}
	return uint64(o.payload.(uint64Payload))
}

func GetDouble(o *Object) float64 {
	if o == nil || o.typ != Double {
		return 0
	}
	return float64(o.payload.(doublePayload))
}

func GetDate(o *Object) int64 {
	if o == nil || o.typ != Date {
		return 0
	}
	return int64(o.payload.(datePayload))
}

func GetString(o *Object) string {
	if o == nil || o.typ != String {
		return ""
	}
	return o.payload.(stringPayload).s
}

// GetBinary returns the underlying buffer without copying it. Callers must
// not mutate the result.
func GetBinary(o *Object) []byte {
	if o == nil || o.typ != Binary {
		return nil
	}
	return o.payload.(binaryPayload).buf
}

// GetErrorCode and GetErrorMessage decompose an Error object. They return
// (0, "") for anything else.
func GetErrorCode(o *Object) int {
	if o == nil || o.typ != Error {
		return 0
	}
	return o.payload.(errorPayload).code
}

func GetErrorMessage(o *Object) string {
	if o == nil || o.typ != Error {
		return ""
	}
	return o.payload.(errorPayload).message
}

// GetErrorExtra and GetErrorStack return the nested payload objects of an
// Error without transferring ownership; retain them if you keep a reference
// past the Error's own lifetime.
func GetErrorExtra(o *Object) *Object {
	if o == nil || o.typ != Error {
		return nil
	}
	return o.payload.(errorPayload).extra
}

func GetErrorStack(o *Object) *Object {
	if o == nil || o.typ != Error {
		return nil
	}
	return o.payload.(errorPayload).stack
}

// GetDictByKey and GetArrayAt are sugar for the common "get this typed field
// from a container" pattern used by handler code.
func GetDictByKey(o *Object, key string) *Object {
	return DictGet(o, key)
}

func GetArrayAt(o *Object, index int) *Object {
	return ArrayGet(o, index)
}
