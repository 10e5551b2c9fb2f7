package object

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// ToJSON renders o as a JSON document. Containers map directly onto JSON
// arrays/objects; variants JSON has no native representation for (Binary,
// Fd, Date, UInt64, Error, Shmem) are encoded as single-key objects keyed by
// a reserved sigil, so a round trip through FromJSON recovers the original
// variant -- except Fd, whose sigil decodes to an Error (see FromJSON).
func ToJSON(o *Object) ([]byte, error) {
	return json.Marshal(toJSONValue(o))
}

func toJSONValue(o *Object) interface{} {
	if o == nil {
		return nil
	}

	switch o.typ {
	case Null:
		return nil
	case Bool:
		return bool(o.payload.(boolPayload))
	case Int64:
		return int64(o.payload.(int64Payload))
	case UInt64:
		return map[string]interface{}{"$uint": strconv.FormatUint(uint64(o.payload.(uint64Payload)), 10)}
	case Double:
		return float64(o.payload.(doublePayload))
	case Date:
		return map[string]interface{}{"$date": int64(o.payload.(datePayload))}
	case String:
		return o.payload.(stringPayload).s
	case Binary:
		return map[string]interface{}{"$binary": base64.StdEncoding.EncodeToString(o.payload.(binaryPayload).buf)}
	case Fd:
		return map[string]interface{}{"$fd": o.payload.(fdPayload).fd}
	case Error:
		p := o.payload.(errorPayload)
		errObj := map[string]interface{}{
			"code":    p.code,
			"message": p.message,
		}
		if p.extra != nil {
			errObj["extra"] = toJSONValue(p.extra)
		}
		if p.stack != nil {
			errObj["stack"] = toJSONValue(p.stack)
		}
		return map[string]interface{}{"$error": errObj}
	case Array:
		p := o.payload.(arrayPayload)
		out := make([]interface{}, len(p.items))
		for i, v := range p.items {
			out[i] = toJSONValue(v)
		}
		return out
	case Dictionary:
		p := o.payload.(dictPayload)
		out := make(map[string]interface{}, len(p.keys))
		for _, k := range p.keys {
			out[k] = toJSONValue(p.vals[k])
		}
		return out
	case Shmem:
		p := o.payload.(shmemPayload)
		return map[string]interface{}{"$shmem": map[string]interface{}{"name": p.name, "size": p.size}}
	default:
		return nil
	}
}

// FromJSON parses a JSON document into an Object tree, recovering
// sigil-encoded variants. A recognized sigil whose value is malformed
// decodes to an Error Object rather than failing the whole parse, so a
// dictionary with one bad field doesn't poison its siblings; a single-key
// object whose key is not a known sigil stays a plain Dictionary. The $fd sigil never decodes to a live
// Fd: descriptors only cross process boundaries through a transport that
// actually passes them, so the decoded position holds an Error instead.
func FromJSON(data []byte) (*Object, error) {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSONValue(raw), nil
}

func fromJSONValue(v interface{}) *Object {
	switch t := v.(type) {
	case nil:
		return NewNull()
	case bool:
		return NewBool(t)
	case string:
		return NewString(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewInt64(i)
		}
		f, _ := t.Float64()
		return NewDouble(f)
	case []interface{}:
		items := make([]*Object, len(t))
		for i, e := range t {
			items[i] = fromJSONValue(e)
		}
		arr := NewArray(items...)
		for _, it := range items {
			Release(it)
		}
		return arr
	case map[string]interface{}:
		if sigil, ok := decodeSigil(t); ok {
			return sigil
		}
		dict := NewDictionary()
		for k, e := range t {
			v := fromJSONValue(e)
			DictSet(dict, k, v)
			Release(v)
		}
		return dict
	default:
		return NewKindError(KindInvalidResponse, fmt.Sprintf("json: unsupported value %T", v))
	}
}

// decodeSigil recognizes single-key objects carrying one of the reserved
// sigils and decodes them back to their original variant. ok is false for
// any map that isn't a recognized sigil wrapper, so it falls through to a
// plain Dictionary.
func decodeSigil(m map[string]interface{}) (*Object, bool) {
	if len(m) != 1 {
		return nil, false
	}

	if v, ok := m["$uint"]; ok {
		s, ok := v.(string)
		if !ok {
			return NewKindError(KindInvalidResponse, "json: $uint must be a string"), true
		}
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return NewKindError(KindInvalidResponse, "json: $uint: "+err.Error()), true
		}
		return NewUInt64(u), true
	}

	if v, ok := m["$date"]; ok {
		n, ok := v.(json.Number)
		if !ok {
			return NewKindError(KindInvalidResponse, "json: $date must be a number"), true
		}
		i, err := n.Int64()
		if err != nil {
			return NewKindError(KindInvalidResponse, "json: $date: "+err.Error()), true
		}
		return NewDate(i), true
	}

	if v, ok := m["$binary"]; ok {
		s, ok := v.(string)
		if !ok {
			return NewKindError(KindInvalidResponse, "json: $binary must be a string"), true
		}
		buf, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return NewKindError(KindInvalidResponse, "json: $binary: "+err.Error()), true
		}
		return NewBinary(buf, false), true
	}

	if _, ok := m["$fd"]; ok {
		// JSON carries no OS-level descriptor transfer: the number in a
		// peer-supplied $fd sigil names nothing in this process, and
		// wrapping it in a live owned Fd would close an arbitrary local
		// descriptor on release. Fd round trips fail with an Error.
		return NewKindError(KindInvalidResponse, "json: $fd does not transfer a file descriptor"), true
	}

	if v, ok := m["$error"]; ok {
		em, ok := v.(map[string]interface{})
		if !ok {
			return NewKindError(KindInvalidResponse, "json: $error must be an object"), true
		}
		code := 0
		if cn, ok := em["code"].(json.Number); ok {
			if ci, err := cn.Int64(); err == nil {
				code = int(ci)
			}
		}
		msg, _ := em["message"].(string)

		var extra, stack *Object
		if ev, ok := em["extra"]; ok {
			extra = fromJSONValue(ev)
		}
		if sv, ok := em["stack"]; ok {
			stack = fromJSONValue(sv)
		}
		err := NewError(code, msg, extra, stack)
		Release(extra)
		Release(stack)
		return err, true
	}

	if v, ok := m["$shmem"]; ok {
		sm, ok := v.(map[string]interface{})
		if !ok {
			return NewKindError(KindInvalidResponse, "json: $shmem must be an object"), true
		}
		name, _ := sm["name"].(string)
		size := 0
		if sn, ok := sm["size"].(json.Number); ok {
			if si, err := sn.Int64(); err == nil {
				size = int(si)
			}
		}
		return newObject(Shmem, shmemPayload{name: name, size: size}), true
	}

	return nil, false
}
