package object

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe renders o as a human-readable one-line form, used by log and
// test failure messages. Strings are C-escaped and double-quoted,
// arrays use "[v, v]" syntax, dictionaries use "{k: v, k: v}" in insertion
// order.
func Describe(o *Object) string {
	var sb strings.Builder
	describeInto(&sb, o)
	return sb.String()
}

func describeInto(sb *strings.Builder, o *Object) {
	if o == nil {
		sb.WriteString("<nil>")
		return
	}

	switch o.typ {
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(o.payload.(boolPayload))))
	case Int64:
		sb.WriteString(strconv.FormatInt(int64(o.payload.(int64Payload)), 10))
	case UInt64:
		sb.WriteString(strconv.FormatUint(uint64(o.payload.(uint64Payload)), 10))
	case Double:
		sb.WriteString(strconv.FormatFloat(float64(o.payload.(doublePayload)), 'g', -1, 64))
	case Date:
		fmt.Fprintf(sb, "@%d", int64(o.payload.(datePayload)))
	case String:
		sb.WriteString(quoteString(o.payload.(stringPayload).s))
	case Binary:
		fmt.Fprintf(sb, "<%d bytes>", len(o.payload.(binaryPayload).buf))
	case Fd:
		fmt.Fprintf(sb, "<fd %d>", o.payload.(fdPayload).fd)
	case Error:
		p := o.payload.(errorPayload)
		fmt.Fprintf(sb, "<error %d: %s>", p.code, p.message)
	case Array:
		sb.WriteByte('[')
		p := o.payload.(arrayPayload)
		for i, v := range p.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			describeInto(sb, v)
		}
		sb.WriteByte(']')
	case Dictionary:
		sb.WriteByte('{')
		p := o.payload.(dictPayload)
		for i, k := range p.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteString(k))
			sb.WriteString(": ")
			describeInto(sb, p.vals[k])
		}
		sb.WriteByte('}')
	case Shmem:
		p := o.payload.(shmemPayload)
		fmt.Fprintf(sb, "<shmem %q, %d bytes>", p.name, p.size)
	default:
		sb.WriteString("<?>")
	}
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
