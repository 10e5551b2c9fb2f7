package object

import "fmt"

// Pack builds an Object tree from a format string and a flattened argument
// list, one argument (or group of arguments) per format character:
//
//	v  inline *Object, retained
//	n  Null, no argument
//	b  Bool, consumes a bool
//	B  Binary, consumes ([]byte, copy bool)
//	f  Fd, consumes an int
//	i  Int64, consumes an int or int64
//	u  UInt64, consumes a uint or uint64
//	d  Double, consumes a float64
//	s  String, consumes a string
//	{  begins a Dictionary; each entry is a string key argument followed by
//	   one value format character; } closes it
//	[  begins an Array of value format characters; ] closes it
//
// ':' and ',' may appear anywhere in the format purely for readability
// ("{i,s}" or "i:i"); they carry no meaning and are stripped before
// parsing.
//
// The format must describe exactly one top-level value. Malformed formats,
// arity mismatches, or argument type mismatches return an Error Object
// instead of a partial result.
func Pack(format string, args ...interface{}) *Object {
	p := &packer{format: stripSeparators(format), args: args}

	obj, err := p.value()
	if err == nil && p.pos != len(p.format) {
		Release(obj)
		obj = nil
		err = NewKindError(KindInvalidArgument, fmt.Sprintf("pack: unconsumed format at offset %d", p.pos))
	}
	if err == nil && p.argPos != len(p.args) {
		Release(obj)
		obj = nil
		err = NewKindError(KindInvalidArgument, "pack: unconsumed arguments")
	}
	if err != nil {
		SetLastError(err)
		return err
	}
	return obj
}

type packer struct {
	format []rune
	pos    int

	args   []interface{}
	argPos int
}

func (p *packer) nextArg() (interface{}, bool) {
	if p.argPos >= len(p.args) {
		return nil, false
	}
	a := p.args[p.argPos]
	p.argPos++
	return a, true
}

// value parses exactly one format character (and its nested contents, for
// containers) and returns the Object it produces.
func (p *packer) value() (*Object, *Object) {
	if p.pos >= len(p.format) {
		return nil, NewKindError(KindInvalidArgument, "pack: format ended mid-value")
	}
	c := p.format[p.pos]
	p.pos++

	switch c {
	case 'v':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		o, ok := a.(*Object)
		if !ok {
			return nil, errBadArg(c, "*object.Object")
		}
		return Retain(o), nil

	case 'n':
		return NewNull(), nil

	case 'b':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		v, ok := a.(bool)
		if !ok {
			return nil, errBadArg(c, "bool")
		}
		return NewBool(v), nil

	case 'B':
		bufArg, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		buf, ok := bufArg.([]byte)
		if !ok {
			return nil, errBadArg(c, "[]byte")
		}
		copyArg, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		copyFlag, ok := copyArg.(bool)
		if !ok {
			return nil, errBadArg(c, "bool")
		}
		return NewBinary(buf, copyFlag), nil

	case 'f':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		v, ok := a.(int)
		if !ok {
			return nil, errBadArg(c, "int")
		}
		return NewFd(v), nil

	case 'i':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		switch v := a.(type) {
		case int:
			return NewInt64(int64(v)), nil
		case int64:
			return NewInt64(v), nil
		default:
			return nil, errBadArg(c, "int or int64")
		}

	case 'u':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		switch v := a.(type) {
		case uint:
			return NewUInt64(uint64(v)), nil
		case uint64:
			return NewUInt64(v), nil
		default:
			return nil, errBadArg(c, "uint or uint64")
		}

	case 'd':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		v, ok := a.(float64)
		if !ok {
			return nil, errBadArg(c, "float64")
		}
		return NewDouble(v), nil

	case 's':
		a, ok := p.nextArg()
		if !ok {
			return nil, errMissingArg(c)
		}
		v, ok := a.(string)
		if !ok {
			return nil, errBadArg(c, "string")
		}
		return NewString(v), nil

	case '{':
		dict := NewDictionary()
		for p.pos < len(p.format) && p.format[p.pos] != '}' {
			keyArg, ok := p.nextArg()
			if !ok {
				Release(dict)
				return nil, NewKindError(KindInvalidArgument, "pack: missing dictionary key argument")
			}
			key, ok := keyArg.(string)
			if !ok {
				Release(dict)
				return nil, NewKindError(KindInvalidArgument, "pack: dictionary key argument must be a string")
			}
			v, err := p.value()
			if err != nil {
				Release(dict)
				return nil, err
			}
			DictSet(dict, key, v)
			Release(v)
		}
		if p.pos >= len(p.format) {
			Release(dict)
			return nil, NewKindError(KindInvalidArgument, "pack: unterminated dictionary")
		}
		p.pos++ // consume '}'
		return dict, nil

	case '[':
		arr := NewArray()
		for p.pos < len(p.format) && p.format[p.pos] != ']' {
			v, err := p.value()
			if err != nil {
				Release(arr)
				return nil, err
			}
			ArrayAppend(arr, v)
			Release(v)
		}
		if p.pos >= len(p.format) {
			Release(arr)
			return nil, NewKindError(KindInvalidArgument, "pack: unterminated array")
		}
		p.pos++ // consume ']'
		return arr, nil

	default:
		return nil, NewKindError(KindInvalidArgument, fmt.Sprintf("pack: unknown format character %q", c))
	}
}

func errMissingArg(c rune) *Object {
	return NewKindError(KindInvalidArgument, fmt.Sprintf("pack: missing argument for %q", c))
}

func errBadArg(c rune, want string) *Object {
	return NewKindError(KindInvalidArgument, fmt.Sprintf("pack: argument for %q must be %s", c, want))
}

// stripSeparators removes the purely cosmetic ':' and ',' characters
// allowed between dictionary entries, and any whitespace, leaving only
// format characters for the recursive-descent parser.
func stripSeparators(format string) []rune {
	out := make([]rune, 0, len(format))
	for _, r := range format {
		switch r {
		case ':', ',', ' ', '\t', '\n':
			continue
		default:
			out = append(out, r)
		}
	}
	return out
}
