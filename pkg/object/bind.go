package object

import "github.com/mitchellh/mapstructure"

// Bind decodes a Dictionary object into out, a pointer to a Go struct,
// using "mapstructure" tags. This is the convenient path for handler code that wants typed
// arguments instead of walking DictGet calls by hand.
func Bind(o *Object, out interface{}) error {
	if o == nil || o.Type() != Dictionary {
		return NewBindError("Bind: source is not a Dictionary")
	}

	plain := toJSONValue(o)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(plain)
}

// BindError reports a failure in Bind that isn't a mapstructure decode
// error (e.g. wrong source type).
type BindError struct {
	msg string
}

func NewBindError(msg string) *BindError {
	return &BindError{msg: msg}
}

func (e *BindError) Error() string {
	return e.msg
}
