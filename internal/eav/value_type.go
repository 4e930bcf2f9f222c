package eav

import (
	"bytes"
	"encoding/json"
	"time"
)

// ValueType is the declared type tag of an attribute.
type ValueType string

const (
	ValueTypeStr   ValueType = "str"
	ValueTypeInt   ValueType = "int"
	ValueTypeFloat ValueType = "float"
	ValueTypeTime  ValueType = "time"
	ValueTypeBool  ValueType = "bool"
)

// Valid reports whether t is one of the five recognized tags.
func (t ValueType) Valid() bool {
	switch t {
	case ValueTypeStr, ValueTypeInt, ValueTypeFloat, ValueTypeTime, ValueTypeBool:
		return true
	}
	return false
}

// TypedValue is a value tagged with its shape: Str, Int, Float, Time or Bool.
// The tag is checked against the attribute's declared ValueType before a write.
type TypedValue interface {
	Type() ValueType
	assign(v *Value)
}

type (
	Str   string
	Int   int64
	Float float64
	Time  time.Time
	Bool  bool
)

func (Str) Type() ValueType   { return ValueTypeStr }
func (Int) Type() ValueType   { return ValueTypeInt }
func (Float) Type() ValueType { return ValueTypeFloat }
func (Time) Type() ValueType  { return ValueTypeTime }
func (Bool) Type() ValueType  { return ValueTypeBool }

func (s Str) assign(v *Value) {
	x := string(s)
	v.ValueStr = &x
}

func (i Int) assign(v *Value) {
	x := int64(i)
	v.ValueInt = &x
}

func (f Float) assign(v *Value) {
	x := float64(f)
	v.ValueFloat = &x
}

func (t Time) assign(v *Value) {
	x := time.Time(t).UTC()
	v.ValueTime = &x
}

func (b Bool) assign(v *Value) {
	x := bool(b)
	v.ValueBool = &x
}

// DecodeTypedValue decodes raw JSON into the variant demanded by vt. The JSON shape
// must match exactly: no number is read from a string and no string from a number.
// Time values are RFC 3339 strings.
func DecodeTypedValue(vt ValueType, raw json.RawMessage) (TypedValue, error) {
	if !vt.Valid() {
		return nil, invalidArgument("unknown value type %q", vt)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, invalidArgument("value is not valid JSON")
	}

	switch x := decoded.(type) {
	case string:
		switch vt {
		case ValueTypeStr:
			return Str(x), nil
		case ValueTypeTime:
			t, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, invalidArgument("value %q is not an RFC 3339 timestamp", x)
			}
			return Time(t), nil
		}
	case json.Number:
		switch vt {
		case ValueTypeInt:
			n, err := x.Int64()
			if err != nil {
				return nil, invalidArgument("value %s is not an integer", x)
			}
			return Int(n), nil
		case ValueTypeFloat:
			f, err := x.Float64()
			if err != nil {
				return nil, invalidArgument("value %s is not a number", x)
			}
			return Float(f), nil
		}
	case bool:
		if vt == ValueTypeBool {
			return Bool(x), nil
		}
	}
	return nil, invalidArgument("value does not match declared type %q", vt)
}
