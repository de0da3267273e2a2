package protocol

import (
	"fmt"
	"strconv"
)

// Kind discriminates the variants of Value
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindString
	KindArray
	KindMap
	KindError
)

// Value is the tagged wire value: Null, Integer, String, Array or Map.
// Maps preserve insertion order and flatten to key/value arrays on the
// wire.
type Value struct {
	Kind Kind
	Int  int64
	Str  string
	Arr  []Value
	Map  []MapEntry
	Err  *Error
}

// MapEntry is one ordered key/value pair of a map value
type MapEntry struct {
	Key   string
	Value Value
}

// Null returns the null value
func Null() Value {
	return Value{Kind: KindNull}
}

// NewInt returns an integer value
func NewInt(n int64) Value {
	return Value{Kind: KindInt, Int: n}
}

// NewString returns a bulk-string value
func NewString(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NewArray returns an array value
func NewArray(vs ...Value) Value {
	return Value{Kind: KindArray, Arr: vs}
}

// NewStringArray returns an array of bulk strings
func NewStringArray(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = NewString(s)
	}
	return Value{Kind: KindArray, Arr: vs}
}

// NewMap returns a map value from ordered entries
func NewMap(entries ...MapEntry) Value {
	return Value{Kind: KindMap, Map: entries}
}

// NewErrorValue wraps an Error into a value
func NewErrorValue(err *Error) Value {
	return Value{Kind: KindError, Err: err}
}

// OK is the canonical success response
func OK() Value {
	return NewString("OK")
}

// AsString renders scalar values as strings, matching the loose typing of
// the wire protocol
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindNull:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AsInt parses scalar values as integers
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindString:
		return strconv.ParseInt(v.Str, 10, 64)
	default:
		return 0, fmt.Errorf("value is not an integer")
	}
}

// MapGet looks up a key in a map value; ok is false when absent
func (v Value) MapGet(key string) (Value, bool) {
	for _, e := range v.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Null(), false
}
