package settings

import (
	"strconv"
	"strings"
)

type valueKind uint8

const (
	kindNone valueKind = iota
	kindBool
	kindString
)

// Value is an option value: either a boolean or an enum string.
type Value struct {
	kind valueKind
	b    bool
	s    string
}

// Bool returns a boolean option value.
func Bool(b bool) Value {
	return Value{kind: kindBool, b: b}
}

// String returns an enum option value.
func String(s string) Value {
	return Value{kind: kindString, s: s}
}

// ParseValue parses a command-line option value. "True"/"False" in any case
// become booleans, everything else is kept as an enum string.
func ParseValue(raw string) Value {
	switch strings.ToLower(raw) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(raw)
}

// IsZero reports whether v holds no value.
func (v Value) IsZero() bool {
	return v.kind == kindNone
}

// IsBool reports whether v is a boolean.
func (v Value) IsBool() bool {
	return v.kind == kindBool
}

// AsBool returns the boolean held by v and whether v is a boolean at all.
func (v Value) AsBool() (b, ok bool) {
	return v.b, v.kind == kindBool
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == kindBool {
		return v.b == o.b
	}
	return v.s == o.s
}

func (v Value) String() string {
	switch v.kind {
	case kindBool:
		if v.b {
			return "True"
		}
		return "False"
	case kindString:
		return v.s
	}
	return ""
}

// MarshalJSON writes booleans as JSON booleans and enums as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindBool:
		return strconv.AppendBool(nil, v.b), nil
	case kindString:
		return strconv.AppendQuote(nil, v.s), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	switch s := string(data); s {
	case "null":
		*v = Value{}
		return nil
	case "true", "false":
		*v = Bool(s == "true")
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	*v = String(s)
	return nil
}
