// Package flagtypes defines the data model shared by every flagcore
// component: flag values, flag definitions, targeting rules, evaluation
// contexts and results, version vectors, and audit records.
package flagtypes

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the dynamic type carried by a FlagValue.
type ValueKind string

const (
	KindBool   ValueKind = "bool"
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindJSON   ValueKind = "json"
)

// Value is a tagged union over {Bool, String, Int, Float, Json}. Only the
// field matching Kind is meaningful; the rest are zero. Typed accessors
// perform the coercions fixed by the spec rather than relying on callers
// to type-switch.
type Value struct {
	Kind  ValueKind       `json:"kind"`
	Bool  bool            `json:"-"`
	Str   string          `json:"-"`
	Int   int64           `json:"-"`
	Float float64         `json:"-"`
	JSON  json.RawMessage `json:"-"`
}

// BoolValue constructs a Bool-kinded Value.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// StringValue constructs a String-kinded Value.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// IntValue constructs an Int-kinded Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue constructs a Float-kinded Value.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// JSONValue constructs a Json-kinded Value from already-canonical JSON bytes.
func JSONValue(raw json.RawMessage) Value { return Value{Kind: KindJSON, JSON: raw} }

// AsBool coerces the value to bool. Non-bool kinds return false.
func (v Value) AsBool() bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return false
}

// AsString coerces the value to string per the spec's coercion table:
// Bool -> "true"/"false", numeric -> decimal formatting, Json -> canonical
// serialization, String -> itself.
func (v Value) AsString() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindJSON:
		return string(v.JSON)
	default:
		return ""
	}
}

// AsInt coerces to int64. Only Int values coerce; everything else is 0.
func (v Value) AsInt() int64 {
	if v.Kind == KindInt {
		return v.Int
	}
	return 0
}

// AsFloat coerces to float64. Only Float values coerce; everything else is 0.
func (v Value) AsFloat() float64 {
	if v.Kind == KindFloat {
		return v.Float
	}
	return 0
}

// Equal reports whether two values share a kind and payload. Two values
// with no Kind are equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindString:
		return v.Str == other.Str
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindJSON:
		return string(v.JSON) == string(other.JSON)
	default:
		return true
	}
}

// MarshalJSON renders the value as the wire tagged object
// {"kind": "...", "value": ...} required by spec.md §6. A Value with no
// Kind (an unset field) renders as null.
func (v Value) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind  ValueKind   `json:"kind"`
		Value interface{} `json:"value"`
	}
	w := wire{Kind: v.Kind}
	switch v.Kind {
	case KindBool:
		w.Value = v.Bool
	case KindString:
		w.Value = v.Str
	case KindInt:
		w.Value = v.Int
	case KindFloat:
		w.Value = v.Float
	case KindJSON:
		w.Value = json.RawMessage(v.JSON)
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("flagtypes: unknown value kind %q", v.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire tagged object back into a Value; null
// leaves the Value unset.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var w struct {
		Kind  ValueKind       `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case KindString:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindInt:
		var i int64
		if err := json.Unmarshal(w.Value, &i); err != nil {
			return err
		}
		*v = IntValue(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindJSON:
		*v = JSONValue(append(json.RawMessage(nil), w.Value...))
	default:
		return fmt.Errorf("flagtypes: unknown value kind %q", w.Kind)
	}
	return nil
}
