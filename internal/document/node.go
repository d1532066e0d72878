package document

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Node is one value of the model tree: either an *Object or a Scalar.
// A nil Node means "no value".
type Node interface {
	json.Marshaler
	Clone() Node
	isNode()
}

// Scalar holds a JSON leaf. Value is one of nil, bool, string,
// json.Number or json.RawMessage (for JSON arrays).
type Scalar struct {
	Value any
}

// Null is the JSON null scalar
var Null = Scalar{}

// String returns a string scalar
func String(s string) Scalar { return Scalar{Value: s} }

// Bool returns a boolean scalar
func Bool(b bool) Scalar { return Scalar{Value: b} }

// Number returns a numeric scalar
func Number(n float64) Scalar {
	return Scalar{Value: json.Number(strconv.FormatFloat(n, 'f', -1, 64))}
}

func (Scalar) isNode() {}

// Clone returns a copy of the scalar
func (s Scalar) Clone() Node {
	if raw, ok := s.Value.(json.RawMessage); ok {
		return Scalar{Value: append(json.RawMessage(nil), raw...)}
	}
	return s
}

// MarshalJSON encodes the scalar
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch v := s.Value.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	case json.Number:
		if v == "" {
			return []byte("0"), nil
		}
		return []byte(v), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("null"), nil
		}
		return append([]byte(nil), v...), nil
	default:
		return gojson.Marshal(v)
	}
}

// AsObject returns the node as an object when it is one
func AsObject(n Node) (*Object, bool) {
	obj, ok := n.(*Object)
	return obj, ok && obj != nil
}

// IsObject reports whether the node is an object
func IsObject(n Node) bool {
	_, ok := AsObject(n)
	return ok
}

// IsNull reports whether the node is absent or JSON null
func IsNull(n Node) bool {
	if n == nil {
		return true
	}
	s, ok := n.(Scalar)
	return ok && s.Value == nil
}

// Clone deep-copies a node, keeping nil as nil
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

// Marshal encodes a node, nil included
func Marshal(n Node) ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	return n.MarshalJSON()
}

// Equal compares two nodes deeply, including object key order.
// nil and JSON null are equal.
func Equal(a, b Node) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	ao, aok := AsObject(a)
	bo, bok := AsObject(b)
	if aok != bok {
		return false
	}
	if aok {
		if ao.Len() != bo.Len() {
			return false
		}
		for i, key := range ao.keys {
			if bo.keys[i] != key {
				return false
			}
			if !Equal(ao.values[key], bo.values[key]) {
				return false
			}
		}
		return true
	}

	as, bs := a.(Scalar), b.(Scalar)
	ar, aRaw := as.Value.(json.RawMessage)
	br, bRaw := bs.Value.(json.RawMessage)
	if aRaw || bRaw {
		return aRaw && bRaw && bytes.Equal(ar, br)
	}
	return reflect.DeepEqual(as.Value, bs.Value)
}

// SameKeys reports whether both nodes are objects with the same keys in
// the same order, or equal scalars.
func SameKeys(a, b Node) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	ao, aok := AsObject(a)
	bo, bok := AsObject(b)
	if aok && bok {
		return slices.Equal(ao.keys, bo.keys)
	}
	if !aok && !bok {
		return Equal(a, b)
	}
	return false
}

// Text returns the string held by a scalar, or "" otherwise
func Text(n Node) string {
	s, ok := n.(Scalar)
	if !ok {
		return ""
	}
	str, _ := s.Value.(string)
	return str
}
