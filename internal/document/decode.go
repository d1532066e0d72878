package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ErrInvalidJSON is returned when a document cannot be parsed
var ErrInvalidJSON = errors.New("invalid json")

// Parse decodes a JSON document keeping object key order
func Parse(data []byte) (Node, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return FromResult(gjson.ParseBytes(data)), nil
}

// MustParse is Parse for literals known to be valid
func MustParse(data string) Node {
	n, err := Parse([]byte(data))
	if err != nil {
		panic(fmt.Sprintf("document: %v: %s", err, data))
	}
	return n
}

// FromResult converts a gjson result into a node
func FromResult(r gjson.Result) Node {
	switch {
	case !r.Exists():
		return nil
	case r.IsObject():
		obj := NewObject()
		r.ForEach(func(key, value gjson.Result) bool {
			obj.Set(key.String(), FromResult(value))
			return true
		})
		return obj
	case r.IsArray():
		return Scalar{Value: json.RawMessage(r.Raw)}
	}

	switch r.Type {
	case gjson.True, gjson.False:
		return Scalar{Value: r.Bool()}
	case gjson.Number:
		return Scalar{Value: json.Number(r.Raw)}
	case gjson.String:
		return Scalar{Value: r.Str}
	default:
		return Null
	}
}

// FromValue converts a Go value into a node. Maps and structs go through
// their JSON encoding, so map keys end up sorted.
func FromValue(v any) (Node, error) {
	switch val := v.(type) {
	case nil:
		return Null, nil
	case Node:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return Scalar{Value: val}, nil
	case int:
		return Scalar{Value: json.Number(strconv.Itoa(val))}, nil
	case int64:
		return Scalar{Value: json.Number(strconv.FormatInt(val, 10))}, nil
	case uint64:
		return Scalar{Value: json.Number(strconv.FormatUint(val, 10))}, nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(float64(val)), nil
	}

	data, err := gojson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return Parse(data)
}

// FromYAML converts a YAML node into a document node, keeping mapping order
func FromYAML(n *yaml.Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return FromYAML(n.Content[0])
	case yaml.AliasNode:
		return FromYAML(n.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			value, err := FromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, value)
		}
		return obj, nil
	case yaml.SequenceNode:
		var items []any
		if err := n.Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to decode sequence: %w", err)
		}
		data, err := gojson.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sequence: %w", err)
		}
		return Scalar{Value: json.RawMessage(data)}, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to decode scalar: %w", err)
		}
		return FromValue(v)
	}
}
