package document

import (
	"bytes"
	"slices"

	gojson "github.com/goccy/go-json"
)

// Object is a JSON object that remembers key insertion order.
// Containers (arrays of the application model) are objects too: their
// order is the order of their keys.
type Object struct {
	keys   []string
	values map[string]Node
}

// NewObject returns an empty object
func NewObject() *Object {
	return &Object{values: make(map[string]Node)}
}

func (*Object) isNode() {}

// Len returns the number of keys
func (o *Object) Len() int { return len(o.keys) }

// Keys returns a copy of the keys in order
func (o *Object) Keys() []string { return slices.Clone(o.keys) }

// Has reports whether the key is present
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Get returns the value stored under key
func (o *Object) Get(key string) (Node, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key. An existing key keeps its slot, a new key is
// appended.
func (o *Object) Set(key string, value Node) *Object {
	if value == nil {
		value = Null
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// Delete removes key and reports whether it was there
func (o *Object) Delete(key string) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
	return true
}

// InsertProperty stores value under key immediately before the sibling
// named before. Without a usable before key, any previous occurrence of key
// is removed and the key is appended last.
func (o *Object) InsertProperty(key string, value Node, before string) {
	if value == nil {
		value = Null
	}
	if before == key && o.Has(key) {
		o.values[key] = value
		return
	}
	o.Delete(key)
	if before != "" {
		if i := slices.Index(o.keys, before); i >= 0 {
			o.keys = slices.Insert(o.keys, i, key)
			o.values[key] = value
			return
		}
	}
	o.keys = append(o.keys, key)
	o.values[key] = value
}

// Range calls fn for each entry in order until fn returns false
func (o *Object) Range(fn func(key string, value Node) bool) {
	for _, key := range o.keys {
		if !fn(key, o.values[key]) {
			return
		}
	}
}

// Clone deep-copies the object
func (o *Object) Clone() Node {
	c := &Object{
		keys:   slices.Clone(o.keys),
		values: make(map[string]Node, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = Clone(v)
	}
	return c
}

// MarshalJSON encodes the object with its keys in order
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := gojson.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
