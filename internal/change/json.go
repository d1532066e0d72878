package change

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"gihan9a/modelsync/internal/document"
)

type wireChange struct {
	Kind        Kind          `json:"type"`
	Position    string        `json:"position"`
	Value       document.Node `json:"value,omitempty"`
	OldPosition string        `json:"oldPosition,omitempty"`
	BeforeKey   string        `json:"beforeKey,omitempty"`
	Action      *Action       `json:"action,omitempty"`
}

// MarshalJSON encodes the change without its pointer
func (c *Change) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(wireChange{
		Kind:        c.Kind,
		Position:    c.Position,
		Value:       c.Value,
		OldPosition: c.OldPosition,
		BeforeKey:   c.BeforeKey,
		Action:      c.Action,
	})
}

// UnmarshalJSON decodes a change, keeping the key order of its value
func (c *Change) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return document.ErrInvalidJSON
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return fmt.Errorf("change must be a json object")
	}
	*c = Change{
		Kind:        Kind(r.Get("type").String()),
		Position:    r.Get("position").String(),
		OldPosition: r.Get("oldPosition").String(),
		BeforeKey:   r.Get("beforeKey").String(),
	}
	if v := r.Get("value"); v.Exists() {
		c.Value = document.FromResult(v)
	}
	if a := r.Get("action"); a.IsObject() {
		c.Action = &Action{
			Context: a.Get("context").String(),
			Type:    a.Get("actionType").String(),
		}
	}
	return nil
}

// ParseList decodes either one change or an array of changes
func ParseList(data []byte) ([]*Change, error) {
	if !gjson.ValidBytes(data) {
		return nil, document.ErrInvalidJSON
	}
	r := gjson.ParseBytes(data)
	if !r.IsArray() {
		c := &Change{}
		if err := c.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return []*Change{c}, nil
	}

	var list []*Change
	var err error
	r.ForEach(func(_, item gjson.Result) bool {
		c := &Change{}
		if err = c.UnmarshalJSON([]byte(item.Raw)); err != nil {
			return false
		}
		list = append(list, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
