package schema

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ItemKind tells what an Item describes
type ItemKind int

const (
	KindObject ItemKind = iota
	KindValue
	KindEnum
	KindReference
)

// EnumValue is one choice of an enum item. Children hold a nested group.
type EnumValue struct {
	Value    string
	Children []*EnumValue
}

// Item is one node of the application schema
type Item struct {
	kind      ItemKind
	id        string
	parent    *Item
	root      bool
	array     bool
	readOnly  bool
	hidden    bool
	valueType string
	target    string
	ref       string

	childIDs []string
	children map[string]*Item
	values   []*EnumValue
}

// ID returns the name of the item under its parent
func (i *Item) ID() string { return i.id }

// Parent returns the enclosing item
func (i *Item) Parent() *Item { return i.parent }

func (i *Item) IsObject() bool    { return i.kind == KindObject }
func (i *Item) IsValue() bool     { return i.kind == KindValue }
func (i *Item) IsEnum() bool      { return i.kind == KindEnum }
func (i *Item) IsReference() bool { return i.kind == KindReference }
func (i *Item) IsArray() bool     { return i.array }
func (i *Item) IsRoot() bool      { return i.root }
func (i *Item) IsReadonly() bool  { return i.readOnly }
func (i *Item) IsHidden() bool    { return i.hidden }

// ValueType returns the JSON type of a value item
func (i *Item) ValueType() string { return i.valueType }

// TargetPath returns the "format" path a value refers to, if any
func (i *Item) TargetPath() string { return i.target }

// Reference returns the $ref of a reference item
func (i *Item) Reference() string { return i.ref }

// EnumValues returns the choices of an enum item
func (i *Item) EnumValues() []*EnumValue { return i.values }

// Child returns the named child of an object item, or nil
func (i *Item) Child(id string) *Item {
	if i.children == nil {
		return nil
	}
	return i.children[id]
}

// ChildIDs returns the names of the children in declaration order
func (i *Item) ChildIDs() []string {
	return append([]string(nil), i.childIDs...)
}

func (i *Item) addChild(child *Item) {
	if i.children == nil {
		i.children = make(map[string]*Item)
	}
	if _, ok := i.children[child.id]; !ok {
		i.childIDs = append(i.childIDs, child.id)
	}
	i.children[child.id] = child
}

// Parse builds the schema tree from a JSON schema document
func Parse(data []byte) (*Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse schema: invalid json")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("failed to parse schema: root is not an object")
	}

	root := &Item{kind: KindObject, root: true}
	addProperties(root, field(doc, "properties"))

	if defs := field(doc, "$defs"); defs.IsObject() {
		defsItem := &Item{kind: KindObject, id: "$defs", parent: root}
		defs.ForEach(func(key, value gjson.Result) bool {
			if child := generateItem(value, key.String(), defsItem); child != nil {
				defsItem.addChild(child)
			}
			return true
		})
		root.addChild(defsItem)
	}
	return root, nil
}

func addProperties(item *Item, props gjson.Result) {
	if !props.IsObject() {
		return
	}
	props.ForEach(func(key, value gjson.Result) bool {
		if child := generateItem(value, key.String(), item); child != nil {
			item.addChild(child)
		}
		return true
	})
}

// generateItem returns nil for definitions it does not understand
func generateItem(json gjson.Result, id string, parent *Item) *Item {
	if !json.IsObject() {
		return nil
	}

	var item *Item
	if t := field(json, "type"); t.Exists() {
		switch t.String() {
		case "object":
			item = &Item{kind: KindObject, id: id, parent: parent}
			addProperties(item, field(json, "properties"))
		case "array":
			item = generateItem(field(json, "items"), id, parent)
			if item == nil {
				return nil
			}
			item.array = true
		default:
			item = &Item{kind: KindValue, id: id, parent: parent, valueType: t.String()}
			item.target = field(json, "format").String()
		}
	} else if enum := field(json, "enum"); enum.IsArray() {
		item = &Item{kind: KindEnum, id: id, parent: parent}
		item.values = enumValues(enum)
		item.target = field(json, "format").String()
	} else if ref := field(json, "$ref"); ref.Exists() {
		item = &Item{kind: KindReference, id: id, parent: parent, ref: ref.String()}
	} else {
		return nil
	}

	if field(json, "readOnly").Bool() {
		item.readOnly = true
	}
	if field(json, "writeOnly").Bool() {
		item.hidden = true
	}
	return item
}

func enumValues(enum gjson.Result) []*EnumValue {
	var values []*EnumValue
	enum.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			value.ForEach(func(key, group gjson.Result) bool {
				values = append(values, &EnumValue{
					Value:    key.String(),
					Children: enumValues(field(group, "enum")),
				})
				return true
			})
			return true
		}
		values = append(values, &EnumValue{Value: value.String()})
		return true
	})
	return values
}

// field looks a key up literally, without gjson path syntax
func field(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			return false
		}
		return true
	})
	return found
}
