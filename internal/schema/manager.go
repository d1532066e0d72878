package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

//go:embed default_schema.json
var defaultSchema []byte

// DefaultSchema returns the embedded application schema
func DefaultSchema() []byte {
	return append([]byte(nil), defaultSchema...)
}

// maxReferenceHops bounds $ref chains
const maxReferenceHops = 32

// Manager answers structural questions about model positions
type Manager struct {
	root *Item
	log  *zap.SugaredLogger
}

// NewManager parses the given schema, or the embedded one when data is nil
func NewManager(data []byte, log *zap.SugaredLogger) (*Manager, error) {
	if data == nil {
		data = defaultSchema
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	root, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Debugw("Schema loaded", "properties", root.ChildIDs())
	return &Manager{root: root, log: log}, nil
}

// Root returns the root schema item
func (m *Manager) Root() *Item { return m.root }

// LocateItem finds the item at a schema position, following references
// on the way. With resolve set, a reference found at the end is resolved
// too.
func (m *Manager) LocateItem(schemaPosition string, resolve bool) (*Item, error) {
	cur := m.root
	for _, seg := range strings.Split(schemaPosition, "/") {
		if seg == "" || seg == "#" {
			continue
		}
		if cur.IsReference() {
			resolved, err := m.ResolveReference(cur)
			if err != nil {
				return nil, err
			}
			cur = resolved
		}
		child := cur.Child(seg)
		if child == nil {
			return nil, &ResolutionError{Position: schemaPosition, Segment: seg}
		}
		cur = child
	}
	if resolve && cur.IsReference() {
		return m.ResolveReference(cur)
	}
	return cur, nil
}

// ResolveReference returns the item a reference points to
func (m *Manager) ResolveReference(ref *Item) (*Item, error) {
	cur := ref
	for hops := 0; cur.IsReference(); hops++ {
		if hops >= maxReferenceHops {
			return nil, &ResolutionError{Position: ref.Reference(), Reason: "reference chain too long"}
		}
		next, err := m.LocateItem(cur.Reference(), false)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// GenerateSchemaPointer walks the schema along position. Elements
// following an array are item keys and do not appear in the schema
// position.
func (m *Manager) GenerateSchemaPointer(position string) (*Pointer, error) {
	if position == "" {
		return NewPointer("", "", false), nil
	}

	var (
		schemaPos  []string
		cur        = m.root
		isProperty bool
		skipNext   bool
	)
	for _, elem := range strings.Split(position, "/") {
		if skipNext {
			skipNext = false
			isProperty = false
			continue
		}
		if cur.IsReference() {
			resolved, err := m.ResolveReference(cur)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", position, err)
			}
			cur = resolved
		}
		child := cur.Child(elem)
		if child == nil {
			return nil, &PathError{Position: position, Segment: elem}
		}
		schemaPos = append(schemaPos, elem)
		isProperty = true
		if child.IsArray() {
			skipNext = true
		}
		cur = child
	}
	return NewPointer(position, strings.Join(schemaPos, "/"), isProperty), nil
}

// GenerateParentPointer returns the pointer to the container, nil at root
func (m *Manager) GenerateParentPointer(p *Pointer) (*Pointer, error) {
	if p.IsRoot() {
		return nil, nil
	}
	return m.GenerateSchemaPointer(p.ContainerPosition)
}

// GenerateSubSchemaPointer points to name below parent: a property when
// the schema declares it, an array item otherwise
func (m *Manager) GenerateSubSchemaPointer(parent *Pointer, name string) (*Pointer, error) {
	item, err := m.LocateItem(parent.PositionInSchema, true)
	if err != nil {
		return nil, err
	}
	if item.Child(name) != nil {
		return parent.SubPropertyPointer(name), nil
	}
	return parent.SubItemPointer(name), nil
}
