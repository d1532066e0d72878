package schema

import "strings"

// Pointer locates an element both in the model and in the schema
type Pointer struct {
	Position                  string
	PositionInSchema          string
	ContainerPosition         string
	ContainerPositionInSchema string
	LastElement               string
	// IsProperty is false when LastElement is the key of an array item
	IsProperty bool
}

// NewPointer derives container positions and last element from the two
// positions
func NewPointer(position, positionInSchema string, isProperty bool) *Pointer {
	p := &Pointer{
		Position:         position,
		PositionInSchema: positionInSchema,
		IsProperty:       isProperty,
	}
	if position == "" {
		return p
	}
	p.ContainerPosition, p.LastElement, _ = SplitPosition(position)
	p.ContainerPositionInSchema, _ = ParentPosition(positionInSchema)
	return p
}

// IsRoot reports whether the pointer targets the whole model
func (p *Pointer) IsRoot() bool { return p.Position == "" }

// SubPropertyPointer points to a property declared by the schema
func (p *Pointer) SubPropertyPointer(property string) *Pointer {
	return &Pointer{
		Position:                  JoinPosition(p.Position, property),
		PositionInSchema:          JoinPosition(p.PositionInSchema, property),
		ContainerPosition:         p.Position,
		ContainerPositionInSchema: p.PositionInSchema,
		LastElement:               property,
		IsProperty:                true,
	}
}

// SubItemPointer points to an element of the array p points to
func (p *Pointer) SubItemPointer(item string) *Pointer {
	return &Pointer{
		Position:                  JoinPosition(p.Position, item),
		PositionInSchema:          p.PositionInSchema,
		ContainerPosition:         p.Position,
		ContainerPositionInSchema: p.ContainerPositionInSchema,
		LastElement:               item,
		IsProperty:                false,
	}
}

// IsParentOf reports whether position is below p. With direct set, only
// immediate children count.
func (p *Pointer) IsParentOf(position string, direct bool) bool {
	if !IsDescendant(position, p.Position) {
		return false
	}
	if !direct {
		return true
	}
	parent, _ := ParentPosition(position)
	return parent == p.Position
}

func (p *Pointer) String() string {
	return p.Position + " (" + p.PositionInSchema + ")"
}

// ParentPosition returns the position above; ok is false for the root
func ParentPosition(position string) (string, bool) {
	if position == "" {
		return "", false
	}
	i := strings.LastIndexByte(position, '/')
	if i < 0 {
		return "", true
	}
	return position[:i], true
}

// SplitPosition splits a position into its parent and last element
func SplitPosition(position string) (parent, element string, ok bool) {
	if position == "" {
		return "", "", false
	}
	i := strings.LastIndexByte(position, '/')
	if i < 0 {
		return "", position, true
	}
	return position[:i], position[i+1:], true
}

// LastElementOf returns the last segment of a position
func LastElementOf(position string) string {
	_, elem, _ := SplitPosition(position)
	return elem
}

// JoinPosition appends an element to a position
func JoinPosition(position, element string) string {
	if position == "" {
		return element
	}
	if element == "" {
		return position
	}
	return position + "/" + element
}

// Segments returns the non-empty elements of a position
func Segments(position string) []string {
	parts := strings.Split(position, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// IsDescendant reports whether position lies strictly below ancestor
func IsDescendant(position, ancestor string) bool {
	if ancestor == "" {
		return position != ""
	}
	return strings.HasPrefix(position, ancestor+"/")
}

// HasPathPrefix reports whether position equals prefix or lies below it
func HasPathPrefix(position, prefix string) bool {
	return position == prefix || IsDescendant(position, prefix)
}
