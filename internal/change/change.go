package change

import (
	"errors"
	"fmt"

	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/schema"
)

// Kind is the type of edit a Change carries
type Kind string

const (
	KindAdd    Kind = "ADD"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
	KindMove   Kind = "MOVE"
	KindReset  Kind = "RESET"
	KindAction Kind = "ACTION"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindAdd, KindUpdate, KindDelete, KindMove, KindReset, KindAction:
		return true
	}
	return false
}

// ErrSlashPosition is returned for the position "/". The root is "".
var ErrSlashPosition = errors.New(`position "/" is not allowed, use "" for the root`)

// UnsupportedKindError is returned for a change kind nothing handles
type UnsupportedKindError struct {
	Kind Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported change kind %q", string(e.Kind))
}

// Action describes what an ACTION change asks observers to perform
type Action struct {
	Context string `json:"context,omitempty"`
	Type    string `json:"actionType,omitempty"`
}

// Change is an edit of the model, requested by a caller or derived while
// applying another change
type Change struct {
	Kind     Kind
	Position string
	Value    document.Node
	// Pointer is computed on demand when nil
	Pointer     *schema.Pointer
	OldPosition string
	BeforeKey   string
	Action      *Action
}

// New returns a change of kind at position
func New(kind Kind, position string, value document.Node) *Change {
	return &Change{Kind: kind, Position: position, Value: value}
}

// NewMove returns a MOVE from oldPosition to position, inserted before
// the sibling beforeKey when set
func NewMove(position, oldPosition, beforeKey string) *Change {
	return &Change{Kind: KindMove, Position: position, OldPosition: oldPosition, BeforeKey: beforeKey}
}

// NewAction returns an ACTION at position
func NewAction(position string, action Action, value document.Node) *Change {
	return &Change{Kind: KindAction, Position: position, Value: value, Action: &action}
}

// Validate checks the change before it is applied
func (c *Change) Validate() error {
	if c.Position == "/" || c.OldPosition == "/" {
		return ErrSlashPosition
	}
	if !c.Kind.Valid() {
		return &UnsupportedKindError{Kind: c.Kind}
	}
	return nil
}

// ParentPosition returns the position of the element containing the
// change target; ok is false at root
func (c *Change) ParentPosition() (string, bool) {
	return schema.ParentPosition(c.Position)
}

func (c *Change) String() string {
	if c.Kind == KindMove {
		return fmt.Sprintf("%s %q from %q", c.Kind, c.Position, c.OldPosition)
	}
	return fmt.Sprintf("%s %q", c.Kind, c.Position)
}
