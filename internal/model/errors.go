package model

import "fmt"

// MissingOldPositionError is returned for a MOVE without a source
type MissingOldPositionError struct {
	Position string
}

func (e *MissingOldPositionError) Error() string {
	return fmt.Sprintf("move to %q has no old position", e.Position)
}

// InvalidMoveError is returned for moves that would lose or loop content
type InvalidMoveError struct {
	Position    string
	OldPosition string
	Reason      string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("cannot move %q to %q: %s", e.OldPosition, e.Position, e.Reason)
}

// NotContainerError is returned when an element must hold children but
// holds a plain value
type NotContainerError struct {
	Position string
}

func (e *NotContainerError) Error() string {
	return fmt.Sprintf("element at %q is not an object", e.Position)
}

// MaxDepthError is returned when a change nests deeper than allowed
type MaxDepthError struct {
	Position string
	Depth    int
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("change exceeds max depth %d at %q", e.Depth, e.Position)
}

// AmbiguousQueryError is returned when a single result was expected
type AmbiguousQueryError struct {
	Query   string
	Matches int
}

func (e *AmbiguousQueryError) Error() string {
	return fmt.Sprintf("query %q matched %d elements, expected one", e.Query, e.Matches)
}
