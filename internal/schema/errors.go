package schema

import "fmt"

// PathError is returned when a position has no counterpart in the schema
type PathError struct {
	Position string
	Segment  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("no schema element %q in position %q", e.Segment, e.Position)
}

// ResolutionError is returned when a schema position or reference cannot
// be resolved
type ResolutionError struct {
	Position string
	Segment  string
	Reason   string
}

func (e *ResolutionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot resolve schema position %q: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("cannot resolve schema position %q at %q", e.Position, e.Segment)
}
