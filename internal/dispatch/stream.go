package dispatch

import (
	"fmt"
	"strings"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/schema"
)

// Handler receives the changes delivered to a stream. It runs on the
// goroutine that pushed the change and may push changes itself.
type Handler func(*change.Change)

// Key identifies a subscription as requested
type Key struct {
	Position string
	Property string
}

// DuplicateSubscriptionError is set on a stream whose key is already
// held by an active stream
type DuplicateSubscriptionError struct {
	Key Key
}

func (e *DuplicateSubscriptionError) Error() string {
	if e.Key.Property != "" {
		return fmt.Sprintf("already subscribed to %q with property %q", e.Key.Position, e.Key.Property)
	}
	return fmt.Sprintf("already subscribed to %q", e.Key.Position)
}

// Stream is one subscription. Closing it stops deliveries; the dispatcher
// forgets it on the next Subscribe.
type Stream struct {
	id      string
	key     Key
	handler Handler
	err     error
	closed  bool

	// normalized matching data
	position  string
	onlyLevel bool
	all       bool
}

// ID returns a unique identifier of the stream
func (s *Stream) ID() string { return s.id }

// Key returns the subscription key as requested
func (s *Stream) Key() Key { return s.key }

// Err returns why the stream was rejected, if it was
func (s *Stream) Err() error { return s.err }

// Active reports whether the stream still receives changes
func (s *Stream) Active() bool { return s.err == nil && !s.closed }

// Close stops deliveries to the stream
func (s *Stream) Close() { s.closed = true }

// normalize strips the trailing "?" marker and slashes
func normalize(position string) (string, bool) {
	onlyLevel := false
	if strings.HasSuffix(position, "?") {
		onlyLevel = true
		position = strings.TrimSuffix(position, "?")
	}
	return strings.TrimRight(position, "/"), onlyLevel
}

// interestedIn tells whether a change at position must reach the stream.
// With a property, the element right below the subscribed position or
// the one after must be that property. With the "?" marker, only the
// position itself and its direct children match.
func (s *Stream) interestedIn(position string) bool {
	if s.all {
		return true
	}
	if !schema.HasPathPrefix(position, s.position) {
		return false
	}
	rest := schema.Segments(strings.TrimPrefix(position, s.position))
	if s.key.Property != "" {
		return (len(rest) >= 1 && rest[0] == s.key.Property) ||
			(len(rest) >= 2 && rest[1] == s.key.Property)
	}
	if s.onlyLevel {
		return len(rest) <= 1
	}
	return true
}

func (s *Stream) sameRegistration(position string, onlyLevel bool, property string) bool {
	return !s.all && s.position == position && s.onlyLevel == onlyLevel && s.key.Property == property
}
