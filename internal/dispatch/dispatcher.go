package dispatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/model"
	"gihan9a/modelsync/internal/schema"
)

// DefaultCacheSize is the number of positions whose listeners are cached
const DefaultCacheSize = 1024

// Dispatcher applies changes to the model and delivers them to the
// streams interested in their position. Like the model, it has a single
// writer: callers serialize access, handlers may re-enter.
type Dispatcher struct {
	schema  *schema.Manager
	model   *model.Manager
	streams []*Stream
	all     []*Stream
	cache   *lru.Cache[string, []*Stream]
	log     *zap.SugaredLogger
}

// New returns a dispatcher over the given model
func New(schemaMgr *schema.Manager, modelMgr *model.Manager, cacheSize int, log *zap.SugaredLogger) (*Dispatcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []*Stream](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{schema: schemaMgr, model: modelMgr, cache: cache, log: log}, nil
}

// Model returns the model changes are applied to
func (d *Dispatcher) Model() *model.Manager { return d.model }

// Reset forgets every stream
func (d *Dispatcher) Reset() {
	d.streams = nil
	d.all = nil
	d.cache.Purge()
}

// Subscribe registers handler for changes at or below position. A
// trailing "?" limits it to the position and its direct children;
// property limits it to that property of the position's elements. When
// content exists, the handler first receives it as one RESET.
func (d *Dispatcher) Subscribe(position, property string, handler Handler) *Stream {
	d.purgeInactive()

	cleaned, onlyLevel := normalize(position)
	s := &Stream{
		id:        uuid.NewString(),
		key:       Key{Position: position, Property: property},
		handler:   handler,
		position:  cleaned,
		onlyLevel: onlyLevel,
	}

	for _, existing := range d.streams {
		if existing.Active() && existing.sameRegistration(cleaned, onlyLevel, property) {
			s.err = &DuplicateSubscriptionError{Key: s.key}
			d.log.Warnw("Duplicate subscription rejected", "position", position, "property", property)
			return s
		}
	}

	d.streams = append(d.streams, s)
	d.cache.Purge()
	d.log.Debugw("Subscribed", "stream", s.id, "position", position, "property", property)

	d.sendInitial(s)
	return s
}

// SubscribeAll registers handler for every change pushed
func (d *Dispatcher) SubscribeAll(handler Handler) *Stream {
	d.purgeInactive()
	s := &Stream{id: uuid.NewString(), handler: handler, all: true}
	d.all = append(d.all, s)
	return s
}

// sendInitial delivers existing content once, probing one level into
// children when a property is requested
func (d *Dispatcher) sendInitial(s *Stream) {
	existing := d.model.FindAtPosition(s.position)
	if existing == nil {
		return
	}
	if d.deliverInitial(s, s.position, existing) || s.key.Property == "" {
		return
	}

	obj, ok := document.AsObject(existing)
	if !ok {
		return
	}
	for _, key := range obj.Keys() {
		childPos := schema.JoinPosition(s.position, key)
		child, _ := obj.Get(key)
		if d.deliverInitial(s, childPos, child) {
			return
		}
		if childObj, ok := document.AsObject(child); ok {
			if value, ok := childObj.Get(s.key.Property); ok {
				if d.deliverInitial(s, schema.JoinPosition(childPos, s.key.Property), value) {
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliverInitial(s *Stream, position string, value document.Node) bool {
	if !s.interestedIn(position) {
		return false
	}
	c := change.New(change.KindReset, position, value)
	d.ensurePointer(c)
	s.handler(c)
	return true
}

// purgeInactive drops closed streams from the registry
func (d *Dispatcher) purgeInactive() {
	n := len(d.streams)
	d.streams = slices.DeleteFunc(d.streams, func(s *Stream) bool { return !s.Active() })
	d.all = slices.DeleteFunc(d.all, func(s *Stream) bool { return !s.Active() })
	if len(d.streams) != n {
		d.cache.Purge()
	}
}

// PushChange applies c and delivers it, then every atomic change it
// produced, to the interested streams. It reports whether any stream was
// notified. Within one call a stream gets each position at most once.
func (d *Dispatcher) PushChange(c *change.Change) (bool, error) {
	subChanges, err := d.model.ApplyChange(c)
	if err != nil {
		return false, err
	}

	delivered := make(map[*Stream][]string)
	notified := d.manage(c, delivered)
	for _, sub := range subChanges {
		if sub.Kind == c.Kind && sub.Position == c.Position {
			continue
		}
		if d.manage(sub, delivered) {
			notified = true
		}
	}
	return notified, nil
}

// ApplyDefinitionUpdates converts and pushes each update in order. It
// goes on after failures and returns them together.
func (d *Dispatcher) ApplyDefinitionUpdates(defs []model.DefinitionUpdate) error {
	var result *multierror.Error
	for _, def := range defs {
		c, err := d.model.ConvertToChange(def)
		if err == nil {
			_, err = d.PushChange(c)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("definition under %q: %w", def.Location.Parent, err))
		}
	}
	return result.ErrorOrNil()
}

func (d *Dispatcher) manage(c *change.Change, delivered map[*Stream][]string) bool {
	d.ensurePointer(c)

	for _, s := range slices.Clone(d.all) {
		if s.Active() {
			s.handler(c)
		}
	}

	streams, ok := d.cache.Get(c.Position)
	if !ok {
		streams = d.listenersOf(c.Position)
		d.cache.Add(c.Position, streams)
	}

	notified := false
	for _, s := range streams {
		if !s.Active() || slices.Contains(delivered[s], c.Position) {
			continue
		}
		delivered[s] = append(delivered[s], c.Position)
		notified = true
		s.handler(c)
	}
	return notified
}

func (d *Dispatcher) listenersOf(position string) []*Stream {
	var list []*Stream
	for _, s := range d.streams {
		if s.Active() && s.interestedIn(position) {
			list = append(list, s)
		}
	}
	d.log.Debugw("Listeners computed", "position", position, "count", len(list))
	return list
}

// ensurePointer computes the pointer of changes built without one
func (d *Dispatcher) ensurePointer(c *change.Change) {
	if c.Pointer != nil {
		return
	}
	ptr, err := d.schema.GenerateSchemaPointer(c.Position)
	if err != nil {
		var pathErr *schema.PathError
		if !errors.As(err, &pathErr) {
			d.log.Warnw("Cannot compute pointer", "position", c.Position, "error", err)
		}
		return
	}
	c.Pointer = ptr
}
