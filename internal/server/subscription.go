package server

import (
	"fmt"
	"strings"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/dispatch"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/utils"
	"gihan9a/modelsync/pkg/braidproto"
)

// subscriptionBuffer is the number of updates a client may lag behind
// before it is dropped
const subscriptionBuffer = 256

// topicKey identifies one dispatcher stream shared by many clients
type topicKey struct {
	path      string
	onlyLevel bool
	property  string
}

func newTopicKey(position, property string) topicKey {
	key := topicKey{property: property}
	if strings.HasSuffix(position, "?") {
		key.onlyLevel = true
		position = strings.TrimSuffix(position, "?")
	}
	key.path = strings.Trim(position, "/")
	return key
}

// position returns the key in the dispatcher's notation
func (k topicKey) position() string {
	if k.onlyLevel {
		return k.path + "/?"
	}
	return k.path
}

// topic fans the changes of one stream out to its clients
type topic struct {
	stream *dispatch.Stream
	subs   map[string]*Subscription
	ready  bool
}

// receive queues a delivered change on every client. Changes delivered
// while the topic is being created are the initial content, which each
// client gets as a full body instead.
func (t *topic) receive(c *change.Change) {
	if !t.ready {
		return
	}
	patch := patchOf(c)
	for _, sub := range t.subs {
		if !sub.dropped {
			sub.pending = append(sub.pending, patch)
		}
	}
}

// Subscription is one client streaming updates
type Subscription struct {
	ID      string
	updates chan braidproto.Update
	done    chan struct{}
	pending []braidproto.Patch
	dropped bool
}

// drop closes the subscription; callers hold the server lock
func (sub *Subscription) drop() {
	if !sub.dropped {
		sub.dropped = true
		close(sub.done)
	}
}

func patchOf(c *change.Change) braidproto.Patch {
	content, err := document.Marshal(c.Value)
	if err != nil {
		content = []byte("null")
	}
	return braidproto.Patch{
		Unit:        string(c.Kind),
		Range:       c.Position,
		Content:     string(content),
		OldPosition: c.OldPosition,
		BeforeKey:   c.BeforeKey,
	}
}

// AddSubscription registers a client on the topic of position and
// property and queues the current content as its first update
func (s *ModelServer) AddSubscription(position, property string) (*Subscription, topicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := newTopicKey(position, property)
	t, ok := s.topics[key]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		stream := s.engine.Changes().Subscribe(key.position(), key.property, t.receive)
		if err := stream.Err(); err != nil {
			return nil, key, err
		}
		t.stream = stream
		t.ready = true
		s.topics[key] = t
	}

	body, err := document.Marshal(s.engine.Model().FindAtPosition(key.path))
	if err != nil {
		return nil, key, fmt.Errorf("failed to encode %q: %w", key.path, err)
	}

	sub := &Subscription{
		ID:      utils.GenerateRandomID(),
		updates: make(chan braidproto.Update, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	sub.updates <- braidproto.Update{Version: []string{s.version}, Body: string(body)}
	t.subs[sub.ID] = sub

	s.metrics.SubscriptionOpened()
	s.log.Debugw("Added subscription", "id", sub.ID, "position", position, "property", property)
	return sub, key, nil
}

// RemoveSubscription removes a client, and the topic once it has none
func (s *ModelServer) RemoveSubscription(key topicKey, sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[key]
	if !ok {
		return
	}
	if _, ok := t.subs[sub.ID]; !ok {
		return
	}
	delete(t.subs, sub.ID)
	s.metrics.SubscriptionClosed()
	s.log.Debugw("Removed subscription", "id", sub.ID, "position", key.position())

	if len(t.subs) == 0 {
		t.stream.Close()
		delete(s.topics, key)
	}
}

// flushTopics sends the patches gathered since the last flush, one
// update per client. Callers hold mu.
func (s *ModelServer) flushTopics(parent string) {
	for _, t := range s.topics {
		for _, sub := range t.subs {
			if len(sub.pending) == 0 || sub.dropped {
				continue
			}
			update := braidproto.Update{
				Version: []string{s.version},
				Parents: []string{parent},
				Patches: sub.pending,
			}
			sub.pending = nil

			select {
			case sub.updates <- update:
				for range update.Patches {
					s.metrics.AtomicChangeDelivered()
				}
			default:
				s.log.Warnw("Subscriber too slow, dropping it", "id", sub.ID, "position", t.stream.Key().Position)
				s.metrics.SubscriptionDropped()
				sub.drop()
			}
		}
	}
}
