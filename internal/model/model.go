package model

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/schema"
)

// ReclassifyPolicy decides when an ADD onto an existing record is
// reported as an UPDATE
type ReclassifyPolicy string

const (
	// ReclassifyAny reports an UPDATE when at least one added property
	// already exists
	ReclassifyAny ReclassifyPolicy = "any"
	// ReclassifyAll reports an UPDATE only when every existing property
	// is restated by the added value
	ReclassifyAll ReclassifyPolicy = "all"
)

// DefaultMaxDepth bounds the nesting a change may reach
const DefaultMaxDepth = 1000

// Options tunes how changes are applied
type Options struct {
	Reclassify ReclassifyPolicy
	MaxDepth   int
}

// ParsePolicy converts a configuration value into a policy
func ParsePolicy(s string) (ReclassifyPolicy, error) {
	switch ReclassifyPolicy(strings.ToLower(s)) {
	case "", ReclassifyAny:
		return ReclassifyAny, nil
	case ReclassifyAll:
		return ReclassifyAll, nil
	}
	return "", fmt.Errorf("unknown reclassify policy %q", s)
}

// Manager owns the model content and applies changes to it. It is not
// safe for concurrent use.
type Manager struct {
	schema  *schema.Manager
	content document.Node
	opts    Options
	log     *zap.SugaredLogger
}

// NewManager returns a manager with empty content
func NewManager(schemaMgr *schema.Manager, opts Options, log *zap.SugaredLogger) *Manager {
	if opts.Reclassify == "" {
		opts.Reclassify = ReclassifyAny
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{schema: schemaMgr, opts: opts, log: log}
}

// Schema returns the schema manager used to resolve positions
func (m *Manager) Schema() *schema.Manager { return m.schema }

// Content returns the live content. Callers must not modify it.
func (m *Manager) Content() document.Node { return m.content }

// Snapshot returns a deep copy of the content
func (m *Manager) Snapshot() document.Node { return document.Clone(m.content) }

// ResetContent replaces the whole content without computing changes
func (m *Manager) ResetContent(content document.Node) {
	m.content = content
}

// FindAtPosition returns the element at position, or nil when absent
func (m *Manager) FindAtPosition(position string) document.Node {
	cur := m.content
	for _, seg := range schema.Segments(position) {
		obj, ok := document.AsObject(cur)
		if !ok {
			return nil
		}
		child, ok := obj.Get(seg)
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// FindOrCreate returns the object at position, creating every missing
// container on the way
func (m *Manager) FindOrCreate(position string) (*document.Object, error) {
	return m.findOrCreate(position, nil)
}

// findOrCreate records each created container below added
func (m *Manager) findOrCreate(position string, added *atomicChange) (*document.Object, error) {
	if document.IsNull(m.content) {
		m.content = document.NewObject()
	}
	cur, ok := document.AsObject(m.content)
	if !ok {
		return nil, &NotContainerError{Position: ""}
	}

	path := ""
	for _, seg := range schema.Segments(position) {
		path = schema.JoinPosition(path, seg)
		child, _ := cur.Get(seg)
		if document.IsNull(child) {
			created := document.NewObject()
			cur.Set(seg, created)
			if added != nil {
				added = added.sub(change.KindAdd, seg, created, "")
			}
			cur = created
			continue
		}
		obj, ok := document.AsObject(child)
		if !ok {
			return nil, &NotContainerError{Position: path}
		}
		cur = obj
	}
	return cur, nil
}

// keyAlphabet is the digit set of generated item keys
const keyAlphabet = "abcdefghijklmnopqrstuvwxyz"

// GenerateNextKey returns the first key of the sequence a..z, aa, ab, ...
// at or after len(existing) that is not already used
func GenerateNextKey(existing []string) string {
	used := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		used[k] = struct{}{}
	}
	for n := len(existing); ; n++ {
		key := keyForIndex(n)
		if _, taken := used[key]; !taken {
			return key
		}
	}
}

func keyForIndex(n int) string {
	base := len(keyAlphabet)
	var buf []byte
	for n >= 0 {
		buf = append(buf, keyAlphabet[n%base])
		n = n/base - 1
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// GenerateNextKeyForPosition returns a free item key for the container at
// position. With create set, a missing container is created.
func (m *Manager) GenerateNextKeyForPosition(position string, create bool) (string, error) {
	var container *document.Object
	if create {
		obj, err := m.findOrCreate(position, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create container %s: %w", position, err)
		}
		container = obj
	} else if existing := m.FindAtPosition(position); !document.IsNull(existing) {
		obj, ok := document.AsObject(existing)
		if !ok {
			return "", &NotContainerError{Position: position}
		}
		container = obj
	}
	if container == nil {
		return GenerateNextKey(nil), nil
	}
	return GenerateNextKey(container.Keys()), nil
}
