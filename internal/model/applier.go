package model

import (
	"fmt"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/schema"
)

// ApplyChange applies c to the content and returns, in order, the atomic
// changes an observer must replay to follow it. The content may be left
// partly modified when an error is returned; take a Snapshot first when
// that matters.
func (m *Manager) ApplyChange(c *change.Change) ([]*change.Change, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ptr := c.Pointer
	if ptr == nil {
		p, err := m.schema.GenerateSchemaPointer(c.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", c.Position, err)
		}
		ptr = p
		c.Pointer = p
	}

	// Moving nothing must not build the destination
	if c.Kind == change.KindMove && c.Value == nil && c.OldPosition != "" && !ptr.IsRoot() &&
		!schema.IsDescendant(ptr.Position, c.OldPosition) && m.FindAtPosition(c.OldPosition) == nil {
		return nil, nil
	}

	// Work from the container so that its creation is recorded too
	target := ptr
	if !ptr.IsRoot() {
		p, err := m.schema.GenerateParentPointer(ptr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent of %q: %w", c.Position, err)
		}
		target = p
	}

	root := &atomicChange{name: target.Position}
	last := root
	content := m.FindAtPosition(target.Position)
	if document.IsNull(content) {
		if c.Kind == change.KindDelete {
			return nil, nil
		}
		created, err := m.findOrCreate(target.Position, root)
		if err != nil {
			return nil, err
		}
		content = created

		// Start from above the first container created
		base := target.Position
		for len(last.children) > 0 {
			base, _ = schema.ParentPosition(base)
			last = last.children[0]
		}
		root.name = base
	}

	var parent *document.Object
	if !ptr.IsRoot() {
		obj, ok := document.AsObject(content)
		if !ok {
			return nil, &NotContainerError{Position: target.Position}
		}
		parent = obj
	}

	a := &applier{m: m, top: c}
	if err := a.apply(c, parent, document.Clone(c.Value), ptr, last, c.OldPosition, true, 0); err != nil {
		return nil, err
	}

	rootPtr, err := m.schema.GenerateSchemaPointer(root.name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", root.name, err)
	}
	changes, err := a.generate(root, rootPtr, nil)
	if err != nil {
		return nil, err
	}
	m.log.Debugw("Change applied", "change", c.String(), "atomicChanges", len(changes))
	return changes, nil
}

// applier holds the state of one ApplyChange call
type applier struct {
	m   *Manager
	top *change.Change
}

// apply records the effect of src on the element ptr points to, below
// node. With mutate unset the element is only compared: an ancestor
// replaces the whole subtree.
func (a *applier) apply(src *change.Change, parent *document.Object, newContent document.Node,
	ptr *schema.Pointer, node *atomicChange, oldPosition string, mutate bool, depth int) error {
	if depth > a.m.opts.MaxDepth {
		return &MaxDepthError{Position: ptr.Position, Depth: a.m.opts.MaxDepth}
	}

	var oldContent document.Node
	if ptr.IsRoot() {
		oldContent = a.m.content
	} else if parent != nil {
		oldContent, _ = parent.Get(ptr.LastElement)
	}

	switch src.Kind {
	case change.KindAdd, change.KindUpdate, change.KindReset:
		return a.upsert(src, parent, oldContent, newContent, ptr, node, mutate, depth)
	case change.KindDelete:
		return a.remove(src, parent, oldContent, ptr, node, mutate, depth)
	case change.KindMove:
		return a.move(src, parent, newContent, ptr, node, oldPosition, mutate, depth)
	case change.KindAction:
		return a.action(src, oldContent, ptr, node, depth)
	}
	return &change.UnsupportedKindError{Kind: src.Kind}
}

func (a *applier) upsert(src *change.Change, parent *document.Object, oldContent, newContent document.Node,
	ptr *schema.Pointer, node *atomicChange, mutate bool, depth int) error {
	if newContent == nil {
		newContent = document.Null
	}
	key := ptr.LastElement
	oldObj, oldIsObj := document.AsObject(oldContent)
	newObj, newIsObj := document.AsObject(newContent)

	var cur *atomicChange
	stored := newContent
	merge := false
	switch {
	case src.Kind == change.KindReset && ptr.Position == src.Position:
		if newIsObj && document.SameKeys(oldContent, newContent) {
			cur = node.sub("", key, nil, "")
		} else if newIsObj || !document.Equal(oldContent, newContent) {
			cur = node.sub(change.KindReset, key, newContent, "")
		}
	case oldContent == nil || (document.IsNull(oldContent) && !document.IsNull(newContent)):
		cur = node.sub(change.KindAdd, key, newContent, "")
	case src.Kind == change.KindAdd && oldIsObj && newIsObj:
		// ADD only ever adds: the existing record is kept and extended
		merge = true
		stored = oldContent
		switch {
		case !addsKeys(oldObj, newObj):
			cur = node.sub("", key, nil, "")
		case a.reclassified(oldObj, newObj):
			cur = node.sub(change.KindUpdate, key, oldContent, "")
			cur.isAnUpdate = true
		default:
			cur = node.sub(change.KindAdd, key, oldContent, "")
		}
	case newIsObj && document.SameKeys(oldContent, newContent):
		cur = node.sub("", key, nil, "")
	case newIsObj || !document.Equal(oldContent, newContent):
		cur = node.sub(change.KindUpdate, key, newContent, "")
	}
	if cur == nil {
		return nil
	}

	if err := a.compare(src, oldContent, newContent, ptr, cur, "", merge && mutate, merge, depth+1); err != nil {
		return err
	}
	if mutate {
		a.store(src, parent, ptr, stored)
	}
	return nil
}

func (a *applier) remove(src *change.Change, parent *document.Object, oldContent document.Node,
	ptr *schema.Pointer, node *atomicChange, mutate bool, depth int) error {
	if oldContent == nil {
		return nil
	}
	cur := node.sub(change.KindDelete, ptr.LastElement, nil, "")
	if err := a.compare(src, oldContent, nil, ptr, cur, "", false, false, depth+1); err != nil {
		return err
	}
	if !mutate {
		return nil
	}
	if ptr.IsRoot() {
		a.m.content = nil
	} else if parent != nil {
		parent.Delete(ptr.LastElement)
	}
	return nil
}

func (a *applier) move(src *change.Change, parent *document.Object, newContent document.Node,
	ptr *schema.Pointer, node *atomicChange, oldPosition string, mutate bool, depth int) error {
	key := ptr.LastElement

	// Below the moved element, only tag
	if ptr.Position != src.Position {
		cur := node.sub(change.KindMove, key, newContent, oldPosition)
		return a.compare(src, nil, newContent, ptr, cur, oldPosition, false, false, depth+1)
	}

	if oldPosition == "" {
		return &MissingOldPositionError{Position: src.Position}
	}
	if ptr.IsRoot() {
		return &InvalidMoveError{Position: src.Position, OldPosition: oldPosition, Reason: "the root cannot be a destination"}
	}
	if schema.IsDescendant(ptr.Position, oldPosition) {
		return &InvalidMoveError{Position: src.Position, OldPosition: oldPosition, Reason: "destination is inside the moved element"}
	}

	value := newContent
	if value == nil {
		value = a.m.FindAtPosition(oldPosition)
	}
	if value == nil {
		return nil
	}

	cur := node.sub(change.KindMove, key, value, oldPosition)
	if err := a.compare(src, nil, value, ptr, cur, oldPosition, false, false, depth+1); err != nil {
		return err
	}
	if !mutate || parent == nil {
		return nil
	}

	parent.InsertProperty(key, value, a.beforeKey(src, ptr))
	if ptr.Position != oldPosition {
		srcParent, elem, _ := schema.SplitPosition(oldPosition)
		if obj, ok := document.AsObject(a.m.FindAtPosition(srcParent)); ok {
			obj.Delete(elem)
		}
	}
	return nil
}

// action tags the existing subtree without touching it
func (a *applier) action(src *change.Change, oldContent document.Node, ptr *schema.Pointer, node *atomicChange, depth int) error {
	value := oldContent
	if ptr.Position == src.Position && src.Value != nil {
		value = src.Value
	}
	cur := node.sub(change.KindAction, ptr.LastElement, value, "")
	return a.compare(src, oldContent, nil, ptr, cur, "", false, false, depth+1)
}

// compare walks the children of old and new content. Keys only in old are
// deleted unless additive is set, keys only in new are added, keys in
// both are applied again one level down.
func (a *applier) compare(src *change.Change, oldContent, newContent document.Node, ptr *schema.Pointer,
	node *atomicChange, oldPosition string, mutate, additive bool, depth int) error {
	oldObj, ok := document.AsObject(oldContent)
	if !ok {
		oldObj = document.NewObject()
	}
	newObj, ok := document.AsObject(newContent)
	if !ok {
		newObj = document.NewObject()
	}

	for _, key := range oldObj.Keys() {
		sub, err := a.m.schema.GenerateSubSchemaPointer(ptr, key)
		if err != nil {
			return err
		}
		switch newChild, inNew := newObj.Get(key); {
		case src.Kind == change.KindAction:
			err = a.apply(src, oldObj, nil, sub, node, "", false, depth)
		case inNew:
			err = a.apply(src, oldObj, newChild, sub, node, oldPosition, mutate, depth)
		case !additive:
			del := &change.Change{Kind: change.KindDelete, Position: sub.Position, Pointer: sub}
			err = a.apply(del, oldObj, nil, sub, node, "", mutate, depth)
		}
		if err != nil {
			return err
		}
	}
	if src.Kind == change.KindAction {
		return nil
	}

	for _, key := range newObj.Keys() {
		if src.Kind != change.KindMove && oldObj.Has(key) {
			continue
		}
		sub, err := a.m.schema.GenerateSubSchemaPointer(ptr, key)
		if err != nil {
			return err
		}
		newChild, _ := newObj.Get(key)
		if src.Kind == change.KindMove {
			err = a.apply(src, oldObj, newChild, sub, node, schema.JoinPosition(oldPosition, key), false, depth)
		} else {
			add := &change.Change{Kind: change.KindAdd, Position: sub.Position, Value: newChild, Pointer: sub}
			err = a.apply(add, oldObj, newChild, sub, node, "", mutate, depth)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// store puts value under the element ptr points to. The key moves last
// unless a before key places it.
func (a *applier) store(src *change.Change, parent *document.Object, ptr *schema.Pointer, value document.Node) {
	if ptr.IsRoot() {
		a.m.content = value
		return
	}
	if parent == nil {
		return
	}
	parent.InsertProperty(ptr.LastElement, value, a.beforeKey(src, ptr))
}

// beforeKey only applies to the element the caller targeted
func (a *applier) beforeKey(src *change.Change, ptr *schema.Pointer) string {
	if src == a.top && ptr.Position == src.Position {
		return src.BeforeKey
	}
	return ""
}

func addsKeys(oldObj, newObj *document.Object) bool {
	for _, k := range newObj.Keys() {
		if !oldObj.Has(k) {
			return true
		}
	}
	return false
}

func (a *applier) reclassified(oldObj, newObj *document.Object) bool {
	if a.m.opts.Reclassify == ReclassifyAll {
		if oldObj.Len() == 0 {
			return false
		}
		for _, k := range oldObj.Keys() {
			if !newObj.Has(k) {
				return false
			}
		}
		return true
	}
	for _, k := range newObj.Keys() {
		if oldObj.Has(k) {
			return true
		}
	}
	return false
}

// generate flattens the atomic tree into changes, parents first
func (a *applier) generate(node *atomicChange, ptr *schema.Pointer, result []*change.Change) ([]*change.Change, error) {
	switch {
	case node.kind == change.KindMove:
		if node.oldPosition != ptr.Position && a.top.Position == ptr.Position {
			if oldParent, _ := schema.ParentPosition(node.oldPosition); oldParent != ptr.ContainerPosition {
				result = append(result, &change.Change{
					Kind:     change.KindUpdate,
					Position: oldParent,
					Value:    a.m.FindAtPosition(oldParent),
				})
			}
		}
		result = append(result, &change.Change{
			Kind:        change.KindMove,
			Position:    ptr.Position,
			Value:       node.value,
			Pointer:     ptr,
			OldPosition: node.oldPosition,
		})
	case node.kind != "":
		c := &change.Change{Kind: node.kind, Position: ptr.Position, Value: node.value, Pointer: ptr}
		if node.kind == change.KindAction {
			c.Action = a.top.Action
		}
		result = append(result, c)
	default:
		for _, child := range node.children {
			if child.notifiesParent() {
				result = append(result, &change.Change{
					Kind:     change.KindUpdate,
					Position: ptr.Position,
					Value:    a.m.FindAtPosition(ptr.Position),
					Pointer:  ptr,
				})
				break
			}
		}
	}

	for _, child := range node.children {
		childPtr := ptr
		if child.name != "" {
			p, err := a.m.schema.GenerateSubSchemaPointer(ptr, child.name)
			if err != nil {
				return nil, err
			}
			childPtr = p
		}
		var err error
		if result, err = a.generate(child, childPtr, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}
