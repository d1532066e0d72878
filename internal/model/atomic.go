package model

import (
	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
)

// atomicChange mirrors the part of the tree one change touched. An empty
// kind marks a node that did not change itself but has changed
// descendants.
type atomicChange struct {
	kind        change.Kind
	name        string
	value       document.Node
	oldPosition string
	// isAnUpdate marks an ADD onto an existing record reported as UPDATE
	isAnUpdate bool
	children   []*atomicChange
}

func (a *atomicChange) sub(kind change.Kind, name string, value document.Node, oldPosition string) *atomicChange {
	child := &atomicChange{kind: kind, name: name, value: value, oldPosition: oldPosition}
	a.children = append(a.children, child)
	return child
}

// notifiesParent reports whether the parent must be reported as updated
// because of this node
func (a *atomicChange) notifiesParent() bool {
	return a.kind != "" && a.kind != change.KindUpdate && !a.isAnUpdate && a.name != ""
}
