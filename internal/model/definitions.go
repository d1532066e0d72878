package model

import (
	"fmt"
	"strings"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
)

// DefinitionLocation tells where default data goes. An empty or "*" ID
// below an array asks for a generated key.
type DefinitionLocation struct {
	Parent string
	ID     string
	After  string
}

// DefinitionUpdate is default data declared by configuration
type DefinitionUpdate struct {
	Location DefinitionLocation
	Update   document.Node
}

// ConvertToChange turns a definition update into the ADD that inserts it
func (m *Manager) ConvertToChange(def DefinitionUpdate) (*change.Change, error) {
	ptr, err := m.schema.GenerateSchemaPointer(def.Location.Parent)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve definition parent %q: %w", def.Location.Parent, err)
	}
	item, err := m.schema.LocateItem(ptr.PositionInSchema, false)
	if err != nil {
		return nil, err
	}

	id := def.Location.ID
	switch {
	case item.IsArray() && ptr.IsProperty:
		if id == "" || id == "*" {
			if id, err = m.GenerateNextKeyForPosition(ptr.Position, true); err != nil {
				return nil, err
			}
		}
		ptr = ptr.SubItemPointer(id)
	case id != "":
		if ptr, err = m.schema.GenerateSubSchemaPointer(ptr, id); err != nil {
			return nil, err
		}
	}

	return &change.Change{
		Kind:      change.KindAdd,
		Position:  ptr.Position,
		Value:     def.Update,
		Pointer:   ptr,
		BeforeKey: def.Location.After,
	}, nil
}

// GuessPropertyRepresentingName picks the property most likely holding
// the display name of a record
func GuessPropertyRepresentingName(properties []string) string {
	best, bestScore := "", 0
	for _, prop := range properties {
		score := nameScore(prop)
		if score > bestScore {
			best, bestScore = prop, score
		}
	}
	return best
}

func nameScore(prop string) int {
	lower := strings.ToLower(prop)
	switch {
	case lower == "name":
		return 100
	case lower == "title", lower == "lastname":
		return 80
	case strings.Contains(lower, "name"), strings.Contains(lower, "title"):
		return 50
	}
	return 0
}
