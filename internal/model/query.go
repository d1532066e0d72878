package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"gihan9a/modelsync/internal/document"
)

// QueryToArray runs a gjson query on the content at position and returns
// every match. An array result is expanded into its elements.
func (m *Manager) QueryToArray(query, position string) ([]document.Node, error) {
	data, err := document.Marshal(m.FindAtPosition(position))
	if err != nil {
		return nil, fmt.Errorf("failed to encode content at %q: %w", position, err)
	}

	res := gjson.GetBytes(data, query)
	if !res.Exists() {
		return nil, nil
	}
	if !res.IsArray() {
		return []document.Node{document.FromResult(res)}, nil
	}
	var out []document.Node
	res.ForEach(func(_, v gjson.Result) bool {
		out = append(out, document.FromResult(v))
		return true
	})
	return out, nil
}

// QueryToSingle is QueryToArray for queries expected to match at most once
func (m *Manager) QueryToSingle(query, position string) (document.Node, error) {
	list, err := m.QueryToArray(query, position)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	}
	return nil, &AmbiguousQueryError{Query: query, Matches: len(list)}
}

// FindAllPossibleTargetsOfProperty lists the elements the value of
// property, below position, may refer to
func (m *Manager) FindAllPossibleTargetsOfProperty(property, position string) ([]document.Node, error) {
	container, _, err := m.targetOf(property, position)
	if err != nil || container == "" {
		return nil, err
	}
	return m.QueryToArray(container+"|@values", "")
}

// FindTargetOfProperty returns the element the value of property, below
// position, refers to
func (m *Manager) FindTargetOfProperty(property, position string) (document.Node, error) {
	container, key, err := m.targetOf(property, position)
	if err != nil || container == "" {
		return nil, err
	}

	obj, ok := document.AsObject(m.FindAtPosition(position))
	if !ok {
		return nil, nil
	}
	v, _ := obj.Get(property)
	name := document.Text(v)
	if name == "" {
		return nil, nil
	}
	query := fmt.Sprintf("%s|@values|#(%s==%s)#", container, key, strconv.Quote(name))
	return m.QueryToSingle(query, "")
}

// targetOf converts the schema format of property, like
// "$.creation.sources.name", into a container query and a key
func (m *Manager) targetOf(property, position string) (string, string, error) {
	ptr, err := m.schema.GenerateSchemaPointer(position)
	if err != nil {
		return "", "", err
	}
	item, err := m.schema.LocateItem(ptr.SubPropertyPointer(property).PositionInSchema, true)
	if err != nil {
		return "", "", err
	}
	if item.TargetPath() == "" {
		return "", "", nil
	}
	return splitTargetPath(item.TargetPath())
}

// splitTargetPath turns "$.a.b.key" into the escaped gjson path of the
// container and the escaped key
func splitTargetPath(path string) (string, string, error) {
	if !strings.HasPrefix(path, "$.") {
		return "", "", fmt.Errorf("unsupported relative target path %q", path)
	}
	segs := strings.Split(strings.TrimPrefix(path, "$."), ".")
	if len(segs) < 2 {
		return "", "", fmt.Errorf("target path %q has no container", path)
	}
	for i, seg := range segs {
		segs[i] = gjson.Escape(seg)
	}
	return strings.Join(segs[:len(segs)-1], "."), segs[len(segs)-1], nil
}
