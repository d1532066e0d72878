package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/schema"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	sm, err := schema.NewManager(nil, nil)
	require.NoError(t, err)
	return NewManager(sm, opts, nil)
}

func withContent(t *testing.T, content string) *Manager {
	t.Helper()
	m := newTestManager(t, Options{})
	m.ResetContent(document.MustParse(content))
	return m
}

func mustApply(t *testing.T, m *Manager, c *change.Change) []string {
	t.Helper()
	changes, err := m.ApplyChange(c)
	require.NoError(t, err)
	return summarize(changes)
}

func summarize(changes []*change.Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, string(c.Kind)+" "+c.Position)
	}
	return out
}

func contentJSON(t *testing.T, m *Manager) string {
	t.Helper()
	out, err := document.Marshal(m.Content())
	require.NoError(t, err)
	return string(out)
}

func TestApplyChange_SimpleValues(t *testing.T) {
	m := withContent(t, `{}`)

	got := mustApply(t, m, change.New(change.KindAdd, "creation/name", document.String("TestName")))
	assert.Equal(t, []string{"UPDATE ", "ADD creation", "ADD creation/name"}, got)
	assert.Equal(t, `{"creation":{"name":"TestName"}}`, contentJSON(t, m))

	got = mustApply(t, m, change.New(change.KindAdd, "creation/name", document.String("TestName")))
	assert.Empty(t, got)

	got = mustApply(t, m, change.New(change.KindUpdate, "creation/name", document.String("NewName")))
	assert.Equal(t, []string{"UPDATE creation/name"}, got)

	got = mustApply(t, m, change.New(change.KindUpdate, "creation/name", document.String("NewName")))
	assert.Empty(t, got)
}

func TestApplyChange_EmptyModel(t *testing.T) {
	m := newTestManager(t, Options{})

	got := mustApply(t, m, change.New(change.KindAdd, "creation/name", document.String("TestName")))
	assert.Equal(t, []string{"UPDATE ", "ADD creation", "ADD creation/name"}, got)
}

func TestApplyChange_DeleteAbsentIsNoop(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"X"}}}}`)

	got := mustApply(t, m, change.New(change.KindDelete, "creation/entities/zz", nil))
	assert.Empty(t, got)
	got = mustApply(t, m, change.New(change.KindDelete, "creation/screens/a", nil))
	assert.Empty(t, got)
	assert.Equal(t, `{"creation":{"entities":{"a":{"name":"X"}}}}`, contentJSON(t, m))
}

func TestApplyChange_DeleteSubtree(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"X"}}}}`)

	got := mustApply(t, m, change.New(change.KindDelete, "creation/entities/a", nil))
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"DELETE creation/entities/a",
		"DELETE creation/entities/a/name",
	}, got)
	assert.Equal(t, `{"creation":{"entities":{}}}`, contentJSON(t, m))
}

func TestApplyChange_InsertBeforeKey(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A"},"b":{"name":"B"}}}}`)

	add := change.New(change.KindAdd, "creation/entities/c", document.MustParse(`{"name":"C"}`))
	add.BeforeKey = "b"
	got := mustApply(t, m, add)
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"ADD creation/entities/c",
		"ADD creation/entities/c/name",
	}, got)

	entities, ok := document.AsObject(m.FindAtPosition("creation/entities"))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "c", "b"}, entities.Keys())
}

func TestApplyChange_UpsertMovesKeyLast(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A"},"b":{"name":"B"}}}}`)

	got := mustApply(t, m, change.New(change.KindUpdate, "creation/entities/a", document.MustParse(`{"name":"A2"}`)))
	assert.Equal(t, []string{"UPDATE creation/entities/a/name"}, got)

	entities, ok := document.AsObject(m.FindAtPosition("creation/entities"))
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, entities.Keys())

	// A before key still wins
	update := change.New(change.KindUpdate, "creation/entities/a", document.MustParse(`{"name":"A3"}`))
	update.BeforeKey = "b"
	mustApply(t, m, update)
	assert.Equal(t, []string{"a", "b"}, entities.Keys())
}

func TestApplyChange_AddContainer(t *testing.T) {
	m := withContent(t, `{"creation":{"name":"App"}}`)

	got := mustApply(t, m, change.New(change.KindAdd, "creation/entities",
		document.MustParse(`{"a":{"name":"A","from":"SA"}}`)))
	assert.Equal(t, []string{
		"UPDATE creation",
		"ADD creation/entities",
		"ADD creation/entities/a",
		"ADD creation/entities/a/name",
		"ADD creation/entities/a/from",
	}, got)
}

func TestApplyChange_UpdateReplacesContainer(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A","from":"SA"}}}}`)

	got := mustApply(t, m, change.New(change.KindUpdate, "creation/entities",
		document.MustParse(`{"b":{"name":"B","from":"SB"}}`)))
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"DELETE creation/entities/a",
		"DELETE creation/entities/a/name",
		"DELETE creation/entities/a/from",
		"ADD creation/entities/b",
		"ADD creation/entities/b/name",
		"ADD creation/entities/b/from",
	}, got)
	assert.Equal(t, `{"creation":{"entities":{"b":{"name":"B","from":"SB"}}}}`, contentJSON(t, m))
}

func TestApplyChange_UpdateAndResetRecord(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A","from":"SA"},"b":{"name":"B","from":"SB"}}}}`)

	got := mustApply(t, m, change.New(change.KindUpdate, "creation/entities/b",
		document.MustParse(`{"name":"NB","fields":{"aa":{"name":"f1","type":"Text"}}}`)))
	assert.Equal(t, []string{
		"UPDATE creation/entities/b",
		"UPDATE creation/entities/b/name",
		"DELETE creation/entities/b/from",
		"ADD creation/entities/b/fields",
		"ADD creation/entities/b/fields/aa",
		"ADD creation/entities/b/fields/aa/name",
		"ADD creation/entities/b/fields/aa/type",
	}, got)

	got = mustApply(t, m, change.New(change.KindReset, "creation/entities/b",
		document.MustParse(`{"name":"NB","from":"SB"}`)))
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"RESET creation/entities/b",
		"DELETE creation/entities/b/fields",
		"DELETE creation/entities/b/fields/aa",
		"DELETE creation/entities/b/fields/aa/name",
		"DELETE creation/entities/b/fields/aa/type",
		"ADD creation/entities/b/from",
	}, got)

	entities, ok := document.AsObject(m.FindAtPosition("creation/entities"))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, entities.Keys())
	assert.Equal(t, `{"name":"NB","from":"SB"}`, mustJSON(t, m.FindAtPosition("creation/entities/b")))
}

func TestApplyChange_ResetSameKeysOnlyReportsChildren(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"b":{"name":"B","fields":{"aa":{"name":"f"}}}}}}`)

	got := mustApply(t, m, change.New(change.KindReset, "creation/entities",
		document.MustParse(`{"b":{"name":"B","from":"SB"}}`)))
	assert.Equal(t, []string{
		"UPDATE creation/entities/b",
		"DELETE creation/entities/b/fields",
		"DELETE creation/entities/b/fields/aa",
		"DELETE creation/entities/b/fields/aa/name",
		"ADD creation/entities/b/from",
	}, got)
}

func TestApplyChange_AddIsAdditive(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A","from":"SA"}}}}`)

	got := mustApply(t, m, change.New(change.KindAdd, "creation/entities/a",
		document.MustParse(`{"name":"A2","fields":{"aa":{"name":"x"}}}`)))
	assert.Equal(t, []string{
		"UPDATE creation/entities/a",
		"UPDATE creation/entities/a/name",
		"ADD creation/entities/a/fields",
		"ADD creation/entities/a/fields/aa",
		"ADD creation/entities/a/fields/aa/name",
	}, got)
	assert.Equal(t, `{"from":"SA","name":"A2","fields":{"aa":{"name":"x"}}}`,
		mustJSON(t, m.FindAtPosition("creation/entities/a")))

	got = mustApply(t, m, change.New(change.KindAdd, "creation/entities/a",
		document.MustParse(`{"name":"A2","fields":{"aa":{"name":"x"}}}`)))
	assert.Empty(t, got)
}

func TestApplyChange_AddReclassification(t *testing.T) {
	tests := []struct {
		name   string
		policy ReclassifyPolicy
		value  string
		want   []string
	}{
		{
			name:   "any with overlapping property",
			policy: ReclassifyAny,
			value:  `{"name":"A","fields":{}}`,
			want:   []string{"UPDATE creation/entities/a", "ADD creation/entities/a/fields"},
		},
		{
			name:   "any without overlap",
			policy: ReclassifyAny,
			value:  `{"fields":{}}`,
			want:   []string{"UPDATE creation/entities", "ADD creation/entities/a", "ADD creation/entities/a/fields"},
		},
		{
			name:   "all restating every property",
			policy: ReclassifyAll,
			value:  `{"name":"A","from":"SA","fields":{}}`,
			want:   []string{"UPDATE creation/entities/a", "ADD creation/entities/a/fields"},
		},
		{
			name:   "all with partial overlap",
			policy: ReclassifyAll,
			value:  `{"name":"A","fields":{}}`,
			want:   []string{"UPDATE creation/entities", "ADD creation/entities/a", "ADD creation/entities/a/fields"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, Options{Reclassify: tt.policy})
			m.ResetContent(document.MustParse(`{"creation":{"entities":{"a":{"name":"A","from":"SA"}}}}`))

			got := mustApply(t, m, change.New(change.KindAdd, "creation/entities/a", document.MustParse(tt.value)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyChange_MoveAcrossRecords(t *testing.T) {
	m := withContent(t, `{"creation":{"name":"App","entities":{"a":{"name":"TestEntity"}}}}`)

	got := mustApply(t, m, change.NewMove("creation/entities/b/name", "creation/entities/a/name", ""))
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"ADD creation/entities/b",
		"UPDATE creation/entities/a",
		"MOVE creation/entities/b/name",
	}, got)
	assert.Equal(t, `{"a":{},"b":{"name":"TestEntity"}}`, mustJSON(t, m.FindAtPosition("creation/entities")))

	got = mustApply(t, m, change.NewMove("creation/entities/a/name", "creation/entities/b/name", ""))
	assert.Equal(t, []string{
		"UPDATE creation/entities/a",
		"UPDATE creation/entities/b",
		"MOVE creation/entities/a/name",
	}, got)
	assert.Equal(t, `{"a":{"name":"TestEntity"},"b":{}}`, mustJSON(t, m.FindAtPosition("creation/entities")))
}

func TestApplyChange_MoveReorder(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A"},"b":{"name":"B","from":"S"}}}}`)

	changes, err := m.ApplyChange(change.NewMove("creation/entities/b", "creation/entities/b", "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"MOVE creation/entities/b",
		"MOVE creation/entities/b/name",
		"MOVE creation/entities/b/from",
	}, summarize(changes))
	assert.Equal(t, "creation/entities/b/from", changes[3].OldPosition)
	assert.Equal(t, `{"b":{"name":"B","from":"S"},"a":{"name":"A"}}`, mustJSON(t, m.FindAtPosition("creation/entities")))
}

func TestApplyChange_MoveIntoNewContainer(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A"},"b":{"name":"B","fields":{"ab":{"name":"f","type":"Text"}}}}}}`)

	got := mustApply(t, m, change.NewMove("creation/entities/a/fields/aa", "creation/entities/b/fields/ab", ""))
	assert.Equal(t, []string{
		"UPDATE creation/entities/a",
		"ADD creation/entities/a/fields",
		"UPDATE creation/entities/b/fields",
		"MOVE creation/entities/a/fields/aa",
		"MOVE creation/entities/a/fields/aa/name",
		"MOVE creation/entities/a/fields/aa/type",
	}, got)
	assert.Equal(t, `{"a":{"name":"A","fields":{"aa":{"name":"f","type":"Text"}}},"b":{"name":"B","fields":{}}}`,
		mustJSON(t, m.FindAtPosition("creation/entities")))
}

func TestApplyChange_MoveRoundTrip(t *testing.T) {
	original := `{"creation":{"entities":{"a":{"name":"A"},"b":{"name":"B"}}}}`
	m := withContent(t, original)

	got := mustApply(t, m, change.NewMove("creation/entities/c", "creation/entities/b", ""))
	assert.Equal(t, []string{"UPDATE creation/entities", "MOVE creation/entities/c", "MOVE creation/entities/c/name"}, got)
	mustApply(t, m, change.NewMove("creation/entities/b", "creation/entities/c", ""))

	assert.Equal(t, original, contentJSON(t, m))
}

func TestApplyChange_MoveMissingSource(t *testing.T) {
	content := `{"creation":{"entities":{"a":{"name":"A"}}}}`
	m := withContent(t, content)

	got := mustApply(t, m, change.NewMove("creation/screens/a/components/b", "creation/screens/z/components/a", ""))
	assert.Empty(t, got)
	assert.Equal(t, content, contentJSON(t, m))
}

func TestApplyChange_MoveErrors(t *testing.T) {
	m := withContent(t, `{"creation":{"entities":{"a":{"name":"A"}}}}`)

	_, err := m.ApplyChange(change.New(change.KindMove, "creation/entities/b", nil))
	var missing *MissingOldPositionError
	assert.ErrorAs(t, err, &missing)

	_, err = m.ApplyChange(change.NewMove("creation/entities/a/fields/aa", "creation/entities/a", ""))
	var invalid *InvalidMoveError
	assert.ErrorAs(t, err, &invalid)
}

func TestApplyChange_Action(t *testing.T) {
	content := `{"creation":{"entities":{"a":{"name":"A"}}}}`
	m := withContent(t, content)

	changes, err := m.ApplyChange(change.NewAction("creation/entities/a", change.Action{Type: "EXTRACT"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UPDATE creation/entities",
		"ACTION creation/entities/a",
		"ACTION creation/entities/a/name",
	}, summarize(changes))
	require.NotNil(t, changes[1].Action)
	assert.Equal(t, "EXTRACT", changes[1].Action.Type)
	assert.Equal(t, content, contentJSON(t, m))
}

func TestApplyChange_RootReset(t *testing.T) {
	m := newTestManager(t, Options{})

	got := mustApply(t, m, change.New(change.KindReset, "", document.MustParse(`{"creation":{"name":"X"}}`)))
	assert.Equal(t, []string{"RESET ", "ADD creation", "ADD creation/name"}, got)

	got = mustApply(t, m, change.New(change.KindReset, "", document.String("plain")))
	assert.Equal(t, []string{"RESET ", "DELETE creation", "DELETE creation/name"}, got)
	assert.Equal(t, `"plain"`, contentJSON(t, m))

	got = mustApply(t, m, change.New(change.KindReset, "", document.MustParse(`{"creation":{}}`)))
	assert.Equal(t, []string{"RESET ", "ADD creation"}, got)
	assert.Equal(t, `{"creation":{}}`, contentJSON(t, m))
}

func TestApplyChange_Errors(t *testing.T) {
	m := withContent(t, `{}`)

	_, err := m.ApplyChange(change.New(change.KindAdd, "creation/unknown", document.String("x")))
	var pathErr *schema.PathError
	assert.ErrorAs(t, err, &pathErr)

	_, err = m.ApplyChange(change.New(change.KindAdd, "/", nil))
	assert.ErrorIs(t, err, change.ErrSlashPosition)

	_, err = m.ApplyChange(change.New(change.Kind("COPY"), "creation", nil))
	var kindErr *change.UnsupportedKindError
	assert.ErrorAs(t, err, &kindErr)
}

func TestApplyChange_MaxDepth(t *testing.T) {
	m := newTestManager(t, Options{MaxDepth: 2})

	_, err := m.ApplyChange(change.New(change.KindAdd, "creation",
		document.MustParse(`{"entities":{"a":{"fields":{"aa":{"name":"x"}}}}}`)))
	var depthErr *MaxDepthError
	assert.ErrorAs(t, err, &depthErr)
}

func TestApplyChange_DoesNotAliasCallerValue(t *testing.T) {
	m := withContent(t, `{}`)
	value := document.MustParse(`{"name":"A"}`)

	mustApply(t, m, change.New(change.KindAdd, "creation/entities/a", value))
	value.(*document.Object).Set("name", document.String("changed"))

	assert.Equal(t, `{"creation":{"entities":{"a":{"name":"A"}}}}`, contentJSON(t, m))
}

func mustJSON(t *testing.T, n document.Node) string {
	t.Helper()
	out, err := document.Marshal(n)
	require.NoError(t, err)
	return string(out)
}
