package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/pkg/braidproto"
)

func describe(t *testing.T, changes []*change.Change) []string {
	t.Helper()
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		value, err := document.Marshal(c.Value)
		require.NoError(t, err)
		out = append(out, c.String()+" "+string(value))
	}
	return out
}

func TestFileChanges(t *testing.T) {
	previous := `{"creation":{"name":"App","entities":{"a":{"name":"A","from":"S"}},"tags":[1,2]}}`
	data := `{"creation":{"name":"App2","entities":{"a":{"name":"A"},"b":{"name":"B"}},"tags":[1,3,4]}}`

	changes, err := fileChanges([]byte(previous), []byte(data), document.MustParse(data))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		`UPDATE "creation/name" "App2"`,
		`DELETE "creation/entities/a/from" null`,
		`ADD "creation/entities/b" {"name":"B"}`,
		`UPDATE "creation/tags" [1,3,4]`,
	}, describe(t, changes))
}

func TestFileChanges_NotConvertible(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		data     string
	}{
		{"root replaced", `{"a":{}}`, `[1]`},
		{"slash in key", `{}`, `{"a/b":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fileChanges([]byte(tt.previous), []byte(tt.data), document.MustParse(tt.data))
			assert.ErrorIs(t, err, errNotConvertible)
		})
	}
}

func TestPointerSegments(t *testing.T) {
	segs, err := pointerSegments("/creation/entities/a~0b")
	require.NoError(t, err)
	assert.Equal(t, []string{"creation", "entities", "a~b"}, segs)

	_, err = pointerSegments("")
	assert.Error(t, err)
}

func TestSyncModelFile(t *testing.T) {
	s, ts := newTestServer(t, withModelFile(t, testModel))

	_, r := subscribe(t, ts.URL+"/model/creation/entities")
	_, err := braidproto.ReadUpdate(r)
	require.NoError(t, err)

	require.NoError(t, s.SyncModelFile([]byte(`{"creation":{"name":"App","entities":{"a":{"name":"A2"}}}}`)))
	assert.Equal(t, `{"a":{"name":"A2"}}`, contentOf(t, s, "creation/entities"))

	update, err := braidproto.ReadUpdate(r)
	require.NoError(t, err)
	require.Len(t, update.Patches, 1)
	assert.Equal(t, "UPDATE", update.Patches[0].Unit)
	assert.Equal(t, "creation/entities/a/name", update.Patches[0].Range)

	// Same bytes again are ignored, broken files are reported
	require.NoError(t, s.SyncModelFile([]byte(`{"creation":{"name":"App","entities":{"a":{"name":"A2"}}}}`)))
	assert.Error(t, s.SyncModelFile([]byte(`{"creation":`)))

	// A change the schema rejects is reported, the rest still applies
	err = s.SyncModelFile([]byte(`{"creation":{"name":"Next","unknown":1,"entities":{"a":{"name":"A2"}}}}`))
	assert.Error(t, err)
	assert.Equal(t, `"Next"`, contentOf(t, s, "creation/name"))
}

func TestSyncModelFile_ResetWhenNotConvertible(t *testing.T) {
	s, _ := newTestServer(t, withModelFile(t, testModel))

	require.NoError(t, s.SyncModelFile([]byte(`[1,2]`)))
	assert.Equal(t, `[1,2]`, contentOf(t, s, ""))
}
