package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/modelsync/internal/document"
)

func TestChange_Validate(t *testing.T) {
	assert.NoError(t, New(KindAdd, "", nil).Validate())
	assert.ErrorIs(t, New(KindAdd, "/", nil).Validate(), ErrSlashPosition)

	var kindErr *UnsupportedKindError
	assert.ErrorAs(t, New(Kind("RENAME"), "creation", nil).Validate(), &kindErr)
}

func TestParseList_SingleAndArray(t *testing.T) {
	list, err := ParseList([]byte(`{"type":"ADD","position":"creation/entities/a","value":{"name":"B","from":"A"},"beforeKey":"b"}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, KindAdd, list[0].Kind)
	assert.Equal(t, "b", list[0].BeforeKey)
	assert.Equal(t, []string{"name", "from"}, list[0].Value.(*document.Object).Keys())

	list, err = ParseList([]byte(`[
		{"type":"MOVE","position":"creation/entities/b","oldPosition":"creation/entities/a"},
		{"type":"ACTION","position":"creation","action":{"context":"ui","actionType":"EXTRACT"}}
	]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "creation/entities/a", list[0].OldPosition)
	require.NotNil(t, list[1].Action)
	assert.Equal(t, "EXTRACT", list[1].Action.Type)
	assert.Nil(t, list[1].Value)
}

func TestChange_MarshalJSON(t *testing.T) {
	c := New(KindUpdate, "creation/name", document.String("App"))
	out, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"UPDATE","position":"creation/name","value":"App"}`, string(out))
}
