package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/model"
)

func TestNew_Defaults(t *testing.T) {
	e, err := New(Options{})
	require.NoError(t, err)

	var got []string
	e.Changes().Subscribe("creation", "", func(c *change.Change) {
		got = append(got, string(c.Kind)+" "+c.Position)
	})

	notified, err := e.Changes().PushChange(change.New(change.KindAdd, "creation/name", document.String("App")))
	require.NoError(t, err)
	assert.True(t, notified)
	assert.Equal(t, []string{"ADD creation/name", "ADD creation"}, got)
	assert.Equal(t, "App", document.Text(e.Model().FindAtPosition("creation/name")))
	assert.NotNil(t, e.Schema().Root().Child("creation"))
}

func TestNew_CustomSchema(t *testing.T) {
	e, err := New(Options{
		Schema:     []byte(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"object","properties":{"label":{"type":"string"}}}}}}`),
		Reclassify: model.ReclassifyAll,
	})
	require.NoError(t, err)

	_, err = e.Changes().PushChange(change.New(change.KindAdd, "items/a/label", document.String("x")))
	require.NoError(t, err)
	_, err = e.Changes().PushChange(change.New(change.KindAdd, "creation/name", document.String("x")))
	assert.Error(t, err)
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New(Options{Schema: []byte(`{not json`)})
	assert.Error(t, err)
}
