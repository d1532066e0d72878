package engine

import (
	"fmt"

	"go.uber.org/zap"

	"gihan9a/modelsync/internal/dispatch"
	"gihan9a/modelsync/internal/logger"
	"gihan9a/modelsync/internal/model"
	"gihan9a/modelsync/internal/schema"
)

// Options configures a new Engine. Zero values give the default schema
// and engine settings.
type Options struct {
	// Schema is a JSON schema document, nil for the default one
	Schema     []byte
	Reclassify model.ReclassifyPolicy
	MaxDepth   int
	CacheSize  int
	Logger     *zap.Logger
}

// Engine bundles the schema, the model and the dispatcher of one
// application model
type Engine struct {
	schema  *schema.Manager
	model   *model.Manager
	changes *dispatch.Dispatcher
}

// New builds an engine over an empty model
func New(opts Options) (*Engine, error) {
	schemaMgr, err := schema.NewManager(opts.Schema, logger.For(opts.Logger, logger.ComponentSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	modelMgr := model.NewManager(schemaMgr, model.Options{
		Reclassify: opts.Reclassify,
		MaxDepth:   opts.MaxDepth,
	}, logger.For(opts.Logger, logger.ComponentModel))

	changes, err := dispatch.New(schemaMgr, modelMgr, opts.CacheSize, logger.For(opts.Logger, logger.ComponentDispatcher))
	if err != nil {
		return nil, err
	}
	return &Engine{schema: schemaMgr, model: modelMgr, changes: changes}, nil
}

// Schema returns the schema manager
func (e *Engine) Schema() *schema.Manager { return e.schema }

// Model returns the model store
func (e *Engine) Model() *model.Manager { return e.model }

// Changes returns the dispatcher
func (e *Engine) Changes() *dispatch.Dispatcher { return e.changes }
