package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/config"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/engine"
	"gihan9a/modelsync/internal/logger"
	"gihan9a/modelsync/internal/metrics"
	certs "gihan9a/modelsync/internal/tls"
	"gihan9a/modelsync/internal/utils"
)

// ModelServer exposes one engine over HTTP. Every access to the engine
// goes through mu, so the engine sees a single writer.
type ModelServer struct {
	config  *config.Config
	engine  *engine.Engine
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	mu      sync.Mutex
	version string
	topics  map[topicKey]*topic

	// model file synchronization
	lastFile []byte
	watcher  *fsnotify.Watcher
}

// NewModelServer creates the engine described by cfg, loads the model
// file and applies the configured definitions
func NewModelServer(cfg *config.Config, base *zap.Logger) (*ModelServer, error) {
	var schemaData []byte
	if cfg.SchemaFile != "" {
		data, err := os.ReadFile(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		schemaData = data
	}

	eng, err := engine.New(engine.Options{
		Schema:     schemaData,
		Reclassify: cfg.Reclassify,
		MaxDepth:   cfg.MaxDepth,
		CacheSize:  cfg.ListenerCacheSize,
		Logger:     base,
	})
	if err != nil {
		return nil, err
	}

	s := &ModelServer{
		config:  cfg,
		engine:  eng,
		metrics: metrics.New(),
		log:     logger.For(base, logger.ComponentServer),
		topics:  make(map[topicKey]*topic),
	}

	if cfg.ModelFile != "" {
		if err := s.loadModelFile(); err != nil {
			return nil, err
		}
	}
	s.updateVersion()

	if len(cfg.Definitions) > 0 {
		s.mu.Lock()
		err := s.engine.Changes().ApplyDefinitionUpdates(cfg.Definitions)
		s.flushTopics(s.updateVersion())
		s.mu.Unlock()
		if err != nil {
			s.log.Warnw("Some definitions could not be applied", "error", err)
		}
	}
	return s, nil
}

// loadModelFile replaces the content with the model file, when present
func (s *ModelServer) loadModelFile() error {
	data, err := os.ReadFile(s.config.ModelFile)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Infow("Model file not found, starting empty", "file", s.config.ModelFile)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	content, err := document.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse model file %s: %w", s.config.ModelFile, err)
	}
	if _, err := s.engine.Changes().PushChange(change.New(change.KindReset, "", content)); err != nil {
		return fmt.Errorf("failed to load model file %s: %w", s.config.ModelFile, err)
	}
	s.lastFile = data
	return nil
}

// Engine returns the engine served
func (s *ModelServer) Engine() *engine.Engine { return s.engine }

// Version returns the current model version
func (s *ModelServer) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// updateVersion hashes the content and returns the previous version.
// Callers hold mu, except during construction.
func (s *ModelServer) updateVersion() string {
	previous := s.version
	data, err := document.Marshal(s.engine.Model().Content())
	if err != nil {
		s.log.Errorw("Cannot encode model", "error", err)
		return previous
	}
	s.version = utils.CalculateHash(data)
	return previous
}

// PushChanges applies changes in order and delivers them. It stops at
// the first failure; the changes before it stay applied.
func (s *ModelServer) PushChanges(changes []*change.Change) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notified := false
	var err error
	for i, c := range changes {
		var n bool
		if n, err = s.pushLocked(c); err != nil {
			err = fmt.Errorf("change %d (%s): %w", i, c, err)
			break
		}
		notified = notified || n
	}
	s.flushTopics(s.updateVersion())
	return notified, err
}

func (s *ModelServer) pushLocked(c *change.Change) (bool, error) {
	start := time.Now()
	notified, err := s.engine.Changes().PushChange(c)
	s.metrics.ObserveChange(string(c.Kind), start, err)
	return notified, err
}

// Close cleans up resources used by the server
func (s *ModelServer) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		t.stream.Close()
		for _, sub := range t.subs {
			sub.drop()
			s.metrics.SubscriptionClosed()
		}
	}
	s.topics = make(map[topicKey]*topic)
}

// SetupRoutes configures the HTTP routes for the server
func (s *ModelServer) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/changes", s.handleChanges).Methods(http.MethodPost)
	router.HandleFunc("/keys/{position:.*}", s.handleNextKey).Methods(http.MethodGet)
	router.HandleFunc("/model", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/model/{position:.*}", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/model/{position:.*}", s.handleShorthand).
		Methods(http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete)
	return s.withCORS(router)
}

// Start serves until the listener fails
func (s *ModelServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	handler := s.SetupRoutes()
	if s.config.TLS.Enabled {
		if err := certs.EnsureCertificate(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.log); err != nil {
			return err
		}
		s.log.Infow("Model server running", "url", "https://localhost"+addr,
			"cert", s.config.TLS.CertFile, "key", s.config.TLS.KeyFile)
		return http.ListenAndServeTLS(addr, s.config.TLS.CertFile, s.config.TLS.KeyFile, handler)
	}
	s.log.Infow("Model server running", "url", "http://localhost"+addr, "model", s.config.ModelFile)
	return http.ListenAndServe(addr, handler)
}
