package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/dispatch"
	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/model"
	"gihan9a/modelsync/internal/schema"
	"gihan9a/modelsync/pkg/braidproto"
)

// maxBodySize bounds the size of pushed changes
const maxBodySize = 10 << 20

// pushResult is the response to pushed changes
type pushResult struct {
	Version  string `json:"version"`
	Notified bool   `json:"notified"`
	Applied  int    `json:"applied"`
}

// handleGet serves the content at a position, or streams its changes
// when the client subscribes
func (s *ModelServer) handleGet(w http.ResponseWriter, r *http.Request) {
	position := mux.Vars(r)["position"]
	property := r.URL.Query().Get("property")

	w.Header().Set("Range-Request-Allow-Methods", "PATCH, PUT")
	w.Header().Set("Range-Request-Allow-Units", "json")
	w.Header().Set("Content-Type", "application/json")

	if strings.EqualFold(r.Header.Get("Subscribe"), "true") {
		s.serveSubscription(w, r, position, property)
		return
	}

	key := newTopicKey(position, property)
	s.mu.Lock()
	node := s.engine.Model().FindAtPosition(key.path)
	data, err := document.Marshal(node)
	version := s.version
	s.mu.Unlock()

	if node == nil {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Error encoding resource: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Version", version)
	w.Header().Set("Parents", "")
	w.Write(data)
}

// serveSubscription keeps the connection open and writes one update per
// pushed batch until the client leaves or is dropped
func (s *ModelServer) serveSubscription(w http.ResponseWriter, r *http.Request, position, property string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, key, err := s.AddSubscription(position, property)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer s.RemoveSubscription(key, sub)

	w.Header().Set("subscribe", "true")
	w.Header().Set("cache-control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(209) // 209 is the status code for a successful subscription
	flusher.Flush()

	for {
		select {
		case update := <-sub.updates:
			if err := braidproto.WriteUpdate(w, update); err != nil {
				s.log.Debugw("Subscriber write failed", "id", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		case <-sub.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleChanges pushes one change or an array of changes
func (s *ModelServer) handleChanges(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading body: %v", err), http.StatusBadRequest)
		return
	}
	changes, err := change.ParseList(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respondToPush(w, changes)
}

// handleShorthand maps POST, PATCH, PUT and DELETE on a position to an
// ADD, UPDATE, RESET or DELETE change
func (s *ModelServer) handleShorthand(w http.ResponseWriter, r *http.Request) {
	position := strings.Trim(mux.Vars(r)["position"], "/")

	var kind change.Kind
	switch r.Method {
	case http.MethodPost:
		kind = change.KindAdd
	case http.MethodPatch:
		kind = change.KindUpdate
	case http.MethodPut:
		kind = change.KindReset
	default:
		kind = change.KindDelete
	}

	var value document.Node
	if kind != change.KindDelete {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			http.Error(w, fmt.Sprintf("Error reading body: %v", err), http.StatusBadRequest)
			return
		}
		if value, err = document.Parse(data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	c := change.New(kind, position, value)
	c.BeforeKey = r.URL.Query().Get("before")
	s.respondToPush(w, []*change.Change{c})
}

func (s *ModelServer) respondToPush(w http.ResponseWriter, changes []*change.Change) {
	notified, err := s.PushChanges(changes)
	if err != nil {
		s.log.Infow("Change rejected", "error", err)
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pushResult{Version: s.Version(), Notified: notified, Applied: len(changes)})
}

// handleNextKey returns the next free key of a container
func (s *ModelServer) handleNextKey(w http.ResponseWriter, r *http.Request) {
	position := strings.Trim(mux.Vars(r)["position"], "/")

	s.mu.Lock()
	key, err := s.engine.Model().GenerateNextKeyForPosition(position, false)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

// statusOf maps engine errors to HTTP status codes
func statusOf(err error) int {
	var (
		pathErr      *schema.PathError
		resolveErr   *schema.ResolutionError
		kindErr      *change.UnsupportedKindError
		missingErr   *model.MissingOldPositionError
		containerErr *model.NotContainerError
		depthErr     *model.MaxDepthError
		moveErr      *model.InvalidMoveError
		dupErr       *dispatch.DuplicateSubscriptionError
	)
	switch {
	case errors.As(err, &moveErr), errors.As(err, &dupErr):
		return http.StatusConflict
	case errors.Is(err, change.ErrSlashPosition),
		errors.As(err, &pathErr),
		errors.As(err, &resolveErr),
		errors.As(err, &kindErr),
		errors.As(err, &missingErr),
		errors.As(err, &containerErr),
		errors.As(err, &depthErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *ModelServer) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// withCORS adds CORS headers and answers preflight requests when enabled
func (s *ModelServer) withCORS(next http.Handler) http.Handler {
	if !s.config.CORS.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.addCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// addCORSHeaders adds CORS headers to the response
func (s *ModelServer) addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", s.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", s.config.CORS.AllowHeaders)

	if s.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.config.CORS.MaxAge))
}
