package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prefs/internal/backend"
	"github.com/kalambet/prefs/internal/preferences"
)

const maxRequestBodySize = 1 << 20 // 1MB

// defaultStoreName selects Stores.Default in URLs and tool arguments.
const defaultStoreName = "default"

// Stores opens preference stores by their textual configuration.
type Stores struct {
	Resolver backend.Resolver
	Default  preferences.Configuration
}

// Open resolves name ("named:x", "legacy", "group:id", or "" / "default")
// to a store.
func (s Stores) Open(name string) (*preferences.Store, error) {
	cfg := s.Default
	if name != "" && name != defaultStoreName {
		var err error
		cfg, err = preferences.ParseConfiguration(name)
		if err != nil {
			return nil, err
		}
	}
	return preferences.New(cfg, s.Resolver)
}

type AppDeps struct {
	Stores Stores
	Token  string
}

type setRequest struct {
	Value *string `json:"value"`
}

type entryResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type keysResponse struct {
	Store string   `json:"store"`
	Keys  []string `json:"keys"`
}

// NewAppHandler returns the preferences REST API. Everything except /health
// requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/stores/{store}/keys", handleListKeys(deps))
		r.Delete("/stores/{store}/keys", handleRemoveAll(deps))
		r.Get("/stores/{store}/keys/{key}", handleGet(deps))
		r.Put("/stores/{store}/keys/{key}", handleSet(deps))
		r.Delete("/stores/{store}/keys/{key}", handleRemove(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// pathParam returns the decoded URL parameter. chi matches against
// r.URL.RawPath when it is set, so parameters are still escaped in that case.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, true
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid %s in path: %v", name, err)
		return "", false
	}
	return decoded, true
}

func openStore(w http.ResponseWriter, r *http.Request, deps AppDeps) (*preferences.Store, bool) {
	name, ok := pathParam(w, r, "store")
	if !ok {
		return nil, false
	}
	store, err := deps.Stores.Open(name)
	if err != nil {
		storeError(w, err)
		return nil, false
	}
	return store, true
}

func handleListKeys(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := openStore(w, r, deps)
		if !ok {
			return
		}
		keys, err := store.Keys()
		if err != nil {
			storeError(w, err)
			return
		}
		sort.Strings(keys)

		writeJSON(w, keysResponse{Store: store.Configuration().String(), Keys: keys})
	}
}

func handleRemoveAll(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := openStore(w, r, deps)
		if !ok {
			return
		}
		if err := store.RemoveAll(); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleGet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := openStore(w, r, deps)
		if !ok {
			return
		}
		key, ok := pathParam(w, r, "key")
		if !ok {
			return
		}
		value, found, err := store.Get(key)
		if err != nil {
			storeError(w, err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "key %q not found", key)
			return
		}
		writeJSON(w, entryResponse{Key: key, Value: value})
	}
}

func handleSet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req setRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Value == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "value is required")
			return
		}

		store, ok := openStore(w, r, deps)
		if !ok {
			return
		}
		key, ok := pathParam(w, r, "key")
		if !ok {
			return
		}
		if err := store.Set(key, *req.Value); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleRemove(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := openStore(w, r, deps)
		if !ok {
			return
		}
		key, ok := pathParam(w, r, "key")
		if !ok {
			return
		}
		if err := store.Remove(key); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// storeError maps preferences errors onto HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preferences.ErrInvalidConfiguration), errors.Is(err, preferences.ErrInvalidKey):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, preferences.ErrGroupUnavailable):
		httpError(w, http.StatusUnprocessableEntity, "configuration_error", "%v", err)
	case errors.Is(err, preferences.ErrStorageUnavailable):
		slog.Warn("preferences storage unavailable", "error", err)
		httpError(w, http.StatusServiceUnavailable, "storage_unavailable", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
