package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/prefs/internal/backend"
	"github.com/kalambet/prefs/internal/preferences"
)

const testToken = "test-token-12345"

func setupAppHandler(t *testing.T, r backend.Resolver) http.Handler {
	t.Helper()
	return NewAppHandler(AppDeps{
		Stores: Stores{Resolver: r, Default: preferences.Named("demo")},
		Token:  testToken,
	})
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuthRequired(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	for _, token := range []string{"", "wrong-token"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/stores/default/keys", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}
}

func TestSetGetRemove(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	rr := do(t, h, http.MethodPut, "/stores/named:demo/keys/theme", `{"value":"dark"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d; body = %s", rr.Code, rr.Body.String())
	}

	// "default" resolves to the configured named:demo store.
	rr = do(t, h, http.MethodGet, "/stores/default/keys/theme", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var entry entryResponse
	json.NewDecoder(rr.Body).Decode(&entry)
	if entry.Key != "theme" || entry.Value != "dark" {
		t.Errorf("entry = %+v", entry)
	}

	rr = do(t, h, http.MethodDelete, "/stores/named:demo/keys/theme", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodDelete, "/stores/named:demo/keys/theme", "")
	if rr.Code != http.StatusOK {
		t.Errorf("DELETE of absent key status = %d, want 200", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/stores/named:demo/keys/theme", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rr.Code)
	}
	if typ := errorType(t, rr); typ != "not_found" {
		t.Errorf("error type = %q, want not_found", typ)
	}
}

func TestEscapedKeys(t *testing.T) {
	r := backend.NewMemoryResolver("com.test")
	h := setupAppHandler(t, r)

	tests := []struct {
		path string
		key  string
	}{
		{"a%2Fb", "a/b"},
		{"a%25b", "a%b"},
		{"with%20space", "with space"},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodPut, "/stores/named:demo/keys/"+tt.path, `{"value":"v"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("PUT %s status = %d; body = %s", tt.path, rr.Code, rr.Body.String())
		}

		rr = do(t, h, http.MethodGet, "/stores/named:demo/keys/"+tt.path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tt.path, rr.Code)
		}
		var entry entryResponse
		json.NewDecoder(rr.Body).Decode(&entry)
		if entry.Key != tt.key {
			t.Errorf("GET %s key = %q, want %q", tt.path, entry.Key, tt.key)
		}
	}

	store, err := preferences.New(preferences.Named("demo"), r)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		if _, ok, _ := store.Get(tt.key); !ok {
			t.Errorf("store.Get(%q) absent after PUT %s", tt.key, tt.path)
		}
	}

	rr := do(t, h, http.MethodDelete, "/stores/named:demo/keys/a%2Fb", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", rr.Code)
	}
	if _, ok, _ := store.Get("a/b"); ok {
		t.Error("a/b still present after DELETE")
	}
}

func TestSetEmptyValue(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	if rr := do(t, h, http.MethodPut, "/stores/legacy/keys/k", `{"value":""}`); rr.Code != http.StatusOK {
		t.Fatalf("PUT empty value status = %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/stores/legacy/keys/k", "")
	if rr.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200 for an empty stored value", rr.Code)
	}
}

func TestSetBadBody(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	for _, body := range []string{`not json`, `{}`} {
		rr := do(t, h, http.MethodPut, "/stores/default/keys/k", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestListAndClear(t *testing.T) {
	r := backend.NewMemoryResolver("com.test")
	h := setupAppHandler(t, r)

	do(t, h, http.MethodPut, "/stores/named:a/keys/x", `{"value":"1"}`)
	do(t, h, http.MethodPut, "/stores/named:a/keys/y", `{"value":"2"}`)
	do(t, h, http.MethodPut, "/stores/named:b/keys/x", `{"value":"3"}`)

	rr := do(t, h, http.MethodGet, "/stores/named:a/keys", "")
	var list keysResponse
	json.NewDecoder(rr.Body).Decode(&list)
	if list.Store != "named:a" || strings.Join(list.Keys, ",") != "x,y" {
		t.Errorf("list = %+v", list)
	}

	if rr := do(t, h, http.MethodDelete, "/stores/named:a/keys", ""); rr.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/stores/named:a/keys", "")
	list = keysResponse{}
	json.NewDecoder(rr.Body).Decode(&list)
	if list.Keys == nil || len(list.Keys) != 0 {
		t.Errorf("keys after clear = %#v, want empty array", list.Keys)
	}

	rr = do(t, h, http.MethodGet, "/stores/named:b/keys/x", "")
	if rr.Code != http.StatusOK {
		t.Errorf("clearing named:a touched named:b (status %d)", rr.Code)
	}
}

func TestStoreErrors(t *testing.T) {
	h := setupAppHandler(t, backend.NewMemoryResolver("com.test"))

	tests := []struct {
		url      string
		wantCode int
		wantType string
	}{
		{"/stores/bogus/keys", http.StatusBadRequest, "invalid_request_error"},
		{"/stores/group:NSGlobalDomain/keys", http.StatusUnprocessableEntity, "configuration_error"},
		{"/stores/group:com.test/keys", http.StatusUnprocessableEntity, "configuration_error"},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodGet, tt.url, "")
		if rr.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.url, rr.Code, tt.wantCode)
			continue
		}
		if typ := errorType(t, rr); typ != tt.wantType {
			t.Errorf("%s: type = %q, want %q", tt.url, typ, tt.wantType)
		}
	}
}

type brokenBackend struct{}

func (brokenBackend) Get(string) (string, bool, error) { return "", false, errors.New("io error") }
func (brokenBackend) Set(string, string) error { return errors.New("io error") }
func (brokenBackend) Delete(string) error { return errors.New("io error") }
func (brokenBackend) Keys() ([]string, error) { return nil, errors.New("io error") }

type brokenResolver struct{}

func (brokenResolver) Standard() (backend.Backend, error) { return brokenBackend{}, nil }
func (brokenResolver) Suite(string) (backend.Backend, error) { return brokenBackend{}, nil }

func TestStorageUnavailable(t *testing.T) {
	h := setupAppHandler(t, brokenResolver{})

	rr := do(t, h, http.MethodGet, "/stores/default/keys/k", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if typ := errorType(t, rr); typ != "storage_unavailable" {
		t.Errorf("type = %q, want storage_unavailable", typ)
	}
}
