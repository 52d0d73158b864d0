package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/maruel/flatdb/internal/jsondb"
	"github.com/maruel/flatdb/internal/server/handlers"
	"github.com/maruel/flatdb/internal/server/ratelimit"
	"github.com/maruel/flatdb/internal/storage"
)

const testPassword = "correct horse"

func newTestServer(t *testing.T, limits *ratelimit.Config) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	hash, err := handlers.HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	registry, err := storage.NewRegistry([]jsondb.Config{
		{Name: "people", Path: filepath.Join(dir, "people.json"), AutoKey: true, AutoIncrement: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := &storage.ServerConfig{
		JWTSecret:           hex.EncodeToString([]byte("test-secret-key-32-bytes-long!!!")),
		AdminPasswordHash:   hash,
		MaxRequestBodyBytes: 1024,
	}
	srv := httptest.NewServer(NewRouter(&Config{Registry: registry, Server: cfg, Limits: limits, Version: "test"}))
	t.Cleanup(srv.Close)
	return srv
}

type apiResponse struct {
	status int
	header http.Header
	body   map[string]any
}

func call(t *testing.T, srv *httptest.Server, method, path, token, body string) apiResponse {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	out := apiResponse{status: resp.StatusCode, header: resp.Header}
	if err := json.Unmarshal(raw, &out.body); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, raw, err)
	}
	return out
}

func errorCode(r apiResponse) string {
	e, _ := r.body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}

func getToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	r := call(t, srv, "POST", "/api/auth/token", "", `{"password":"`+testPassword+`"}`)
	if r.status != http.StatusOK {
		t.Fatalf("token: %d %v", r.status, r.body)
	}
	return r.body["token"].(string)
}

func TestRouterHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	r := call(t, srv, "GET", "/api/health", "", "")
	if r.status != http.StatusOK || r.body["status"] != "ok" || r.body["version"] != "test" {
		t.Errorf("health = %d %v", r.status, r.body)
	}
	r = call(t, srv, "GET", "/api/collections", "", "")
	if got, _ := r.body["collections"].([]any); len(got) != 1 || got[0] != "people" {
		t.Errorf("collections = %v", r.body)
	}
}

func TestRouterWritesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)
	doc := `{"value":{"name":"Joy Harper","age":23}}`

	for _, token := range []string{"", "garbage"} {
		r := call(t, srv, "POST", "/api/collections/people/add", token, doc)
		if r.status != http.StatusUnauthorized || errorCode(r) != "UNAUTHORIZED" {
			t.Errorf("add with token %q = %d %v", token, r.status, r.body)
		}
	}
	r := call(t, srv, "POST", "/api/auth/token", "", `{"password":"nope"}`)
	if r.status != http.StatusUnauthorized {
		t.Errorf("token with wrong password = %d", r.status)
	}

	token := getToken(t, srv)
	r = call(t, srv, "POST", "/api/collections/people/add", token, doc)
	if r.status != http.StatusOK || r.body["key"] != "0" {
		t.Fatalf("add = %d %v", r.status, r.body)
	}
	r = call(t, srv, "POST", "/api/collections/people/get", "", `{"key":0}`)
	if r.status != http.StatusOK {
		t.Fatalf("get = %d %v", r.status, r.body)
	}
	if v, _ := r.body["value"].(map[string]any); v["name"] != "Joy Harper" {
		t.Errorf("get = %v", r.body)
	}
	r = call(t, srv, "POST", "/api/collections/people/editField", token,
		`{"id":"0","field":"age","operation":"increment","value":2}`)
	if r.status != http.StatusOK || r.body["success"] != true {
		t.Errorf("editField = %d %v", r.status, r.body)
	}
	r = call(t, srv, "POST", "/api/collections/people/search", "",
		`{"conditions":[{"field":"age","criteria":"==","value":25}]}`)
	if entries, _ := r.body["entries"].([]any); len(entries) != 1 {
		t.Errorf("search = %d %v", r.status, r.body)
	}
}

func TestRouterSearchRandom(t *testing.T) {
	srv := newTestServer(t, nil)
	token := getToken(t, srv)
	var docs []string
	for i := range 10 {
		docs = append(docs, `{"n":`+strconv.Itoa(i)+`}`)
	}
	r := call(t, srv, "POST", "/api/collections/people/addBulk", token, `{"values":[`+strings.Join(docs, ",")+`]}`)
	if r.status != http.StatusOK {
		t.Fatalf("addBulk = %d %v", r.status, r.body)
	}
	keysOf := func(r apiResponse) []string {
		t.Helper()
		if r.status != http.StatusOK {
			t.Fatalf("search = %d %v", r.status, r.body)
		}
		entries, _ := r.body["entries"].([]any)
		var keys []string
		for _, e := range entries {
			keys = append(keys, e.(map[string]any)["key"].(string))
		}
		return keys
	}
	const cond = `"conditions":[{"field":"n","criteria":">=","value":0}]`
	plain := keysOf(call(t, srv, "POST", "/api/collections/people/search", "", `{`+cond+`}`))
	if want := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}; !slices.Equal(plain, want) {
		t.Errorf("search = %v, want %v", plain, want)
	}
	first := keysOf(call(t, srv, "POST", "/api/collections/people/search", "", `{`+cond+`,"random":7}`))
	second := keysOf(call(t, srv, "POST", "/api/collections/people/search", "", `{`+cond+`,"random":7}`))
	if !slices.Equal(first, second) {
		t.Errorf("seeded search differs: %v vs %v", first, second)
	}
	if sorted := slices.Sorted(slices.Values(first)); !slices.Equal(sorted, plain) {
		t.Errorf("seeded search = %v, want a permutation of %v", first, plain)
	}
	if got := keysOf(call(t, srv, "POST", "/api/collections/people/search", "", `{`+cond+`,"random":true}`)); len(got) != 10 {
		t.Errorf("random search = %v", got)
	}
	r = call(t, srv, "POST", "/api/collections/people/search", "", `{`+cond+`,"random":"x"}`)
	if r.status != http.StatusBadRequest || errorCode(r) != "VALIDATION_FAILED" {
		t.Errorf("random \"x\" = %d %v", r.status, r.body)
	}
}

func TestRouterReadRaw(t *testing.T) {
	srv := newTestServer(t, nil)
	token := getToken(t, srv)
	r := call(t, srv, "POST", "/api/collections/people/write_raw", token, `{"content":{"b":{"x":1},"a":{"x":2}}}`)
	if r.status != http.StatusOK {
		t.Fatalf("write_raw = %d %v", r.status, r.body)
	}

	req, err := http.NewRequestWithContext(t.Context(), "GET", srv.URL+"/api/collections/people/read_raw", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(bytes.TrimSpace(raw)); got != `{"b":{"x":1},"a":{"x":2}}` {
		t.Errorf("read_raw = %s", got)
	}

	r = call(t, srv, "GET", "/api/collections/people/sha1", "", "")
	if s, _ := r.body["sha1"].(string); len(s) != 40 {
		t.Errorf("sha1 = %v", r.body)
	}
}

func TestRouterErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	token := getToken(t, srv)
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		code   string
	}{
		{"unknown collection", "POST", "/api/collections/nope/get", "", `{"key":"1"}`, 404, "COLLECTION_NOT_FOUND"},
		{"unknown command", "POST", "/api/collections/people/frobnicate", "", `{}`, 404, "UNKNOWN_COMMAND"},
		{"unknown command on unknown collection", "POST", "/api/collections/nope/frobnicate", "", `{}`, 404, "COLLECTION_NOT_FOUND"},
		{"missing document", "POST", "/api/collections/people/get", "", `{"key":"42"}`, 404, "NOT_FOUND"},
		{"unknown field", "POST", "/api/collections/people/get", "", `{"key":"1","extra":true}`, 400, "VALIDATION_FAILED"},
		{"bad criteria", "POST", "/api/collections/people/search", "", `{"conditions":[{"field":"a","criteria":"~","value":1}]}`, 400, "VALIDATION_FAILED"},
		{"set non-object", "POST", "/api/collections/people/set", token, `{"key":"k","value":3}`, 400, "VALIDATION_FAILED"},
		{"body too large", "POST", "/api/collections/people/add", token, `{"value":{"s":"` + strings.Repeat("x", 2048) + `"}}`, 413, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, srv, tt.method, tt.path, tt.token, tt.body)
			if r.status != tt.status || errorCode(r) != tt.code {
				t.Errorf("got %d %s, want %d %s: %v", r.status, errorCode(r), tt.status, tt.code, r.body)
			}
		})
	}
}

func TestRouterRateLimit(t *testing.T) {
	limits := ratelimit.NewConfig(2, 0, 0)
	t.Cleanup(limits.Close)
	srv := newTestServer(t, limits)
	for i := range 2 {
		if r := call(t, srv, "POST", "/api/auth/token", "", `{"password":"nope"}`); r.status != http.StatusUnauthorized {
			t.Fatalf("request %d = %d", i, r.status)
		}
	}
	r := call(t, srv, "POST", "/api/auth/token", "", `{"password":"nope"}`)
	if r.status != http.StatusTooManyRequests || errorCode(r) != "RATE_LIMITED" {
		t.Fatalf("third request = %d %v", r.status, r.body)
	}
	if r.header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// Reads are not throttled by the auth tier.
	if r := call(t, srv, "GET", "/api/collections", "", ""); r.status != http.StatusOK {
		t.Errorf("collections = %d", r.status)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote v4", nil, "10.0.0.1:1234", "10.0.0.1"},
		{"remote v6", nil, "[::1]:8080", "::1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "9.9.9.9"}, "10.0.0.1:1", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
