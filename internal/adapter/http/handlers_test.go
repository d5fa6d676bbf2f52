package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/lspkit/internal/adapter/http"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/worktree"
	"github.com/Strob0t/lspkit/internal/service"
)

// mockWorktree implements worktree.Worktree for testing.
type mockWorktree struct {
	root     string
	system   map[string]string
	settings json.RawMessage
}

func (w *mockWorktree) Root() string { return w.root }

func (w *mockWorktree) Which(name string) (string, bool) {
	p, ok := w.system[name]
	return p, ok
}

func (w *mockWorktree) SettingsFor(lsp.ServerID) (json.RawMessage, error) { return w.settings, nil }

func (w *mockWorktree) InitializationOptionsFor(lsp.ServerID) (json.RawMessage, error) {
	return nil, nil
}

// mockReleases implements release.Source for testing.
type mockReleases struct{ err error }

func (m *mockReleases) LatestRelease(context.Context, string, lsp.ReleaseOptions) (*lsp.Release, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &lsp.Release{Version: "v1"}, nil
}

// mockTransport implements transport.Transport for testing. Nothing exists on disk.
type mockTransport struct{}

func (mockTransport) Download(context.Context, string, string, lsp.ArchiveKind) error {
	return errors.New("unexpected download")
}
func (mockTransport) MarkExecutable(string) error      { return nil }
func (mockTransport) IsFile(string) bool               { return false }
func (mockTransport) ListDir(string) ([]string, error) { return nil, nil }
func (mockTransport) RemoveAll(string) error           { return nil }

type testEnv struct {
	router   chi.Router
	releases *mockReleases
	wt       *mockWorktree
	roots    []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		releases: &mockReleases{},
		wt: &mockWorktree{
			root:     "/work",
			settings: json.RawMessage(`{"dialyzerEnabled":false}`),
		},
	}

	servers := service.NewServerService()
	servers.Register(lsp.ElixirLS.ID,
		service.NewProvisioner(lsp.ElixirLS, t.TempDir(), env.releases, mockTransport{}, nil),
		service.NewLabelService(service.ElixirFormatter{}, nil, 0, nil),
	)

	h := &cfhttp.Handlers{
		Servers: servers,
		Worktree: func(root string) (worktree.Worktree, error) {
			if strings.Contains(root, "..") {
				return nil, errors.New("bad root")
			}
			env.roots = append(env.roots, root)
			return env.wt, nil
		},
	}

	r := chi.NewRouter()
	cfhttp.MountRoutes(r, h, nil)
	env.router = r
	return env
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["status"] != "ok" {
		t.Errorf("status = %v", got["status"])
	}
	if fmt.Sprint(got["servers"]) != "[elixir-ls]" {
		t.Errorf("servers = %v", got["servers"])
	}
}

func TestListServers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/servers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[[]map[string]string](t, w)
	if len(got) != 1 || got[0]["id"] != "elixir-ls" || got[0]["repo"] != "elixir-lsp/elixir-ls" {
		t.Errorf("unexpected servers %v", got)
	}
}

func TestResolveBinary_SystemPath(t *testing.T) {
	env := newTestEnv(t)
	env.wt.system = map[string]string{"elixir-ls": "/usr/bin/elixir-ls"}

	w := env.do(http.MethodPost, "/api/v1/servers/elixir-ls/binary", `{"root":"/srv/app"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[map[string]string](t, w)
	if got["path"] != "/usr/bin/elixir-ls" || got["server_id"] != "elixir-ls" {
		t.Errorf("unexpected response %v", got)
	}
	if len(env.roots) != 1 || env.roots[0] != "/srv/app" {
		t.Errorf("worktree opened with %v", env.roots)
	}
}

func TestResolveBinary_EmptyBody(t *testing.T) {
	env := newTestEnv(t)
	env.wt.system = map[string]string{"elixir-ls": "/usr/bin/elixir-ls"}

	w := env.do(http.MethodPost, "/api/v1/servers/elixir-ls/binary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.roots) != 1 || env.roots[0] != "" {
		t.Errorf("expected the default worktree, got %v", env.roots)
	}
}

func TestResolveBinary_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		releaseErr error
		wantStatus int
	}{
		{"unknown server", "/api/v1/servers/gopls/binary", "{}", nil, http.StatusNotFound},
		{"invalid body", "/api/v1/servers/elixir-ls/binary", "{", nil, http.StatusBadRequest},
		{"invalid root", "/api/v1/servers/elixir-ls/binary", `{"root":"../etc"}`, nil, http.StatusBadRequest},
		{"registry down", "/api/v1/servers/elixir-ls/binary", "{}", fmt.Errorf("%w: dial", lsp.ErrTransport), http.StatusBadGateway},
		{"missing asset", "/api/v1/servers/elixir-ls/binary", "{}", nil, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.releases.err = tt.releaseErr

			w := env.do(http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := decode[map[string]string](t, w); got["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestGetConfiguration(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/servers/elixir-ls/configuration?root=/srv/app", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[map[string]map[string]map[string]bool](t, w)
	if v, ok := got["workspace"]["elixirLS"]["dialyzerEnabled"]; !ok || v {
		t.Errorf("unexpected configuration %v", got)
	}
	if env.roots[0] != "/srv/app" {
		t.Errorf("worktree opened with %v", env.roots)
	}
}

func TestLabelCompletions(t *testing.T) {
	env := newTestEnv(t)

	body := `{"items":[
		{"label":"Foo","kind":9},
		{"label":"x"},
		{"label":"+","kind":24}
	]}`
	w := env.do(http.MethodPost, "/api/v1/servers/elixir-ls/labels/completions", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Labels []*lsp.CodeLabel `json:"labels"`
	}](t, w)
	if len(got.Labels) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(got.Labels))
	}
	if got.Labels[0] == nil || got.Labels[0].Code != "defmodule Foo" {
		t.Errorf("label 0 = %+v", got.Labels[0])
	}
	if got.Labels[1] != nil {
		t.Errorf("label 1 should be null, got %+v", got.Labels[1])
	}
	if got.Labels[2] == nil || got.Labels[2].Code != "def a + b" || got.Labels[2].Spans[0].Range != (lsp.Range{Start: 6, End: 7}) {
		t.Errorf("label 2 = %+v", got.Labels[2])
	}
}

func TestLabelSymbols(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/servers/elixir-ls/labels/symbols", `{"items":[{"name":"run","kind":12},{"name":"+","kind":25}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Labels []*lsp.CodeLabel `json:"labels"`
	}](t, w)
	if len(got.Labels) != 2 || got.Labels[0] == nil || got.Labels[0].Code != "def run" || got.Labels[1] != nil {
		t.Errorf("unexpected labels %+v", got.Labels)
	}
}

func TestLabels_UnknownServer(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/servers/gopls/labels/symbols", `{"items":[]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
