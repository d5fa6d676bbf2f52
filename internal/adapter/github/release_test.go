package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/lspkit/internal/adapter/github"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/resilience"
)

const releasesJSON = `[
  {"tag_name":"v0.21.0-rc.1","draft":false,"prerelease":true,"assets":[{"name":"elixir-ls-v0.21.0-rc.1.zip","browser_download_url":"https://dl.test/rc.zip"}]},
  {"tag_name":"v0.20.1","draft":true,"prerelease":false,"assets":[{"name":"elixir-ls-v0.20.1.zip","browser_download_url":"https://dl.test/draft.zip"}]},
  {"tag_name":"v0.20.0","draft":false,"prerelease":false,"assets":[]},
  {"tag_name":"v0.19.0","draft":false,"prerelease":false,"assets":[{"name":"elixir-ls-v0.19.0.zip","browser_download_url":"https://dl.test/v0.19.0.zip"}]}
]`

func releasesServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/elixir-lsp/elixir-ls/releases" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestRelease_RequireAssets(t *testing.T) {
	srv := releasesServer(t, http.StatusOK, releasesJSON)
	client := github.NewClient(srv.URL, "", 5*time.Second)

	rel, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{RequireAssets: true})
	if err != nil {
		t.Fatalf("LatestRelease failed: %v", err)
	}
	if rel.Version != "v0.19.0" {
		t.Fatalf("expected v0.19.0, got %q", rel.Version)
	}
	asset, ok := rel.Asset("elixir-ls-v0.19.0.zip")
	if !ok || asset.DownloadURL != "https://dl.test/v0.19.0.zip" {
		t.Fatalf("unexpected asset %+v (found=%v)", asset, ok)
	}
}

func TestLatestRelease_WithoutAssetRequirement(t *testing.T) {
	srv := releasesServer(t, http.StatusOK, releasesJSON)
	client := github.NewClient(srv.URL, "", 5*time.Second)

	rel, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{})
	if err != nil {
		t.Fatalf("LatestRelease failed: %v", err)
	}
	if rel.Version != "v0.20.0" {
		t.Fatalf("expected v0.20.0, got %q", rel.Version)
	}
}

func TestLatestRelease_PreRelease(t *testing.T) {
	srv := releasesServer(t, http.StatusOK, releasesJSON)
	client := github.NewClient(srv.URL, "", 5*time.Second)

	rel, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{PreRelease: true})
	if err != nil {
		t.Fatalf("LatestRelease failed: %v", err)
	}
	if rel.Version != "v0.21.0-rc.1" {
		t.Fatalf("expected the prerelease, got %q", rel.Version)
	}
}

func TestLatestRelease_NoMatch(t *testing.T) {
	srv := releasesServer(t, http.StatusOK, `[]`)
	client := github.NewClient(srv.URL, "", 5*time.Second)

	_, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{RequireAssets: true})
	if !errors.Is(err, lsp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestRelease_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"missing repository", http.StatusNotFound, `{"message":"Not Found"}`, lsp.ErrNotFound},
		{"rate limited", http.StatusForbidden, `{"message":"API rate limit exceeded"}`, lsp.ErrTransport},
		{"server error", http.StatusBadGateway, `bad gateway`, lsp.ErrTransport},
		{"malformed body", http.StatusOK, `{"not":"a list"}`, lsp.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := releasesServer(t, tt.status, tt.body)
			client := github.NewClient(srv.URL, "", 5*time.Second)

			_, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLatestRelease_InvalidRepo(t *testing.T) {
	client := github.NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := client.LatestRelease(context.Background(), "elixir-ls", lsp.ReleaseOptions{})
	if !errors.Is(err, lsp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestRelease_SendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer gh-token" {
			t.Errorf("unexpected auth: %q", auth)
		}
		if accept := r.Header.Get("Accept"); accept != "application/vnd.github+json" {
			t.Errorf("unexpected accept: %q", accept)
		}
		_, _ = w.Write([]byte(releasesJSON))
	}))
	defer srv.Close()

	client := github.NewClient(srv.URL+"/", "gh-token", 5*time.Second)
	if _, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{}); err != nil {
		t.Fatalf("LatestRelease failed: %v", err)
	}
}

func TestLatestRelease_TokenSourceReadPerRequest(t *testing.T) {
	var got []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(releasesJSON))
	}))
	defer srv.Close()

	token := "first"
	client := github.NewClient(srv.URL, "static", 5*time.Second)
	client.SetTokenSource(func() string { return token })

	for _, next := range []string{"second", ""} {
		if _, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{}); err != nil {
			t.Fatalf("LatestRelease failed: %v", err)
		}
		token = next
	}
	if _, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{}); err != nil {
		t.Fatalf("LatestRelease failed: %v", err)
	}

	want := []string{"Bearer first", "Bearer second", ""}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d: expected auth %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLatestRelease_BreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := github.NewClient(srv.URL, "", 5*time.Second)
	client.SetBreaker(resilience.NewBreaker(2, time.Minute, resilience.WithFailurePredicate(github.IsBreakerFailure)))
	ctx := context.Background()

	for range 2 {
		if _, err := client.LatestRelease(ctx, "elixir-lsp/elixir-ls", lsp.ReleaseOptions{}); !errors.Is(err, lsp.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
	}

	_, err := client.LatestRelease(ctx, "elixir-lsp/elixir-ls", lsp.ReleaseOptions{})
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, lsp.ErrTransport) {
		t.Fatalf("expected open circuit reported as transport failure, got %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected 2 requests to reach the server, got %d", n)
	}
}

func TestLatestRelease_BreakerIgnoresNotFound(t *testing.T) {
	srv := releasesServer(t, http.StatusNotFound, `{"message":"Not Found"}`)
	client := github.NewClient(srv.URL, "", 5*time.Second)
	b := resilience.NewBreaker(1, time.Minute, resilience.WithFailurePredicate(github.IsBreakerFailure))
	client.SetBreaker(b)

	for range 3 {
		if _, err := client.LatestRelease(context.Background(), "elixir-lsp/elixir-ls", lsp.ReleaseOptions{}); !errors.Is(err, lsp.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("expected breaker to stay closed, got %s", b.State())
	}
}
