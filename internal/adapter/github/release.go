// Package github implements the release.Source port against the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/resilience"
)

// DefaultAPIURL is the public GitHub API.
const DefaultAPIURL = "https://api.github.com"

// releasesPerPage bounds how far back LatestRelease looks for a qualifying release.
const releasesPerPage = 30

// Client looks up releases on GitHub.
type Client struct {
	baseURL    string
	token      func() string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a GitHub release client. An empty baseURL selects the
// public API; an empty token makes unauthenticated requests.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   func() string { return token },
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetTokenSource replaces the static token with one read per request, so a
// rotated token takes effect without rebuilding the client.
func (c *Client) SetTokenSource(token func() string) {
	c.token = token
}

// IsBreakerFailure reports whether err should count toward opening a breaker
// guarding this client. A repository without a qualifying release is an
// answer, not an outage.
func IsBreakerFailure(err error) bool {
	return err != nil && !errors.Is(err, lsp.ErrNotFound)
}

// ghRelease mirrors the JSON response from the releases API.
type ghRelease struct {
	TagName    string    `json:"tag_name"`
	Draft      bool      `json:"draft"`
	Prerelease bool      `json:"prerelease"`
	Assets     []ghAsset `json:"assets"`
}

type ghAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// LatestRelease returns the newest non-draft release of repo ("owner/name")
// matching opts. Releases are returned by GitHub newest first.
func (c *Client) LatestRelease(ctx context.Context, repo string, opts lsp.ReleaseOptions) (*lsp.Release, error) {
	ctx, span := cfotel.StartReleaseSpan(ctx, repo)
	rel, err := c.latestRelease(ctx, repo, opts)
	cfotel.EndSpan(span, err)
	return rel, err
}

func (c *Client) latestRelease(ctx context.Context, repo string, opts lsp.ReleaseOptions) (*lsp.Release, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("%w: invalid repository %q, expected owner/name", lsp.ErrNotFound, repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, owner, name, releasesPerPage)
	body, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("github list releases: %w", err)
	}

	var releases []ghRelease
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, fmt.Errorf("%w: github parse response: %w", lsp.ErrTransport, err)
	}

	for i := range releases {
		r := &releases[i]
		if r.Draft || r.Prerelease != opts.PreRelease {
			continue
		}
		if opts.RequireAssets && len(r.Assets) == 0 {
			continue
		}
		return toRelease(r), nil
	}
	return nil, fmt.Errorf("%w: no matching release in %s", lsp.ErrNotFound, repo)
}

func toRelease(r *ghRelease) *lsp.Release {
	assets := make([]lsp.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, lsp.Asset{Name: a.Name, DownloadURL: a.BrowserDownloadURL})
	}
	return &lsp.Release{Version: r.TagName, Assets: assets}
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL is built from the configured API base
		if err != nil {
			return fmt.Errorf("%w: http request: %w", lsp.ErrTransport, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %w", lsp.ErrTransport, err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: github API 404: %s", lsp.ErrNotFound, string(data))
		case resp.StatusCode >= 400:
			return fmt.Errorf("%w: github API %d: %s", lsp.ErrTransport, resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return nil, fmt.Errorf("%w: %w", lsp.ErrTransport, err)
			}
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
