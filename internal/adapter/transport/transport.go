// Package transport implements the transport port: HTTP downloads unpacked
// onto the local filesystem.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// Local downloads over HTTP and unpacks into local directories.
type Local struct {
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a transport. A positive timeout bounds each download including
// extraction.
func New(timeout time.Duration) *Local {
	return &Local{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:    timeout,
	}
}

// Download fetches rawURL and unpacks it into destDir according to kind.
// Extraction happens in a sibling staging directory that replaces destDir
// only once it is complete, so destDir never holds a partial install.
func (l *Local) Download(ctx context.Context, rawURL, destDir string, kind lsp.ArchiveKind) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", lsp.ErrFilesystem, parent, err)
	}

	archive, err := l.fetch(ctx, rawURL, parent)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }()

	staging, err := os.MkdirTemp(parent, filepath.Base(destDir)+".partial-")
	if err != nil {
		return fmt.Errorf("%w: create staging directory: %w", lsp.ErrFilesystem, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := extract(archive, staging, assetName(rawURL), kind); err != nil {
		return fmt.Errorf("%w: extract %s: %w", lsp.ErrTransport, kind, err)
	}

	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("%w: clear %s: %w", lsp.ErrFilesystem, destDir, err)
	}
	if err := os.Rename(staging, destDir); err != nil {
		return fmt.Errorf("%w: install %s: %w", lsp.ErrFilesystem, destDir, err)
	}
	committed = true
	return nil
}

// fetch streams the response body into a temp file under dir and returns its path.
func (l *Local) fetch(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", lsp.ErrTransport, err)
	}

	resp, err := l.httpClient.Do(req) //nolint:gosec // G704: URL comes from release metadata
	if err != nil {
		return "", fmt.Errorf("%w: http request: %w", lsp.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: download %s: HTTP %d", lsp.ErrTransport, rawURL, resp.StatusCode)
	}

	f, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", lsp.ErrFilesystem, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%w: read body: %w", lsp.ErrTransport, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%w: write temp file: %w", lsp.ErrFilesystem, err)
	}
	return f.Name(), nil
}

// assetName is the last path segment of rawURL.
func assetName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "download"
	}
	return name
}

// MarkExecutable sets mode 0755 on path.
func (l *Local) MarkExecutable(p string) error {
	if err := os.Chmod(p, 0o755); err != nil { //nolint:gosec // G302: launchers must be executable
		return fmt.Errorf("%w: chmod %s: %w", lsp.ErrFilesystem, p, err)
	}
	return nil
}

// IsFile reports whether p names a regular file.
func (l *Local) IsFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

// ListDir returns the names of dir's entries. A missing directory is empty.
func (l *Local) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %w", lsp.ErrFilesystem, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// RemoveAll removes p and everything below it.
func (l *Local) RemoveAll(p string) error {
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("%w: remove %s: %w", lsp.ErrFilesystem, p, err)
	}
	return nil
}

// trimExt drops a trailing .gz from a gzip asset name.
func trimExt(name string) string {
	if trimmed := strings.TrimSuffix(name, ".gz"); trimmed != "" {
		return trimmed
	}
	return name
}
