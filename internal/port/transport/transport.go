// Package transport defines the port interface for fetching release assets
// and manipulating the working area they are installed into.
package transport

import (
	"context"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// Transport downloads and unpacks assets and manages installed files.
type Transport interface {
	// Download fetches url and unpacks it into destDir according to kind.
	Download(ctx context.Context, url, destDir string, kind lsp.ArchiveKind) error

	// MarkExecutable sets the executable bits on path. Fails if path is absent.
	MarkExecutable(path string) error

	// IsFile reports whether path names an existing regular file.
	IsFile(path string) bool

	// ListDir returns the entry names of dir.
	ListDir(dir string) ([]string, error)

	// RemoveAll removes path and everything below it.
	RemoveAll(path string) error
}
