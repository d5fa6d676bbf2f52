// Package release defines the port interface for looking up published
// language-server releases.
package release

import (
	"context"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// Source is the port interface for a release registry (e.g. GitHub Releases).
type Source interface {
	// LatestRelease returns the newest release of repo that satisfies opts.
	// It returns an error wrapping lsp.ErrNotFound when no release qualifies.
	LatestRelease(ctx context.Context, repo string, opts lsp.ReleaseOptions) (*lsp.Release, error)
}
