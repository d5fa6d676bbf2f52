// Package worktree defines the port interface for the project a language
// server runs against: search-path lookup and per-server settings.
package worktree

import (
	"encoding/json"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// Worktree is the port interface for a project worktree.
type Worktree interface {
	// Root returns the absolute path of the worktree.
	Root() string

	// Which looks up name on the worktree's executable search path.
	Which(name string) (path string, ok bool)

	// SettingsFor returns the user/workspace settings object for the server.
	// A nil result with a nil error means no settings are configured.
	SettingsFor(serverID lsp.ServerID) (json.RawMessage, error)

	// InitializationOptionsFor returns the initialization options configured
	// for the server, or nil when none are set.
	InitializationOptionsFor(serverID lsp.ServerID) (json.RawMessage, error)
}
