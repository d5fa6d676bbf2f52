package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/worktree"
)

// WorkspaceConfiguration returns the settings sent to the server at startup,
// wrapped under the server's settings key: {"elixirLS": {...}}. Missing,
// unreadable, or malformed settings become an empty object; they are never an
// error.
func WorkspaceConfiguration(ctx context.Context, server lsp.Server, wt worktree.Worktree) (json.RawMessage, error) {
	settings := objectOrEmpty(ctx, server.ID, "settings", func() (json.RawMessage, error) {
		return wt.SettingsFor(server.ID)
	})

	out, err := sjson.SetRawBytes([]byte(`{}`), gjson.Escape(server.SettingsKey), settings)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InitializationOptions returns the initialization options configured for the
// server, or nil when none are set.
func InitializationOptions(ctx context.Context, server lsp.Server, wt worktree.Worktree) (json.RawMessage, error) {
	opts := objectOrEmpty(ctx, server.ID, "initialization_options", func() (json.RawMessage, error) {
		return wt.InitializationOptionsFor(server.ID)
	})
	if string(opts) == "{}" {
		return nil, nil
	}
	return opts, nil
}

// objectOrEmpty returns the JSON object produced by read, or {} when read
// fails or yields anything other than an object.
func objectOrEmpty(ctx context.Context, id lsp.ServerID, what string, read func() (json.RawMessage, error)) json.RawMessage {
	raw, err := read()
	switch {
	case err != nil:
		if !errors.Is(err, lsp.ErrConfigurationUnavailable) {
			err = errors.Join(lsp.ErrConfigurationUnavailable, err)
		}
		slog.DebugContext(ctx, "worktree configuration unavailable", "server_id", id, "field", what, "error", err)
		return json.RawMessage(`{}`)
	case len(raw) == 0:
		return json.RawMessage(`{}`)
	case !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject():
		slog.DebugContext(ctx, "ignoring malformed worktree configuration", "server_id", id, "field", what)
		return json.RawMessage(`{}`)
	}
	return raw
}
