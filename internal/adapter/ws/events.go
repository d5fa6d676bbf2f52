package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/status"
)

// EventInstallationStatus is sent whenever a server's installation state changes.
const EventInstallationStatus = "installation.status"

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// Report implements status.Sink by broadcasting the report to every client.
func (h *Hub) Report(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus) {
	if h.ConnectionCount() == 0 {
		return
	}
	h.BroadcastEvent(context.WithoutCancel(ctx), EventInstallationStatus, status.NewEvent(ctx, serverID, st))
}
