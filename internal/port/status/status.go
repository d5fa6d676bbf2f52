// Package status defines the port interface for installation status signals.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/logger"
)

// Sink receives installation status updates. Reporting is fire-and-forget:
// implementations log delivery failures instead of returning them.
type Sink interface {
	Report(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus)
}

// Multi fans a report out to every sink in order.
type Multi []Sink

// Report implements Sink.
func (m Multi) Report(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus) {
	for _, s := range m {
		if s != nil {
			s.Report(ctx, serverID, st)
		}
	}
}

// Nop discards every report.
type Nop struct{}

// Report implements Sink.
func (Nop) Report(context.Context, lsp.ServerID, lsp.InstallationStatus) {}

// Log writes each report as a structured log record.
type Log struct{}

// Report implements Sink.
func (Log) Report(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus) {
	attrs := []any{"server_id", serverID, "state", st.State}
	if st.Message != "" {
		attrs = append(attrs, "message", st.Message)
	}
	if st.State == lsp.InstallationFailed {
		slog.WarnContext(ctx, "installation status", attrs...)
		return
	}
	slog.InfoContext(ctx, "installation status", attrs...)
}

// Event is the wire form of a status report published to remote observers.
type Event struct {
	ID        string                `json:"id"`
	RequestID string                `json:"request_id,omitempty"`
	ServerID  lsp.ServerID          `json:"server_id"`
	State     lsp.InstallationState `json:"state"`
	Message   string                `json:"message,omitempty"`
	Time      time.Time             `json:"time"`
}

// NewEvent stamps a report with a fresh event ID and the request ID carried by ctx.
func NewEvent(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus) Event {
	return Event{
		ID:        uuid.NewString(),
		RequestID: logger.RequestID(ctx),
		ServerID:  serverID,
		State:     st.State,
		Message:   st.Message,
		Time:      time.Now().UTC(),
	}
}
