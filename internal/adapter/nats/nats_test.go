package nats

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/logger"
	"github.com/Strob0t/lspkit/internal/port/status"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Publisher {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	p, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return p
}

func TestSubject(t *testing.T) {
	if got := Subject("elixir-ls"); got != "lsp.status.elixir-ls" {
		t.Errorf("Subject = %q", got)
	}
}

func TestPublisher_ReportSubscribe(t *testing.T) {
	p := testConnect(t)
	id := lsp.ServerID("test-" + time.Now().Format("150405.000000"))

	var (
		mu       sync.Mutex
		received []status.Event
		gotReqID string
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := p.Subscribe(context.Background(), Subject(id), func(ctx context.Context, ev status.Event) error {
		mu.Lock()
		received = append(received, ev)
		gotReqID = logger.RequestID(ctx)
		n := len(received)
		mu.Unlock()
		if n == 2 {
			once.Do(func() { close(done) })
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRequestID(context.Background(), "req-status-1")
	p.Report(ctx, id, lsp.InstallationStatus{State: lsp.InstallationCheckingForUpdate})
	p.Report(ctx, id, lsp.InstallationStatus{State: lsp.InstallationFailed, Message: "boom"})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for status events")
	}

	mu.Lock()
	defer mu.Unlock()

	if received[0].State != lsp.InstallationCheckingForUpdate || received[1].State != lsp.InstallationFailed {
		t.Errorf("unexpected states: %+v", received)
	}
	if received[1].Message != "boom" || received[1].ServerID != id {
		t.Errorf("unexpected event: %+v", received[1])
	}
	if gotReqID != "req-status-1" {
		t.Errorf("request ID = %q, want req-status-1", gotReqID)
	}
}

func TestPublisher_IsConnected(t *testing.T) {
	p := testConnect(t)
	if !p.IsConnected() {
		t.Error("expected connected publisher")
	}
}
