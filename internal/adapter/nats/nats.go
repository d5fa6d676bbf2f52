// Package nats publishes installation status events on NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/logger"
	"github.com/Strob0t/lspkit/internal/port/status"
)

const (
	streamName = "LSPKIT"

	// SubjectPrefix prefixes every status subject: lsp.status.<server id>.
	SubjectPrefix = "lsp.status."

	// AllStatus matches status events for every server.
	AllStatus = SubjectPrefix + ">"

	headerRequestID = "X-Request-ID"
	publishTimeout  = 2 * time.Second
)

// Subject returns the status subject for a server.
func Subject(id lsp.ServerID) string {
	return SubjectPrefix + string(id)
}

// Handler processes one status event.
type Handler func(ctx context.Context, ev status.Event) error

// Publisher implements status.Sink using NATS JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the status stream exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("lspkit"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{AllStatus},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

// Report implements status.Sink. Delivery failures are logged.
func (p *Publisher) Report(ctx context.Context, serverID lsp.ServerID, st lsp.InstallationStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, status.NewEvent(ctx, serverID, st)); err != nil {
		slog.WarnContext(ctx, "status publish failed", "server_id", serverID, "state", st.State, "error", err)
	}
}

// Publish sends ev on its server's status subject.
func (p *Publisher) Publish(ctx context.Context, ev status.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	msg := nats.NewMsg(Subject(ev.ServerID))
	msg.Data = data
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe delivers new status events matching subject to handler until the
// returned stop function is called.
func (p *Publisher) Subscribe(ctx context.Context, subject string, handler Handler) (func(), error) {
	consumer, err := p.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		msgCtx := context.Background()
		if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
			msgCtx = logger.WithRequestID(msgCtx, reqID)
		}

		var ev status.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.ErrorContext(msgCtx, "invalid status event", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}

		if err := handler(msgCtx, ev); err != nil {
			slog.ErrorContext(msgCtx, "status handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// JetStream exposes the JetStream context for other adapters sharing the
// connection.
func (p *Publisher) JetStream() jetstream.JetStream {
	return p.js
}

// IsConnected reports whether the underlying connection is up.
func (p *Publisher) IsConnected() bool {
	return p.nc.IsConnected()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
