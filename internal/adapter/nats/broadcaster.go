// Package nats implements cluster-wide tenant notifications over a NATS
// message bus. Single-node deployments run without it through Nop.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Subjects carrying tenant notifications.
const (
	SubjectUnload = "provisr.tenant.unload"
	SubjectDelete = "provisr.tenant.delete"
)

// Compile-time checks.
var (
	_ domain.Broadcaster = (*Broadcaster)(nil)
	_ domain.Broadcaster = Nop{}
)

// Broadcaster fans tenant messages out to all worker nodes. Broadcast
// blocks until the bus confirms receipt, not until nodes have processed
// the message.
type Broadcaster struct {
	nc *nats.Conn
}

// Connect establishes the bus connection.
func Connect(url string) (*Broadcaster, error) {
	nc, err := nats.Connect(url, nats.Name("provisr"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("nats connected", "url", url)
	return &Broadcaster{nc: nc}, nil
}

// Broadcast publishes the message and flushes, so a failure to reach the
// bus surfaces to the caller before any destructive local step runs.
func (b *Broadcaster) Broadcast(ctx context.Context, msg domain.ClusterMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding cluster message: %w", err)
	}

	subject, err := subjectFor(msg.Kind)
	if err != nil {
		return err
	}

	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("confirming delivery of %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the bus connection.
func (b *Broadcaster) Close() {
	b.nc.Close()
}

func subjectFor(kind domain.MessageKind) (string, error) {
	switch kind {
	case domain.MessageUnload:
		return SubjectUnload, nil
	case domain.MessageDelete:
		return SubjectDelete, nil
	default:
		return "", fmt.Errorf("unknown cluster message kind %q", kind)
	}
}

// Nop is the broadcaster for single-node deployments with no clustering
// agent configured: every broadcast is a no-op success.
type Nop struct{}

// Broadcast does nothing.
func (Nop) Broadcast(context.Context, domain.ClusterMessage) error { return nil }
