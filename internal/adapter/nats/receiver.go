package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Receiver is the node-local side of the broadcast: every worker node runs
// one, keeping its caches and on-disk state consistent with control-plane
// decisions made elsewhere in the cluster.
type Receiver struct {
	nc       *nats.Conn
	cache    domain.TenantCache
	contexts domain.ConfigContexts
	registry domain.Registry

	subs []*nats.Subscription
}

// NewReceiver creates a receiver over an existing broadcaster connection.
func NewReceiver(b *Broadcaster, cache domain.TenantCache, contexts domain.ConfigContexts, registry domain.Registry) *Receiver {
	return &Receiver{nc: b.nc, cache: cache, contexts: contexts, registry: registry}
}

// Start subscribes to the tenant notification subjects.
func (r *Receiver) Start() error {
	unload, err := r.nc.Subscribe(SubjectUnload, r.handle(r.onUnload))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", SubjectUnload, err)
	}
	r.subs = append(r.subs, unload)

	del, err := r.nc.Subscribe(SubjectDelete, r.handle(r.onDelete))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", SubjectDelete, err)
	}
	r.subs = append(r.subs, del)

	return nil
}

// Stop drains the subscriptions.
func (r *Receiver) Stop() {
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil {
			slog.Error("draining subscription failed", "subject", sub.Subject, "error", err)
		}
	}
}

func (r *Receiver) handle(fn func(domain.ClusterMessage)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var cm domain.ClusterMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			slog.Error("malformed cluster message", "subject", msg.Subject, "error", err)
			return
		}
		fn(cm)
	}
}

// onUnload deactivates the tenant on this node by evicting its cached
// record (the next read refetches the post-unload state) and drops its
// configuration context.
func (r *Receiver) onUnload(msg domain.ClusterMessage) {
	r.cache.Delete(msg.TenantID)
	r.contexts.Unload(msg.Domain)
	slog.Info("tenant unloaded", "tenant", msg.Domain, "id", msg.TenantID)
}

// onDelete removes the tenant's node-local metadata and its on-disk
// repository directory.
func (r *Receiver) onDelete(msg domain.ClusterMessage) {
	r.cache.Delete(msg.TenantID)
	r.contexts.Unload(msg.Domain)
	if err := r.registry.RemoveRepository(msg.TenantID); err != nil {
		slog.Error("removing tenant repository failed", "tenant", msg.Domain, "error", err)
		return
	}
	slog.Info("tenant deleted locally", "tenant", msg.Domain, "id", msg.TenantID)
}
