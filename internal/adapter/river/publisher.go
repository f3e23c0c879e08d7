// Package river queues the admin invite emails for tenants provisioned
// with the invite-via-email method.
package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time check: Publisher implements domain.InviteSender.
var _ domain.InviteSender = (*Publisher)(nil)

// InviteJobArgs carries everything the invite worker needs. River
// serializes this as JSON into its job table; the worker never re-reads the
// tenant from the identity store.
type InviteJobArgs struct {
	TenantID      int64  `json:"tenant_id"`
	Domain        string `json:"domain"`
	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (InviteJobArgs) Kind() string { return "tenant.invite_email" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher enqueues invite jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnqueueInvite queues the admin invite email for a tenant.
func (p *Publisher) EnqueueInvite(ctx context.Context, t domain.Tenant) error {
	_, err := p.client.Insert(ctx, InviteJobArgs{
		TenantID:      t.ID,
		Domain:        t.Domain,
		AdminUsername: t.Admin.Username,
		AdminEmail:    t.Admin.Email,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing invite job: %w", err)
	}
	return nil
}
