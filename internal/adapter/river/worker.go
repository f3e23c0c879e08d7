package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// Notifier delivers the invite to the admin. The mail transport is a
// collaborator outside this service; production wires an SMTP-backed
// implementation, tests and single-node setups a logging one.
type Notifier interface {
	SendInvite(ctx context.Context, email, username, tenantDomain string) error
}

// LogNotifier writes invites to the log instead of sending mail.
type LogNotifier struct{}

// SendInvite logs the invite.
func (LogNotifier) SendInvite(ctx context.Context, email, username, tenantDomain string) error {
	slog.InfoContext(ctx, "admin invite",
		"email", email, "username", username, "tenant", tenantDomain)
	return nil
}

// InviteWorker processes invite jobs from the River queue.
type InviteWorker struct {
	river.WorkerDefaults[InviteJobArgs]

	notifier Notifier
}

// NewInviteWorker creates a worker delivering through the given notifier.
func NewInviteWorker(notifier Notifier) *InviteWorker {
	return &InviteWorker{notifier: notifier}
}

// Work delivers a single invite.
func (w *InviteWorker) Work(ctx context.Context, job *river.Job[InviteJobArgs]) error {
	slog.InfoContext(ctx, "sending admin invite",
		"tenant", job.Args.Domain,
		"tenant_id", job.Args.TenantID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.notifier.SendInvite(ctx, job.Args.AdminEmail, job.Args.AdminUsername, job.Args.Domain)
}
