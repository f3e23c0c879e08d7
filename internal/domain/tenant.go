package domain

import (
	"regexp"
	"strings"
	"time"
)

// Status represents the lifecycle state of a tenant.
type Status string

const (
	StatusCreated  Status = "created"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventActivate   Event = "activate"
	EventDeactivate Event = "deactivate"
	EventDelete     Event = "delete"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the tenant lifecycle.
// Deleted is terminal; nothing re-enters from it.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventActivate, Src: StatusCreated, Dst: StatusActive},
	{Event: EventActivate, Src: StatusInactive, Dst: StatusActive},
	{Event: EventDeactivate, Src: StatusActive, Dst: StatusInactive},
	{Event: EventDelete, Src: StatusActive, Dst: StatusDeleted},
	{Event: EventDelete, Src: StatusInactive, Dst: StatusDeleted},
}

// AdminUser identifies the administrator account of a tenant.
type AdminUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// RealmConfig is the opaque user-store binding of a tenant. Its contents are
// produced by a RealmBuilder and consumed verbatim by the identity store.
type RealmConfig struct {
	StoreType  string
	Connection string
	Properties map[string]string
}

// Claim keys attached to a tenant's admin user in the identity store.
const (
	ClaimEmail           = "email"
	ClaimGivenName       = "givenName"
	ClaimLastName        = "lastName"
	ClaimPasswordPending = "adminPasswordPending"
)

// ProvisionInviteViaEmail marks a tenant whose admin sets their password
// through an emailed invite rather than at creation time.
const ProvisionInviteViaEmail = "invite-via-email"

// Tenant is the core domain entity: one isolated customer environment.
type Tenant struct {
	ID              int64 // assigned by the identity store, immutable once set
	Domain          string
	UniqueID        string // external reference id, never exposes the numeric id
	Admin           AdminUser
	Active          bool
	CreatedAt       time.Time
	Claims          map[string]string
	Realm           RealmConfig
	OriginService   string
	ProvisionMethod string
	AssociatedOrgID string
}

// Status derives the lifecycle state from the active flag. A tenant that has
// not been persisted yet (no id) is still in the created state.
func (t Tenant) Status() Status {
	switch {
	case t.ID == 0:
		return StatusCreated
	case t.Active:
		return StatusActive
	default:
		return StatusInactive
	}
}

// SubOrganization reports whether the tenant is being created as part of a
// sub-organization flow, in which case admin identity is managed by the
// parent flow and admin/claims materialization is skipped.
func (t Tenant) SubOrganization() bool {
	return t.AssociatedOrgID != "" && t.AssociatedOrgID == t.Domain
}

var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Intentionally permissive: full address validation is the mail system's
// problem, this only rejects obviously broken input early.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateDomain checks tenant domain syntax. When requireExtension is set
// (public multi-domain mode), the domain must contain at least one dot.
func ValidateDomain(domain string, requireExtension bool) error {
	switch {
	case domain == "":
		return ClientFaultf(CodeDomainInvalid, "tenant domain must not be empty")
	case strings.HasPrefix(domain, "."):
		return ClientFaultf(CodeDomainInvalid, "tenant domain %q must not start with a period", domain)
	case !domainPattern.MatchString(domain):
		return ClientFaultf(CodeDomainInvalid, "tenant domain %q contains illegal characters", domain)
	case requireExtension && !strings.Contains(domain, "."):
		return ClientFaultf(CodeDomainInvalid, "tenant domain %q must include an extension such as .com", domain)
	}
	return nil
}

// ValidateEmail checks the admin email format.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ClientFaultf(CodeEmailInvalid, "invalid email address %q", email)
	}
	return nil
}
