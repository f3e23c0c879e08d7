package domain

import "context"

// SortOrder for tenant listings.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort keys recognized by tenant listings. Anything else silently resets to
// the default column.
const (
	SortByDomain  = "domainName"
	SortByCreated = "created"
)

// Filter operations supported on the domainName attribute.
const (
	FilterStartsWith = "sw"
	FilterEndsWith   = "ew"
	FilterEquals     = "eq"
	FilterContains   = "co"
)

// TenantFilter is a single attribute/operation/value predicate.
type TenantFilter struct {
	Attribute string
	Operation string
	Value     string
}

// TenantQuery holds normalized pagination, sorting and filtering for a
// tenant listing. Normalization (defaults, clamps) happens in the lifecycle
// service; stores receive only valid queries.
type TenantQuery struct {
	Limit     int
	Offset    int
	SortOrder SortOrder
	SortBy    string
	Filter    *TenantFilter
}

// IdentityStore is the adapter contract over the user/realm subsystem. It is
// the sole owner of tenant identity facts; the numeric tenant id is assigned
// by AddTenant exactly once and never reused within a store generation.
type IdentityStore interface {
	AddTenant(ctx context.Context, t Tenant) (int64, error)
	GetTenant(ctx context.Context, id int64) (Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (Tenant, error)
	GetTenantByUniqueID(ctx context.Context, uniqueID string) (Tenant, error)
	GetTenantID(ctx context.Context, domain string) (int64, error)
	ListTenants(ctx context.Context, q TenantQuery) ([]Tenant, error)
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteTenant(ctx context.Context, id int64) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateAdminUser(ctx context.Context, tenantID int64, admin AdminUser) error
	SetClaims(ctx context.Context, tenantID int64, username string, claims map[string]string) error
}

// ClusterOrchestrator is the thin contract over the remote cluster
// management API.
type ClusterOrchestrator interface {
	CreateNamespace(ctx context.Context, name string) error
	DeleteNamespace(ctx context.Context, name string) error
	GetNamespace(ctx context.Context, name string) (Namespace, error)
	ListNamespaces(ctx context.Context) ([]Namespace, error)
	CreateResource(ctx context.Context, namespace string, r Resource) error
	DeleteResource(ctx context.Context, namespace string, kind ManifestKind, name string) error
	ListDeployments(ctx context.Context, namespace string) ([]ClusterDeployment, error)
}

// DescriptorStore resolves a deployment key to its parsed resource set.
type DescriptorStore interface {
	Resolve(key DeploymentKey) (ResourceSet, error)
}

// MessageKind discriminates cluster-wide notifications.
type MessageKind string

const (
	MessageUnload MessageKind = "unload"
	MessageDelete MessageKind = "delete"
)

// ClusterMessage is a notification fanned out to all worker nodes.
type ClusterMessage struct {
	Kind     MessageKind `json:"kind"`
	TenantID int64       `json:"tenantId"`
	Domain   string      `json:"domain"`
}

// Broadcaster delivers a message to every node in the cluster, blocking
// until delivery is confirmed. Implementations configured without a
// clustering agent treat Broadcast as a no-op success.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg ClusterMessage) error
}

// RealmBuilder resolves the realm configuration to attach to a new tenant.
type RealmBuilder interface {
	Build(ctx context.Context, domain string) (RealmConfig, error)
}

// Registry is the adapter contract over the tenant content registry: the
// per-tenant resource space, role permissions, service flags and the
// on-disk tenant repository.
type Registry interface {
	InitTenant(ctx context.Context, tenantID int64, domain string) error
	GrantDefaultPermissions(ctx context.Context, tenantID int64) error
	TagOriginService(ctx context.Context, tenantID int64, service string) error
	ActivateServices(ctx context.Context, tenantID int64, services []string) error
	Purge(ctx context.Context, tenantID int64, domain string) error
	RemoveRepository(tenantID int64) error
}

// ConfigContexts tracks tenant configuration contexts cached on this node.
type ConfigContexts interface {
	Load(domain string)
	Unload(domain string)
	Loaded(domain string) bool
}

// TenantCache is a small process-wide read-through cache of tenant records.
// Lifecycle mutations write through it, so a hit reflects the latest local
// state; a periodic sweep bounds staleness against out-of-band store changes.
type TenantCache interface {
	Get(tenantID int64) (Tenant, bool)
	Set(t Tenant)
	Delete(tenantID int64)
}

// LifecycleListener observes tenant lifecycle events. PreCreate runs before
// anything is persisted and may veto the creation by returning a client
// fault; the remaining callbacks run around state transitions in the order
// documented on the lifecycle service.
type LifecycleListener interface {
	Priority() int
	PreCreate(ctx context.Context, t *Tenant) error
	PostCreate(ctx context.Context, t Tenant) error
	PostActivate(ctx context.Context, t Tenant) error
	PreDeactivate(ctx context.Context, t Tenant) error
	PreDelete(ctx context.Context, t Tenant) error
}

// TransitionValidator checks lifecycle transitions against Transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}

// InviteSender queues the admin invite email for tenants provisioned with
// the invite-via-email method.
type InviteSender interface {
	EnqueueInvite(ctx context.Context, t Tenant) error
}
