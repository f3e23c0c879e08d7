package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/provisr/internal/domain"
	"github.com/neomorfeo/provisr/internal/tenantctx"
)

// LifecycleConfig holds the administratively controlled knobs of the tenant
// lifecycle service.
type LifecycleConfig struct {
	// RootDomain is the super tenant allowed to create and delete tenants.
	RootDomain string
	// PublicMultiDomain requires tenant domains to carry an extension.
	PublicMultiDomain bool
	// DeletionEnabled gates the irreversible delete operation.
	DeletionEnabled bool
	// DefaultPageSize applies when a listing omits its limit.
	DefaultPageSize int
	// MaxPageSize silently clamps oversized limits.
	MaxPageSize int
}

// LifecycleService is the top-level tenant state machine: add, list, get,
// activate, deactivate and delete, with listener fan-out and cluster-wide
// notification before destructive operations.
type LifecycleService struct {
	store       domain.IdentityStore
	persistor   *Persistor
	realms      domain.RealmBuilder
	registry    domain.Registry
	contexts    domain.ConfigContexts
	broadcaster domain.Broadcaster
	listeners   *ListenerRegistry
	validator   domain.TransitionValidator
	cache       domain.TenantCache
	invites     domain.InviteSender
	cfg         LifecycleConfig

	domainLocks *keyedMutex
}

// NewLifecycleService wires the lifecycle service. invites may be nil when
// invite provisioning is not configured.
func NewLifecycleService(
	store domain.IdentityStore,
	persistor *Persistor,
	realms domain.RealmBuilder,
	registry domain.Registry,
	contexts domain.ConfigContexts,
	broadcaster domain.Broadcaster,
	listeners *ListenerRegistry,
	validator domain.TransitionValidator,
	cache domain.TenantCache,
	invites domain.InviteSender,
	cfg LifecycleConfig,
) *LifecycleService {
	return &LifecycleService{
		store:       store,
		persistor:   persistor,
		realms:      realms,
		registry:    registry,
		contexts:    contexts,
		broadcaster: broadcaster,
		listeners:   listeners,
		validator:   validator,
		cache:       cache,
		invites:     invites,
		cfg:         cfg,
		domainLocks: newKeyedMutex(),
	}
}

// requireRoot rejects callers other than the super tenant. The rejection is
// logged with a security alert tag rather than downgraded to not-found.
func (s *LifecycleService) requireRoot(ctx context.Context, operation string) error {
	caller, ok := tenantctx.Caller(ctx)
	if !ok || caller.Domain != s.cfg.RootDomain {
		slog.ErrorContext(ctx, "non-root caller attempted root-only operation",
			"alert", "security", "operation", operation, "caller", caller.Domain)
		return domain.SecurityFaultf(domain.CodeRootRequired,
			"only the super tenant may perform %s", operation)
	}
	return nil
}

// AddTenant validates, persists and activates a new tenant. Tenants are
// always active at creation. The returned tenant carries the store-assigned
// id and the generated external unique id.
func (s *LifecycleService) AddTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if err := domain.ValidateEmail(t.Admin.Email); err != nil {
		return domain.Tenant{}, err
	}
	if err := domain.ValidateDomain(t.Domain, s.cfg.PublicMultiDomain); err != nil {
		return domain.Tenant{}, err
	}
	if err := s.requireRoot(ctx, "tenant creation"); err != nil {
		return domain.Tenant{}, err
	}

	// Pre-creation fan-out: nothing is persisted yet, so a listener failure
	// aborts the whole creation. A client fault is a veto and propagates
	// with its original code.
	for _, l := range s.listeners.Snapshot() {
		if err := l.PreCreate(ctx, &t); err != nil {
			if kind := domain.KindOf(err); kind == domain.KindClient || kind == domain.KindConflict {
				return domain.Tenant{}, err
			}
			return domain.Tenant{}, domain.ServerFault(domain.CodeListener,
				"pre-creation listener failed", err)
		}
	}

	t.CreatedAt = time.Now().UTC()
	t.UniqueID = uuid.NewString()
	t.Active = false

	realm, err := s.realms.Build(ctx, t.Domain)
	if err != nil {
		return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure,
			"resolving realm configuration", err)
	}
	t.Realm = realm

	unlock := s.domainLocks.lock(t.Domain)
	_, err = s.persistor.Persist(ctx, &t)
	unlock()
	if err != nil {
		if kind := domain.KindOf(err); kind == domain.KindClient || kind == domain.KindConflict {
			return domain.Tenant{}, err
		}
		return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure, "persisting tenant", err)
	}

	// Collaborator calls below act against the new tenant's resources.
	tctx := tenantctx.WithCurrent(ctx, tenantctx.Info{ID: t.ID, Domain: t.Domain})

	if !t.SubOrganization() {
		if err := s.materializeAdmin(tctx, t); err != nil {
			return domain.Tenant{}, err
		}
	}

	for _, l := range s.listeners.Snapshot() {
		if err := l.PostCreate(tctx, t); err != nil {
			slog.ErrorContext(tctx, "post-creation listener failed",
				"tenant", t.Domain, "error", err)
			return domain.Tenant{}, domain.ServerFault(domain.CodeListener,
				"post-creation listener failed", err)
		}
	}

	activated, err := s.activate(tctx, t)
	if err != nil {
		return domain.Tenant{}, err
	}
	t = activated

	if t.ProvisionMethod == domain.ProvisionInviteViaEmail && !t.SubOrganization() {
		pending := map[string]string{domain.ClaimPasswordPending: "true"}
		if err := s.store.SetClaims(tctx, t.ID, t.Admin.Username, pending); err != nil {
			return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure,
				"marking admin password pending", err)
		}
		if s.invites != nil {
			if err := s.invites.EnqueueInvite(tctx, t); err != nil {
				return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure,
					"queuing admin invite", err)
			}
		}
	}

	if len(t.Claims) > 0 && !t.SubOrganization() {
		if err := s.store.SetClaims(tctx, t.ID, t.Admin.Username, t.Claims); err != nil {
			return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure,
				"applying caller-supplied claims", err)
		}
	}

	slog.InfoContext(ctx, "tenant created", "tenant", t.Domain, "id", t.ID)
	return t, nil
}

func (s *LifecycleService) materializeAdmin(ctx context.Context, t domain.Tenant) error {
	if err := s.store.CreateAdminUser(ctx, t.ID, t.Admin); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "creating admin user", err)
	}
	claims := map[string]string{
		domain.ClaimEmail:     t.Admin.Email,
		domain.ClaimGivenName: t.Admin.FirstName,
		domain.ClaimLastName:  t.Admin.LastName,
	}
	if err := s.store.SetClaims(ctx, t.ID, t.Admin.Username, claims); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "populating admin claims", err)
	}
	return nil
}

// PageRequest carries raw listing parameters before normalization. Nil
// limit/offset mean "not supplied".
type PageRequest struct {
	Limit     *int
	Offset    *int
	SortOrder string
	SortBy    string
	Filter    string
}

// normalize applies defaults, clamps and the silent-reset rules, returning a
// query safe to hand to the store.
func (s *LifecycleService) normalize(req PageRequest) (domain.TenantQuery, error) {
	q := domain.TenantQuery{
		Limit:     s.cfg.DefaultPageSize,
		SortOrder: domain.SortAsc,
		SortBy:    domain.SortByCreated,
	}

	if req.Limit != nil {
		if *req.Limit < 0 {
			return q, domain.ClientFaultf(domain.CodePageInvalid, "limit must not be negative")
		}
		q.Limit = *req.Limit
	}
	if q.Limit > s.cfg.MaxPageSize {
		q.Limit = s.cfg.MaxPageSize
	}

	if req.Offset != nil {
		if *req.Offset < 0 {
			return q, domain.ClientFaultf(domain.CodePageInvalid, "offset must not be negative")
		}
		q.Offset = *req.Offset
	}

	if req.SortOrder == string(domain.SortDesc) {
		q.SortOrder = domain.SortDesc
	}
	if req.SortBy == domain.SortByDomain {
		q.SortBy = domain.SortByDomain
	}

	filter, err := parseFilter(req.Filter)
	if err != nil {
		return q, err
	}
	q.Filter = filter

	return q, nil
}

// parseFilter parses the "attribute operation value" triple. Only the
// domainName attribute and the four listed operations are supported.
func parseFilter(raw string) (*domain.TenantFilter, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, " ")
	if len(parts) != 3 {
		return nil, domain.ClientFaultf(domain.CodeFilterInvalid,
			"filter must be three space-separated tokens, got %q", raw)
	}
	if parts[0] != domain.SortByDomain {
		return nil, domain.ClientFaultf(domain.CodeFilterInvalid,
			"unsupported filter attribute %q", parts[0])
	}
	switch parts[1] {
	case domain.FilterStartsWith, domain.FilterEndsWith, domain.FilterEquals, domain.FilterContains:
	default:
		return nil, domain.ClientFaultf(domain.CodeFilterInvalid,
			"unsupported filter operation %q", parts[1])
	}
	return &domain.TenantFilter{Attribute: parts[0], Operation: parts[1], Value: parts[2]}, nil
}

// ListTenants returns a page of tenants after normalizing the request.
func (s *LifecycleService) ListTenants(ctx context.Context, req PageRequest) ([]domain.Tenant, error) {
	q, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	tenants, err := s.store.ListTenants(ctx, q)
	if err != nil {
		return nil, domain.ServerFault(domain.CodeStoreFailure, "listing tenants", err)
	}
	return tenants, nil
}

// GetTenant returns a tenant by numeric id. Served from the record cache on
// a hit; a miss falls through to the store and seeds the cache.
func (s *LifecycleService) GetTenant(ctx context.Context, id int64) (domain.Tenant, error) {
	if t, ok := s.cache.Get(id); ok {
		return t, nil
	}
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return domain.Tenant{}, s.storeErr(err, "fetching tenant")
	}
	s.cache.Set(t)
	return t, nil
}

// GetTenantByDomain returns a tenant by its domain name.
func (s *LifecycleService) GetTenantByDomain(ctx context.Context, dom string) (domain.Tenant, error) {
	t, err := s.store.GetTenantByDomain(ctx, dom)
	if err != nil {
		return domain.Tenant{}, s.storeErr(err, "fetching tenant by domain")
	}
	s.cache.Set(t)
	return t, nil
}

// GetTenantByUniqueID returns a tenant by its external unique id.
func (s *LifecycleService) GetTenantByUniqueID(ctx context.Context, uid string) (domain.Tenant, error) {
	t, err := s.store.GetTenantByUniqueID(ctx, uid)
	if err != nil {
		return domain.Tenant{}, s.storeErr(err, "fetching tenant by unique id")
	}
	s.cache.Set(t)
	return t, nil
}

// IsDomainAvailable reports whether no tenant owns the given domain.
func (s *LifecycleService) IsDomainAvailable(ctx context.Context, dom string) (bool, error) {
	_, err := s.store.GetTenantID(ctx, dom)
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return true, nil
	case err != nil:
		return false, domain.ServerFault(domain.CodeStoreFailure, "resolving domain", err)
	default:
		return false, nil
	}
}

// ActivateTenant flips the tenant active, then notifies listeners. The
// notify-after-mutation ordering lets listeners observe the new state; the
// deactivate path deliberately inverts this.
func (s *LifecycleService) ActivateTenant(ctx context.Context, id int64) error {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return s.storeErr(err, "fetching tenant")
	}
	if _, err := s.validator.Apply(ctx, t.Status(), domain.EventActivate); err != nil {
		return err
	}

	tctx := tenantctx.WithCurrent(ctx, tenantctx.Info{ID: t.ID, Domain: t.Domain})
	if _, err := s.activate(tctx, t); err != nil {
		return err
	}
	slog.InfoContext(ctx, "tenant activated", "tenant", t.Domain, "id", t.ID)
	return nil
}

// activate performs the store mutation and post-activation fan-out shared by
// AddTenant and ActivateTenant.
func (s *LifecycleService) activate(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if err := s.store.SetActive(ctx, t.ID, true); err != nil {
		return domain.Tenant{}, domain.ServerFault(domain.CodeStoreFailure, "activating tenant", err)
	}
	t.Active = true
	s.cache.Set(t)

	for _, l := range s.listeners.Snapshot() {
		if err := l.PostActivate(ctx, t); err != nil {
			// The tenant is already active: succeeded with side-effect failure.
			slog.ErrorContext(ctx, "activation listener failed", "tenant", t.Domain, "error", err)
			return domain.Tenant{}, domain.ServerFault(domain.CodeListener,
				"activation listener failed", err)
		}
	}
	return t, nil
}

// DeactivateTenant notifies listeners while the tenant is still active, then
// flips the store and unloads any live configuration context.
func (s *LifecycleService) DeactivateTenant(ctx context.Context, id int64) error {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return s.storeErr(err, "fetching tenant")
	}
	if _, err := s.validator.Apply(ctx, t.Status(), domain.EventDeactivate); err != nil {
		return err
	}

	tctx := tenantctx.WithCurrent(ctx, tenantctx.Info{ID: t.ID, Domain: t.Domain})
	for _, l := range s.listeners.Snapshot() {
		if err := l.PreDeactivate(tctx, t); err != nil {
			slog.ErrorContext(ctx, "deactivation listener failed", "tenant", t.Domain, "error", err)
			return domain.ServerFault(domain.CodeListener, "deactivation listener failed", err)
		}
	}

	if err := s.store.SetActive(tctx, t.ID, false); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "deactivating tenant", err)
	}
	t.Active = false
	s.cache.Set(t)
	s.contexts.Unload(t.Domain)

	slog.InfoContext(ctx, "tenant deactivated", "tenant", t.Domain, "id", t.ID)
	return nil
}

// ActivateTenantByDomain resolves the domain and activates the tenant.
func (s *LifecycleService) ActivateTenantByDomain(ctx context.Context, dom string) error {
	t, err := s.store.GetTenantByDomain(ctx, dom)
	if err != nil {
		return s.storeErr(err, "fetching tenant by domain")
	}
	return s.ActivateTenant(ctx, t.ID)
}

// DeactivateTenantByDomain resolves the domain and deactivates the tenant.
func (s *LifecycleService) DeactivateTenantByDomain(ctx context.Context, dom string) error {
	t, err := s.store.GetTenantByDomain(ctx, dom)
	if err != nil {
		return s.storeErr(err, "fetching tenant by domain")
	}
	return s.DeactivateTenant(ctx, t.ID)
}

// DeleteTenant tears a tenant down irreversibly. The step ordering
// (deactivate, cluster-wide unload, local repository purge, pre-delete
// fan-out, registry purge, delete broadcast, store delete) must hold: later
// steps assume earlier steps made the tenant unreachable. Completed steps
// are never rolled back on a later failure.
func (s *LifecycleService) DeleteTenant(ctx context.Context, id int64) error {
	if err := s.requireRoot(ctx, "tenant deletion"); err != nil {
		return err
	}
	if !s.cfg.DeletionEnabled {
		return domain.ClientFaultf(domain.CodeDeletionDisabled,
			"tenant deletion is administratively disabled")
	}

	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return s.storeErr(err, "fetching tenant")
	}
	if _, err := s.validator.Apply(ctx, t.Status(), domain.EventDelete); err != nil {
		return err
	}

	if t.Active {
		if err := s.DeactivateTenant(ctx, id); err != nil {
			return err
		}
		t.Active = false
	}

	tctx := tenantctx.WithCurrent(ctx, tenantctx.Info{ID: t.ID, Domain: t.Domain})

	// Cluster-wide unload must be confirmed before any local purge; nodes
	// still serving the tenant would otherwise recreate state mid-delete.
	msg := domain.ClusterMessage{Kind: domain.MessageUnload, TenantID: t.ID, Domain: t.Domain}
	if err := s.broadcaster.Broadcast(tctx, msg); err != nil {
		return domain.ServerFault(domain.CodeBroadcast, "broadcasting tenant unload", err)
	}

	if err := s.registry.RemoveRepository(t.ID); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "removing tenant repository", err)
	}

	for _, l := range s.listeners.Snapshot() {
		if err := l.PreDelete(tctx, t); err != nil {
			slog.ErrorContext(ctx, "pre-delete listener failed", "tenant", t.Domain, "error", err)
			return domain.ServerFault(domain.CodeListener, "pre-delete listener failed", err)
		}
	}

	if err := s.registry.Purge(tctx, t.ID, t.Domain); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "purging registry data", err)
	}
	s.cache.Delete(t.ID)

	msg.Kind = domain.MessageDelete
	if err := s.broadcaster.Broadcast(tctx, msg); err != nil {
		return domain.ServerFault(domain.CodeBroadcast, "broadcasting tenant delete", err)
	}

	if err := s.store.DeleteTenant(tctx, t.ID); err != nil {
		return domain.ServerFault(domain.CodeStoreFailure, "deleting tenant record", err)
	}

	slog.InfoContext(ctx, "tenant deleted", "tenant", t.Domain, "id", t.ID)
	return nil
}

// storeErr passes not-found sentinels through and wraps everything else.
func (s *LifecycleService) storeErr(err error, msg string) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return err
	}
	return domain.ServerFault(domain.CodeStoreFailure, msg, err)
}
