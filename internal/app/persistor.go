package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/provisr/internal/domain"
)

// PersistorConfig controls the persist-then-initialize sequence.
type PersistorConfig struct {
	// UsernameUniqueAcrossTenants enforces the admin username check against
	// every tenant's user base, not just the new tenant's realm.
	UsernameUniqueAcrossTenants bool
	// DefaultServices are activated for tenants created without an
	// originating service.
	DefaultServices []string
	// CompulsoryServices maps an originating service to the dependent
	// services that must be activated alongside it.
	CompulsoryServices map[string][]string
}

// Persistor owns the two-phase "persist then initialize" sequence for a new
// tenant: identity-store write, registry space init, default permission copy,
// origin tagging and service activation flags.
type Persistor struct {
	store    domain.IdentityStore
	registry domain.Registry
	cfg      PersistorConfig
}

// NewPersistor creates a persistor with the given collaborators.
func NewPersistor(store domain.IdentityStore, registry domain.Registry, cfg PersistorConfig) *Persistor {
	return &Persistor{store: store, registry: registry, cfg: cfg}
}

// Persist validates uniqueness, writes the tenant to the identity store
// (which assigns the tenant id) and performs post-creation side effects.
// Conflicts surface as typed faults; every other failure wraps as a
// PersistenceError carrying the original cause.
func (p *Persistor) Persist(ctx context.Context, t *domain.Tenant) (int64, error) {
	if p.cfg.UsernameUniqueAcrossTenants && !t.SubOrganization() {
		taken, err := p.store.UsernameExists(ctx, t.Admin.Username)
		if err != nil {
			return 0, &domain.PersistenceError{Domain: t.Domain, Err: fmt.Errorf("checking username: %w", err)}
		}
		if taken {
			return 0, domain.ConflictFaultf(domain.CodeUsernameTaken,
				"admin username %q is already taken", t.Admin.Username)
		}
	}

	if _, err := p.store.GetTenantID(ctx, t.Domain); err == nil {
		return 0, domain.ConflictFaultf(domain.CodeDomainTaken, "domain %q is already taken", t.Domain)
	} else if !errors.Is(err, domain.ErrTenantNotFound) {
		return 0, &domain.PersistenceError{Domain: t.Domain, Err: fmt.Errorf("checking domain: %w", err)}
	}

	id, err := p.store.AddTenant(ctx, *t)
	if err != nil {
		// The store's unique constraint is the authoritative guard; a
		// conflict slipping past the check above still surfaces as one.
		if domain.KindOf(err) == domain.KindConflict {
			return 0, err
		}
		return 0, &domain.PersistenceError{Domain: t.Domain, Err: err}
	}
	t.ID = id

	if err := p.initialize(ctx, t); err != nil {
		return 0, &domain.PersistenceError{Domain: t.Domain, Err: err}
	}

	return id, nil
}

func (p *Persistor) initialize(ctx context.Context, t *domain.Tenant) error {
	if err := p.registry.InitTenant(ctx, t.ID, t.Domain); err != nil {
		return fmt.Errorf("initializing registry space: %w", err)
	}

	if err := p.registry.GrantDefaultPermissions(ctx, t.ID); err != nil {
		return fmt.Errorf("granting default permissions: %w", err)
	}

	if t.OriginService != "" {
		if err := p.registry.TagOriginService(ctx, t.ID, t.OriginService); err != nil {
			return fmt.Errorf("tagging origin service: %w", err)
		}
	}

	services := p.cfg.DefaultServices
	if t.OriginService != "" {
		services = append([]string{t.OriginService}, p.cfg.CompulsoryServices[t.OriginService]...)
	}
	if len(services) > 0 {
		if err := p.registry.ActivateServices(ctx, t.ID, services); err != nil {
			return fmt.Errorf("activating services: %w", err)
		}
	}

	return nil
}
