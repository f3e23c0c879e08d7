package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/neomorfeo/provisr/internal/domain"
)

// TenancyService is the namespace-backed tenant variant: each cluster
// namespace stands in for one tenant, with no identity store behind it.
type TenancyService struct {
	cluster domain.ClusterOrchestrator
}

// NewTenancyService creates the service over the given orchestrator.
func NewTenancyService(cluster domain.ClusterOrchestrator) *TenancyService {
	return &TenancyService{cluster: cluster}
}

// GetTenants lists all namespaces except the reserved ones, mapped 1:1 to
// tenant records by name.
func (s *TenancyService) GetTenants(ctx context.Context) ([]domain.TenantNamespace, error) {
	namespaces, err := s.cluster.ListNamespaces(ctx)
	if err != nil {
		return nil, domain.ServerFault(domain.CodeOrchestrator, "listing namespaces", err)
	}

	tenants := make([]domain.TenantNamespace, 0, len(namespaces))
	for _, ns := range namespaces {
		if domain.ReservedNamespace(ns.Name) {
			continue
		}
		tenants = append(tenants, domain.TenantNamespace{Name: ns.Name})
	}
	return tenants, nil
}

// GetTenant fetches the namespace backing the named tenant. Reserved
// namespaces are never tenants, so asking for one is a plain not-found.
func (s *TenancyService) GetTenant(ctx context.Context, name string) (domain.TenantNamespace, error) {
	sanitized := domain.SanitizeNamespace(name)
	if domain.ReservedNamespace(sanitized) {
		return domain.TenantNamespace{}, domain.ErrNamespaceNotFound
	}

	ns, err := s.cluster.GetNamespace(ctx, sanitized)
	if err != nil {
		if errors.Is(err, domain.ErrNamespaceNotFound) {
			return domain.TenantNamespace{}, err
		}
		return domain.TenantNamespace{}, domain.ServerFault(domain.CodeOrchestrator, "fetching namespace", err)
	}
	return domain.TenantNamespace{Name: ns.Name}, nil
}

// CreateTenant creates the backing namespace. Reserved names are rejected as
// unavailable; an existing namespace is a conflict.
func (s *TenancyService) CreateTenant(ctx context.Context, name string) (domain.TenantNamespace, error) {
	sanitized := domain.SanitizeNamespace(name)
	if domain.ReservedNamespace(sanitized) {
		return domain.TenantNamespace{}, domain.ClientFaultf(domain.CodeNamespaceReserved,
			"namespace %q is reserved and unavailable", sanitized)
	}

	if _, err := s.cluster.GetNamespace(ctx, sanitized); err == nil {
		return domain.TenantNamespace{}, domain.ConflictFaultf(domain.CodeNamespaceConflict,
			"namespace %q already exists", sanitized)
	} else if !errors.Is(err, domain.ErrNamespaceNotFound) {
		return domain.TenantNamespace{}, domain.ServerFault(domain.CodeOrchestrator, "checking namespace", err)
	}

	if err := s.cluster.CreateNamespace(ctx, sanitized); err != nil {
		return domain.TenantNamespace{}, domain.ServerFault(domain.CodeOrchestrator, "creating namespace", err)
	}

	slog.InfoContext(ctx, "tenant namespace created", "namespace", sanitized)
	return domain.TenantNamespace{Name: sanitized}, nil
}

// DeleteTenant removes the backing namespace. Deleting a reserved name is a
// silent no-op without touching the orchestrator, masking its inconsistent
// DELETE semantics for resources that do not exist.
func (s *TenancyService) DeleteTenant(ctx context.Context, name string) error {
	sanitized := domain.SanitizeNamespace(name)
	if domain.ReservedNamespace(sanitized) {
		return nil
	}

	if err := s.cluster.DeleteNamespace(ctx, sanitized); err != nil {
		return domain.ServerFault(domain.CodeOrchestrator, "deleting namespace", err)
	}

	slog.InfoContext(ctx, "tenant namespace deleted", "namespace", sanitized)
	return nil
}
