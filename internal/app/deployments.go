package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/neomorfeo/provisr/internal/domain"
)

// DeploymentService provisions product patterns as cluster resources. State
// is never persisted here: a deployment's identity is re-derived from its
// manifests plus a live cluster query.
type DeploymentService struct {
	descriptors domain.DescriptorStore
	cluster     domain.ClusterOrchestrator

	// Serializes deploy/undeploy per (product, version, pattern) triple;
	// concurrent callers would otherwise interleave create and delete calls
	// for the same resource set.
	keys *keyedMutex
}

// NewDeploymentService creates the service with the given adapters.
func NewDeploymentService(descriptors domain.DescriptorStore, cluster domain.ClusterOrchestrator) *DeploymentService {
	return &DeploymentService{
		descriptors: descriptors,
		cluster:     cluster,
		keys:        newKeyedMutex(),
	}
}

// List returns every live managed deployment in the namespace, mapped from
// the product/version/pattern labels on the pod template. A label set whose
// pattern does not parse is a defect in the underlying resource and the
// parse failure propagates.
func (s *DeploymentService) List(ctx context.Context, namespace string) ([]domain.DeploymentUnit, error) {
	live, err := s.cluster.ListDeployments(ctx, namespace)
	if err != nil {
		return nil, domain.ServerFault(domain.CodeOrchestrator, "listing deployments", err)
	}

	units := make([]domain.DeploymentUnit, 0, len(live))
	for _, d := range live {
		u, err := unitFromLabels(d)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func unitFromLabels(d domain.ClusterDeployment) (domain.DeploymentUnit, error) {
	pattern, err := strconv.Atoi(d.Labels[domain.LabelPattern])
	if err != nil {
		return domain.DeploymentUnit{}, fmt.Errorf("deployment %s: parsing pattern label: %w", d.ID, err)
	}
	return domain.DeploymentUnit{
		ID:      d.ID,
		Product: d.Labels[domain.LabelProduct],
		Version: d.Labels[domain.LabelVersion],
		Pattern: pattern,
	}, nil
}

// Get returns the deployment with the orchestrator-assigned id.
func (s *DeploymentService) Get(ctx context.Context, namespace, id string) (domain.DeploymentUnit, error) {
	live, err := s.cluster.ListDeployments(ctx, namespace)
	if err != nil {
		return domain.DeploymentUnit{}, domain.ServerFault(domain.CodeOrchestrator, "listing deployments", err)
	}
	for _, d := range live {
		if d.ID != id {
			continue
		}
		return unitFromLabels(d)
	}
	return domain.DeploymentUnit{}, domain.ErrDeploymentNotFound
}

// Deploy resolves the manifest set for the unit's key and applies it in
// dependency order: deployment, then service, then ingress. The workload
// must exist before the service can select its pods, and the service before
// the ingress can route to it. Absence of any one kind is not an error.
func (s *DeploymentService) Deploy(ctx context.Context, namespace string, unit domain.DeploymentUnit) error {
	key := unit.Key()
	defer s.keys.lock(key.String())()

	set, err := s.descriptors.Resolve(key)
	if err != nil {
		return err
	}

	for _, group := range [][]domain.Resource{set.Deployments, set.Services, set.Ingresses} {
		for _, r := range group {
			if err := s.cluster.CreateResource(ctx, namespace, r); err != nil {
				return domain.ServerFault(domain.CodeOrchestrator,
					fmt.Sprintf("creating %s %q", r.Kind, r.Name), err)
			}
		}
	}

	slog.InfoContext(ctx, "deployment applied", "namespace", namespace, "key", key.String())
	return nil
}

// Undeploy re-resolves the same manifest set and removes it in the reverse
// order: ingress, then service, then deployment, so inbound traffic is cut
// before the backing workload disappears. Deleting an absent resource is
// treated as success.
func (s *DeploymentService) Undeploy(ctx context.Context, namespace string, unit domain.DeploymentUnit) error {
	key := unit.Key()
	defer s.keys.lock(key.String())()

	set, err := s.descriptors.Resolve(key)
	if err != nil {
		return err
	}

	groups := []struct {
		kind      domain.ManifestKind
		resources []domain.Resource
	}{
		{domain.ManifestIngress, set.Ingresses},
		{domain.ManifestService, set.Services},
		{domain.ManifestDeployment, set.Deployments},
	}
	for _, g := range groups {
		for _, r := range g.resources {
			if err := s.cluster.DeleteResource(ctx, namespace, g.kind, r.Name); err != nil {
				return domain.ServerFault(domain.CodeOrchestrator,
					fmt.Sprintf("deleting %s %q", g.kind, r.Name), err)
			}
		}
	}

	slog.InfoContext(ctx, "deployment removed", "namespace", namespace, "key", key.String())
	return nil
}
