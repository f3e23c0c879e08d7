package domain

import "fmt"

// ManifestKind discriminates cluster resource documents.
type ManifestKind string

const (
	ManifestDeployment ManifestKind = "deployment"
	ManifestService    ManifestKind = "service"
	ManifestIngress    ManifestKind = "ingress"
	ManifestList       ManifestKind = "list"
)

// Labels required on the pod template of every managed deployment resource.
const (
	LabelProduct = "product"
	LabelVersion = "version"
	LabelPattern = "pattern"
)

// Resource is one parsed manifest document ready to submit to the cluster
// orchestrator. Doc holds the full document as decoded, so the orchestrator
// adapter can serialize it back without loss.
type Resource struct {
	Kind ManifestKind
	Name string
	Doc  map[string]any
}

// ResourceSet groups the resources of one product pattern by kind.
type ResourceSet struct {
	Deployments []Resource
	Services    []Resource
	Ingresses   []Resource
}

// Add classifies r into the matching group. Unrecognized kinds are ignored;
// a pattern may ship auxiliary documents this system does not manage.
func (s *ResourceSet) Add(r Resource) {
	switch r.Kind {
	case ManifestDeployment:
		s.Deployments = append(s.Deployments, r)
	case ManifestService:
		s.Services = append(s.Services, r)
	case ManifestIngress:
		s.Ingresses = append(s.Ingresses, r)
	}
}

// Empty reports whether the set holds no managed resources at all.
func (s ResourceSet) Empty() bool {
	return len(s.Deployments) == 0 && len(s.Services) == 0 && len(s.Ingresses) == 0
}

// DeploymentKey selects one manifest directory: a product, a version and a
// pattern number (a named variant of the product's deployment topology).
type DeploymentKey struct {
	Product string
	Version string
	Pattern int
}

func (k DeploymentKey) String() string {
	return fmt.Sprintf("%s/%s/pattern-%d", k.Product, k.Version, k.Pattern)
}

// DeploymentUnit is one applied instance of a product pattern in the cluster.
// Its id is assigned by the orchestrator, never by this system.
type DeploymentUnit struct {
	ID      string
	Product string
	Version string
	Pattern int
}

// Key returns the manifest selector for the unit.
func (u DeploymentUnit) Key() DeploymentKey {
	return DeploymentKey{Product: u.Product, Version: u.Version, Pattern: u.Pattern}
}

// ClusterDeployment is a live deployment resource as reported by the
// orchestrator. Labels are read off the pod template metadata.
type ClusterDeployment struct {
	ID     string
	Name   string
	Labels map[string]string
}
