package domain

import "strings"

// Namespace is a cluster namespace as reported by the orchestrator.
type Namespace struct {
	Name string
}

// TenantNamespace is a cluster namespace standing in for a tenant in the
// containerized provisioning variant.
type TenantNamespace struct {
	Name string
}

// Namespaces that belong to the cluster itself and can never be created,
// fetched or deleted as tenants.
var reservedNamespaces = map[string]struct{}{
	"default":     {},
	"kube-system": {},
}

// ReservedNamespace reports whether name is reserved by the cluster.
func ReservedNamespace(name string) bool {
	_, ok := reservedNamespaces[name]
	return ok
}

// SanitizeNamespace folds a tenant domain into a valid namespace name:
// periods become hyphens and the result is lowercased.
func SanitizeNamespace(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, ".", "-"))
}
