// Package realm resolves the user-store binding attached to new tenants.
package realm

import (
	"context"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time check: Builder implements domain.RealmBuilder.
var _ domain.RealmBuilder = (*Builder)(nil)

// Builder produces a tenant realm from a configured template: every tenant
// shares the store type and connection, with the tenant domain stamped into
// the properties so the user store can partition by it.
type Builder struct {
	storeType  string
	connection string
	properties map[string]string
}

// New creates a builder from the realm template settings.
func New(storeType, connection string, properties map[string]string) *Builder {
	return &Builder{storeType: storeType, connection: connection, properties: properties}
}

// Build resolves the realm configuration for a tenant domain.
func (b *Builder) Build(_ context.Context, tenantDomain string) (domain.RealmConfig, error) {
	props := make(map[string]string, len(b.properties)+1)
	for k, v := range b.properties {
		props[k] = v
	}
	props["tenantDomain"] = tenantDomain

	return domain.RealmConfig{
		StoreType:  b.storeType,
		Connection: b.connection,
		Properties: props,
	}, nil
}
