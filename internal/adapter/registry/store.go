// Package registry is the adapter over the tenant content registry: a
// per-tenant space under a repository root directory, plus the node-local
// tracking of loaded tenant configuration contexts.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Registry       = (*Store)(nil)
	_ domain.ConfigContexts = (*Store)(nil)
)

// DefaultPermissions are the UI permissions copied into every new tenant's
// admin role.
var DefaultPermissions = []string{
	"admin/configure",
	"admin/manage",
	"admin/monitor",
	"admin/login",
}

// Store keeps each tenant's registry space under <root>/<tenant-id>/.
type Store struct {
	root string

	mu       sync.RWMutex
	contexts map[string]struct{}
}

// New creates the store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating registry root: %w", err)
	}
	return &Store{root: dir, contexts: make(map[string]struct{})}, nil
}

func (s *Store) tenantDir(tenantID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(tenantID, 10))
}

// space is the on-disk descriptor of one tenant's registry space.
type space struct {
	Domain      string    `yaml:"domain"`
	CreatedAt   time.Time `yaml:"createdAt"`
	Origin      string    `yaml:"origin,omitempty"`
	Services    []string  `yaml:"services,omitempty"`
	Permissions []string  `yaml:"permissions,omitempty"`
}

func (s *Store) readSpace(tenantID int64) (space, error) {
	data, err := os.ReadFile(filepath.Join(s.tenantDir(tenantID), "space.yaml"))
	if err != nil {
		return space{}, fmt.Errorf("reading tenant space: %w", err)
	}
	var sp space
	if err := yaml.Unmarshal(data, &sp); err != nil {
		return space{}, fmt.Errorf("decoding tenant space: %w", err)
	}
	return sp, nil
}

func (s *Store) writeSpace(tenantID int64, sp space) error {
	data, err := yaml.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encoding tenant space: %w", err)
	}
	path := filepath.Join(s.tenantDir(tenantID), "space.yaml")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing tenant space: %w", err)
	}
	return nil
}

// InitTenant lays out the tenant's repository, registry and index
// directories and the space descriptor.
func (s *Store) InitTenant(_ context.Context, tenantID int64, domainName string) error {
	dir := s.tenantDir(tenantID)
	for _, sub := range []string{"repository", "registry", "index"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("creating tenant %s space: %w", sub, err)
		}
	}
	return s.writeSpace(tenantID, space{Domain: domainName, CreatedAt: time.Now().UTC()})
}

// GrantDefaultPermissions copies the default UI permissions into the
// tenant's admin role. Idempotent: already-granted permissions are kept
// as-is, not duplicated.
func (s *Store) GrantDefaultPermissions(_ context.Context, tenantID int64) error {
	sp, err := s.readSpace(tenantID)
	if err != nil {
		return err
	}

	granted := make(map[string]struct{}, len(sp.Permissions))
	for _, p := range sp.Permissions {
		granted[p] = struct{}{}
	}
	for _, p := range DefaultPermissions {
		if _, ok := granted[p]; !ok {
			sp.Permissions = append(sp.Permissions, p)
		}
	}
	return s.writeSpace(tenantID, sp)
}

// TagOriginService records which service the tenant was created from.
func (s *Store) TagOriginService(_ context.Context, tenantID int64, service string) error {
	sp, err := s.readSpace(tenantID)
	if err != nil {
		return err
	}
	sp.Origin = service
	return s.writeSpace(tenantID, sp)
}

// ActivateServices sets the tenant's service activation flags.
func (s *Store) ActivateServices(_ context.Context, tenantID int64, services []string) error {
	sp, err := s.readSpace(tenantID)
	if err != nil {
		return err
	}
	active := make(map[string]struct{}, len(sp.Services))
	for _, svc := range sp.Services {
		active[svc] = struct{}{}
	}
	for _, svc := range services {
		if _, ok := active[svc]; !ok {
			sp.Services = append(sp.Services, svc)
		}
	}
	return s.writeSpace(tenantID, sp)
}

// Purge removes what is left of the tenant's space after RemoveRepository
// has run: the registry and index data plus the space descriptor. It also
// terminates the tenant's configuration context on this node.
func (s *Store) Purge(_ context.Context, tenantID int64, domainName string) error {
	if err := os.RemoveAll(s.tenantDir(tenantID)); err != nil {
		return fmt.Errorf("purging tenant space: %w", err)
	}
	s.Unload(domainName)
	return nil
}

// RemoveRepository deletes the tenant's on-disk repository content. The
// registry and index data stay until Purge.
func (s *Store) RemoveRepository(tenantID int64) error {
	if err := os.RemoveAll(filepath.Join(s.tenantDir(tenantID), "repository")); err != nil {
		return fmt.Errorf("removing tenant repository: %w", err)
	}
	return nil
}

// Load marks a tenant configuration context as live on this node.
func (s *Store) Load(domainName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[domainName] = struct{}{}
}

// Unload terminates the tenant's configuration context on this node.
func (s *Store) Unload(domainName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, domainName)
}

// Loaded reports whether the tenant's configuration context is live.
func (s *Store) Loaded(domainName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contexts[domainName]
	return ok
}
