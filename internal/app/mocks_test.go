package app_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/neomorfeo/provisr/internal/domain"
)

// --- Identity store mock ---

type mockIdentity struct {
	mu      sync.Mutex
	nextID  int64
	tenants map[int64]domain.Tenant
	domains map[string]int64
	users   map[string]bool
	claims  map[int64]map[string]string

	getCalls int // GetTenant reads, for cache-hit assertions

	failSetActive error
	failDelete    error
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{
		tenants: make(map[int64]domain.Tenant),
		domains: make(map[string]int64),
		users:   make(map[string]bool),
		claims:  make(map[int64]map[string]string),
	}
}

func (m *mockIdentity) AddTenant(_ context.Context, t domain.Tenant) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.domains[t.Domain]; taken {
		return 0, domain.ConflictFaultf(domain.CodeDomainTaken, "domain %q is already taken", t.Domain)
	}
	m.nextID++
	t.ID = m.nextID
	m.tenants[t.ID] = t
	m.domains[t.Domain] = t.ID
	return t.ID, nil
}

func (m *mockIdentity) GetTenant(_ context.Context, id int64) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockIdentity) GetTenantByDomain(_ context.Context, dom string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.domains[dom]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return m.tenants[id], nil
}

func (m *mockIdentity) GetTenantByUniqueID(_ context.Context, uid string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.UniqueID == uid {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockIdentity) GetTenantID(_ context.Context, dom string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.domains[dom]
	if !ok {
		return 0, domain.ErrTenantNotFound
	}
	return id, nil
}

func (m *mockIdentity) ListTenants(_ context.Context, q domain.TenantQuery) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	if q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *mockIdentity) SetActive(_ context.Context, id int64, active bool) error {
	if m.failSetActive != nil {
		return m.failSetActive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	t.Active = active
	m.tenants[id] = t
	return nil
}

func (m *mockIdentity) DeleteTenant(_ context.Context, id int64) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	delete(m.tenants, id)
	delete(m.domains, t.Domain)
	return nil
}

func (m *mockIdentity) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[username], nil
}

func (m *mockIdentity) CreateAdminUser(_ context.Context, _ int64, admin domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[admin.Username] = true
	return nil
}

func (m *mockIdentity) SetClaims(_ context.Context, tenantID int64, _ string, claims map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[tenantID] == nil {
		m.claims[tenantID] = make(map[string]string)
	}
	for k, v := range claims {
		m.claims[tenantID][k] = v
	}
	return nil
}

// --- Registry mock ---

type mockRegistry struct {
	mu        sync.Mutex
	inited    []int64
	granted   []int64
	origins   map[int64]string
	services  map[int64][]string
	purged    []int64
	removed   []int64
	contexts  map[string]bool
	failPurge error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		origins:  make(map[int64]string),
		services: make(map[int64][]string),
		contexts: make(map[string]bool),
	}
}

func (m *mockRegistry) InitTenant(_ context.Context, id int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inited = append(m.inited, id)
	return nil
}

func (m *mockRegistry) GrantDefaultPermissions(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted = append(m.granted, id)
	return nil
}

func (m *mockRegistry) TagOriginService(_ context.Context, id int64, svc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.origins[id] = svc
	return nil
}

func (m *mockRegistry) ActivateServices(_ context.Context, id int64, services []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[id] = append(m.services[id], services...)
	return nil
}

func (m *mockRegistry) Purge(_ context.Context, id int64, _ string) error {
	if m.failPurge != nil {
		return m.failPurge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, id)
	return nil
}

func (m *mockRegistry) RemoveRepository(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockRegistry) Load(dom string)   { m.mu.Lock(); defer m.mu.Unlock(); m.contexts[dom] = true }
func (m *mockRegistry) Unload(dom string) { m.mu.Lock(); defer m.mu.Unlock(); delete(m.contexts, dom) }
func (m *mockRegistry) Loaded(dom string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts[dom]
}

// --- Broadcaster mock ---

type mockBroadcaster struct {
	messages []domain.ClusterMessage
	fail     error
}

func (m *mockBroadcaster) Broadcast(_ context.Context, msg domain.ClusterMessage) error {
	if m.fail != nil {
		return m.fail
	}
	m.messages = append(m.messages, msg)
	return nil
}

// --- Realm builder mock ---

type mockRealms struct{}

func (mockRealms) Build(_ context.Context, dom string) (domain.RealmConfig, error) {
	return domain.RealmConfig{
		StoreType:  "embedded",
		Connection: "default",
		Properties: map[string]string{"tenantDomain": dom},
	}, nil
}

// --- Transition validator stub ---

// stubValidator walks domain.Transitions directly; the FSM adapter has its
// own tests.
type stubValidator struct{}

func (stubValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Tenant cache mock ---

type mockCache struct {
	mu      sync.Mutex
	entries map[int64]domain.Tenant
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[int64]domain.Tenant)}
}

func (m *mockCache) Get(id int64) (domain.Tenant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[id]
	return t, ok
}

func (m *mockCache) Set(t domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[t.ID] = t
}

func (m *mockCache) Delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// --- Lifecycle listener mock ---

type recordingListener struct {
	priority int
	calls    *[]string
	name     string

	failPreCreate  error
	failPostCreate error
}

func (l *recordingListener) record(event string) {
	*l.calls = append(*l.calls, fmt.Sprintf("%s:%s", l.name, event))
}

func (l *recordingListener) Priority() int { return l.priority }

func (l *recordingListener) PreCreate(_ context.Context, _ *domain.Tenant) error {
	l.record("preCreate")
	return l.failPreCreate
}

func (l *recordingListener) PostCreate(_ context.Context, _ domain.Tenant) error {
	l.record("postCreate")
	return l.failPostCreate
}

func (l *recordingListener) PostActivate(_ context.Context, _ domain.Tenant) error {
	l.record("postActivate")
	return nil
}

func (l *recordingListener) PreDeactivate(_ context.Context, _ domain.Tenant) error {
	l.record("preDeactivate")
	return nil
}

func (l *recordingListener) PreDelete(_ context.Context, _ domain.Tenant) error {
	l.record("preDelete")
	return nil
}

// --- Invite sender mock ---

type mockInvites struct {
	sent []int64
}

func (m *mockInvites) EnqueueInvite(_ context.Context, t domain.Tenant) error {
	m.sent = append(m.sent, t.ID)
	return nil
}
