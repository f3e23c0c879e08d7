package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/provisr/internal/adapter/fsm"
	adapter "github.com/neomorfeo/provisr/internal/adapter/http"
	"github.com/neomorfeo/provisr/internal/adapter/manifest"
	provisrnats "github.com/neomorfeo/provisr/internal/adapter/nats"
	"github.com/neomorfeo/provisr/internal/adapter/realm"
	"github.com/neomorfeo/provisr/internal/adapter/registry"
	"github.com/neomorfeo/provisr/internal/adapter/ristretto"
	"github.com/neomorfeo/provisr/internal/adapter/sqlite"
	"github.com/neomorfeo/provisr/internal/app"
	"github.com/neomorfeo/provisr/internal/domain"
)

const rootDomain = "super.internal"

// mockOrchestrator backs the deployment and tenancy routes without a real
// cluster.
type mockOrchestrator struct {
	namespaces  map[string]bool
	deployments []domain.ClusterDeployment
	created     []string
	deleted     []string
}

func newMockOrchestrator() *mockOrchestrator {
	return &mockOrchestrator{namespaces: make(map[string]bool)}
}

func (o *mockOrchestrator) CreateNamespace(_ context.Context, name string) error {
	o.namespaces[name] = true
	return nil
}

func (o *mockOrchestrator) DeleteNamespace(_ context.Context, name string) error {
	delete(o.namespaces, name)
	return nil
}

func (o *mockOrchestrator) GetNamespace(_ context.Context, name string) (domain.Namespace, error) {
	if !o.namespaces[name] {
		return domain.Namespace{}, domain.ErrNamespaceNotFound
	}
	return domain.Namespace{Name: name}, nil
}

func (o *mockOrchestrator) ListNamespaces(_ context.Context) ([]domain.Namespace, error) {
	out := make([]domain.Namespace, 0, len(o.namespaces))
	for name := range o.namespaces {
		out = append(out, domain.Namespace{Name: name})
	}
	return out, nil
}

func (o *mockOrchestrator) CreateResource(_ context.Context, namespace string, r domain.Resource) error {
	o.created = append(o.created, fmt.Sprintf("%s/%s/%s", namespace, r.Kind, r.Name))
	return nil
}

func (o *mockOrchestrator) DeleteResource(_ context.Context, namespace string, kind domain.ManifestKind, name string) error {
	o.deleted = append(o.deleted, fmt.Sprintf("%s/%s/%s", namespace, kind, name))
	return nil
}

func (o *mockOrchestrator) ListDeployments(context.Context, string) ([]domain.ClusterDeployment, error) {
	return o.deployments, nil
}

type testEnv struct {
	srv     *httptest.Server
	cluster *mockOrchestrator
}

// newTestEnv wires the full stack behind an httptest server: in-memory
// SQLite, a temp-dir registry and manifest store, and a mock orchestrator.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating identity store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}

	cache, err := ristretto.New(0)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	t.Cleanup(cache.Close)

	persistor := app.NewPersistor(store, reg, app.PersistorConfig{UsernameUniqueAcrossTenants: true})
	lifecycle := app.NewLifecycleService(
		store, persistor,
		realm.New("embedded", "default", nil),
		reg, reg,
		provisrnats.Nop{},
		app.NewListenerRegistry(),
		fsm.New(),
		cache,
		nil,
		app.LifecycleConfig{
			RootDomain:      rootDomain,
			DeletionEnabled: true,
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
	)

	cluster := newMockOrchestrator()
	deployments := app.NewDeploymentService(manifest.New(t.TempDir()), cluster)
	tenancy := app.NewTenancyService(cluster)

	router := chi.NewMux()
	router.Use(adapter.CallerContext)
	api := humachi.New(router, huma.DefaultConfig("provisr", "0.1.0"))
	adapter.RegisterTenants(api, lifecycle)
	adapter.RegisterDeployments(api, deployments)
	adapter.RegisterTenancy(api, tenancy)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, cluster: cluster}
}

// doRequest performs a request, optionally as the root tenant.
func doRequest(t *testing.T, method, url, body string, asRoot bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if asRoot {
		req.Header.Set(adapter.HeaderCallerDomain, rootDomain)
		req.Header.Set(adapter.HeaderCallerID, "1")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func mustCreateTenant(t *testing.T, env *testEnv, dom string) adapter.TenantResponse {
	t.Helper()

	body := fmt.Sprintf(`{"domain":%q,"adminUsername":%q,"adminEmail":"admin@%s"}`,
		dom, dom+"-admin", dom)
	resp := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/tenants", body, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create tenant: status = %d, body %s", resp.StatusCode, raw)
	}

	var tenant adapter.TenantResponse
	if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
		t.Fatalf("decode tenant: %v", err)
	}
	return tenant
}

// --- Tenant lifecycle routes ---

func TestCreateTenant(t *testing.T) {
	env := newTestEnv(t)
	tenant := mustCreateTenant(t, env, "acme.com")

	if tenant.ID == 0 {
		t.Error("ID must be assigned")
	}
	if tenant.UniqueID == "" {
		t.Error("UniqueID must be generated")
	}
	if !tenant.Active {
		t.Error("tenant must be active after creation")
	}
	if tenant.Domain != "acme.com" {
		t.Errorf("domain = %q", tenant.Domain)
	}
}

func TestCreateTenant_NonRootForbidden(t *testing.T) {
	env := newTestEnv(t)

	body := `{"domain":"acme.com","adminUsername":"a","adminEmail":"a@acme.com"}`
	resp := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/tenants", body, false)
	defer resp.Body.Close()

	// Security faults surface as opaque server errors, not 403.
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestCreateTenant_InvalidDomain(t *testing.T) {
	env := newTestEnv(t)

	body := `{"domain":"acme corp!","adminUsername":"a","adminEmail":"a@acme.com"}`
	resp := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/tenants", body, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateTenant_DuplicateDomain(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTenant(t, env, "acme.com")

	body := `{"domain":"acme.com","adminUsername":"other","adminEmail":"o@acme.com"}`
	resp := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/tenants", body, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestGetTenant(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreateTenant(t, env, "acme.com")

	resp := doRequest(t, http.MethodGet, fmt.Sprintf("%s/api/v1/tenants/%d", env.srv.URL, created.ID), "", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var tenant adapter.TenantResponse
	if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tenant.ID != created.ID || tenant.Domain != "acme.com" {
		t.Errorf("tenant = %+v", tenant)
	}
}

func TestGetTenant_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/tenants/999", "", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetTenantByDomainAndAvailability(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTenant(t, env, "acme.com")

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/tenants/domain/acme.com", "", false)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by domain: status = %d", resp.StatusCode)
	}

	check := func(dom string, want bool) {
		resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/tenants/domain/"+dom+"/availability", "", false)
		defer resp.Body.Close()
		var out struct {
			Available bool `json:"available"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode availability: %v", err)
		}
		if out.Available != want {
			t.Errorf("availability of %q = %v, want %v", dom, out.Available, want)
		}
	}
	check("acme.com", false)
	check("fresh.com", true)
}

func TestListTenants(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTenant(t, env, "acme.com")
	mustCreateTenant(t, env, "globex.com")

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/tenants?sortBy=domainName&sortOrder=DESC", "", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var tenants []adapter.TenantResponse
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tenants) != 2 || tenants[0].Domain != "globex.com" {
		t.Errorf("tenants = %+v", tenants)
	}
}

func TestListTenants_BadFilter(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/tenants?filter=domainName+like+x", "", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDeactivateAndActivate(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreateTenant(t, env, "acme.com")
	base := fmt.Sprintf("%s/api/v1/tenants/%d", env.srv.URL, created.ID)

	resp := doRequest(t, http.MethodPut, base+"/deactivate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate: status = %d", resp.StatusCode)
	}

	// A second deactivation is an invalid transition.
	resp = doRequest(t, http.MethodPut, base+"/deactivate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("repeat deactivate: status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	resp = doRequest(t, http.MethodPut, base+"/activate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		t.Fatalf("activate: status = %d", resp.StatusCode)
	}
}

func TestDeactivateAndActivateByDomain(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTenant(t, env, "acme.com")
	base := env.srv.URL + "/api/v1/tenants/domain/acme.com"

	resp := doRequest(t, http.MethodPut, base+"/deactivate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate by domain: status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPut, base+"/activate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		t.Fatalf("activate by domain: status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPut, env.srv.URL+"/api/v1/tenants/domain/nobody.com/activate", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown domain: status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteTenant(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreateTenant(t, env, "acme.com")
	url := fmt.Sprintf("%s/api/v1/tenants/%d", env.srv.URL, created.ID)

	resp := doRequest(t, http.MethodDelete, url, "", true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, url, "", false)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// --- Namespace tenancy routes ---

func TestClusterTenantRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.cluster.namespaces["kube-system"] = true

	resp := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/cluster/tenants", `{"name":"Acme.Corp"}`, true)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create: status = %d, body %s", resp.StatusCode, raw)
	}
	if !env.cluster.namespaces["acme-corp"] {
		t.Error("namespace not created with sanitized name")
	}

	// Reserved names never surface.
	resp = doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/cluster/tenants/kube-system", "", false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get reserved: status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	resp = doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/cluster/tenants", `{"name":"default"}`, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("create reserved: status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

// --- Deployment routes ---

func TestListDeploymentsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.cluster.deployments = []domain.ClusterDeployment{
		{ID: "uid-1", Name: "webapp", Labels: map[string]string{
			"product": "webapp", "version": "2.1", "pattern": "1",
		}},
	}

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/namespaces/acme/deployments", "", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var units []adapter.DeploymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&units); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(units) != 1 || units[0].Product != "webapp" || units[0].Pattern != 1 {
		t.Errorf("units = %+v", units)
	}
}

func TestDeployRoute_MissingManifests(t *testing.T) {
	env := newTestEnv(t)

	url := env.srv.URL + "/api/v1/namespaces/acme/deployments"
	resp := doRequest(t, http.MethodPost, url, `{"product":"webapp","version":"9.9","pattern":1}`, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
