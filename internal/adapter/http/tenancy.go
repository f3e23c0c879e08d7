package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/provisr/internal/app"
)

// NamespaceTenantResponse is the API representation of a namespace-backed
// tenant.
type NamespaceTenantResponse struct {
	Name string `json:"name" doc:"Sanitized namespace name"`
}

type ListNamespaceTenantsOutput struct {
	Body []NamespaceTenantResponse
}

type NamespaceTenantInput struct {
	Name string `path:"name" doc:"Tenant name"`
}

type NamespaceTenantOutput struct {
	Body NamespaceTenantResponse
}

type CreateNamespaceTenantInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"63" doc:"Tenant name"`
	}
}

// RegisterTenancy adds the namespace-backed tenant routes.
func RegisterTenancy(api huma.API, svc *app.TenancyService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-namespace-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/cluster/tenants",
		Summary:     "List namespace-backed tenants",
		Tags:        []string{"Cluster tenants"},
	}, func(ctx context.Context, _ *struct{}) (*ListNamespaceTenantsOutput, error) {
		tenants, err := svc.GetTenants(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]NamespaceTenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = NamespaceTenantResponse{Name: t.Name}
		}
		return &ListNamespaceTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-namespace-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/cluster/tenants/{name}",
		Summary:     "Get a namespace-backed tenant",
		Tags:        []string{"Cluster tenants"},
	}, func(ctx context.Context, input *NamespaceTenantInput) (*NamespaceTenantOutput, error) {
		tenant, err := svc.GetTenant(ctx, input.Name)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &NamespaceTenantOutput{Body: NamespaceTenantResponse{Name: tenant.Name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-namespace-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/cluster/tenants",
		Summary:     "Create a namespace-backed tenant",
		Tags:        []string{"Cluster tenants"},
	}, func(ctx context.Context, input *CreateNamespaceTenantInput) (*NamespaceTenantOutput, error) {
		tenant, err := svc.CreateTenant(ctx, input.Body.Name)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &NamespaceTenantOutput{Body: NamespaceTenantResponse{Name: tenant.Name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-namespace-tenant",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cluster/tenants/{name}",
		Summary:     "Delete a namespace-backed tenant",
		Tags:        []string{"Cluster tenants"},
	}, func(ctx context.Context, input *NamespaceTenantInput) (*EmptyOutput, error) {
		if err := svc.DeleteTenant(ctx, input.Name); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})
}
