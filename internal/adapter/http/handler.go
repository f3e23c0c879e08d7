// Package http is the thin inbound adapter: it maps the service operations
// onto a Huma API and translates typed faults to transport status codes.
// Routing, auth and documentation concerns live here, never in the services.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/provisr/internal/app"
	"github.com/neomorfeo/provisr/internal/domain"
)

// TenantResponse is the API representation of a tenant. The numeric id is
// internal; external callers reference tenants by uniqueId.
type TenantResponse struct {
	ID              int64  `json:"id" doc:"Store-assigned tenant id"`
	UniqueID        string `json:"uniqueId" doc:"External reference id"`
	Domain          string `json:"domain" doc:"Tenant domain name"`
	AdminUsername   string `json:"adminUsername" doc:"Admin username"`
	AdminEmail      string `json:"adminEmail" doc:"Admin email"`
	Active          bool   `json:"active" doc:"Activation state"`
	OriginService   string `json:"originService,omitempty" doc:"Originating service"`
	ProvisionMethod string `json:"provisionMethod,omitempty" doc:"Provisioning method"`
	CreatedAt       string `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:              t.ID,
		UniqueID:        t.UniqueID,
		Domain:          t.Domain,
		AdminUsername:   t.Admin.Username,
		AdminEmail:      t.Admin.Email,
		Active:          t.Active,
		OriginService:   t.OriginService,
		ProvisionMethod: t.ProvisionMethod,
		CreatedAt:       t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// --- Tenants ---

type CreateTenantInput struct {
	Body struct {
		Domain          string            `json:"domain" minLength:"1" maxLength:"255" doc:"Tenant domain name"`
		AdminUsername   string            `json:"adminUsername" minLength:"1" doc:"Admin username"`
		AdminEmail      string            `json:"adminEmail" minLength:"3" doc:"Admin email"`
		AdminFirstName  string            `json:"adminFirstName,omitempty" doc:"Admin first name"`
		AdminLastName   string            `json:"adminLastName,omitempty" doc:"Admin last name"`
		OriginService   string            `json:"originService,omitempty" doc:"Originating service"`
		ProvisionMethod string            `json:"provisionMethod,omitempty" doc:"Provisioning method" enum:",invite-via-email"`
		AssociatedOrgID string            `json:"associatedOrgId,omitempty" doc:"Sub-organization id"`
		Claims          map[string]string `json:"claims,omitempty" doc:"Additional admin claims"`
	}
}

type CreateTenantOutput struct {
	Body TenantResponse
}

type GetTenantInput struct {
	ID int64 `path:"id" doc:"Tenant id"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

type ListTenantsInput struct {
	Limit     *int   `query:"limit" required:"false" doc:"Max results"`
	Offset    *int   `query:"offset" required:"false" doc:"Pagination offset"`
	SortOrder string `query:"sortOrder" required:"false" doc:"ASC or DESC"`
	SortBy    string `query:"sortBy" required:"false" doc:"Sort key (domainName)"`
	Filter    string `query:"filter" required:"false" doc:"Filter: 'domainName <sw|ew|eq|co> value'"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

type DomainInput struct {
	Domain string `path:"domain" doc:"Tenant domain name"`
}

type AvailabilityOutput struct {
	Body struct {
		Available bool `json:"available"`
	}
}

type TransitionInput struct {
	ID int64 `path:"id" doc:"Tenant id"`
}

type EmptyOutput struct{}

// RegisterTenants adds the tenant lifecycle routes.
func RegisterTenants(api huma.API, svc *app.LifecycleService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		tenant, err := svc.AddTenant(ctx, domain.Tenant{
			Domain: input.Body.Domain,
			Admin: domain.AdminUser{
				Username:  input.Body.AdminUsername,
				Email:     input.Body.AdminEmail,
				FirstName: input.Body.AdminFirstName,
				LastName:  input.Body.AdminLastName,
			},
			OriginService:   input.Body.OriginService,
			ProvisionMethod: input.Body.ProvisionMethod,
			AssociatedOrgID: input.Body.AssociatedOrgID,
			Claims:          input.Body.Claims,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		tenants, err := svc.ListTenants(ctx, app.PageRequest{
			Limit:     input.Limit,
			Offset:    input.Offset,
			SortOrder: input.SortOrder,
			SortBy:    input.SortBy,
			Filter:    input.Filter,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by id",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetTenant(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-by-domain",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/domain/{domain}",
		Summary:     "Get a tenant by domain",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DomainInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetTenantByDomain(ctx, input.Domain)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "domain-availability",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/domain/{domain}/availability",
		Summary:     "Check whether a domain is available",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DomainInput) (*AvailabilityOutput, error) {
		available, err := svc.IsDomainAvailable(ctx, input.Domain)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &AvailabilityOutput{}
		out.Body.Available = available
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-tenant",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/{id}/activate",
		Summary:     "Activate a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*EmptyOutput, error) {
		if err := svc.ActivateTenant(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-tenant",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/{id}/deactivate",
		Summary:     "Deactivate a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*EmptyOutput, error) {
		if err := svc.DeactivateTenant(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-tenant-by-domain",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/domain/{domain}/activate",
		Summary:     "Activate a tenant by domain",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DomainInput) (*EmptyOutput, error) {
		if err := svc.ActivateTenantByDomain(ctx, input.Domain); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-tenant-by-domain",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/domain/{domain}/deactivate",
		Summary:     "Deactivate a tenant by domain",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DomainInput) (*EmptyOutput, error) {
		if err := svc.DeactivateTenantByDomain(ctx, input.Domain); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Delete a tenant irreversibly",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*EmptyOutput, error) {
		if err := svc.DeleteTenant(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})
}

// toHumaError translates domain faults to Huma HTTP errors. Security faults
// surface as server errors on the wire; the alert is already logged.
func toHumaError(err error) error {
	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var fault *domain.Fault
	if errors.As(err, &fault) {
		switch fault.Kind {
		case domain.KindNotFound:
			return huma.Error404NotFound(fault.Message)
		case domain.KindClient:
			return huma.Error400BadRequest(fault.Message)
		case domain.KindConflict:
			return huma.Error409Conflict(fault.Message)
		}
	}

	slog.Error("internal error", "error", err)
	return huma.Error500InternalServerError("internal server error")
}
