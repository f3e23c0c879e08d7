package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/provisr/internal/app"
	"github.com/neomorfeo/provisr/internal/domain"
)

// DeploymentResponse is the API representation of a deployment unit.
type DeploymentResponse struct {
	ID      string `json:"id" doc:"Orchestrator-assigned id"`
	Product string `json:"product" doc:"Product name"`
	Version string `json:"version" doc:"Product version"`
	Pattern int    `json:"pattern" doc:"Deployment topology pattern"`
}

func toDeploymentResponse(u domain.DeploymentUnit) DeploymentResponse {
	return DeploymentResponse{ID: u.ID, Product: u.Product, Version: u.Version, Pattern: u.Pattern}
}

type ListDeploymentsInput struct {
	Namespace string `path:"namespace" doc:"Target namespace"`
}

type ListDeploymentsOutput struct {
	Body []DeploymentResponse
}

type GetDeploymentInput struct {
	Namespace string `path:"namespace" doc:"Target namespace"`
	ID        string `path:"id" doc:"Deployment id"`
}

type GetDeploymentOutput struct {
	Body DeploymentResponse
}

type DeployInput struct {
	Namespace string `path:"namespace" doc:"Target namespace"`
	Body      struct {
		Product string `json:"product" minLength:"1" doc:"Product name"`
		Version string `json:"version" minLength:"1" doc:"Product version"`
		Pattern int    `json:"pattern" minimum:"1" doc:"Deployment topology pattern"`
	}
}

// UndeployInput names the same triple used at deploy time; no separate
// deploy record exists to look it up from.
type UndeployInput struct {
	Namespace string `path:"namespace" doc:"Target namespace"`
	Product   string `query:"product" doc:"Product name"`
	Version   string `query:"version" doc:"Product version"`
	Pattern   int    `query:"pattern" doc:"Deployment topology pattern"`
}

// RegisterDeployments adds the deployment provisioning routes.
func RegisterDeployments(api huma.API, svc *app.DeploymentService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-deployments",
		Method:      http.MethodGet,
		Path:        "/api/v1/namespaces/{namespace}/deployments",
		Summary:     "List live deployments",
		Tags:        []string{"Deployments"},
	}, func(ctx context.Context, input *ListDeploymentsInput) (*ListDeploymentsOutput, error) {
		units, err := svc.List(ctx, input.Namespace)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]DeploymentResponse, len(units))
		for i, u := range units {
			resp[i] = toDeploymentResponse(u)
		}
		return &ListDeploymentsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-deployment",
		Method:      http.MethodGet,
		Path:        "/api/v1/namespaces/{namespace}/deployments/{id}",
		Summary:     "Get a deployment by id",
		Tags:        []string{"Deployments"},
	}, func(ctx context.Context, input *GetDeploymentInput) (*GetDeploymentOutput, error) {
		unit, err := svc.Get(ctx, input.Namespace, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetDeploymentOutput{Body: toDeploymentResponse(unit)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deploy",
		Method:      http.MethodPost,
		Path:        "/api/v1/namespaces/{namespace}/deployments",
		Summary:     "Apply a product pattern",
		Tags:        []string{"Deployments"},
	}, func(ctx context.Context, input *DeployInput) (*EmptyOutput, error) {
		unit := domain.DeploymentUnit{
			Product: input.Body.Product,
			Version: input.Body.Version,
			Pattern: input.Body.Pattern,
		}
		if err := svc.Deploy(ctx, input.Namespace, unit); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "undeploy",
		Method:      http.MethodDelete,
		Path:        "/api/v1/namespaces/{namespace}/deployments",
		Summary:     "Remove a product pattern",
		Tags:        []string{"Deployments"},
	}, func(ctx context.Context, input *UndeployInput) (*EmptyOutput, error) {
		unit := domain.DeploymentUnit{
			Product: input.Product,
			Version: input.Version,
			Pattern: input.Pattern,
		}
		if err := svc.Undeploy(ctx, input.Namespace, unit); err != nil {
			return nil, toHumaError(err)
		}
		return &EmptyOutput{}, nil
	})
}
