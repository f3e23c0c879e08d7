// Package cluster is the thin adapter over the remote cluster-management
// REST API: namespace CRUD, resource CRUD and label-based deployment
// queries. All timeout and retry policy lives here, not in the services.
package cluster

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time check: Client implements domain.ClusterOrchestrator.
var _ domain.ClusterOrchestrator = (*Client)(nil)

// Client talks to the orchestrator API.
type Client struct {
	http *resty.Client
}

// Option customizes the client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithToken sets a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// New creates a client against the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type metadata struct {
	Name   string            `json:"name"`
	UID    string            `json:"uid,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

type namespaceDoc struct {
	Metadata metadata `json:"metadata"`
}

type namespaceList struct {
	Items []namespaceDoc `json:"items"`
}

func (c *Client) CreateNamespace(ctx context.Context, name string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetBody(namespaceDoc{Metadata: metadata{Name: name}}).
		Post("/api/v1/namespaces")
	if err != nil {
		return fmt.Errorf("creating namespace %q: %w", name, err)
	}
	return requireSuccess(resp, "creating namespace")
}

func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete("/api/v1/namespaces/" + name)
	if err != nil {
		return fmt.Errorf("deleting namespace %q: %w", name, err)
	}
	// The orchestrator may report 200 for deletes of absent resources;
	// either way an absent namespace after delete is the desired state.
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return requireSuccess(resp, "deleting namespace")
}

func (c *Client) GetNamespace(ctx context.Context, name string) (domain.Namespace, error) {
	var doc namespaceDoc
	resp, err := c.http.R().SetContext(ctx).SetResult(&doc).
		Get("/api/v1/namespaces/" + name)
	if err != nil {
		return domain.Namespace{}, fmt.Errorf("fetching namespace %q: %w", name, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.Namespace{}, domain.ErrNamespaceNotFound
	}
	if err := requireSuccess(resp, "fetching namespace"); err != nil {
		return domain.Namespace{}, err
	}
	return domain.Namespace{Name: doc.Metadata.Name}, nil
}

func (c *Client) ListNamespaces(ctx context.Context) ([]domain.Namespace, error) {
	var list namespaceList
	resp, err := c.http.R().SetContext(ctx).SetResult(&list).
		Get("/api/v1/namespaces")
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	if err := requireSuccess(resp, "listing namespaces"); err != nil {
		return nil, err
	}

	out := make([]domain.Namespace, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, domain.Namespace{Name: item.Metadata.Name})
	}
	return out, nil
}

// resourcePath returns the collection path for a managed resource kind.
func resourcePath(namespace string, kind domain.ManifestKind) (string, error) {
	switch kind {
	case domain.ManifestDeployment:
		return "/apis/apps/v1/namespaces/" + namespace + "/deployments", nil
	case domain.ManifestService:
		return "/api/v1/namespaces/" + namespace + "/services", nil
	case domain.ManifestIngress:
		return "/apis/networking.k8s.io/v1/namespaces/" + namespace + "/ingresses", nil
	default:
		return "", fmt.Errorf("unsupported resource kind %q", kind)
	}
}

func (c *Client) CreateResource(ctx context.Context, namespace string, r domain.Resource) error {
	path, err := resourcePath(namespace, r.Kind)
	if err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(r.Doc).Post(path)
	if err != nil {
		return fmt.Errorf("creating %s %q: %w", r.Kind, r.Name, err)
	}
	return requireSuccess(resp, fmt.Sprintf("creating %s %q", r.Kind, r.Name))
}

func (c *Client) DeleteResource(ctx context.Context, namespace string, kind domain.ManifestKind, name string) error {
	path, err := resourcePath(namespace, kind)
	if err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).Delete(path + "/" + name)
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", kind, name, err)
	}
	// Idempotent delete: a resource that is already gone is success.
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return requireSuccess(resp, fmt.Sprintf("deleting %s %q", kind, name))
}

type deploymentDoc struct {
	Metadata metadata `json:"metadata"`
	Spec     struct {
		Template struct {
			Metadata metadata `json:"metadata"`
		} `json:"template"`
	} `json:"spec"`
}

type deploymentList struct {
	Items []deploymentDoc `json:"items"`
}

func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]domain.ClusterDeployment, error) {
	var list deploymentList
	resp, err := c.http.R().SetContext(ctx).SetResult(&list).
		Get("/apis/apps/v1/namespaces/" + namespace + "/deployments")
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	if err := requireSuccess(resp, "listing deployments"); err != nil {
		return nil, err
	}

	out := make([]domain.ClusterDeployment, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, domain.ClusterDeployment{
			ID:     item.Metadata.UID,
			Name:   item.Metadata.Name,
			Labels: item.Spec.Template.Metadata.Labels,
		})
	}
	return out, nil
}

func requireSuccess(resp *resty.Response, action string) error {
	if resp.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%s: orchestrator returned %d: %s", action, resp.StatusCode(), resp.String())
}
