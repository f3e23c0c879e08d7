package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/provisr/internal/domain"
)

const tracerName = "github.com/neomorfeo/provisr/internal/adapter/otel"

// TracingIdentityStore wraps a domain.IdentityStore with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors.
type TracingIdentityStore struct {
	next   domain.IdentityStore
	tracer trace.Tracer
}

// Compile-time check: TracingIdentityStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*TracingIdentityStore)(nil)

// NewTracingIdentityStore creates a tracing decorator around the given store.
func NewTracingIdentityStore(next domain.IdentityStore) *TracingIdentityStore {
	return &TracingIdentityStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingIdentityStore) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func record(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *TracingIdentityStore) AddTenant(ctx context.Context, t domain.Tenant) (int64, error) {
	ctx, span := s.span(ctx, "IdentityStore.AddTenant",
		attribute.String("tenant.domain", t.Domain))
	defer span.End()

	id, err := s.next.AddTenant(ctx, t)
	record(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int64("tenant.id", id))
	}
	return id, err
}

func (s *TracingIdentityStore) GetTenant(ctx context.Context, id int64) (domain.Tenant, error) {
	ctx, span := s.span(ctx, "IdentityStore.GetTenant",
		attribute.Int64("tenant.id", id))
	defer span.End()

	t, err := s.next.GetTenant(ctx, id)
	record(span, err)
	return t, err
}

func (s *TracingIdentityStore) GetTenantByDomain(ctx context.Context, dom string) (domain.Tenant, error) {
	ctx, span := s.span(ctx, "IdentityStore.GetTenantByDomain",
		attribute.String("tenant.domain", dom))
	defer span.End()

	t, err := s.next.GetTenantByDomain(ctx, dom)
	record(span, err)
	return t, err
}

func (s *TracingIdentityStore) GetTenantByUniqueID(ctx context.Context, uid string) (domain.Tenant, error) {
	ctx, span := s.span(ctx, "IdentityStore.GetTenantByUniqueID",
		attribute.String("tenant.unique_id", uid))
	defer span.End()

	t, err := s.next.GetTenantByUniqueID(ctx, uid)
	record(span, err)
	return t, err
}

func (s *TracingIdentityStore) GetTenantID(ctx context.Context, dom string) (int64, error) {
	ctx, span := s.span(ctx, "IdentityStore.GetTenantID",
		attribute.String("tenant.domain", dom))
	defer span.End()

	id, err := s.next.GetTenantID(ctx, dom)
	record(span, err)
	return id, err
}

func (s *TracingIdentityStore) ListTenants(ctx context.Context, q domain.TenantQuery) ([]domain.Tenant, error) {
	ctx, span := s.span(ctx, "IdentityStore.ListTenants",
		attribute.Int("query.limit", q.Limit),
		attribute.Int("query.offset", q.Offset))
	defer span.End()

	tenants, err := s.next.ListTenants(ctx, q)
	record(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(tenants)))
	}
	return tenants, err
}

func (s *TracingIdentityStore) SetActive(ctx context.Context, id int64, active bool) error {
	ctx, span := s.span(ctx, "IdentityStore.SetActive",
		attribute.Int64("tenant.id", id),
		attribute.Bool("tenant.active", active))
	defer span.End()

	err := s.next.SetActive(ctx, id, active)
	record(span, err)
	return err
}

func (s *TracingIdentityStore) DeleteTenant(ctx context.Context, id int64) error {
	ctx, span := s.span(ctx, "IdentityStore.DeleteTenant",
		attribute.Int64("tenant.id", id))
	defer span.End()

	err := s.next.DeleteTenant(ctx, id)
	record(span, err)
	return err
}

func (s *TracingIdentityStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	ctx, span := s.span(ctx, "IdentityStore.UsernameExists")
	defer span.End()

	exists, err := s.next.UsernameExists(ctx, username)
	record(span, err)
	return exists, err
}

func (s *TracingIdentityStore) CreateAdminUser(ctx context.Context, tenantID int64, admin domain.AdminUser) error {
	ctx, span := s.span(ctx, "IdentityStore.CreateAdminUser",
		attribute.Int64("tenant.id", tenantID))
	defer span.End()

	err := s.next.CreateAdminUser(ctx, tenantID, admin)
	record(span, err)
	return err
}

func (s *TracingIdentityStore) SetClaims(ctx context.Context, tenantID int64, username string, claims map[string]string) error {
	ctx, span := s.span(ctx, "IdentityStore.SetClaims",
		attribute.Int64("tenant.id", tenantID),
		attribute.Int("claims.count", len(claims)))
	defer span.End()

	err := s.next.SetClaims(ctx, tenantID, username, claims)
	record(span, err)
	return err
}
