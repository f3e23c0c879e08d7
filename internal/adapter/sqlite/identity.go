// Package sqlite implements the identity store over an embedded SQLite
// database. Tenant ids come from AUTOINCREMENT, so an id is assigned exactly
// once and never reused after deletion within the same database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/provisr/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: IdentityStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityStore)(nil)

// IdentityStore is the SQLite-backed identity/realm adapter.
type IdentityStore struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*IdentityStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for concurrent reads; foreign keys are off by default in SQLite
	// and the cascade deletes on tenant_users/tenant_claims need them.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*IdentityStore, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &IdentityStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *IdentityStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection for use by other adapters (e.g. the
// job queue sharing the same file).
func (s *IdentityStore) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

const tenantColumns = `id, domain, unique_id, admin_username, admin_email,
	admin_first_name, admin_last_name, active, origin_service,
	provision_method, associated_org_id, realm_store_type, realm_connection,
	realm_properties, created_at`

func (s *IdentityStore) AddTenant(ctx context.Context, t domain.Tenant) (int64, error) {
	props, err := json.Marshal(t.Realm.Properties)
	if err != nil {
		return 0, fmt.Errorf("encoding realm properties: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (domain, unique_id, admin_username, admin_email,
			admin_first_name, admin_last_name, active, origin_service,
			provision_method, associated_org_id, realm_store_type,
			realm_connection, realm_properties, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Domain, t.UniqueID, t.Admin.Username, t.Admin.Email,
		t.Admin.FirstName, t.Admin.LastName, boolInt(t.Active),
		t.OriginService, t.ProvisionMethod, t.AssociatedOrgID,
		t.Realm.StoreType, t.Realm.Connection, string(props),
		t.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ConflictFaultf(domain.CodeDomainTaken,
				"domain %q is already taken", t.Domain)
		}
		return 0, fmt.Errorf("inserting tenant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading assigned tenant id: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) GetTenant(ctx context.Context, id int64) (domain.Tenant, error) {
	return s.scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id))
}

func (s *IdentityStore) GetTenantByDomain(ctx context.Context, dom string) (domain.Tenant, error) {
	return s.scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE domain = ?`, dom))
}

func (s *IdentityStore) GetTenantByUniqueID(ctx context.Context, uid string) (domain.Tenant, error) {
	return s.scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE unique_id = ?`, uid))
}

func (s *IdentityStore) GetTenantID(ctx context.Context, dom string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM tenants WHERE domain = ?`, dom).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.ErrTenantNotFound
		}
		return 0, fmt.Errorf("resolving tenant id: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) ListTenants(ctx context.Context, q domain.TenantQuery) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	var args []any

	if q.Filter != nil {
		query += ` WHERE domain LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q.Filter))
	}

	col := "created_at"
	if q.SortBy == domain.SortByDomain {
		col = "domain"
	}
	dir := "ASC"
	if q.SortOrder == domain.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s LIMIT ? OFFSET ?`, col, dir)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := s.scanTenantFromRows(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// likePattern builds the LIKE argument for the four supported operations.
func likePattern(f *domain.TenantFilter) string {
	v := escapeLike(f.Value)
	switch f.Operation {
	case domain.FilterStartsWith:
		return v + "%"
	case domain.FilterEndsWith:
		return "%" + v
	case domain.FilterContains:
		return "%" + v + "%"
	default: // FilterEquals
		return v
	}
}

func escapeLike(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `%`, `\%`)
	return strings.ReplaceAll(v, `_`, `\_`)
}

func (s *IdentityStore) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("updating active flag: %w", err)
	}
	return requireRow(res)
}

func (s *IdentityStore) DeleteTenant(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return requireRow(res)
}

// UsernameExists checks the username against every tenant's admin and user
// records, for the uniqueness-across-tenants realm property.
func (s *IdentityStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (
			SELECT admin_username AS u FROM tenants WHERE admin_username = ?
			UNION ALL
			SELECT username FROM tenant_users WHERE username = ?
		 )`, username, username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return n > 0, nil
}

func (s *IdentityStore) CreateAdminUser(ctx context.Context, tenantID int64, admin domain.AdminUser) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_users (tenant_id, username, email, first_name, last_name)
		 VALUES (?, ?, ?, ?, ?)`,
		tenantID, admin.Username, admin.Email, admin.FirstName, admin.LastName)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ConflictFaultf(domain.CodeUsernameTaken,
				"user %q already exists for tenant %d", admin.Username, tenantID)
		}
		return fmt.Errorf("creating admin user: %w", err)
	}
	return nil
}

func (s *IdentityStore) SetClaims(ctx context.Context, tenantID int64, username string, claims map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting claims transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for claim, value := range claims {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tenant_claims (tenant_id, username, claim, value)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (tenant_id, username, claim) DO UPDATE SET value = excluded.value`,
			tenantID, username, claim, value); err != nil {
			return fmt.Errorf("setting claim %q: %w", claim, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing claims: %w", err)
	}
	return nil
}

func (s *IdentityStore) scanTenant(row *sql.Row) (domain.Tenant, error) {
	t, err := scanTenantRow(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, err
}

func (s *IdentityStore) scanTenantFromRows(rows *sql.Rows) (domain.Tenant, error) {
	return scanTenantRow(rows.Scan)
}

func scanTenantRow(scan func(dest ...any) error) (domain.Tenant, error) {
	var t domain.Tenant
	var active int
	var props, createdAt string

	err := scan(&t.ID, &t.Domain, &t.UniqueID, &t.Admin.Username, &t.Admin.Email,
		&t.Admin.FirstName, &t.Admin.LastName, &active, &t.OriginService,
		&t.ProvisionMethod, &t.AssociatedOrgID, &t.Realm.StoreType,
		&t.Realm.Connection, &props, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Tenant{}, err
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Active = active != 0
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if err := json.Unmarshal([]byte(props), &t.Realm.Properties); err != nil {
		return domain.Tenant{}, fmt.Errorf("decoding realm properties: %w", err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
