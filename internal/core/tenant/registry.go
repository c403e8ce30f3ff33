package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"medcore/internal/core/id"
)

// Registry resolves tenants and their companies.
type Registry interface {
	// GetByID retrieves tenant by id.
	GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error)

	// CompanyBelongs reports whether companyID is a company of tenantID.
	CompanyBelongs(ctx context.Context, tenantID, companyID id.ID) (bool, error)
}

// Verify resolves c against the registry: the tenant must exist and be active,
// and the company (when set) must belong to it.
func Verify(ctx context.Context, reg Registry, c Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	t, err := reg.GetByID(ctx, c.TenantID)
	if err != nil {
		return err
	}
	if !t.IsActive() {
		return ErrTenantNotActive
	}
	if !c.HasCompany() {
		return nil
	}
	ok, err := reg.CompanyBelongs(ctx, c.TenantID, c.CompanyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCompanyNotInTenant
	}
	return nil
}

// PostgresRegistry implements Registry over the tenants and companies tables.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, `
		SELECT id, slug, display_name, status, created_at
		FROM tenants
		WHERE id = $1
	`, tenantID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return &t, nil
}

func (r *PostgresRegistry) CompanyBelongs(ctx context.Context, tenantID, companyID id.ID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1 AND tenant_id = $2)
	`, companyID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check company: %w", err)
	}
	return exists, nil
}

// Create inserts a tenant.
func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, display_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Slug, t.DisplayName, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// SetStatus changes the lifecycle state of a tenant.
func (r *PostgresRegistry) SetStatus(ctx context.Context, tenantID id.ID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET status = $1 WHERE id = $2`, status, tenantID)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// List returns every tenant ordered by slug.
func (r *PostgresRegistry) List(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	if err := pgxscan.Select(ctx, r.pool, &tenants, `
		SELECT id, slug, display_name, status, created_at
		FROM tenants
		ORDER BY slug
	`); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// AddCompany inserts a company under its tenant.
func (r *PostgresRegistry) AddCompany(ctx context.Context, c *Company) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (id, tenant_id, name) VALUES ($1, $2, $3)
	`, c.ID, c.TenantID, c.Name)
	if err != nil {
		return fmt.Errorf("add company: %w", err)
	}
	return nil
}

// ListCompanies returns the companies of tenantID.
func (r *PostgresRegistry) ListCompanies(ctx context.Context, tenantID id.ID) ([]*Company, error) {
	var companies []*Company
	if err := pgxscan.Select(ctx, r.pool, &companies, `
		SELECT id, tenant_id, name FROM companies WHERE tenant_id = $1 ORDER BY name
	`, tenantID); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// StaticRegistry is an in-memory Registry for tests and memory-store mode.
type StaticRegistry struct {
	mu        sync.RWMutex
	tenants   map[id.ID]*Tenant
	companies map[id.ID]id.ID
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		tenants:   make(map[id.ID]*Tenant),
		companies: make(map[id.ID]id.ID),
	}
}

// Add registers a tenant with its companies.
func (r *StaticRegistry) Add(t *Tenant, companies ...id.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
	for _, c := range companies {
		r.companies[c] = t.ID
	}
}

func (r *StaticRegistry) GetByID(_ context.Context, tenantID id.ID) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

func (r *StaticRegistry) CompanyBelongs(_ context.Context, tenantID, companyID id.ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.companies[companyID]
	return ok && owner == tenantID, nil
}

var (
	_ Registry = (*PostgresRegistry)(nil)
	_ Registry = (*StaticRegistry)(nil)
)
