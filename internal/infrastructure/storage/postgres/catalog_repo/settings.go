package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"medcore/internal/core/tenant"
	"medcore/internal/domain/settings"
	"medcore/internal/infrastructure/storage/postgres"
)

const settingsTable = "settings"

// SettingsRepo implements settings.Repository.
type SettingsRepo struct {
	t *postgres.Table[settings.Setting]
}

var _ settings.Repository = (*SettingsRepo)(nil)

// NewSettingsRepo creates a new settings repository.
func NewSettingsRepo(tm *postgres.TxManager) *SettingsRepo {
	return &SettingsRepo{t: postgres.NewTable[settings.Setting](tm, settingsTable, "setting", "key ASC")}
}

func (r *SettingsRepo) Get(ctx context.Context, scope tenant.Scope, key settings.Key) (*settings.Setting, error) {
	q := r.t.Select().Where(squirrel.Eq{
		"tenant_id":  scope.TenantID,
		"company_id": scope.CompanyID,
		"key":        key,
	})
	return r.t.Get(ctx, q, key)
}

func (r *SettingsRepo) Put(ctx context.Context, s *settings.Setting) error {
	_, err := r.t.Querier(ctx).Exec(ctx, `
		INSERT INTO settings (id, tenant_id, company_id, key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, company_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.TenantID, s.CompanyID, s.Key, s.Value, s.UpdatedBy, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", s.Key, err)
	}
	return nil
}
