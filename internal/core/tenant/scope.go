package tenant

import (
	"context"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/pkg/logger"
)

// Scope is the ownership stamp embedded in every persisted entity.
type Scope struct {
	TenantID  id.ID `db:"tenant_id" json:"tenantId"`
	CompanyID id.ID `db:"company_id" json:"companyId"`
}

// Check returns nil when c may see a row stamped with owner.
// Otherwise it logs the attempt and returns the same shape as a not-found.
func Check(ctx context.Context, c Context, owner Scope, entity string, entityID any) error {
	if c.Owns(owner) {
		return nil
	}
	logger.Warn(ctx, "cross-tenant access rejected",
		"entity", entity,
		"entity_id", entityID,
		"caller_tenant", c.TenantID,
		"caller_company", c.CompanyID,
	)
	return apperror.NewCrossTenantAccess(entity, entityID)
}
