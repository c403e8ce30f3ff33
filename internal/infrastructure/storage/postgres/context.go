package postgres

import (
	"github.com/Masterminds/squirrel"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ScopeFilter restricts a query to rows visible to tc: the caller's tenant
// and, for a company-scoped caller, its company plus tenant-wide rows.
func ScopeFilter(tc tenant.Context, prefix string) squirrel.Sqlizer {
	cond := squirrel.And{squirrel.Eq{prefix + "tenant_id": tc.TenantID}}
	if tc.HasCompany() {
		cond = append(cond, squirrel.Eq{prefix + "company_id": []id.ID{tc.CompanyID, id.Nil()}})
	}
	return cond
}
