package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

func TestScopeFilter(t *testing.T) {
	tenantID, companyID := id.New(), id.New()

	tests := []struct {
		name     string
		tc       tenant.Context
		prefix   string
		wantSQL  string
		wantArgs int
	}{
		{
			name:     "tenant-wide caller",
			tc:       tenant.New(tenantID, "u"),
			wantSQL:  "SELECT id FROM products WHERE (tenant_id = $1)",
			wantArgs: 1,
		},
		{
			name:     "company caller sees own and shared rows",
			tc:       tenant.New(tenantID, "u").WithCompany(companyID),
			prefix:   "p.",
			wantSQL:  "SELECT id FROM products WHERE (p.tenant_id = $1 AND p.company_id IN ($2,$3))",
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Builder().
				Select("id").
				From("products").
				Where(ScopeFilter(tt.tc, tt.prefix)).
				ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestTable_ParseOrderBy(t *testing.T) {
	type row struct {
		ID   id.ID  `db:"id"`
		Name string `db:"name"`
	}
	tbl := NewTable[row](nil, "rows", "row", "name ASC")

	got, err := tbl.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", got)

	got, err = tbl.parseOrderBy("-name")
	require.NoError(t, err)
	assert.Equal(t, "name DESC", got)

	_, err = tbl.parseOrderBy("name; DROP TABLE rows")
	assert.Error(t, err)
}

func TestTable_ByIDIsScoped(t *testing.T) {
	type row struct {
		ID id.ID `db:"id"`
		tenant.Scope
	}
	tbl := NewTable[row](nil, "documents", "document", "id ASC")
	tc := tenant.New(id.New(), "u").WithCompany(id.New())
	docID := id.New()

	sql, args, err := tbl.ByID(tc, docID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, tenant_id, company_id FROM documents WHERE (tenant_id = $1 AND company_id IN ($2,$3)) AND id = $4 FOR UPDATE",
		sql)
	assert.Equal(t, tc.TenantID, args[0])
	assert.Equal(t, docID, args[3])
}

func TestTable_UpdateVersionedMatchesOwner(t *testing.T) {
	type row struct {
		ID id.ID `db:"id"`
		tenant.Scope
		Version int    `db:"version"`
		Status  string `db:"status"`
	}
	tbl := NewTable[row](nil, "documents", "document", "id ASC")
	owner := tenant.Scope{TenantID: id.New(), CompanyID: id.New()}
	v := &row{ID: id.New(), Scope: owner, Version: 3, Status: "posted"}

	sql, args, err := tbl.updateVersionedSQL(v, owner, v.ID, v.Version)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE documents SET status = $1, version = version + 1 WHERE company_id = $2 AND id = $3 AND tenant_id = $4 AND version = $5",
		sql)
	assert.Equal(t, []any{"posted", owner.CompanyID, v.ID, owner.TenantID, 3}, args)
}
