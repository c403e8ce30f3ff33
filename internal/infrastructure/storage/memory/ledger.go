package memory

import (
	"context"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/settings"
)

// LedgerRepo implements ledger.Repository as an append-only slice.
type LedgerRepo struct {
	s *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) Append(ctx context.Context, records ...*ledger.Record) error {
	return r.s.do(ctx, func(st *state) error {
		for _, rec := range records {
			st.ledger = append(st.ledger, *rec)
		}
		return nil
	})
}

func (r *LedgerRepo) ListByDocument(ctx context.Context, tc tenant.Context, documentID id.ID) ([]*ledger.Record, error) {
	var out []*ledger.Record
	_ = r.s.do(ctx, func(st *state) error {
		for _, rec := range st.ledger {
			if rec.DocumentID == documentID && tc.Owns(rec.Scope) {
				out = append(out, &rec)
			}
		}
		return nil
	})
	return out, nil
}

// SettingsRepo implements settings.Repository.
type SettingsRepo struct {
	s *Store
}

var _ settings.Repository = (*SettingsRepo)(nil)

func (r *SettingsRepo) Get(ctx context.Context, scope tenant.Scope, key settings.Key) (*settings.Setting, error) {
	var out *settings.Setting
	err := r.s.do(ctx, func(st *state) error {
		v, ok := st.settings[settingKey{scope.TenantID, scope.CompanyID, key}]
		if !ok {
			return apperror.NewNotFound("setting", key)
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *SettingsRepo) Put(ctx context.Context, s *settings.Setting) error {
	return r.s.do(ctx, func(st *state) error {
		st.settings[settingKey{s.TenantID, s.CompanyID, s.Key}] = *s
		return nil
	})
}
