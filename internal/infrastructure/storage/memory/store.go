// Package memory is an in-process implementation of every repository.
//
// A single mutex serializes transactions. Each transaction (and each
// nested one) works on the live state after taking a copy; an error
// restores the copy, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tx"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/domain/settings"
)

type settingKey struct {
	tenantID  id.ID
	companyID id.ID
	key       settings.Key
}

type state struct {
	products     map[id.ID]product.Product
	conversions  map[id.ID]uom.Conversion
	batches      map[id.ID]batch.Batch
	movements    []entity.StockMovement
	reversals    map[string]struct{}
	invoices     map[id.ID]invoice.Invoice
	lines        map[id.ID][]invoice.Line
	allocations  map[id.ID][]invoice.LineAllocation
	payments     map[id.ID]payment.Payment
	applications []payment.Application
	ledger       []ledger.Record
	settings     map[settingKey]settings.Setting
	sequences    map[string]int64
}

func newState() *state {
	return &state{
		products:    make(map[id.ID]product.Product),
		conversions: make(map[id.ID]uom.Conversion),
		batches:     make(map[id.ID]batch.Batch),
		reversals:   make(map[string]struct{}),
		invoices:    make(map[id.ID]invoice.Invoice),
		lines:       make(map[id.ID][]invoice.Line),
		allocations: make(map[id.ID][]invoice.LineAllocation),
		payments:    make(map[id.ID]payment.Payment),
		settings:    make(map[settingKey]settings.Setting),
		sequences:   make(map[string]int64),
	}
}

// clone copies every collection. Stored values are never mutated in place,
// so copying the containers is enough.
func (s *state) clone() *state {
	c := &state{
		products:     maps.Clone(s.products),
		conversions:  maps.Clone(s.conversions),
		batches:      maps.Clone(s.batches),
		movements:    slices.Clone(s.movements),
		reversals:    maps.Clone(s.reversals),
		invoices:     maps.Clone(s.invoices),
		lines:        make(map[id.ID][]invoice.Line, len(s.lines)),
		allocations:  make(map[id.ID][]invoice.LineAllocation, len(s.allocations)),
		payments:     make(map[id.ID]payment.Payment, len(s.payments)),
		applications: slices.Clone(s.applications),
		ledger:       slices.Clone(s.ledger),
		settings:     maps.Clone(s.settings),
		sequences:    maps.Clone(s.sequences),
	}
	for k, v := range s.lines {
		c.lines[k] = slices.Clone(v)
	}
	for k, v := range s.allocations {
		c.allocations[k] = slices.Clone(v)
	}
	for k, v := range s.payments {
		v.Applications = slices.Clone(v.Applications)
		c.payments[k] = v
	}
	return c
}

// Store holds the state shared by all memory repositories.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

var _ tx.ReadOnlyManager = (*Store)(nil)

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		snap := s.st.clone()
		if err := fn(ctx); err != nil {
			s.st = snap
			return err
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// ReadOnly runs fn in a transaction; writes are not prevented.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// do runs fn against the state, taking the lock unless ctx is inside a transaction.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Repositories bundles every memory repository over one store.
type Repositories struct {
	Products    *ProductRepo
	Conversions *ConversionRepo
	Batches     *BatchRepo
	Documents   *DocumentRepo
	Payments    *PaymentRepo
	Ledger      *LedgerRepo
	Settings    *SettingsRepo
	Numerator   *Numerator
}

// Repositories returns repositories sharing s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Products:    &ProductRepo{s: s},
		Conversions: &ConversionRepo{s: s},
		Batches:     &BatchRepo{s: s},
		Documents:   &DocumentRepo{s: s},
		Payments:    &PaymentRepo{s: s},
		Ledger:      &LedgerRepo{s: s},
		Settings:    &SettingsRepo{s: s},
		Numerator:   &Numerator{s: s},
	}
}
