package invoice_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/posting"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/domain/settings"
	"medcore/internal/infrastructure/storage/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []notification.Event
	fail   error
}

func (r *recorder) Dispatch(_ context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	ctx    context.Context
	tc     tenant.Context
	docs   *invoice.Service
	stock  *batch.Service
	poster *ledger.Poster
	events *recorder

	paracetamol *product.Product
	consult     *product.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	tc := tenant.New(id.New(), "cashier")

	products := product.NewService(repos.Products)
	units := uom.NewEngine(repos.Conversions, products)
	stock := batch.NewService(repos.Batches, store, products, nil)
	poster := ledger.NewPoster(repos.Ledger)
	events := &recorder{}
	engine := posting.NewEngine(store, stock, poster).WithDispatcher(events)

	docs := invoice.NewService(invoice.Deps{
		Repo:      repos.Documents,
		TxManager: store,
		Products:  products,
		Units:     units,
		Numerator: repos.Numerator,
		Settings:  settings.NewResolver(repos.Settings, map[settings.Key]string{settings.KeyDefaultCurrency: "inr"}),
		Engine:    engine,
	})

	pcm, err := products.Create(ctx, tc, product.CreateInput{
		SKU: "PCM-500", Name: "Paracetamol 500mg", BaseUnit: "tablet",
		DefaultCost: types.MustMoney("1.50"), ListPrice: types.MustMoney("2.50"),
	})
	require.NoError(t, err)
	_, err = units.Declare(ctx, tc, pcm.ID, "strip", "tablet", types.MustQuantity("10"))
	require.NoError(t, err)

	consult, err := products.Create(ctx, tc, product.CreateInput{
		SKU: "OPD", Name: "OPD consultation", BaseUnit: "visit", ListPrice: types.MustMoney("300"), Service: true,
	})
	require.NoError(t, err)

	return &fixture{
		ctx: ctx, tc: tc, docs: docs, stock: stock, poster: poster, events: events,
		paracetamol: pcm, consult: consult,
	}
}

// receive posts a purchase receipt of strips of paracetamol into batch number.
func (f *fixture) receive(t *testing.T, number, strips string) *invoice.Invoice {
	t.Helper()
	expiry := time.Now().AddDate(1, 0, 0)
	inv, err := f.docs.Create(f.ctx, f.tc, invoice.CreateInput{
		Kind:     invoice.KindPurchaseReceipt,
		PartyRef: "supplier:acme",
		Lines: []invoice.LineInput{{
			ProductID:   &f.paracetamol.ID,
			Quantity:    types.MustQuantity(strips),
			Unit:        "strip",
			UnitPrice:   types.MustMoney("15.00"),
			BatchNumber: number,
			ExpiryDate:  &expiry,
			SalePrice:   decimal.NewNullDecimal(types.MustMoney("25.00")),
			MRP:         decimal.NewNullDecimal(types.MustMoney("30.00")),
		}},
	})
	require.NoError(t, err)
	res, err := f.docs.Post(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	return res.Invoice
}

// sell drafts a sales invoice of strips of paracetamol plus a consultation.
func (f *fixture) sell(t *testing.T, strips string) *invoice.Invoice {
	t.Helper()
	inv, err := f.docs.Create(f.ctx, f.tc, invoice.CreateInput{
		Kind:     invoice.KindSalesInvoice,
		PartyRef: "patient:42",
		Lines: []invoice.LineInput{
			{
				ProductID: &f.paracetamol.ID,
				Quantity:  types.MustQuantity(strips),
				Unit:      "strip",
				UnitPrice: types.MustMoney("25.00"),
				Discount:  types.MustMoney("5.00"),
				Tax:       types.MustMoney("3.50"),
			},
			{ProductID: &f.consult.ID, Quantity: types.MustQuantity("1")},
		},
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) available(t *testing.T) string {
	t.Helper()
	q, err := f.stock.Available(f.ctx, f.tc, f.paracetamol.ID)
	require.NoError(t, err)
	return q.String()
}

func (f *fixture) ledgerSum(t *testing.T, docIDs ...id.ID) types.Money {
	t.Helper()
	total := types.Zero()
	for _, docID := range docIDs {
		history, err := f.poster.History(f.ctx, f.tc, docID)
		require.NoError(t, err)
		for _, r := range history {
			total = total.Add(r.AmountDelta)
		}
	}
	return total
}
