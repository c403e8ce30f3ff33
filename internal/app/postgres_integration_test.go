//go:build integration

package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"medcore/internal/core/apperror"
	"medcore/internal/core/entity"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/domain/notification"
	"medcore/internal/infrastructure/config"
	"medcore/internal/infrastructure/storage/postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("medcore_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		os.Exit(1)
	}

	testDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err == nil {
		err = Migrate(ctx, testDSN)
	}
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "prepare database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

type pgFixture struct {
	ctx     context.Context
	tc      tenant.Context
	backend *Backend
	svc     *Services
	pcm     *product.Product
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()

	cfg := testConfig()
	cfg.App.Store = config.StorePostgres
	cfg.Database.URL = testDSN
	cfg.Ledger.CompressThreshold = 256
	cfg.Idempotency.TTL = time.Hour

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(testDSN))
	require.NoError(t, err)
	b, err := NewPostgresBackendFromPool(pool, cfg)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	svc, err := NewServices(b, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	tc := tenant.New(id.New(), "pharmacist").WithCompany(id.New())
	pcm, err := svc.Products.Create(ctx, tc, product.CreateInput{
		SKU: "PCM-500", Name: "Paracetamol 500mg", BaseUnit: "tablet",
		DefaultCost: types.MustMoney("1.50"), ListPrice: types.MustMoney("2.50"),
	})
	require.NoError(t, err)
	_, err = svc.Units.Declare(ctx, tc, pcm.ID, "strip", "tablet", types.MustQuantity("10"))
	require.NoError(t, err)

	return &pgFixture{ctx: ctx, tc: tc, backend: b, svc: svc, pcm: pcm}
}

func (f *pgFixture) receive(t *testing.T, number, strips string) *invoice.Invoice {
	t.Helper()
	expiry := time.Now().AddDate(1, 0, 0)
	inv, err := f.svc.Documents.Create(f.ctx, f.tc, invoice.CreateInput{
		Kind:     invoice.KindPurchaseReceipt,
		PartyRef: "supplier:acme",
		Lines: []invoice.LineInput{{
			ProductID:   &f.pcm.ID,
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
	res, err := f.svc.Documents.Post(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	return res.Invoice
}

func (f *pgFixture) sell(t *testing.T, strips string) *invoice.Invoice {
	t.Helper()
	inv, err := f.svc.Documents.Create(f.ctx, f.tc, invoice.CreateInput{
		Kind:     invoice.KindSalesInvoice,
		PartyRef: "patient:42",
		Lines: []invoice.LineInput{{
			ProductID: &f.pcm.ID,
			Quantity:  types.MustQuantity(strips),
			Unit:      "strip",
			UnitPrice: types.MustMoney("25.00"),
		}},
	})
	require.NoError(t, err)
	return inv
}

func (f *pgFixture) available(t *testing.T) string {
	t.Helper()
	q, err := f.svc.Stock.Available(f.ctx, f.tc, f.pcm.ID)
	require.NoError(t, err)
	return q.String()
}

func TestPostgres_CatalogConstraints(t *testing.T) {
	f := newPGFixture(t)

	_, err := f.svc.Products.Create(f.ctx, f.tc, product.CreateInput{SKU: "pcm-500", Name: "dup", BaseUnit: "tablet"})
	assert.True(t, apperror.Is(err, apperror.CodeConflict), "got %v", err)

	_, err = f.svc.Units.Declare(f.ctx, f.tc, f.pcm.ID, "strip", "tablet", types.MustQuantity("12"))
	assert.True(t, apperror.Is(err, apperror.CodeConflict), "got %v", err)

	_, err = f.svc.Units.Convert(f.ctx, f.tc, f.pcm.ID, "tablet", "strip", types.MustQuantity("10"))
	assert.True(t, apperror.Is(err, apperror.CodeConversionNotFound), "inverse is never inferred")

	byKey, err := f.svc.Products.GetBySKU(f.ctx, f.tc, "PCM-500")
	require.NoError(t, err)
	assert.Equal(t, f.pcm.ID, byKey.ID)

	intruder := tenant.New(id.New(), "intruder")
	_, err = f.svc.Products.Get(f.ctx, intruder, f.pcm.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.False(t, apperror.IsCrossTenant(err), "the foreign row is never read")
}

func TestPostgres_ForeignDocumentIsNeverLocked(t *testing.T) {
	f := newPGFixture(t)
	f.receive(t, "B-1", "10")
	inv := f.sell(t, "2")
	intruder := tenant.New(id.New(), "intruder")

	err := f.backend.TxManager.RunInTransaction(f.ctx, func(ctx context.Context) error {
		_, err := f.backend.Documents.GetForUpdate(ctx, intruder, inv.ID)
		require.True(t, apperror.IsNotFound(err), "got %v", err)

		// The owner posts on another connection while the intruder's
		// transaction is still open.
		postCtx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
		defer cancel()
		_, err = f.svc.Documents.Post(postCtx, f.tc, inv.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "80", f.available(t))

	var stamped int
	err = f.backend.Pool.Pool.QueryRow(f.ctx,
		`SELECT COUNT(*) FROM document_lines WHERE document_id = $1 AND tenant_id = $2 AND company_id = $3`,
		inv.ID, f.tc.TenantID, f.tc.CompanyID).Scan(&stamped)
	require.NoError(t, err)
	assert.Equal(t, 1, stamped)
}

func TestPostgres_DocumentLifecycle(t *testing.T) {
	f := newPGFixture(t)
	f.receive(t, "B-1", "10")
	assert.Equal(t, "100", f.available(t))

	inv := f.sell(t, "3")
	res, err := f.svc.Documents.Post(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPosted, res.Invoice.Status)
	assert.Equal(t, "70", f.available(t))

	_, err = f.svc.Documents.Post(f.ctx, f.tc, inv.ID)
	assert.True(t, apperror.Is(err, apperror.CodeDocumentPosted))

	stored, err := f.svc.Documents.Get(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	require.Len(t, stored.Lines[0].Allocations, 1)

	// Two partial returns negate the line exactly.
	line := stored.Lines[0]
	for _, qty := range []string{"1", "2"} {
		ret, err := f.svc.Documents.CreateReturn(f.ctx, f.tc, inv.ID, invoice.ReturnInput{
			Lines: []invoice.ReturnLineInput{{OriginalLineID: line.ID, Quantity: types.MustQuantity(qty)}},
		})
		require.NoError(t, err)
		_, err = f.svc.Documents.Post(f.ctx, f.tc, ret.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, "100", f.available(t))

	rec, err := f.svc.Poster.Reconcile(f.ctx, f.tc, inv.ID, stored.EffectiveTotal())
	require.NoError(t, err)
	assert.True(t, rec.Balanced)

	list, err := f.svc.Documents.List(f.ctx, f.tc, invoice.ListFilter{Kind: invoice.KindSalesReturn})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.TotalCount)
}

func TestPostgres_PaymentOverApplication(t *testing.T) {
	f := newPGFixture(t)
	f.receive(t, "B-1", "10")
	inv := f.sell(t, "2")
	_, err := f.svc.Documents.Post(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)

	p, err := f.svc.Payments.Record(f.ctx, f.tc, payment.RecordInput{
		Direction: payment.DirectionInbound,
		PartyRef:  "patient:42",
		Amount:    types.MustMoney("60.00"),
		Method:    "cash",
		Applications: []payment.ApplicationInput{
			{DocumentID: inv.ID, Amount: types.MustMoney("60.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, p.Applications, 1)
	assert.True(t, p.Applications[0].Overpaid)

	paid, err := f.svc.Documents.Get(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, paid.Status)
	assert.True(t, paid.Total.Equal(types.MustMoney("50.00")))
	assert.True(t, paid.Outstanding.Equal(types.MustMoney("-10.00")))

	apps, err := f.svc.Payments.ForDocument(f.ctx, f.tc, inv.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestPostgres_ConcurrentAllocationNeverOversells(t *testing.T) {
	f := newPGFixture(t)
	f.receive(t, "B-1", "5")

	const buyers = 12
	invoices := make([]*invoice.Invoice, buyers)
	for i := range invoices {
		invoices[i] = f.sell(t, "1")
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for _, inv := range invoices {
		wg.Add(1)
		go func(docID id.ID) {
			defer wg.Done()
			_, err := f.svc.Documents.Post(f.ctx, f.tc, docID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.Is(err, apperror.CodeInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(inv.ID)
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(buyers-5), short.Load())
	assert.Equal(t, "0", f.available(t))
}

func TestPostgres_OutboxRelay(t *testing.T) {
	f := newPGFixture(t)
	f.receive(t, "B-1", "1")

	var delivered []notification.Event
	relay := postgres.NewOutboxRelay(f.backend.Pool, 100, notification.SenderFunc(func(_ context.Context, ev notification.Event) error {
		if ev.TenantID == f.tc.TenantID {
			delivered = append(delivered, ev)
		}
		return nil
	}))

	_, err := relay.ProcessBatch(f.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, delivered)
	assert.Equal(t, notification.EventDocumentPosted, delivered[0].Type)
}

func TestPostgres_LedgerIsAppendOnly(t *testing.T) {
	f := newPGFixture(t)
	receipt := f.receive(t, "B-1", "1")

	_, err := f.backend.Pool.Exec(f.ctx, `UPDATE ledger_records SET amount_delta = 0 WHERE document_id = $1`, receipt.ID)
	assert.Error(t, err)

	history, err := f.svc.Poster.History(f.ctx, f.tc, receipt.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].NewData, "compressed snapshots decode transparently")
}

func TestPostgres_Idempotency(t *testing.T) {
	f := newPGFixture(t)
	store := f.backend.Idempotency
	key := id.New().String()

	replay, err := store.AcquireKey(f.ctx, f.tc.TenantID, key, "u1", "POST /documents/x/post", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.AcquireKey(f.ctx, f.tc.TenantID, key, "u1", "POST /documents/x/post", "h1")
	assert.True(t, apperror.Is(err, apperror.CodeIdempotencyConflict))

	require.NoError(t, store.CompleteKey(f.ctx, f.tc.TenantID, key, 200, "application/json", []byte(`{"success":true}`)))

	replay, err = store.AcquireKey(f.ctx, f.tc.TenantID, key, "u1", "POST /documents/x/post", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 200, replay.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(replay.Body))

	_, err = store.AcquireKey(f.ctx, f.tc.TenantID, key, "u1", "POST /payments", "h2")
	assert.True(t, apperror.Is(err, apperror.CodeIdempotencyMismatch))

	replay, err = store.AcquireKey(f.ctx, id.New(), key, "u1", "POST /documents/x/post", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay, "keys are scoped per tenant")
}
