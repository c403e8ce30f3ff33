package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/app"
	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/domain/auth"
	"medcore/internal/domain/pricing"
	"medcore/internal/infrastructure/config"
	v1 "medcore/internal/infrastructure/http/v1"
	"medcore/internal/infrastructure/http/v1/middleware"
	"medcore/internal/infrastructure/storage/postgres"
	"medcore/pkg/logger"
)

type envelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Error   *middleware.ErrorBody `json:"error"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	tc     tenant.Context
}

func newTestAPI(t *testing.T, mutate func(*v1.RouterConfig)) *testAPI {
	t.Helper()
	cfg := &config.Config{
		App:          config.AppConfig{Name: "medcore", Env: "test", Store: config.StoreMemory},
		Notification: config.NotificationConfig{QueueSize: 16, Workers: 1},
		Pricing:      pricing.DefaultPolicyConfig(),
		Settings:     map[string]string{"default_currency": "INR"},
	}

	b, err := app.NewBackend(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	svc, err := app.NewServices(b, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	rc := v1.RouterConfig{
		AppName:  cfg.App.Name,
		Store:    cfg.App.Store,
		Logger:   logger.Nop(),
		Services: svc,
	}
	if mutate != nil {
		mutate(&rc)
	}
	return &testAPI{t: t, router: v1.NewRouter(rc), tc: tenant.New(id.New(), "cashier")}
}

func (a *testAPI) send(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func callerHeaders(tenantID id.ID) map[string]string {
	return map[string]string{
		middleware.TenantHeader: tenantID.String(),
		middleware.UserHeader:   "cashier",
	}
}

// do sends a request as the test tenant.
func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	return a.send(method, path, body, callerHeaders(a.tc.TenantID))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

type idResp struct {
	ID string `json:"id"`
}

// seedProduct creates paracetamol with a strip conversion and returns its id.
func (a *testAPI) seedProduct() string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/products", map[string]any{
		"sku": "PCM-500", "name": "Paracetamol 500mg", "baseUnit": "tablet",
		"defaultCost": "1.50", "listPrice": "2.50",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var p idResp
	decode(a.t, w, &p)

	w = a.do(http.MethodPost, "/api/v1/products/"+p.ID+"/conversions", map[string]any{
		"fromUnit": "strip", "toUnit": "tablet", "factor": "10",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return p.ID
}

// receive posts a purchase receipt of strips into a batch.
func (a *testAPI) receive(productID, strips string) {
	a.t.Helper()
	expiry := time.Now().AddDate(1, 0, 0).UTC()
	w := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"kind":     "purchase_receipt",
		"partyRef": "supplier:acme",
		"lines": []map[string]any{{
			"productId": productID, "quantity": strips, "unit": "strip", "unitPrice": "15.00",
			"batchNumber": "B-1", "expiryDate": expiry, "salePrice": "25.00", "mrp": "30.00",
		}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var doc idResp
	decode(a.t, w, &doc)

	w = a.do(http.MethodPost, "/api/v1/documents/"+doc.ID+"/post", nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
}

func (a *testAPI) draftSale(productID, strips string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"kind":     "sales_invoice",
		"partyRef": "patient:42",
		"lines": []map[string]any{{
			"productId": productID, "quantity": strips, "unit": "strip", "unitPrice": "25.00",
		}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var doc idResp
	decode(a.t, w, &doc)
	return doc.ID
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.send(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.send(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_HealthReadyReportsFailingCheck(t *testing.T) {
	api := newTestAPI(t, func(rc *v1.RouterConfig) {
		rc.Checks = map[string]func(ctx context.Context) error{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})

	w := api.send(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Contains(t, body.Checks["redis"], "connection refused")
}

func TestRouter_RequiresTenant(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.send(http.MethodGet, "/api/v1/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperror.CodeUnauthorized, env.Error.Code)

	w = api.send(http.MethodGet, "/api/v1/products", nil, map[string]string{middleware.TenantHeader: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ConversionAndPricing(t *testing.T) {
	api := newTestAPI(t, nil)
	productID := api.seedProduct()

	w := api.do(http.MethodPost, "/api/v1/products/"+productID+"/convert", map[string]any{
		"fromUnit": "strip", "toUnit": "tablet", "quantity": "3",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var conv struct {
		Result string `json:"result"`
		Factor string `json:"factor"`
	}
	decode(t, w, &conv)
	assert.Equal(t, "30", conv.Result)
	assert.Equal(t, "10", conv.Factor)

	w = api.do(http.MethodPost, "/api/v1/products/"+productID+"/convert", map[string]any{
		"fromUnit": "tablet", "toUnit": "strip", "quantity": "3",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeConversionNotFound, decode(t, w, nil).Error.Code)

	w = api.do(http.MethodPost, "/api/v1/pricing/unit", map[string]any{
		"packCost": "15", "packSalePrice": "25", "mrp": "30", "productId": productID, "packUnit": "strip",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var price struct {
		UnitCost      string `json:"unitCost"`
		UnitSalePrice string `json:"unitSalePrice"`
		IsValid       bool   `json:"isValid"`
	}
	decode(t, w, &price)
	assert.Equal(t, "1.5", price.UnitCost)
	assert.Equal(t, "2.5", price.UnitSalePrice)
	assert.True(t, price.IsValid)

	w = api.do(http.MethodPost, "/api/v1/pricing/unit", map[string]any{"packCost": "15", "packSalePrice": "25"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_DocumentLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	productID := api.seedProduct()
	api.receive(productID, "10")

	w := api.do(http.MethodGet, "/api/v1/stock/products/"+productID+"/available", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail struct {
		Available string `json:"available"`
	}
	decode(t, w, &avail)
	assert.Equal(t, "100", avail.Available)

	saleID := api.draftSale(productID, "2")

	w = api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/lines", map[string]any{
		"description": "OPD consultation", "quantity": "1", "unitPrice": "300",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var draft struct {
		Total string `json:"total"`
		Lines []struct {
			ID string `json:"id"`
		} `json:"lines"`
	}
	decode(t, w, &draft)
	assert.Equal(t, "350", draft.Total)
	require.Len(t, draft.Lines, 2)

	w = api.do(http.MethodDelete, "/api/v1/documents/"+saleID+"/lines/"+draft.Lines[1].ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var posted struct {
		Document struct {
			Status string `json:"status"`
			Total  string `json:"total"`
		} `json:"document"`
	}
	decode(t, w, &posted)
	assert.Equal(t, "posted", posted.Document.Status)
	assert.Equal(t, "50", posted.Document.Total)

	w = api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/post", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeDocumentPosted, decode(t, w, nil).Error.Code)

	w = api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/void", map[string]any{"reason": "patient left"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInvalidTransition, decode(t, w, nil).Error.Code)

	w = api.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"direction": "inbound", "partyRef": "patient:42", "amount": "60", "method": "cash", "currency": "INR",
		"applications": []map[string]any{{"documentId": saleID, "amount": "60"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pay struct {
		Applications []struct {
			Overpaid         bool   `json:"overpaid"`
			OutstandingAfter string `json:"outstandingAfter"`
		} `json:"applications"`
	}
	decode(t, w, &pay)
	require.Len(t, pay.Applications, 1)
	assert.True(t, pay.Applications[0].Overpaid)
	assert.Equal(t, "-10", pay.Applications[0].OutstandingAfter)

	w = api.do(http.MethodGet, "/api/v1/ledger/documents/"+saleID+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec struct {
		Balanced bool `json:"balanced"`
	}
	decode(t, w, &rec)
	assert.True(t, rec.Balanced)

	w = api.do(http.MethodGet, "/api/v1/documents?kind=sales_invoice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		TotalCount int64 `json:"totalCount"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.TotalCount)
}

func TestRouter_Reports(t *testing.T) {
	api := newTestAPI(t, nil)
	productID := api.seedProduct()
	api.receive(productID, "10")

	w := api.do(http.MethodGet, "/api/v1/reports/stock-valuation?expiringWithinDays=30", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var valuation struct {
		Items []struct {
			ProductID    string `json:"productId"`
			Available    string `json:"available"`
			ExpiringSoon string `json:"expiringSoon"`
			CostValue    string `json:"costValue"`
			SaleValue    string `json:"saleValue"`
		} `json:"items"`
		TotalCostValue string `json:"totalCostValue"`
	}
	decode(t, w, &valuation)
	require.Len(t, valuation.Items, 1)
	assert.Equal(t, productID, valuation.Items[0].ProductID)
	assert.Equal(t, "100", valuation.Items[0].Available)
	assert.Equal(t, "0", valuation.Items[0].ExpiringSoon)
	assert.Equal(t, "150", valuation.Items[0].CostValue)
	assert.Equal(t, "250", valuation.Items[0].SaleValue)
	assert.Equal(t, "150", valuation.TotalCostValue)

	w = api.do(http.MethodGet, "/api/v1/reports/stock-valuation?productId=not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	saleID := api.draftSale(productID, "2")
	w = api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/reports/receivables", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var receivables struct {
		Items []struct {
			PartyRef    string `json:"partyRef"`
			Outstanding string `json:"outstanding"`
		} `json:"items"`
		TotalOutstanding string `json:"totalOutstanding"`
	}
	decode(t, w, &receivables)
	require.Len(t, receivables.Items, 1)
	assert.Equal(t, "patient:42", receivables.Items[0].PartyRef)
	assert.Equal(t, "50", receivables.TotalOutstanding)
}

func TestRouter_ShortStockKeepsDraft(t *testing.T) {
	api := newTestAPI(t, nil)
	productID := api.seedProduct()
	api.receive(productID, "1")
	saleID := api.draftSale(productID, "2")

	w := api.do(http.MethodPost, "/api/v1/documents/"+saleID+"/post", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, decode(t, w, nil).Error.Code)

	w = api.do(http.MethodGet, "/api/v1/documents/"+saleID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Status string `json:"status"`
	}
	decode(t, w, &doc)
	assert.Equal(t, "draft", doc.Status)
}

func TestRouter_CrossTenantIsNotFound(t *testing.T) {
	api := newTestAPI(t, nil)
	productID := api.seedProduct()

	w := api.send(http.MethodGet, "/api/v1/products/"+productID, nil, callerHeaders(id.New()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w, nil).Error.Code)
}

func TestRouter_BearerTokens(t *testing.T) {
	jwt := auth.NewJWTService(auth.DefaultJWTConfig("0123456789abcdef0123456789abcdef"))
	api := newTestAPI(t, func(rc *v1.RouterConfig) { rc.Tokens = jwt })

	w := api.do(http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "headers are ignored when tokens are required")

	token, _, err := jwt.IssueToken(api.tc)
	require.NoError(t, err)
	w = api.send(http.MethodGet, "/api/v1/products", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_RegistryRejectsSuspendedTenant(t *testing.T) {
	reg := tenant.NewStaticRegistry()
	active := &tenant.Tenant{ID: id.New(), Slug: "city", Status: tenant.StatusActive}
	suspended := &tenant.Tenant{ID: id.New(), Slug: "old", Status: tenant.StatusSuspended}
	reg.Add(active)
	reg.Add(suspended)
	api := newTestAPI(t, func(rc *v1.RouterConfig) { rc.Registry = reg })

	w := api.send(http.MethodGet, "/api/v1/products", nil, callerHeaders(active.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.send(http.MethodGet, "/api/v1/products", nil, callerHeaders(suspended.ID))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.send(http.MethodGet, "/api/v1/products", nil, callerHeaders(id.New()))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// memoryIdempotency keeps keys in a map with the same replay contract as
// the postgres store.
type memoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]*postgres.IdempotencyReplay
}

func (m *memoryIdempotency) AcquireKey(_ context.Context, tenantID id.ID, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tenantID.String() + "/" + key
	if r, ok := m.entries[k]; ok {
		if r == nil {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return r, nil
	}
	m.entries[k] = nil
	return nil, nil
}

func (m *memoryIdempotency) CompleteKey(_ context.Context, tenantID id.ID, key string, status int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tenantID.String()+"/"+key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: body}
	return nil
}

func (m *memoryIdempotency) FailKey(_ context.Context, tenantID id.ID, key string, status int, contentType string, response any) error {
	body, _ := json.Marshal(response)
	return m.CompleteKey(context.Background(), tenantID, key, status, contentType, body)
}

func TestRouter_IdempotentCreateReplays(t *testing.T) {
	store := &memoryIdempotency{entries: map[string]*postgres.IdempotencyReplay{}}
	api := newTestAPI(t, func(rc *v1.RouterConfig) { rc.Idempotency = store })

	headers := callerHeaders(api.tc.TenantID)
	headers[middleware.HeaderIdempotencyKey] = "create-pcm"
	body := map[string]any{"sku": "PCM-500", "name": "Paracetamol 500mg", "baseUnit": "tablet"}

	first := api.send(http.MethodPost, "/api/v1/products", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.send(http.MethodPost, "/api/v1/products", body, headers)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := api.do(http.MethodGet, "/api/v1/products", nil)
	var list struct {
		TotalCount int64 `json:"totalCount"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.TotalCount, "the replay must not create a second product")
}
