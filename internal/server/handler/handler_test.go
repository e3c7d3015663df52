package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/trading"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTrading struct {
	submitted  []domain.OrderRequest
	submitErr  error
	cancelled  []string
	cancelErr  error
	open       []domain.OrderRecord
	history    []domain.OrderJournalEntry
	historyOpt domain.ListOpts
	audit      []domain.AuditEntry
	view       trading.PositionView
	hideDust   bool
	sellErr    error
	pending    map[string]bool
	state      domain.SessionState
	createErr  error
}

func (f *fakeTrading) SubmitOrder(_ context.Context, req domain.OrderRequest) (domain.OrderRecord, error) {
	if f.submitErr != nil {
		return domain.OrderRecord{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return domain.OrderRecord{ID: "0xabc", TokenID: req.TokenID, Side: req.Side, Size: req.Size, Status: domain.OrderStatusLive}, nil
}

func (f *fakeTrading) CancelOrder(_ context.Context, id string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeTrading) OpenOrders(context.Context) ([]domain.OrderRecord, error) {
	return f.open, nil
}

func (f *fakeTrading) OrderHistory(_ context.Context, opts domain.ListOpts) ([]domain.OrderJournalEntry, error) {
	f.historyOpt = opts
	return f.history, nil
}

func (f *fakeTrading) Positions(_ context.Context, hideDust bool) (trading.PositionView, error) {
	f.hideDust = hideDust
	return f.view, nil
}

func (f *fakeTrading) MarketSell(_ context.Context, asset string) (domain.OrderRecord, error) {
	if f.sellErr != nil {
		return domain.OrderRecord{}, f.sellErr
	}
	return domain.OrderRecord{ID: "0xsell", TokenID: asset, Side: domain.OrderSideSell, Type: domain.OrderTypeFOK}, nil
}

func (f *fakeTrading) IsAssetPendingReconciliation(asset string) bool { return f.pending[asset] }
func (f *fakeTrading) CancelReconciliation(asset string)              { delete(f.pending, asset) }

func (f *fakeTrading) SessionState() domain.SessionState { return f.state }
func (f *fakeTrading) SessionError() error {
	if f.state == domain.SessionError {
		return f.createErr
	}
	return nil
}

func (f *fakeTrading) Session() (domain.Session, bool) {
	if f.state != domain.SessionActive {
		return domain.Session{}, false
	}
	return domain.Session{
		EOA:           common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		Funder:        common.HexToAddress("0x365f0CA36Ae1f641E02fE3B7743673da42A13A70"),
		Credentials:   domain.Credentials{Key: "k", Secret: "s3cret", Passphrase: "p"},
		SignatureType: domain.SignatureTypePolyProxy,
		CreatedAt:     time.Unix(1700000000, 0).UTC(),
	}, true
}

func (f *fakeTrading) CreateSession(context.Context) (domain.Session, error) {
	if f.createErr != nil {
		f.state = domain.SessionError
		return domain.Session{}, f.createErr
	}
	f.state = domain.SessionActive
	s, _ := f.Session()
	return s, nil
}

func (f *fakeTrading) ClearSession() { f.state = domain.SessionDisconnected }

func (f *fakeTrading) WalletInfo(context.Context) domain.WalletInfo {
	return domain.WalletInfo{EOA: "0xf39F", FundingAddress: "0x365f", USDCBalance: 12.5}
}

func (f *fakeTrading) AuditLog(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.historyOpt = opts
	return f.audit, nil
}

func (f *fakeTrading) DeriveFundingAddress(eoa string) (common.Address, error) {
	if !common.IsHexAddress(eoa) {
		return common.Address{}, fmt.Errorf("derive: %w", domain.ErrInvalidAddress)
	}
	return common.HexToAddress("0x365f0CA36Ae1f641E02fE3B7743673da42A13A70"), nil
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidOrder:          http.StatusBadRequest,
		domain.ErrInvalidAddress:        http.StatusBadRequest,
		domain.ErrUnauthorized:          http.StatusUnauthorized,
		domain.ErrNotFound:              http.StatusNotFound,
		domain.ErrSession:               http.StatusConflict,
		domain.ErrPendingReconciliation: http.StatusConflict,
		domain.ErrLockHeld:              http.StatusConflict,
		domain.ErrRateLimited:           http.StatusTooManyRequests,
		domain.ErrSubmission:            http.StatusBadGateway,
		errors.New("boom"):              http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}

	// Exchange failures carry their cause; the class decides the status.
	nested := []struct {
		class, cause error
		want         int
	}{
		{domain.ErrSession, domain.ErrUnauthorized, http.StatusConflict},
		{domain.ErrSubmission, domain.ErrNotFound, http.StatusBadGateway},
		{domain.ErrSubmission, domain.ErrRateLimited, http.StatusBadGateway},
		{domain.ErrSubmission, domain.ErrUnauthorized, http.StatusBadGateway},
		{domain.ErrPendingReconciliation, domain.ErrNotFound, http.StatusConflict},
	}
	for _, tc := range nested {
		err := fmt.Errorf("op: %w: %w", tc.class, tc.cause)
		assert.Equal(t, tc.want, statusFor(err), err.Error())
	}
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=9000&offset=20", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=x&since=yesterday", nil)
	opts = parseListOpts(r)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	assert.Nil(t, opts.Since)

	r = httptest.NewRequest(http.MethodGet, "/?since=2026-01-02T03:04:05Z", nil)
	opts = parseListOpts(r)
	require.NotNil(t, opts.Since)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), *opts.Since)
	assert.Nil(t, opts.Until)
}

func TestPlaceOrder(t *testing.T) {
	f := &fakeTrading{}
	h := NewOrderHandler(f, testLogger())

	rec := serve(t, "POST /api/orders", h.Place, http.MethodPost, "/api/orders",
		`{"token_id":"123","side":"buy","size":10,"price":0.45}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, f.submitted, 1)
	got := f.submitted[0]
	assert.Equal(t, domain.OrderSideBuy, got.Side)
	assert.Equal(t, 0.45, got.LimitPrice)
	assert.False(t, got.IsMarketOrder)

	out := decode[domain.OrderRecord](t, rec)
	assert.Equal(t, "0xabc", out.ID)
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	f := &fakeTrading{}
	h := NewOrderHandler(f, testLogger())

	rec := serve(t, "POST /api/orders", h.Place, http.MethodPost, "/api/orders", `{"side":"hold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, "POST /api/orders", h.Place, http.MethodPost, "/api/orders", `{"side":"buy","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.submitted)
}

func TestPlaceOrderMapsDomainErrors(t *testing.T) {
	f := &fakeTrading{submitErr: fmt.Errorf("order: %w", domain.ErrSession)}
	h := NewOrderHandler(f, testLogger())

	rec := serve(t, "POST /api/orders", h.Place, http.MethodPost, "/api/orders", `{"token_id":"1","side":"sell","size":1,"market":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["error"], "trading session unavailable")
}

func TestCancelOrder(t *testing.T) {
	f := &fakeTrading{}
	h := NewOrderHandler(f, testLogger())

	rec := serve(t, "DELETE /api/orders/{id}", h.Cancel, http.MethodDelete, "/api/orders/0xdead", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"0xdead"}, f.cancelled)

	f.cancelErr = fmt.Errorf("cancel: %w", domain.ErrNotFound)
	rec = serve(t, "DELETE /api/orders/{id}", h.Cancel, http.MethodDelete, "/api/orders/0xbeef", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOpenAndHistory(t *testing.T) {
	f := &fakeTrading{}
	h := NewOrderHandler(f, testLogger())

	rec := serve(t, "GET /api/orders", h.ListOpen, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[],"count":0}`, rec.Body.String())

	f.history = []domain.OrderJournalEntry{{OrderID: "0x1", Side: domain.OrderSideBuy}}
	rec = serve(t, "GET /api/orders/history", h.History, http.MethodGet, "/api/orders/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.historyOpt.Limit)
	out := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, out["count"])
}

func TestPositions(t *testing.T) {
	f := &fakeTrading{view: trading.PositionView{
		Positions: []domain.Position{{Asset: "a1", Size: 5}},
		Hidden:    2,
	}}
	h := NewPositionHandler(f, testLogger())

	rec := serve(t, "GET /api/positions", h.List, http.MethodGet, "/api/positions?hide_dust=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.hideDust)

	rec = serve(t, "GET /api/positions", h.List, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.hideDust, "dust is hidden by default")

	view := decode[trading.PositionView](t, rec)
	assert.Len(t, view.Positions, 1)
	assert.Equal(t, 2, view.Hidden)
	assert.NotNil(t, view.Pending)
}

func TestSellAndPending(t *testing.T) {
	f := &fakeTrading{pending: map[string]bool{"a1": true}}
	h := NewPositionHandler(f, testLogger())

	rec := serve(t, "POST /api/positions/{asset}/sell", h.Sell, http.MethodPost, "/api/positions/a2/sell", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[domain.OrderRecord](t, rec)
	assert.Equal(t, domain.OrderTypeFOK, out.Type)

	f.sellErr = fmt.Errorf("sell: %w", domain.ErrPendingReconciliation)
	rec = serve(t, "POST /api/positions/{asset}/sell", h.Sell, http.MethodPost, "/api/positions/a1/sell", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, "GET /api/positions/{asset}/pending", h.Pending, http.MethodGet, "/api/positions/a1/pending", "")
	assert.JSONEq(t, `{"asset":"a1","pending":true}`, rec.Body.String())

	rec = serve(t, "DELETE /api/positions/{asset}/pending", h.StopReconcile, http.MethodDelete, "/api/positions/a1/pending", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.pending["a1"])
}

func TestSessionLifecycle(t *testing.T) {
	f := &fakeTrading{state: domain.SessionDisconnected}
	h := NewSessionHandler(f, testLogger())

	rec := serve(t, "GET /api/session", h.GetSession, http.MethodGet, "/api/session", "")
	assert.JSONEq(t, `{"state":"disconnected"}`, rec.Body.String())

	rec = serve(t, "POST /api/session", h.CreateSession, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "s3cret")
	out := decode[map[string]any](t, rec)
	assert.Equal(t, "active", out["state"])
	assert.Equal(t, "0x365f0CA36Ae1f641E02fE3B7743673da42A13A70", out["funder"])

	rec = serve(t, "DELETE /api/session", h.ClearSession, http.MethodDelete, "/api/session", "")
	assert.JSONEq(t, `{"state":"disconnected"}`, rec.Body.String())
}

func TestSessionCreateFailure(t *testing.T) {
	f := &fakeTrading{createErr: fmt.Errorf("auth: %w", domain.ErrSession)}
	h := NewSessionHandler(f, testLogger())

	rec := serve(t, "POST /api/session", h.CreateSession, http.MethodPost, "/api/session", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, "GET /api/session", h.GetSession, http.MethodGet, "/api/session", "")
	out := decode[map[string]any](t, rec)
	assert.Equal(t, "error", out["state"])
	assert.Contains(t, out["error"], "auth")
}

func TestWallet(t *testing.T) {
	h := NewWalletHandler(&fakeTrading{}, testLogger())

	rec := serve(t, "GET /api/wallet", h.GetWallet, http.MethodGet, "/api/wallet", "")
	assert.JSONEq(t, `{"eoa":"0xf39F","funding_address":"0x365f","usdc_balance":12.5}`, rec.Body.String())

	rec = serve(t, "GET /api/wallet/derive", h.Derive, http.MethodGet,
		"/api/wallet/derive?eoa=0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[map[string]string](t, rec)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", out["eoa"])
	assert.Equal(t, "0x365f0CA36Ae1f641E02fE3B7743673da42A13A70", out["funding_address"])

	rec = serve(t, "GET /api/wallet/derive", h.Derive, http.MethodGet, "/api/wallet/derive?eoa=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(t, "GET /api/wallet/derive", h.Derive, http.MethodGet, "/api/wallet/derive", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	}, testLogger())
	rec := serve(t, "GET /api/health", h.HealthCheck, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", out["status"])

	h = NewHealthHandler(map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}, testLogger())
	rec = serve(t, "GET /api/health", h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	out = decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", out["status"])
	deps := out["dependencies"].(map[string]any)
	assert.Equal(t, "connection refused", deps["postgres"])
}

type fakeMarkets struct{}

func (fakeMarkets) GetMarket(_ context.Context, id string) (domain.Market, error) {
	if id != "512" {
		return domain.Market{}, fmt.Errorf("gamma: %w", domain.ErrNotFound)
	}
	return domain.Market{ID: "512", Question: "Will it rain?", Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"111", "222"}}, nil
}

func (m fakeMarkets) MarketByToken(ctx context.Context, token string) (domain.Market, error) {
	if token != "111" && token != "222" {
		return domain.Market{}, fmt.Errorf("gamma: %w", domain.ErrNotFound)
	}
	return m.GetMarket(ctx, "512")
}

func TestMarkets(t *testing.T) {
	h := NewMarketHandler(fakeMarkets{}, testLogger())

	rec := serve(t, "GET /api/markets/{id}", h.GetMarket, http.MethodGet, "/api/markets/512", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Will it rain?", decode[map[string]any](t, rec)["question"])

	rec = serve(t, "GET /api/markets/{id}", h.GetMarket, http.MethodGet, "/api/markets/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, "GET /api/markets/token/{token}", h.ByToken, http.MethodGet, "/api/markets/token/222", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No", decode[map[string]any](t, rec)["outcome"])
}

func TestAuditList(t *testing.T) {
	f := &fakeTrading{audit: []domain.AuditEntry{{ID: 7, Event: "order_placed"}}}
	h := NewAuditHandler(f, testLogger())

	rec := serve(t, "GET /api/audit", h.List, http.MethodGet, "/api/audit?limit=10&until=2026-05-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, f.historyOpt.Limit)
	require.NotNil(t, f.historyOpt.Until)

	out := decode[auditListResponse](t, rec)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "order_placed", out.Entries[0].Event)
}
