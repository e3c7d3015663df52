package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
)

type stubWallet struct{}

func (stubWallet) WalletInfo(context.Context) domain.WalletInfo {
	return domain.WalletInfo{EOA: "0x1", FundingAddress: "0x2"}
}

func (stubWallet) DeriveFundingAddress(string) (common.Address, error) {
	return common.Address{}, nil
}

func newTestServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Wallet: handler.NewWalletHandler(stubWallet{}, logger),
	}
	return NewServer(Config{Port: 8080, APIKey: apiKey, RateWindow: time.Second}, handlers, nil, nil, logger)
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer("k")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresKey(t *testing.T) {
	srv := newTestServer("k")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer("")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/wallet", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", newTestServer("").Addr())
}
