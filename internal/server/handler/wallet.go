package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// WalletService is what the wallet endpoints need from the trading layer.
type WalletService interface {
	WalletInfo(ctx context.Context) domain.WalletInfo
	DeriveFundingAddress(eoa string) (common.Address, error)
}

// WalletHandler serves the trading identity.
type WalletHandler struct {
	wallet WalletService
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallet WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logger}
}

// GetWallet returns the EOA, the funding address and its USDC balance.
// GET /api/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.WalletInfo(r.Context()))
}

// Derive computes the funding address of any EOA.
// GET /api/wallet/derive?eoa=0x...
func (h *WalletHandler) Derive(w http.ResponseWriter, r *http.Request) {
	eoa := r.URL.Query().Get("eoa")
	if eoa == "" {
		writeError(w, http.StatusBadRequest, "eoa query parameter required")
		return
	}
	addr, err := h.wallet.DeriveFundingAddress(eoa)
	if err != nil {
		writeDomainError(w, r, h.logger, "derive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"eoa":             common.HexToAddress(eoa).Hex(),
		"funding_address": addr.Hex(),
	})
}
