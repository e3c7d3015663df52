package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/config"
)

func TestDeriveModePrintsFundingAddress(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeDerive
	cfg.Wallet.PrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	require.NoError(t, cfg.Validate())

	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()
	var out bytes.Buffer
	a.SetOutput(&out)

	require.NoError(t, a.Run(context.Background()))

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", got["eoa"])
	assert.Equal(t, "0x365f0CA36Ae1f641E02fE3B7743673da42A13A70", got["funding_address"])
	assert.NotEmpty(t, got["init_code_hash"])
}

func TestWireRejectsMissingKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeDerive

	_, _, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no private key source")
}

func TestUnsupportedMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "backtest"
	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	cfg.Chain.RPCURL = ""

	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
