// Package chain reads token balances from Polygon over JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// USDCe is bridged USDC on Polygon, the exchange's collateral token.
var USDCe = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

// USDCDecimals is the number of decimals of USDCe.
const USDCDecimals = 6

// balanceOf(address)
var balanceOfSelector = common.Hex2Bytes("70a08231")

// BalanceReader reads ERC-20 balances with eth_call.
type BalanceReader struct {
	caller   ethereum.ContractCaller
	token    common.Address
	decimals int32
	closer   func()
}

// Dial connects to rpcURL and returns a reader for token.
func Dial(ctx context.Context, rpcURL string, token common.Address, decimals int32) (*BalanceReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	r := NewBalanceReader(client, token, decimals)
	r.closer = client.Close
	return r, nil
}

// NewBalanceReader wraps an existing contract caller.
func NewBalanceReader(caller ethereum.ContractCaller, token common.Address, decimals int32) *BalanceReader {
	return &BalanceReader{caller: caller, token: token, decimals: decimals}
}

// RawBalance returns the token balance of owner in base units.
func (r *BalanceReader) RawBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(owner.Bytes(), 32)...)

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &r.token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf %s: %w", owner.Hex(), err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("chain: balanceOf %s: short result (%d bytes)", owner.Hex(), len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// Balance returns the balance of owner scaled by the token decimals.
func (r *BalanceReader) Balance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	raw, err := r.RawBalance(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(raw, -r.decimals), nil
}

// Close releases the RPC connection when the reader owns it.
func (r *BalanceReader) Close() {
	if r.closer != nil {
		r.closer()
	}
}
