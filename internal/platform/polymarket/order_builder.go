package polymarket

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Amount precision for the 0.01 tick: prices carry 2 decimals, share sizes
// 2 and notional amounts 4. On-chain amounts use 6 decimals.
const (
	pricePrecision    = 2
	sizePrecision     = 2
	notionalPrecision = 4
	tokenDecimals     = 6
)

var zeroAddress = common.Address{}

// postOrderRequest is the body of POST /order.
type postOrderRequest struct {
	Order     signedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
}

type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

func newSignedOrderJSON(p crypto.OrderPayload, sig string) signedOrderJSON {
	salt, _ := strconv.ParseInt(p.Salt, 10, 64)
	side := string(domain.OrderSideBuy)
	if p.Side == 1 {
		side = string(domain.OrderSideSell)
	}
	return signedOrderJSON{
		Salt:          salt,
		Maker:         p.Maker,
		Signer:        p.Signer,
		Taker:         p.Taker,
		TokenID:       p.TokenID,
		MakerAmount:   p.MakerAmount,
		TakerAmount:   p.TakerAmount,
		Expiration:    p.Expiration,
		Nonce:         p.Nonce,
		FeeRateBps:    p.FeeRateBps,
		Side:          side,
		SignatureType: p.SignatureType,
		Signature:     sig,
	}
}

// newSalt returns a random salt that stays exact as a JSON number.
func newSalt() int64 {
	return rand.Int64N(1 << 53)
}

// OrderAmounts converts a price and share size into the maker and taker
// amounts of the signed order, in 6-decimal base units. A BUY pays
// price*size collateral for size shares; a SELL is the reverse.
func OrderAmounts(side domain.OrderSide, price, size float64) (maker, taker string, err error) {
	p := decimal.NewFromFloat(price).Round(pricePrecision)
	s := decimal.NewFromFloat(size).Truncate(sizePrecision)
	if !p.IsPositive() || p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "", "", fmt.Errorf("price %s outside (0, 1): %w", p, domain.ErrInvalidOrder)
	}
	if !s.IsPositive() {
		return "", "", fmt.Errorf("size %s not positive: %w", s, domain.ErrInvalidOrder)
	}
	notional := s.Mul(p).Truncate(notionalPrecision)

	units := func(d decimal.Decimal) string {
		return d.Shift(tokenDecimals).Truncate(0).BigInt().String()
	}
	switch side {
	case domain.OrderSideBuy:
		return units(notional), units(s), nil
	case domain.OrderSideSell:
		return units(s), units(notional), nil
	default:
		return "", "", fmt.Errorf("side %q: %w", side, domain.ErrInvalidOrder)
	}
}

// BuildOrderPayload assembles the unsigned order for args. maker is the
// funding address and signer the key that signs on its behalf.
func BuildOrderPayload(args domain.OrderArgs, maker, signer common.Address, sigType domain.SignatureType, salt int64) (crypto.OrderPayload, error) {
	if args.TokenID == "" {
		return crypto.OrderPayload{}, fmt.Errorf("missing token id: %w", domain.ErrInvalidOrder)
	}
	makerAmt, takerAmt, err := OrderAmounts(args.Side, args.Price, args.Size)
	if err != nil {
		return crypto.OrderPayload{}, err
	}
	side := 0
	if args.Side == domain.OrderSideSell {
		side = 1
	}
	return crypto.OrderPayload{
		Salt:          strconv.FormatInt(salt, 10),
		Maker:         maker.Hex(),
		Signer:        signer.Hex(),
		Taker:         zeroAddress.Hex(),
		TokenID:       args.TokenID,
		MakerAmount:   makerAmt,
		TakerAmount:   takerAmt,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: int(sigType),
	}, nil
}
