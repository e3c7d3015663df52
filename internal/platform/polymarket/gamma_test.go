package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const gammaMarketsJSON = `[{
	"id": "512345",
	"question": "Will it rain in London tomorrow?",
	"conditionId": "0xcond",
	"slug": "rain-london",
	"outcomes": "[\"Yes\", \"No\"]",
	"outcomePrices": "[\"0.615\", \"0.385\"]",
	"clobTokenIds": "[\"111\", \"222\"]",
	"negRisk": true,
	"closed": false,
	"updatedAt": "2025-01-02T03:04:05Z"
}]`

func TestMarketByToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		if r.URL.Query().Get("clob_token_ids") != "222" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(gammaMarketsJSON))
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL)
	m, err := g.MarketByToken(context.Background(), "222")
	require.NoError(t, err)

	assert.Equal(t, "512345", m.ID)
	assert.Equal(t, []string{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, []float64{0.615, 0.385}, m.Prices)
	assert.Equal(t, []string{"111", "222"}, m.TokenIDs)
	assert.True(t, m.NegRisk)

	outcome, ok := m.OutcomeFor("222")
	assert.True(t, ok)
	assert.Equal(t, "No", outcome)

	_, err = g.MarketByToken(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStringListAcceptsPlainArray(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{"outcomes":["Up","Down"],"outcomePrices":[0.5,0.5],"clobTokenIds":""}`), &m))
	dm := m.ToDomainMarket()
	assert.Equal(t, []string{"Up", "Down"}, dm.Outcomes)
	assert.Equal(t, []float64{0.5, 0.5}, dm.Prices)
	assert.Empty(t, dm.TokenIDs)
}

func TestListPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, testFunder.Hex(), r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`[{
			"proxyWallet": "0x365f0CA36Ae1f641E02fE3B7743673da42A13A70",
			"asset": "111", "conditionId": "0xcond", "size": 12.5, "avgPrice": 0.4,
			"initialValue": 5, "currentValue": 7.6875, "cashPnl": 2.6875, "percentPnl": 53.75,
			"curPrice": 0.615, "redeemable": false, "title": "Will it rain?", "outcome": "Yes",
			"outcomeIndex": 0, "negativeRisk": true
		}]`))
	}))
	defer srv.Close()

	positions, err := NewDataClient(srv.URL).ListPositions(context.Background(), testFunder.Hex())
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, "111", p.Asset)
	assert.Equal(t, 12.5, p.Size)
	assert.Equal(t, 0.615, p.CurPrice)
	assert.True(t, p.NegativeRisk)
	assert.False(t, p.Redeemable)
	assert.Equal(t, "Yes", p.Outcome)
}

func TestListPositionsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDataClient(srv.URL).ListPositions(context.Background(), "0x1")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
