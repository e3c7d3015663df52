package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %w", err)
	}
	*f = flexFloat(n)
	return nil
}

// flexTime unmarshals from unix seconds (number or string) or RFC3339.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexTime(time.Unix(n, 0).UTC())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexTime(time.Unix(n, 0).UTC())
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*f = flexTime(t)
	}
	return nil
}

// stringList decodes the Gamma API's JSON-encoded string arrays, e.g.
// "[\"Yes\",\"No\"]". A plain JSON array is accepted as well.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if inner == "" {
			*l = nil
			return nil
		}
		data = []byte(inner)
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("stringList: %w", err)
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	*l = out
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APICredentials is the L1 auth response.
type APICredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// APIOrder represents an order as returned by the Polymarket CLOB API.
type APIOrder struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Owner        string    `json:"owner"`
	MakerAddress string    `json:"maker_address"`
	MarketID     string    `json:"market"`
	AssetID      string    `json:"asset_id"`
	Side         string    `json:"side"`
	OriginalSize flexFloat `json:"original_size"`
	SizeMatched  flexFloat `json:"size_matched"`
	Price        flexFloat `json:"price"`
	Outcome      string    `json:"outcome"`
	OrderType    string    `json:"order_type"`
	CreatedAt    flexTime  `json:"created_at"`
}

// APIOrderPage is one page of GET /data/orders.
type APIOrderPage struct {
	Data       []APIOrder `json:"data"`
	NextCursor string     `json:"next_cursor"`
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// APICancelResult is the response of DELETE /order.
type APICancelResult struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	ConditionID   string     `json:"conditionId"`
	Slug          string     `json:"slug"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
	ClobTokenIDs  stringList `json:"clobTokenIds"`
	NegRisk       flexBool   `json:"negRisk"`
	Closed        flexBool   `json:"closed"`
	UpdatedAt     string     `json:"updatedAt"`
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIPosition is one row of the Data API positions endpoint.
type APIPosition struct {
	ProxyWallet  string    `json:"proxyWallet"`
	Asset        string    `json:"asset"`
	ConditionID  string    `json:"conditionId"`
	Size         flexFloat `json:"size"`
	AvgPrice     flexFloat `json:"avgPrice"`
	InitialValue flexFloat `json:"initialValue"`
	CurrentValue flexFloat `json:"currentValue"`
	CashPnl      flexFloat `json:"cashPnl"`
	PercentPnl   flexFloat `json:"percentPnl"`
	CurPrice     flexFloat `json:"curPrice"`
	Redeemable   flexBool  `json:"redeemable"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Outcome      string    `json:"outcome"`
	OutcomeIndex int       `json:"outcomeIndex"`
	NegativeRisk flexBool  `json:"negativeRisk"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ToDomain converts the L1 auth response.
func (c APICredentials) ToDomain() domain.Credentials {
	return domain.Credentials{Key: c.APIKey, Secret: c.Secret, Passphrase: c.Passphrase}
}

// ToDomainOrder converts an APIOrder to a domain.OrderRecord.
func (a *APIOrder) ToDomainOrder() domain.OrderRecord {
	o := domain.OrderRecord{
		ID:          a.ID,
		TokenID:     a.AssetID,
		MarketID:    a.MarketID,
		Price:       float64(a.Price),
		Size:        float64(a.OriginalSize),
		SizeMatched: float64(a.SizeMatched),
		Outcome:     a.Outcome,
		Type:        domain.OrderType(strings.ToUpper(a.OrderType)),
		Status:      domain.OrderStatus(strings.ToLower(a.Status)),
		CreatedAt:   time.Time(a.CreatedAt),
	}
	if side, ok := domain.ParseOrderSide(a.Side); ok {
		o.Side = side
	}
	if o.Status == "canceled" {
		o.Status = domain.OrderStatusCancelled
	}
	return o
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. Prices that
// fail to parse are reported as zero.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		Outcomes:    []string(m.Outcomes),
		TokenIDs:    []string(m.ClobTokenIDs),
		NegRisk:     bool(m.NegRisk),
		Closed:      bool(m.Closed),
	}
	dm.Prices = make([]float64, len(m.OutcomePrices))
	for i, p := range m.OutcomePrices {
		if v, err := strconv.ParseFloat(p, 64); err == nil {
			dm.Prices[i] = v
		}
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}
	return dm
}

// ToDomainPosition converts a Data API row to a domain.Position.
func (p *APIPosition) ToDomainPosition() domain.Position {
	return domain.Position{
		Asset:        p.Asset,
		ConditionID:  p.ConditionID,
		OutcomeIndex: p.OutcomeIndex,
		Title:        p.Title,
		Slug:         p.Slug,
		Outcome:      p.Outcome,
		Size:         float64(p.Size),
		AvgPrice:     float64(p.AvgPrice),
		CurPrice:     float64(p.CurPrice),
		InitialValue: float64(p.InitialValue),
		CurrentValue: float64(p.CurrentValue),
		CashPnl:      float64(p.CashPnl),
		PercentPnl:   float64(p.PercentPnl),
		Redeemable:   bool(p.Redeemable),
		NegativeRisk: bool(p.NegativeRisk),
	}
}
