package domain

// MinPositionSize is the smallest share balance treated as a position.
const MinPositionSize = 0.01

// DustValue is the dollar value below which a position counts as dust.
const DustValue = 0.01

// Position is an outcome-token balance held by the funding address, as
// reported by the positions read service. Read-only to this system.
type Position struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"condition_id"`
	OutcomeIndex int     `json:"outcome_index"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avg_price"`
	CurPrice     float64 `json:"cur_price"`
	InitialValue float64 `json:"initial_value"`
	CurrentValue float64 `json:"current_value"`
	CashPnl      float64 `json:"cash_pnl"`
	PercentPnl   float64 `json:"percent_pnl"`
	Redeemable   bool    `json:"redeemable"`
	NegativeRisk bool    `json:"negative_risk"`
}

// IsDust reports whether the position is worth less than a cent.
func (p Position) IsDust() bool {
	return p.CurrentValue < DustValue
}

// Sellable reports whether a market sell can be offered for the position.
func (p Position) Sellable() bool {
	return !p.Redeemable && p.Size >= MinPositionSize
}
