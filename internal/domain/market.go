package domain

import "time"

// Market is the metadata of a Polymarket prediction market. Outcomes,
// Prices and TokenIDs are index-aligned.
type Market struct {
	ID          string    `json:"id"`
	ConditionID string    `json:"condition_id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	Outcomes    []string  `json:"outcomes"`
	Prices      []float64 `json:"prices"`
	TokenIDs    []string  `json:"token_ids"`
	NegRisk     bool      `json:"neg_risk"`
	Closed      bool      `json:"closed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TokenIndex returns the outcome index of tokenID, or -1.
func (m Market) TokenIndex(tokenID string) int {
	for i, t := range m.TokenIDs {
		if t == tokenID {
			return i
		}
	}
	return -1
}

// OutcomeFor returns the outcome label for tokenID.
func (m Market) OutcomeFor(tokenID string) (string, bool) {
	i := m.TokenIndex(tokenID)
	if i < 0 || i >= len(m.Outcomes) {
		return "", false
	}
	return m.Outcomes[i], true
}

// PriceFor returns the last outcome price for tokenID.
func (m Market) PriceFor(tokenID string) (float64, bool) {
	i := m.TokenIndex(tokenID)
	if i < 0 || i >= len(m.Prices) {
		return 0, false
	}
	return m.Prices[i], true
}
