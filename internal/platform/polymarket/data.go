package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// DataClient reads account state from the Polymarket Data API.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListPositions returns the positions held by account.
func (d *DataClient) ListPositions(ctx context.Context, account string) ([]domain.Position, error) {
	params := url.Values{}
	params.Set("user", account)

	body, err := doGet(ctx, d.httpClient, d.baseURL+"/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list positions: %w", err)
	}

	var rows []APIPosition
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(rows))
	for i := range rows {
		positions = append(positions, rows[i].ToDomainPosition())
	}
	return positions, nil
}
