package polymarket

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Dialer opens CLOB clients for a signer. It is the seam between the
// session lifecycle and the HTTP API.
type Dialer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Authenticate performs L1 authentication for signer and returns its L2
// credentials.
func (d Dialer) Authenticate(ctx context.Context, signer Signer) (domain.Credentials, error) {
	return NewClobClient(d.BaseURL, signer, WithHTTPClient(d.HTTPClient)).CreateOrDeriveAPIKey(ctx)
}

// Dial returns an L2 trading client.
func (d Dialer) Dial(signer Signer, creds domain.Credentials, sigType domain.SignatureType, funder common.Address) domain.TradingClient {
	return NewClobClient(d.BaseURL, signer, WithHTTPClient(d.HTTPClient)).WithCredentials(creds, sigType, funder)
}
