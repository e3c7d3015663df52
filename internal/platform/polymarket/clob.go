package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

// endCursor marks the last page of a paginated CLOB listing.
const endCursor = "LTE="

// Signer is the signing identity the CLOB client acts for.
type Signer interface {
	Address() common.Address
	SignAuthMessage(timestamp, nonce int64) (string, error)
	SignOrder(order crypto.OrderPayload, negRisk bool) (string, error)
}

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. Without credentials it can only perform L1 (signature)
// authentication; WithCredentials returns an L2 client able to trade.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     Signer
	hmacAuth   *crypto.HMACAuth
	funder     common.Address
	sigType    domain.SignatureType
	now        func() time.Time
}

// ClobOption customises a ClobClient.
type ClobOption func(*ClobClient)

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) ClobOption {
	return func(c *ClobClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock overrides the time source used for auth timestamps.
func WithClock(now func() time.Time) ClobOption {
	return func(c *ClobClient) { c.now = now }
}

// NewClobClient creates an L1 CLOB client for signer.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, signer Signer, opts ...ClobOption) *ClobClient {
	c := &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:  signer,
		funder:  signer.Address(),
		sigType: domain.SignatureTypeEOA,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithCredentials returns an L2 client that signs requests with creds and
// places orders whose maker is funder.
func (c *ClobClient) WithCredentials(creds domain.Credentials, sigType domain.SignatureType, funder common.Address) *ClobClient {
	l2 := *c
	l2.hmacAuth = &crypto.HMACAuth{
		Key:        creds.Key,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
	l2.sigType = sigType
	l2.funder = funder
	return &l2
}

// Funder returns the address that holds funds for orders placed by c.
func (c *ClobClient) Funder() common.Address {
	return c.funder
}

// CreateAPIKey asks the exchange to issue new L2 credentials.
func (c *ClobClient) CreateAPIKey(ctx context.Context, nonce int64) (domain.Credentials, error) {
	creds, err := c.l1Request(ctx, http.MethodPost, "/auth/api-key", nonce)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("polymarket/clob: create api key: %w", err)
	}
	return creds, nil
}

// DeriveAPIKey recovers the L2 credentials previously issued for nonce.
func (c *ClobClient) DeriveAPIKey(ctx context.Context, nonce int64) (domain.Credentials, error) {
	creds, err := c.l1Request(ctx, http.MethodGet, "/auth/derive-api-key", nonce)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}
	return creds, nil
}

// CreateOrDeriveAPIKey creates credentials and falls back to deriving the
// existing ones when the address already has a key.
func (c *ClobClient) CreateOrDeriveAPIKey(ctx context.Context) (domain.Credentials, error) {
	creds, createErr := c.CreateAPIKey(ctx, 0)
	if createErr == nil {
		return creds, nil
	}
	if ctx.Err() != nil {
		return domain.Credentials{}, createErr
	}
	creds, deriveErr := c.DeriveAPIKey(ctx, 0)
	if deriveErr != nil {
		return domain.Credentials{}, errors.Join(createErr, deriveErr)
	}
	return creds, nil
}

// PostOrder signs args for the client's funder and submits it.
func (c *ClobClient) PostOrder(ctx context.Context, args domain.OrderArgs) (domain.OrderRecord, error) {
	if c.hmacAuth == nil {
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: post order: %w", domain.ErrUnauthorized)
	}

	payload, err := BuildOrderPayload(args, c.funder, c.signer.Address(), c.sigType, newSalt())
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: build order: %w", err)
	}
	sig, err := c.signer.SignOrder(payload, args.NegRisk)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: sign order: %w: %w", domain.ErrSigningFailed, err)
	}

	body := postOrderRequest{
		Order:     newSignedOrderJSON(payload, sig),
		Owner:     c.hmacAuth.Key,
		OrderType: string(args.Type),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", nil, body)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	if !result.Success || result.ErrorMsg != "" {
		msg := result.ErrorMsg
		if msg == "" {
			msg = "unknown error"
		}
		return domain.OrderRecord{}, fmt.Errorf("polymarket/clob: order rejected: %s", msg)
	}

	return domain.OrderRecord{
		ID:        result.OrderID,
		TokenID:   args.TokenID,
		Side:      args.Side,
		Type:      args.Type,
		Price:     args.Price,
		Size:      args.Size,
		NegRisk:   args.NegRisk,
		Status:    domain.OrderStatus(result.Status),
		CreatedAt: c.now().UTC(),
	}, nil
}

// CancelOrder cancels a single order by its ID. An order the exchange
// refuses to cancel (for instance one already cancelled) is an error.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{
		"orderID": orderID,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", nil, body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result APICancelResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if reason, ok := result.NotCanceled[orderID]; ok {
		return fmt.Errorf("polymarket/clob: cancel %s refused: %s", orderID, reason)
	}
	for _, id := range result.Canceled {
		if id == orderID {
			return nil
		}
	}
	return fmt.Errorf("polymarket/clob: cancel %s: not acknowledged", orderID)
}

// OpenOrders returns all open orders of the authenticated account,
// following pagination cursors.
func (c *ClobClient) OpenOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	var out []domain.OrderRecord
	cursor := ""
	for {
		q := url.Values{}
		if cursor != "" {
			q.Set("next_cursor", cursor)
		}
		respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/data/orders", q, nil)
		if err != nil {
			return nil, fmt.Errorf("polymarket/clob: get open orders: %w", err)
		}

		var page APIOrderPage
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("polymarket/clob: decode orders: %w", err)
		}
		for i := range page.Data {
			out = append(out, page.Data[i].ToDomainOrder())
		}

		if page.NextCursor == "" || page.NextCursor == endCursor || page.NextCursor == cursor {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// l1Request sends a request authenticated with a fresh ClobAuth signature
// and decodes the credentials in the response.
func (c *ClobClient) l1Request(ctx context.Context, method, path string, nonce int64) (domain.Credentials, error) {
	timestamp := c.now().Unix()
	sig, err := c.signer.SignAuthMessage(timestamp, nonce)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("sign auth message: %w: %w", domain.ErrSigningFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	respBody, err := c.do(req)
	if err != nil {
		return domain.Credentials{}, err
	}

	var authResp APICredentials
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return domain.Credentials{}, fmt.Errorf("decode auth response: %w", err)
	}
	creds := authResp.ToDomain()
	if !creds.Valid() {
		return domain.Credentials{}, fmt.Errorf("auth response missing credentials: %w", domain.ErrUnauthorized)
	}
	return creds, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. The signature covers the path without
// its query string.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		headers := c.hmacAuth.L2HeadersAt(c.signer.Address().Hex(), method, path, bodyStr, c.now().Unix())
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	return c.do(req)
}

func (c *ClobClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
