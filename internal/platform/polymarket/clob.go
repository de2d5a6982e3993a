// Package polymarket holds the read-only Polymarket clients: the CLOB order
// book endpoint and Gamma market metadata.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// ClobClient reads order books from the Polymarket CLOB (Central Limit Order
// Book) REST API.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, timeout time.Duration) *ClobClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClobClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// GetBook fetches the current book for an outcome token and returns it as a
// best-first, validated depth snapshot.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (domain.DepthSnapshot, error) {
	if tokenID == "" {
		return domain.DepthSnapshot{}, fmt.Errorf("polymarket/clob: get book: %w", domain.ErrInvalidQuote)
	}

	var book BookResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/book?token_id="+url.QueryEscape(tokenID), &book); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	snap, err := book.ToDomain(tokenID, c.now().UTC())
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("polymarket/clob: book %s: %w", tokenID, err)
	}
	return snap, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// getJSON sends an unauthenticated GET request and decodes a JSON body.
func getJSON(ctx context.Context, hc *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
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
