package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market metadata such as traded volume.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MarketByInstrument looks up the market that lists the given outcome token.
// It returns domain.ErrNotFound when no market carries it.
func (g *GammaClient) MarketByInstrument(ctx context.Context, tokenID string) (domain.MarketInfo, error) {
	params := url.Values{}
	params.Set("clob_token_ids", tokenID)

	var markets []APIMarket
	if err := getJSON(ctx, g.httpClient, g.baseURL+"/markets?"+params.Encode(), &markets); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: market for %s: %w", tokenID, err)
	}

	for i := range markets {
		for _, id := range markets[i].TokenIDs() {
			if id == tokenID {
				return markets[i].ToDomain(tokenID), nil
			}
		}
	}
	return domain.MarketInfo{}, fmt.Errorf("polymarket/gamma: market for %s: %w", tokenID, domain.ErrNotFound)
}
