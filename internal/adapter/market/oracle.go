package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when no price has ever been fetched.
var ErrNoPrice = errors.New("market: no price available")

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PriceOracle fetches a USD price from a CoinGecko-style simple price API
// and caches it for ttl.
type PriceOracle struct {
	endpoint string
	assetID  string
	ttl      time.Duration
	client   HTTPClient
	now      func() time.Time

	mu         sync.RWMutex
	price      decimal.Decimal
	lastUpdate time.Time
}

// NewPriceOracle creates an oracle for assetID (e.g. "ethereum").
func NewPriceOracle(endpoint, assetID string, ttl time.Duration, client HTTPClient) *PriceOracle {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &PriceOracle{
		endpoint: endpoint,
		assetID:  assetID,
		ttl:      ttl,
		client:   client,
		now:      time.Now,
	}
}

// Price returns the cached price while fresh. A failed refresh serves the
// last known price; it errors only when nothing was ever fetched.
func (o *PriceOracle) Price(ctx context.Context) (decimal.Decimal, error) {
	o.mu.RLock()
	if !o.lastUpdate.IsZero() && o.now().Sub(o.lastUpdate) < o.ttl {
		p := o.price
		o.mu.RUnlock()
		return p, nil
	}
	o.mu.RUnlock()

	fresh, err := o.fetch(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		if o.price.Sign() > 0 {
			return o.price, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}
	o.price = fresh
	o.lastUpdate = o.now()
	return fresh, nil
}

func (o *PriceOracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	u, err := url.Parse(o.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price url: %w", err)
	}
	q := u.Query()
	q.Set("ids", o.assetID)
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var result map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("decode price response: %w", err)
	}

	price, ok := result[o.assetID]["usd"]
	if !ok || price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("invalid price for %s", o.assetID)
	}
	return price, nil
}
