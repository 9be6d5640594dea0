package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Quote captures a price observation for a single feed along with the
// timestamp reported by the upstream provider. Price is expressed in the
// feed's native precision (8 decimals for USD feeds) and kept signed so the
// adapter, not the transport, decides how to treat non-positive readings.
type Quote struct {
	Price     *big.Int
	Timestamp time.Time
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{Timestamp: q.Timestamp}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// PriceFeed resolves the latest observation for one feed identifier.
type PriceFeed interface {
	LatestQuote() (Quote, error)
}

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides during incident response.
type ManualFeed struct {
	mu    sync.RWMutex
	quote Quote
	set   bool
}

// NewManualFeed constructs an empty manual feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// Set stores the provided price and observation timestamp.
func (m *ManualFeed) Set(price *big.Int, ts time.Time) {
	if m == nil || price == nil {
		return
	}
	m.mu.Lock()
	m.quote = Quote{Price: new(big.Int).Set(price), Timestamp: ts}
	m.set = true
	m.mu.Unlock()
}

// SetInt64 is a convenience wrapper for feed values that fit in an int64.
func (m *ManualFeed) SetInt64(price int64, ts time.Time) {
	m.Set(big.NewInt(price), ts)
}

func (m *ManualFeed) LatestQuote() (Quote, error) {
	if m == nil {
		return Quote{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return Quote{}, errors.New("manual feed: no quote recorded")
	}
	return m.quote.Clone(), nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches price data from a JSON endpoint returning the latest
// round as {"price": "...", "timestamp": ...}.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used. The API key is optional and only added to the
// request headers when supplied.
func NewHTTPFeed(client HTTPDoer, endpoint, apiKey string) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), apiKey: strings.TrimSpace(apiKey)}
}

func (f *HTTPFeed) LatestQuote() (Quote, error) {
	if f == nil || f.endpoint == "" {
		return Quote{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price     string `json:"price"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("http feed: decode: %w", err)
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(payload.Price), 10)
	if !ok {
		return Quote{}, fmt.Errorf("http feed: invalid price %q", payload.Price)
	}
	return Quote{Price: price, Timestamp: time.Unix(payload.Timestamp, 0)}, nil
}
