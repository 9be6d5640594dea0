package oracle

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

var (
	// ErrUnknownFeed indicates no feed is registered under the identifier.
	ErrUnknownFeed = errors.New("oracle: unknown price feed")
	// ErrStaleOracleData indicates the latest observation is older than the
	// configured maximum age. Stale data always fails the dependent
	// operation; no fallback price is ever substituted.
	ErrStaleOracleData = errors.New("oracle: stale price data")
	// ErrInvalidOracleData indicates the feed reported a non-positive price.
	ErrInvalidOracleData = errors.New("oracle: invalid price data")
)

// Adapter wraps registered price feeds with freshness and sign validation
// and converts between collateral amounts and canonical 18-decimal USD
// values. Quotes are fetched fresh on every call; the adapter never caches.
type Adapter struct {
	mu     sync.RWMutex
	feeds  map[string]PriceFeed
	maxAge time.Duration
	now    func() time.Time
}

// NewAdapter constructs an adapter enforcing the provided staleness bound.
// The bound must be positive; an adapter that never rejects stale quotes is
// a misconfiguration, not a mode.
func NewAdapter(maxAge time.Duration) (*Adapter, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("oracle: staleness bound must be positive, got %s", maxAge)
	}
	return &Adapter{
		feeds:  make(map[string]PriceFeed),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// RegisterFeed adds or replaces the feed stored under the identifier.
func (a *Adapter) RegisterFeed(id string, feed PriceFeed) {
	if a == nil {
		return
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || feed == nil {
		return
	}
	a.mu.Lock()
	a.feeds[trimmed] = feed
	a.mu.Unlock()
}

// SetClock overrides the time source used for staleness checks. Tests use
// this to pin the observation window.
func (a *Adapter) SetClock(now func() time.Time) {
	if a == nil || now == nil {
		return
	}
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// MaxAge returns the configured staleness bound.
func (a *Adapter) MaxAge() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxAge
}

// GetValidatedPrice fetches the latest quote for the feed and enforces the
// staleness bound and price sign. Violations are hard failures, not
// degraded reads.
func (a *Adapter) GetValidatedPrice(feedID string) (Quote, error) {
	if a == nil {
		return Quote{}, fmt.Errorf("oracle adapter not configured")
	}
	a.mu.RLock()
	feed := a.feeds[strings.TrimSpace(feedID)]
	maxAge := a.maxAge
	now := a.now
	a.mu.RUnlock()
	if feed == nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownFeed, feedID)
	}
	quote, err := feed.LatestQuote()
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrInvalidOracleData, feedID, err)
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("%w: %s reported non-positive price", ErrInvalidOracleData, feedID)
	}
	if age := now().Sub(quote.Timestamp); age > maxAge {
		return Quote{}, fmt.Errorf("%w: %s observation is %s old (max %s)", ErrStaleOracleData, feedID, age, maxAge)
	}
	return quote.Clone(), nil
}

// USDValue converts a collateral amount (18-decimal fixed point) into its
// canonical 18-decimal USD value using the feed's latest validated price.
func (a *Adapter) USDValue(feedID string, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrInvalidAmount
	}
	if amount.IsZero() {
		return uint256.NewInt(0), nil
	}
	price, err := a.scaledPrice(feedID)
	if err != nil {
		return nil, err
	}
	// All multiplications happen before the division to preserve precision.
	return mulDiv(price, amount, precision)
}

// TokenAmountFromUSDValue is the inverse of USDValue: it resolves how much
// collateral (18-decimal fixed point) a canonical USD value buys at the
// feed's latest validated price.
func (a *Adapter) TokenAmountFromUSDValue(feedID string, usdValue *uint256.Int) (*uint256.Int, error) {
	if usdValue == nil {
		return nil, ErrInvalidAmount
	}
	if usdValue.IsZero() {
		return uint256.NewInt(0), nil
	}
	price, err := a.scaledPrice(feedID)
	if err != nil {
		return nil, err
	}
	// Unreachable after GetValidatedPrice, but the divisor is checked anyway.
	return mulDiv(usdValue, precision, price)
}

// scaledPrice returns the validated feed price aligned to 18 decimals.
func (a *Adapter) scaledPrice(feedID string) (*uint256.Int, error) {
	quote, err := a.GetValidatedPrice(feedID)
	if err != nil {
		return nil, err
	}
	price, overflow := uint256.FromBig(quote.Price)
	if overflow {
		return nil, fmt.Errorf("%w: feed price exceeds 256 bits", ErrArithmeticOverflow)
	}
	scaled, over := new(uint256.Int).MulOverflow(price, additionalFeedPrecision)
	if over {
		return nil, fmt.Errorf("%w: scaling feed price", ErrArithmeticOverflow)
	}
	return scaled, nil
}
