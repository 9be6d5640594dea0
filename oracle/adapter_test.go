package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestAdapter(t *testing.T, at time.Time) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(time.Hour)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	adapter.SetClock(fixedClock(at))
	return adapter
}

func mustUint(t *testing.T, dec string) *uint256.Int {
	t.Helper()
	value, err := uint256.FromDecimal(dec)
	if err != nil {
		t.Fatalf("parse %q: %v", dec, err)
	}
	return value
}

func TestNewAdapterRejectsNonPositiveBound(t *testing.T) {
	if _, err := NewAdapter(0); err == nil {
		t.Fatal("expected error for zero bound")
	}
	if _, err := NewAdapter(-time.Minute); err == nil {
		t.Fatal("expected error for negative bound")
	}
	if _, err := NewAdapter(time.Second); err != nil {
		t.Fatalf("unexpected error for positive bound: %v", err)
	}
}

func TestGetValidatedPriceFreshQuote(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)

	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now.Add(-30*time.Minute))
	adapter.RegisterFeed("WETH/USD", feed)

	quote, err := adapter.GetValidatedPrice("WETH/USD")
	if err != nil {
		t.Fatalf("validated price: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(2000_0000_0000)) != 0 {
		t.Fatalf("unexpected price: %s", quote.Price)
	}
}

func TestGetValidatedPriceStaleQuote(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)

	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now.Add(-2*time.Hour))
	adapter.RegisterFeed("WETH/USD", feed)

	if _, err := adapter.GetValidatedPrice("WETH/USD"); !errors.Is(err, ErrStaleOracleData) {
		t.Fatalf("expected ErrStaleOracleData, got %v", err)
	}
}

func TestGetValidatedPriceBoundaryAge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)

	// A quote exactly at the bound is still valid; one second past is not.
	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now.Add(-time.Hour))
	adapter.RegisterFeed("WETH/USD", feed)
	if _, err := adapter.GetValidatedPrice("WETH/USD"); err != nil {
		t.Fatalf("quote at bound: %v", err)
	}

	feed.SetInt64(2000_0000_0000, now.Add(-time.Hour-time.Second))
	if _, err := adapter.GetValidatedPrice("WETH/USD"); !errors.Is(err, ErrStaleOracleData) {
		t.Fatalf("expected ErrStaleOracleData past bound, got %v", err)
	}
}

func TestGetValidatedPriceRejectsNonPositive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)

	feed := NewManualFeed()
	adapter.RegisterFeed("WETH/USD", feed)

	feed.SetInt64(0, now)
	if _, err := adapter.GetValidatedPrice("WETH/USD"); !errors.Is(err, ErrInvalidOracleData) {
		t.Fatalf("expected ErrInvalidOracleData for zero, got %v", err)
	}
	feed.Set(big.NewInt(-1), now)
	if _, err := adapter.GetValidatedPrice("WETH/USD"); !errors.Is(err, ErrInvalidOracleData) {
		t.Fatalf("expected ErrInvalidOracleData for negative, got %v", err)
	}
}

func TestGetValidatedPriceUnknownFeed(t *testing.T) {
	adapter := newTestAdapter(t, time.Unix(1_700_000_000, 0))
	if _, err := adapter.GetValidatedPrice("WETH/USD"); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected ErrUnknownFeed, got %v", err)
	}
}

func TestUSDValue(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)
	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now)
	adapter.RegisterFeed("WETH/USD", feed)

	// 15 WETH at 2000 USD.
	amount := mustUint(t, "15000000000000000000")
	value, err := adapter.USDValue("WETH/USD", amount)
	if err != nil {
		t.Fatalf("usd value: %v", err)
	}
	if value.Dec() != "30000000000000000000000" {
		t.Fatalf("unexpected usd value: %s", value.Dec())
	}
}

func TestTokenAmountFromUSDValue(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)
	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now)
	adapter.RegisterFeed("WETH/USD", feed)

	// 100 USD of WETH at 2000 USD is 0.05 WETH.
	usd := mustUint(t, "100000000000000000000")
	amount, err := adapter.TokenAmountFromUSDValue("WETH/USD", usd)
	if err != nil {
		t.Fatalf("token amount: %v", err)
	}
	if amount.Dec() != "50000000000000000" {
		t.Fatalf("unexpected token amount: %s", amount.Dec())
	}
}

func TestConversionRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)
	feed := NewManualFeed()
	// An awkward price so the conversions actually round.
	feed.SetInt64(1777_12345678, now)
	adapter.RegisterFeed("WETH/USD", feed)

	amounts := []string{
		"1",
		"999",
		"1000000000",
		"123456789123456789",
		"1000000000000000000",
		"15000000000000000000",
		"98765432109876543210987",
	}
	one := uint256.NewInt(1)
	for _, dec := range amounts {
		amount := mustUint(t, dec)
		usd, err := adapter.USDValue("WETH/USD", amount)
		if err != nil {
			t.Fatalf("usd value of %s: %v", dec, err)
		}
		back, err := adapter.TokenAmountFromUSDValue("WETH/USD", usd)
		if err != nil {
			t.Fatalf("token amount of %s: %v", usd.Dec(), err)
		}
		// Flooring in each direction loses at most one base unit and can
		// never round up.
		if back.Gt(amount) {
			t.Fatalf("round trip of %s gained value: %s", dec, back.Dec())
		}
		diff := new(uint256.Int).Sub(amount, back)
		if diff.Gt(one) {
			t.Fatalf("round trip of %s lost %s base units", dec, diff.Dec())
		}
	}
}

func TestConversionEdgeCases(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)
	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now)
	adapter.RegisterFeed("WETH/USD", feed)

	if _, err := adapter.USDValue("WETH/USD", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	zero, err := adapter.USDValue("WETH/USD", uint256.NewInt(0))
	if err != nil {
		t.Fatalf("zero amount: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero value, got %s", zero.Dec())
	}
	zero, err = adapter.TokenAmountFromUSDValue("WETH/USD", uint256.NewInt(0))
	if err != nil {
		t.Fatalf("zero usd: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero amount, got %s", zero.Dec())
	}
}

func TestUSDValueOverflow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := newTestAdapter(t, now)
	feed := NewManualFeed()
	feed.SetInt64(2000_0000_0000, now)
	adapter.RegisterFeed("WETH/USD", feed)

	huge := new(uint256.Int).SetAllOne()
	if _, err := adapter.USDValue("WETH/USD", huge); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}
