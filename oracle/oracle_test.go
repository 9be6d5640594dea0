package oracle

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"net/http"
	"testing"
	"time"
)

type stubDoer struct {
	status  int
	body    string
	lastReq *http.Request
	err     error
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(s.body))),
	}, nil
}

func TestManualFeedRequiresQuote(t *testing.T) {
	feed := NewManualFeed()
	if _, err := feed.LatestQuote(); err == nil {
		t.Fatal("expected error before any quote is recorded")
	}
	feed.SetInt64(42, time.Unix(100, 0))
	quote, err := feed.LatestQuote()
	if err != nil {
		t.Fatalf("latest quote: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(42)) != 0 || !quote.Timestamp.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestManualFeedClonesQuote(t *testing.T) {
	feed := NewManualFeed()
	price := big.NewInt(42)
	feed.Set(price, time.Unix(100, 0))
	price.SetInt64(99)

	quote, err := feed.LatestQuote()
	if err != nil {
		t.Fatalf("latest quote: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("stored quote aliased caller's big.Int: %s", quote.Price)
	}
}

func TestHTTPFeedParsesQuote(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"price":"200000000000","timestamp":1700000000}`}
	feed := NewHTTPFeed(doer, "https://feeds.example/weth-usd", "secret")

	quote, err := feed.LatestQuote()
	if err != nil {
		t.Fatalf("latest quote: %v", err)
	}
	if quote.Price.Cmp(big.NewInt(200000000000)) != 0 {
		t.Fatalf("unexpected price: %s", quote.Price)
	}
	if !quote.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected timestamp: %s", quote.Timestamp)
	}
	if got := doer.lastReq.Header.Get("x-api-key"); got != "secret" {
		t.Fatalf("expected api key header, got %q", got)
	}
}

func TestHTTPFeedRejectsBadResponses(t *testing.T) {
	doer := &stubDoer{status: http.StatusBadGateway, body: "upstream down"}
	feed := NewHTTPFeed(doer, "https://feeds.example/weth-usd", "")
	if _, err := feed.LatestQuote(); err == nil {
		t.Fatal("expected error for non-200 status")
	}

	doer = &stubDoer{status: http.StatusOK, body: `{"price":"not-a-number","timestamp":1}`}
	feed = NewHTTPFeed(doer, "https://feeds.example/weth-usd", "")
	if _, err := feed.LatestQuote(); err == nil {
		t.Fatal("expected error for malformed price")
	}

	doer = &stubDoer{err: errors.New("connection refused")}
	feed = NewHTTPFeed(doer, "https://feeds.example/weth-usd", "")
	if _, err := feed.LatestQuote(); err == nil {
		t.Fatal("expected transport error to surface")
	}
}
