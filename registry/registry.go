package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates the registry could not be constructed from
	// the supplied pairs. Construction failures are fatal; the registry is
	// never mutated after New returns.
	ErrConfiguration = errors.New("collateral registry: invalid configuration")
	// ErrAssetNotFound indicates the asset has no registered price feed.
	ErrAssetNotFound = errors.New("collateral registry: asset not registered")
)

// Registry is the immutable mapping of approved collateral assets to their
// price-feed identifiers. Asset and feed lists must be the same length; each
// asset carries exactly one feed.
type Registry struct {
	assets []string
	feeds  map[string]string
}

// New builds the registry from parallel asset/feed slices.
func New(assets, feeds []string) (*Registry, error) {
	if len(assets) != len(feeds) {
		return nil, fmt.Errorf("%w: %d assets against %d feeds", ErrConfiguration, len(assets), len(feeds))
	}
	r := &Registry{
		assets: make([]string, 0, len(assets)),
		feeds:  make(map[string]string, len(assets)),
	}
	for i := range assets {
		asset := strings.ToUpper(strings.TrimSpace(assets[i]))
		feed := strings.TrimSpace(feeds[i])
		if asset == "" || feed == "" {
			return nil, fmt.Errorf("%w: empty asset or feed at index %d", ErrConfiguration, i)
		}
		if _, exists := r.feeds[asset]; exists {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrConfiguration, asset)
		}
		r.assets = append(r.assets, asset)
		r.feeds[asset] = feed
	}
	return r, nil
}

// IsApproved reports whether the asset may be used as collateral.
func (r *Registry) IsApproved(asset string) bool {
	_, ok := r.feeds[normalise(asset)]
	return ok
}

// FeedFor resolves the price-feed identifier registered for the asset.
func (r *Registry) FeedFor(asset string) (string, error) {
	feed, ok := r.feeds[normalise(asset)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	return feed, nil
}

// Assets returns the approved asset symbols in insertion order. The slice is
// a copy; callers may not mutate registry state through it.
func (r *Registry) Assets() []string {
	return append([]string(nil), r.assets...)
}

func normalise(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
