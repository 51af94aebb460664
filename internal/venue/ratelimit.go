package venue

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/coinarb/arbot/internal/domain"
)

// Limited wraps a Venue with a client-side token bucket so concurrent
// detectors cannot collectively exceed the venue's request budget. Waiting
// respects the caller's context, so a venue timeout still bounds the call.
type Limited struct {
	inner   Venue
	limiter *rate.Limiter
}

var (
	_ Venue       = (*Limited)(nil)
	_ OrderPlacer = (*Limited)(nil)
)

// Limit wraps v with a limiter allowing rps requests per second with the
// given burst.
func Limit(v Venue, rps float64, burst int) *Limited {
	return &Limited{inner: v, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Name implements Venue.
func (l *Limited) Name() string { return l.inner.Name() }

// FetchTicker implements Venue.
func (l *Limited) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	if err := l.wait(ctx); err != nil {
		return domain.VenueTicker{}, err
	}
	return l.inner.FetchTicker(ctx, symbol)
}

// FetchMarkets implements Venue.
func (l *Limited) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.FetchMarkets(ctx)
}

// FetchFundingRate implements Venue.
func (l *Limited) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	if err := l.wait(ctx); err != nil {
		return domain.FundingRate{}, err
	}
	return l.inner.FetchFundingRate(ctx, symbol)
}

// PlaceMarketOrder implements OrderPlacer when the wrapped venue does;
// otherwise it reports live execution as unsupported.
func (l *Limited) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quoteAmount float64) (string, error) {
	placer, ok := l.inner.(OrderPlacer)
	if !ok {
		return "", fmt.Errorf("%s: %w", l.inner.Name(), domain.ErrLiveUnsupported)
	}
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return placer.PlaceMarketOrder(ctx, symbol, side, quoteAmount)
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", l.inner.Name(), err)
	}
	return nil
}
