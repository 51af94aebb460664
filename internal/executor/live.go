package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/venue"
)

// Live places real spot market orders through venue adapters. Only
// opportunity kinds that map onto plain spot orders are supported:
// cross-exchange (buy leg on one venue, sell leg on another) and stablecoin
// reversion (a single order on one venue). Funding carries and triangular
// cycles need perp or multi-leg execution the adapters do not expose, so
// they are rejected with ErrLiveUnsupported and stay paper-only.
type Live struct {
	venues *venue.Registry
	logger *slog.Logger
}

// NewLive creates the live executor on top of the venue registry.
func NewLive(venues *venue.Registry, logger *slog.Logger) *Live {
	return &Live{
		venues: venues,
		logger: logger.With(slog.String("component", "live_executor")),
	}
}

// Mode reports live.
func (l *Live) Mode() domain.ExecutionMode { return domain.ModeLive }

// Execute places the orders for one sized opportunity. size is the quote
// currency amount committed to the trade.
func (l *Live) Execute(ctx context.Context, opp domain.ArbitrageOpportunity, size float64) error {
	switch opp.Kind {
	case domain.KindCrossExchange:
		return l.executeCross(ctx, opp, size)
	case domain.KindStablecoin:
		return l.executeDepeg(ctx, opp, size)
	default:
		return fmt.Errorf("%s execution: %w", opp.Kind, domain.ErrLiveUnsupported)
	}
}

// executeCross buys on the cheap venue first, then sells on the rich one.
// Spot accounts cannot sell inventory they have not bought, so the order of
// the legs is fixed; a failed sell leaves the position long on the buy
// venue and is reported as an error.
func (l *Live) executeCross(ctx context.Context, opp domain.ArbitrageOpportunity, size float64) error {
	buyer, err := l.placer(opp.BuyVenue)
	if err != nil {
		return fmt.Errorf("buy venue %s: %w", opp.BuyVenue, err)
	}
	seller, err := l.placer(opp.SellVenue)
	if err != nil {
		return fmt.Errorf("sell venue %s: %w", opp.SellVenue, err)
	}

	buyID, err := buyer.PlaceMarketOrder(ctx, opp.Symbol, venue.SideBuy, size)
	if err != nil {
		return fmt.Errorf("buy leg on %s: %w", opp.BuyVenue, err)
	}
	l.logger.Info("buy leg filled",
		slog.String("venue", opp.BuyVenue),
		slog.String("symbol", opp.Symbol),
		slog.String("order_id", buyID),
		slog.Float64("size", size),
	)

	sellID, err := seller.PlaceMarketOrder(ctx, opp.Symbol, venue.SideSell, size)
	if err != nil {
		return fmt.Errorf("sell leg on %s after buy %s filled: %w", opp.SellVenue, buyID, err)
	}
	l.logger.Info("sell leg filled",
		slog.String("venue", opp.SellVenue),
		slog.String("symbol", opp.Symbol),
		slog.String("order_id", sellID),
		slog.Float64("size", size),
	)
	return nil
}

// executeDepeg places the single reversion order: buy below the peg, sell
// above it.
func (l *Live) executeDepeg(ctx context.Context, opp domain.ArbitrageOpportunity, size float64) error {
	if opp.Depeg == nil {
		return fmt.Errorf("stablecoin opportunity %s has no depeg detail", opp.ID)
	}
	placer, err := l.placer(opp.BuyVenue)
	if err != nil {
		return fmt.Errorf("venue %s: %w", opp.BuyVenue, err)
	}

	side := venue.SideBuy
	if opp.Depeg.Direction == domain.DepegSell {
		side = venue.SideSell
	}
	orderID, err := placer.PlaceMarketOrder(ctx, opp.Symbol, side, size)
	if err != nil {
		return fmt.Errorf("%s order on %s: %w", side, opp.BuyVenue, err)
	}
	l.logger.Info("depeg order filled",
		slog.String("venue", opp.BuyVenue),
		slog.String("symbol", opp.Symbol),
		slog.String("side", string(side)),
		slog.String("order_id", orderID),
		slog.Float64("size", size),
	)
	return nil
}

// placer resolves a venue that can take orders.
func (l *Live) placer(name string) (venue.OrderPlacer, error) {
	v, err := l.venues.Get(name)
	if err != nil {
		return nil, err
	}
	placer, ok := v.(venue.OrderPlacer)
	if !ok {
		return nil, domain.ErrLiveUnsupported
	}
	return placer, nil
}
