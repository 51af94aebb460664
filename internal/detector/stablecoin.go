package detector

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/venue"
)

const stablecoinExecLatency = 200 * time.Millisecond

// StablecoinConfig configures the depeg detector.
type StablecoinConfig struct {
	Pairs []string
	// DeviationPct is how far (percent) the last price must sit from the
	// 1.0 peg before an opportunity is emitted.
	DeviationPct float64
	// FeeAllowancePct is subtracted from the deviation as a round-trip
	// cost estimate.
	FeeAllowancePct float64
	MaxSize         float64
}

// Stablecoin watches stablecoin pairs for prices off their 1.0 peg. The
// trade is a bet on reversion: buy below the peg or sell above it, and
// unwind at 1.0. Confidence stays low because convergence is not
// guaranteed.
type Stablecoin struct {
	cfg    StablecoinConfig
	venues *venue.Registry
	logger *slog.Logger
}

var _ Detector = (*Stablecoin)(nil)

// NewStablecoin creates the depeg detector.
func NewStablecoin(cfg StablecoinConfig, venues *venue.Registry, logger *slog.Logger) *Stablecoin {
	return &Stablecoin{
		cfg:    cfg,
		venues: venues,
		logger: logger.With(slog.String("detector", string(domain.KindStablecoin))),
	}
}

// Name returns the strategy identifier.
func (d *Stablecoin) Name() string { return string(domain.KindStablecoin) }

// Detect checks every configured pair on every venue. Venues that do not
// list a pair are skipped quietly.
func (d *Stablecoin) Detect(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for _, v := range d.venues.List() {
		for _, pair := range d.cfg.Pairs {
			tick, err := v.FetchTicker(ctx, pair)
			if err != nil {
				if !errors.Is(err, domain.ErrSymbolNotFound) {
					d.logger.Debug("ticker fetch failed",
						slog.String("venue", v.Name()),
						slog.String("symbol", pair),
						slog.String("error", err.Error()),
					)
				}
				continue
			}
			if opp, ok := d.evaluate(tick); ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps, nil
}

func (d *Stablecoin) evaluate(tick domain.VenueTicker) (domain.ArbitrageOpportunity, bool) {
	if tick.Last <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}
	deviationPct := math.Abs(tick.Last-1.0) * 100
	if deviationPct <= d.cfg.DeviationPct {
		return domain.ArbitrageOpportunity{}, false
	}

	direction := domain.DepegSell
	buyPrice := tick.Bid
	if tick.Last < 1.0 {
		direction = domain.DepegBuy
		buyPrice = tick.Ask
	}

	opp := domain.ArbitrageOpportunity{
		ID:           domain.OpportunityID(domain.KindStablecoin, tick.Symbol, tick.Venue, tick.FetchedAt),
		Kind:         domain.KindStablecoin,
		Symbol:       tick.Symbol,
		BuyVenue:     tick.Venue,
		BuyPrice:     buyPrice,
		SellVenue:    tick.Venue,
		SellPrice:    1.0, // reversion target
		SpreadPct:    deviationPct,
		NetProfitPct: deviationPct - d.cfg.FeeAllowancePct,
		MaxSize:      d.cfg.MaxSize,
		ExecLatency:  stablecoinExecLatency,
		Confidence:   0.5,
		DetectedAt:   tick.FetchedAt,
		Depeg: &domain.DepegDetail{
			Venue:        tick.Venue,
			LastPrice:    tick.Last,
			DeviationPct: deviationPct,
			Direction:    direction,
		},
	}
	return opp, true
}
