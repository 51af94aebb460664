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

const fundingExecLatency = 1000 * time.Millisecond

// FundingConfig configures the funding-rate carry detector.
type FundingConfig struct {
	Symbols []string
	// MinAbsRate is the materiality threshold on the signed per-interval
	// rate, as a fraction (0.0005 = 0.05% per interval).
	MinAbsRate float64
	MaxSize    float64
}

// Funding looks for perpetual funding rates large enough to pay for a
// delta-neutral carry: hold spot against an opposite perp position and
// collect the funding payments. A positive rate means longs pay shorts,
// so the carry is long spot, short perp.
type Funding struct {
	cfg    FundingConfig
	venues *venue.Registry
	logger *slog.Logger
}

var _ Detector = (*Funding)(nil)

// NewFunding creates the funding-rate detector.
func NewFunding(cfg FundingConfig, venues *venue.Registry, logger *slog.Logger) *Funding {
	return &Funding{
		cfg:    cfg,
		venues: venues,
		logger: logger.With(slog.String("detector", string(domain.KindFundingRate))),
	}
}

// Name returns the strategy identifier.
func (d *Funding) Name() string { return string(domain.KindFundingRate) }

// Detect queries each venue's funding rate for every configured symbol.
// Venues without a perp API are skipped after the first attempt.
func (d *Funding) Detect(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for _, v := range d.venues.List() {
		for _, symbol := range d.cfg.Symbols {
			rate, err := v.FetchFundingRate(ctx, symbol)
			if err != nil {
				d.logger.Debug("funding fetch failed",
					slog.String("venue", v.Name()),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, domain.ErrFundingUnsupported) {
					break // no perp API on this venue, skip its remaining symbols
				}
				continue
			}
			if opp, ok := d.evaluate(v.Name(), rate); ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps, nil
}

func (d *Funding) evaluate(venueName string, rate domain.FundingRate) (domain.ArbitrageOpportunity, bool) {
	if math.Abs(rate.Rate) <= d.cfg.MinAbsRate {
		return domain.ArbitrageOpportunity{}, false
	}

	direction := domain.LongSpotShortPerp
	if rate.Rate < 0 {
		direction = domain.ShortSpotLongPerp
	}
	perIntervalPct := math.Abs(rate.Rate) * 100
	annualizedPct := rate.Rate * float64(rate.IntervalsPerDay) * 365 * 100

	opp := domain.ArbitrageOpportunity{
		ID:           domain.OpportunityID(domain.KindFundingRate, rate.Symbol, venueName, rate.FetchedAt),
		Kind:         domain.KindFundingRate,
		Symbol:       rate.Symbol,
		BuyVenue:     venueName + "_spot",
		SellVenue:    venueName + "_perp",
		SpreadPct:    perIntervalPct,
		NetProfitPct: perIntervalPct,
		MaxSize:      d.cfg.MaxSize,
		ExecLatency:  fundingExecLatency,
		Confidence:   0.6,
		DetectedAt:   rate.FetchedAt,
		Funding: &domain.FundingDetail{
			Venue:           venueName,
			Rate:            rate.Rate,
			AnnualizedPct:   annualizedPct,
			IntervalsPerDay: rate.IntervalsPerDay,
			Direction:       direction,
		},
	}
	return opp, true
}
