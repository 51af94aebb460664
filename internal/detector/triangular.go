package detector

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/fees"
	"github.com/coinarb/arbot/internal/venue"
)

const triangularExecLatency = 300 * time.Millisecond

// TriangularConfig configures the three-leg intra-venue detector.
type TriangularConfig struct {
	// Paths are the leg symbols of each cycle, exactly three per path,
	// quoted and settled in the same currency (e.g. BTC/USDT, ETH/BTC,
	// ETH/USDT).
	Paths    [][]string
	Notional float64 // simulated starting amount in quote currency
	// MinProfitPct is the net threshold a simulated cycle must strictly
	// exceed to be emitted.
	MinProfitPct float64
}

// Triangular simulates fixed three-leg cycles on each venue separately:
// buy leg one at the ask, convert through legs two and three at the bid,
// and compare the final amount against the starting notional after three
// taker fees.
type Triangular struct {
	cfg    TriangularConfig
	paths  [][3]string
	venues *venue.Registry
	fees   *fees.Model
	logger *slog.Logger
}

var _ Detector = (*Triangular)(nil)

// NewTriangular creates the triangular detector. Paths that do not have
// exactly three legs are ignored.
func NewTriangular(cfg TriangularConfig, venues *venue.Registry, fees *fees.Model, logger *slog.Logger) *Triangular {
	paths := make([][3]string, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		if len(p) == 3 {
			paths = append(paths, [3]string{p[0], p[1], p[2]})
		}
	}
	return &Triangular{
		cfg:    cfg,
		paths:  paths,
		venues: venues,
		fees:   fees,
		logger: logger.With(slog.String("detector", string(domain.KindTriangular))),
	}
}

// Name returns the strategy identifier.
func (d *Triangular) Name() string { return string(domain.KindTriangular) }

// Detect walks every venue and path combination. A failed leg fetch skips
// that combination only.
func (d *Triangular) Detect(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for _, v := range d.venues.List() {
		for _, path := range d.paths {
			opp, ok := d.simulate(ctx, v, path)
			if ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps, nil
}

func (d *Triangular) simulate(ctx context.Context, v venue.Venue, path [3]string) (domain.ArbitrageOpportunity, bool) {
	legs := make([]domain.VenueTicker, 3)
	for i, symbol := range path {
		tick, err := v.FetchTicker(ctx, symbol)
		if err != nil {
			d.logger.Debug("leg fetch failed",
				slog.String("venue", v.Name()),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			return domain.ArbitrageOpportunity{}, false
		}
		legs[i] = tick
	}
	if legs[0].Ask <= 0 || legs[1].Bid <= 0 || legs[2].Bid <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}

	// Buy the first asset with the notional, convert through the second
	// pair, then back to the quote currency.
	amount1 := d.cfg.Notional / legs[0].Ask
	amount2 := amount1 * legs[1].Bid
	final := amount2 * legs[2].Bid

	grossPct := (final - d.cfg.Notional) / d.cfg.Notional * 100
	feePct := 3 * d.fees.TakerFeePct(v.Name())
	netPct := grossPct - feePct
	if netPct <= d.cfg.MinProfitPct {
		return domain.ArbitrageOpportunity{}, false
	}

	at := legs[0].FetchedAt
	for _, leg := range legs[1:] {
		if leg.FetchedAt.After(at) {
			at = leg.FetchedAt
		}
	}
	symbol := strings.Join(path[:], "->")

	opp := domain.ArbitrageOpportunity{
		ID:           domain.OpportunityID(domain.KindTriangular, path[0], v.Name(), at),
		Kind:         domain.KindTriangular,
		Symbol:       symbol,
		BuyVenue:     v.Name(),
		BuyPrice:     legs[0].Ask,
		SellVenue:    v.Name(),
		SellPrice:    legs[2].Bid,
		SpreadPct:    grossPct,
		NetProfitPct: netPct,
		MaxSize:      d.cfg.Notional,
		ExecLatency:  triangularExecLatency,
		Confidence:   0.7,
		DetectedAt:   at,
		Triangular: &domain.TriangularDetail{
			Venue:       v.Name(),
			Path:        path,
			Notional:    d.cfg.Notional,
			FinalAmount: final,
			LegFeePct:   d.fees.TakerFeePct(v.Name()),
		},
	}
	return opp, true
}
