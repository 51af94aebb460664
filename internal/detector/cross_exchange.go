package detector

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/fees"
	"github.com/coinarb/arbot/internal/venue"
)

// crossExecLatency is the assumed time to fill both legs of a two-venue trade.
const crossExecLatency = 500 * time.Millisecond

// CrossExchangeConfig configures the cross-exchange spread detector.
type CrossExchangeConfig struct {
	Symbols []string
	// HighConfidenceSpreadPct is the gross spread (percent) above which an
	// opportunity is scored 0.8 instead of 0.6.
	HighConfidenceSpreadPct float64
}

// CrossExchange quotes the same pair on every connected venue and emits an
// opportunity whenever buying the ask on one venue and selling the bid on
// another clears both taker fees. Every unordered venue pair is checked in
// both directions.
type CrossExchange struct {
	cfg    CrossExchangeConfig
	venues *venue.Registry
	fees   *fees.Model
	logger *slog.Logger
}

var _ Detector = (*CrossExchange)(nil)

// NewCrossExchange creates the cross-exchange detector.
func NewCrossExchange(cfg CrossExchangeConfig, venues *venue.Registry, fees *fees.Model, logger *slog.Logger) *CrossExchange {
	return &CrossExchange{
		cfg:    cfg,
		venues: venues,
		fees:   fees,
		logger: logger.With(slog.String("detector", string(domain.KindCrossExchange))),
	}
}

// Name returns the strategy identifier.
func (d *CrossExchange) Name() string { return string(domain.KindCrossExchange) }

// Detect fans ticker fetches out to all venues per symbol and compares every
// venue pair. A venue that fails to quote drops out of that symbol only;
// fewer than two quotes leaves nothing to compare.
func (d *CrossExchange) Detect(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	vs := d.venues.List()
	if len(vs) < 2 {
		return nil, nil
	}

	var opps []domain.ArbitrageOpportunity
	for _, symbol := range d.cfg.Symbols {
		ticks := d.fetchQuotes(ctx, vs, symbol)
		if len(ticks) < 2 {
			continue
		}
		for i := 0; i < len(ticks); i++ {
			for j := i + 1; j < len(ticks); j++ {
				if opp, ok := d.compare(ticks[i], ticks[j]); ok {
					opps = append(opps, opp)
				}
				if opp, ok := d.compare(ticks[j], ticks[i]); ok {
					opps = append(opps, opp)
				}
			}
		}
	}
	return opps, nil
}

// fetchQuotes gathers tickers for one symbol from all venues concurrently.
// Results keep the registry's venue order so cycles stay deterministic.
func (d *CrossExchange) fetchQuotes(ctx context.Context, vs []venue.Venue, symbol string) []domain.VenueTicker {
	results := make([]domain.VenueTicker, len(vs))
	quoted := make([]bool, len(vs))

	var g errgroup.Group
	for i, v := range vs {
		i, v := i, v // per-iteration copies; required until go.mod can declare go >= 1.22
		g.Go(func() error {
			tick, err := v.FetchTicker(ctx, symbol)
			if err != nil {
				d.logger.Debug("ticker fetch failed",
					slog.String("venue", v.Name()),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if tick.Bid <= 0 || tick.Ask <= 0 {
				return nil
			}
			results[i] = tick
			quoted[i] = true
			return nil
		})
	}
	g.Wait() // workers swallow their errors

	ticks := make([]domain.VenueTicker, 0, len(vs))
	for i := range results {
		if quoted[i] {
			ticks = append(ticks, results[i])
		}
	}
	return ticks
}

// compare prices one direction: buy the ask on one venue, sell the bid on the
// other. The gross spread must strictly exceed the combined taker fees.
func (d *CrossExchange) compare(buy, sell domain.VenueTicker) (domain.ArbitrageOpportunity, bool) {
	spreadPct := (sell.Bid - buy.Ask) / buy.Ask * 100
	feePct := d.fees.RoundTripPct(buy.Venue, sell.Venue)
	if spreadPct <= feePct {
		return domain.ArbitrageOpportunity{}, false
	}

	at := buy.FetchedAt
	if sell.FetchedAt.After(at) {
		at = sell.FetchedAt
	}
	confidence := 0.6
	if spreadPct > d.cfg.HighConfidenceSpreadPct {
		confidence = 0.8
	}

	opp := domain.ArbitrageOpportunity{
		ID:           domain.OpportunityID(domain.KindCrossExchange, buy.Symbol, buy.Venue+"_"+sell.Venue, at),
		Kind:         domain.KindCrossExchange,
		Symbol:       buy.Symbol,
		BuyVenue:     buy.Venue,
		BuyPrice:     buy.Ask,
		SellVenue:    sell.Venue,
		SellPrice:    sell.Bid,
		SpreadPct:    spreadPct,
		NetProfitPct: spreadPct - feePct,
		MaxSize:      math.Min(buy.QuoteVolume24h, sell.QuoteVolume24h) * 0.01,
		ExecLatency:  crossExecLatency,
		Confidence:   confidence,
		DetectedAt:   at,
		CrossExchange: &domain.CrossExchangeDetail{
			BuyFeePct:     d.fees.TakerFeePct(buy.Venue),
			SellFeePct:    d.fees.TakerFeePct(sell.Venue),
			BuyVolume24h:  buy.QuoteVolume24h,
			SellVolume24h: sell.QuoteVolume24h,
		},
	}
	return opp, true
}
