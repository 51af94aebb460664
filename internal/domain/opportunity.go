package domain

import (
	"fmt"
	"time"
)

// Kind classifies the arbitrage strategy that produced an opportunity.
type Kind string

const (
	KindCrossExchange Kind = "cross_exchange"
	KindTriangular    Kind = "triangular"
	KindFundingRate   Kind = "funding_rate"
	KindStablecoin    Kind = "stablecoin"
)

// FundingDirection says which side of the spot/perp pair to hold.
type FundingDirection string

const (
	LongSpotShortPerp FundingDirection = "long_spot_short_perp"
	ShortSpotLongPerp FundingDirection = "short_spot_long_perp"
)

// DepegDirection says whether a depegged stablecoin should be bought or sold.
type DepegDirection string

const (
	DepegBuy  DepegDirection = "buy"
	DepegSell DepegDirection = "sell"
)

// ArbitrageOpportunity is one candidate trade detected within a single scan
// cycle. It is immutable once built and is never carried across cycles.
// Exactly one of the detail pointers is set, matching Kind.
type ArbitrageOpportunity struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Symbol string `json:"symbol"` // trading pair, or the path label for triangular

	BuyVenue  string  `json:"buy_venue"`
	BuyPrice  float64 `json:"buy_price"`
	SellVenue string  `json:"sell_venue"`
	SellPrice float64 `json:"sell_price"`

	SpreadPct    float64       `json:"spread_pct"`     // gross spread, percent
	NetProfitPct float64       `json:"net_profit_pct"` // spread minus all round-trip fees, percent
	MaxSize      float64       `json:"max_size"`       // quote-currency ceiling derived from liquidity
	ExecLatency  time.Duration `json:"exec_latency"`

	Confidence float64   `json:"confidence"` // heuristic in [0,1], not a probability
	DetectedAt time.Time `json:"detected_at"`

	CrossExchange *CrossExchangeDetail `json:"cross_exchange,omitempty"`
	Triangular    *TriangularDetail    `json:"triangular,omitempty"`
	Funding       *FundingDetail       `json:"funding,omitempty"`
	Depeg         *DepegDetail         `json:"depeg,omitempty"`
}

// CrossExchangeDetail carries the per-leg inputs behind a cross-venue spread.
type CrossExchangeDetail struct {
	BuyFeePct     float64 `json:"buy_fee_pct"`
	SellFeePct    float64 `json:"sell_fee_pct"`
	BuyVolume24h  float64 `json:"buy_volume_24h"`
	SellVolume24h float64 `json:"sell_volume_24h"`
}

// TriangularDetail records the simulated three-leg traversal on one venue.
type TriangularDetail struct {
	Venue       string    `json:"venue"`
	Path        [3]string `json:"path"`
	Notional    float64   `json:"notional"`
	FinalAmount float64   `json:"final_amount"`
	LegFeePct   float64   `json:"leg_fee_pct"` // taker fee applied to each of the three legs
}

// FundingDetail describes a funding-rate carry position.
type FundingDetail struct {
	Venue           string           `json:"venue"`
	Rate            float64          `json:"rate"` // per funding interval, signed fraction
	AnnualizedPct   float64          `json:"annualized_pct"`
	IntervalsPerDay int              `json:"intervals_per_day"`
	Direction       FundingDirection `json:"direction"`
}

// DepegDetail describes a stablecoin price deviation from its peg.
type DepegDetail struct {
	Venue        string         `json:"venue"`
	LastPrice    float64        `json:"last_price"`
	DeviationPct float64        `json:"deviation_pct"`
	Direction    DepegDirection `json:"direction"`
}

// OpportunityID builds a stable identifier from the opportunity's inputs.
// Using the snapshot timestamp instead of the wall clock keeps replays of
// identical ticker data byte-for-byte reproducible.
func OpportunityID(kind Kind, symbol string, venues string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%d", kind, symbol, venues, at.UnixMilli())
}
