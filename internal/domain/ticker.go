package domain

import "time"

// VenueTicker is a single best-bid/ask snapshot from one venue. It is owned
// by the detector that fetched it and never mutated after construction.
type VenueTicker struct {
	Venue          string
	Symbol         string
	Bid            float64
	Ask            float64
	Last           float64
	QuoteVolume24h float64
	FetchedAt      time.Time
}

// FundingRate is the current (or next predicted) funding rate for a linear
// perpetual contract.
type FundingRate struct {
	Venue           string
	Symbol          string
	Rate            float64 // signed fraction per funding interval
	IntervalsPerDay int
	NextFundingAt   time.Time
	FetchedAt       time.Time
}

// Market is one tradable pair listed on a venue.
type Market struct {
	Venue  string
	Symbol string
	Base   string
	Quote  string
	Active bool
}
