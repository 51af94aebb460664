package domain

import "time"

// ExecutionMode selects how the gate settles an opportunity.
type ExecutionMode string

const (
	ModePaper ExecutionMode = "paper"
	ModeLive  ExecutionMode = "live"
)

// TradeRecord is one executed (or simulated) arbitrage trade, appended to
// the bounded journal for reporting.
type TradeRecord struct {
	ID              string        `json:"id"`
	OpportunityID   string        `json:"opportunity_id"`
	Kind            Kind          `json:"kind"`
	Symbol          string        `json:"symbol"`
	BuyVenue        string        `json:"buy_venue"`
	SellVenue       string        `json:"sell_venue"`
	Size            float64       `json:"size"`
	NetProfitPct    float64       `json:"net_profit_pct"`
	EstimatedProfit float64       `json:"estimated_profit"`
	Mode            ExecutionMode `json:"mode"`
	ExecutedAt      time.Time     `json:"executed_at"`
}
