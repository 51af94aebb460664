package domain

import "time"

// ScanCycleResult summarizes one orchestrator run. Opportunities are the
// post-filter survivors sorted by net profit descending. The result is
// returned to the caller and broadcast for observability; it is not stored.
type ScanCycleResult struct {
	StartedAt       time.Time              `json:"started_at"`
	Duration        time.Duration          `json:"duration"`
	BudgetSnapshot  float64                `json:"budget_snapshot"`
	Skipped         bool                   `json:"skipped"` // budget <= 0, no scan ran
	Opportunities   []ArbitrageOpportunity `json:"opportunities"`
	Considered      int                    `json:"considered"`
	Executed        int                    `json:"executed"`
	EstimatedProfit float64                `json:"estimated_profit"`
}

// ArbitrageStats is the engine's running tally. Counters only ever grow;
// resets happen outside the engine.
type ArbitrageStats struct {
	TotalScans         int64     `json:"total_scans"`
	TotalOpportunities int64     `json:"total_opportunities"`
	TotalExecuted      int64     `json:"total_executed"`
	TotalProfit        float64   `json:"total_profit"`
	LastScan           time.Time `json:"last_scan"`
}
