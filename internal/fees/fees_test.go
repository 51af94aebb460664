package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakerFeePct(t *testing.T) {
	m := NewModel(0.10, map[string]float64{"okx": 0.06, "Gate": 0.09})

	tests := []struct {
		name  string
		venue string
		want  float64
	}{
		{"stock schedule", "binance", 0.075},
		{"override wins over schedule", "okx", 0.06},
		{"override key is case-insensitive", "gate", 0.09},
		{"venue name is case-insensitive", "BYBIT", 0.075},
		{"unknown venue gets default", "hyperliquid", 0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.TakerFeePct(tt.venue))
		})
	}
}

func TestRoundTripPct(t *testing.T) {
	m := NewModel(0.10, nil)
	assert.InDelta(t, 0.155, m.RoundTripPct("binance", "okx"), 1e-9)
	// Unknown venues never price as free.
	assert.InDelta(t, 0.20, m.RoundTripPct("nowhere", "elsewhere"), 1e-9)
}
