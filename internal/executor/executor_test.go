package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/venue"
)

type placedOrder struct {
	symbol string
	side   venue.Side
	amount float64
}

// tradingVenue is a fake venue that accepts orders and records them.
type tradingVenue struct {
	name    string
	orders  []placedOrder
	failAt  int // 1-based order index that fails, 0 means never
	nextErr error
}

func (v *tradingVenue) Name() string { return v.name }

func (v *tradingVenue) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	return domain.VenueTicker{}, domain.ErrSymbolNotFound
}

func (v *tradingVenue) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	return nil, nil
}

func (v *tradingVenue) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	return domain.FundingRate{}, domain.ErrFundingUnsupported
}

func (v *tradingVenue) PlaceMarketOrder(ctx context.Context, symbol string, side venue.Side, quoteAmount float64) (string, error) {
	v.orders = append(v.orders, placedOrder{symbol: symbol, side: side, amount: quoteAmount})
	if v.failAt == len(v.orders) {
		return "", v.nextErr
	}
	return "ord-1", nil
}

// quoteVenue quotes prices but takes no orders.
type quoteVenue struct {
	name string
}

func (v *quoteVenue) Name() string { return v.name }

func (v *quoteVenue) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	return domain.VenueTicker{}, domain.ErrSymbolNotFound
}

func (v *quoteVenue) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	return nil, nil
}

func (v *quoteVenue) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	return domain.FundingRate{}, domain.ErrFundingUnsupported
}

var (
	_ venue.Venue       = (*tradingVenue)(nil)
	_ venue.OrderPlacer = (*tradingVenue)(nil)
	_ venue.Venue       = (*quoteVenue)(nil)
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func crossOpp(buy, sell string) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:           "opp-1",
		Kind:         domain.KindCrossExchange,
		Symbol:       "BTC/USDT",
		BuyVenue:     buy,
		SellVenue:    sell,
		BuyPrice:     64000,
		SellPrice:    64100,
		NetProfitPct: 0.15,
		Confidence:   0.8,
		DetectedAt:   time.Now(),
	}
}

func TestPaperExecuteAlwaysSucceeds(t *testing.T) {
	p := NewPaper(discard())
	assert.Equal(t, domain.ModePaper, p.Mode())
	assert.NoError(t, p.Execute(context.Background(), crossOpp("okx", "bybit"), 500))
}

func TestLiveCrossExchangePlacesBothLegs(t *testing.T) {
	buy := &tradingVenue{name: "okx"}
	sell := &tradingVenue{name: "bybit"}
	reg := venue.NewRegistry()
	reg.Register(buy)
	reg.Register(sell)

	l := NewLive(reg, discard())
	assert.Equal(t, domain.ModeLive, l.Mode())

	err := l.Execute(context.Background(), crossOpp("okx", "bybit"), 250)
	require.NoError(t, err)

	require.Len(t, buy.orders, 1)
	assert.Equal(t, placedOrder{symbol: "BTC/USDT", side: venue.SideBuy, amount: 250}, buy.orders[0])
	require.Len(t, sell.orders, 1)
	assert.Equal(t, placedOrder{symbol: "BTC/USDT", side: venue.SideSell, amount: 250}, sell.orders[0])
}

func TestLiveSellLegFailureSurfacesAfterBuy(t *testing.T) {
	buy := &tradingVenue{name: "okx"}
	sell := &tradingVenue{name: "bybit", failAt: 1, nextErr: errors.New("insufficient balance")}
	reg := venue.NewRegistry()
	reg.Register(buy)
	reg.Register(sell)

	l := NewLive(reg, discard())
	err := l.Execute(context.Background(), crossOpp("okx", "bybit"), 250)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sell leg on bybit")
	assert.Len(t, buy.orders, 1, "buy leg is placed before the sell leg fails")
}

func TestLiveBuyVenueWithoutTradingIsRejected(t *testing.T) {
	reg := venue.NewRegistry()
	reg.Register(&quoteVenue{name: "mexc"})
	reg.Register(&tradingVenue{name: "bybit"})

	l := NewLive(reg, discard())
	err := l.Execute(context.Background(), crossOpp("mexc", "bybit"), 100)
	assert.ErrorIs(t, err, domain.ErrLiveUnsupported)
}

func TestLiveUnknownVenue(t *testing.T) {
	reg := venue.NewRegistry()
	reg.Register(&tradingVenue{name: "okx"})

	l := NewLive(reg, discard())
	err := l.Execute(context.Background(), crossOpp("okx", "gone"), 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLiveRejectsUnsupportedKinds(t *testing.T) {
	reg := venue.NewRegistry()
	reg.Register(&tradingVenue{name: "okx"})
	l := NewLive(reg, discard())

	for _, kind := range []domain.Kind{domain.KindTriangular, domain.KindFundingRate} {
		opp := crossOpp("okx", "okx")
		opp.Kind = kind
		err := l.Execute(context.Background(), opp, 100)
		assert.ErrorIs(t, err, domain.ErrLiveUnsupported, string(kind))
	}
}

func TestLiveDepegDirections(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.DepegDirection
		wantSide  venue.Side
	}{
		{name: "below peg buys", direction: domain.DepegBuy, wantSide: venue.SideBuy},
		{name: "above peg sells", direction: domain.DepegSell, wantSide: venue.SideSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &tradingVenue{name: "okx"}
			reg := venue.NewRegistry()
			reg.Register(v)

			opp := crossOpp("okx", "okx")
			opp.Kind = domain.KindStablecoin
			opp.Symbol = "USDC/USDT"
			opp.Depeg = &domain.DepegDetail{
				Venue:        "okx",
				LastPrice:    0.997,
				DeviationPct: 0.3,
				Direction:    tt.direction,
			}

			l := NewLive(reg, discard())
			require.NoError(t, l.Execute(context.Background(), opp, 100))
			require.Len(t, v.orders, 1)
			assert.Equal(t, tt.wantSide, v.orders[0].side)
			assert.Equal(t, "USDC/USDT", v.orders[0].symbol)
		})
	}
}

func TestLiveDepegWithoutDetailFails(t *testing.T) {
	reg := venue.NewRegistry()
	reg.Register(&tradingVenue{name: "okx"})

	opp := crossOpp("okx", "okx")
	opp.Kind = domain.KindStablecoin
	opp.Depeg = nil

	l := NewLive(reg, discard())
	assert.Error(t, l.Execute(context.Background(), opp, 100))
}
