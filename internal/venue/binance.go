package venue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/coinarb/arbot/internal/domain"
)

// binanceFundingPerDay: funding settles every 8 hours on Binance perps.
const binanceFundingPerDay = 3

// Binance adapts the Binance spot API (tickers, markets, orders) and the
// USD-M futures API (funding rates) to the Venue interface.
type Binance struct {
	spot    *binance.Client
	futures *futures.Client
	timeout time.Duration
}

var (
	_ Venue       = (*Binance)(nil)
	_ OrderPlacer = (*Binance)(nil)
)

// NewBinance creates a Binance adapter. Credentials may be empty for
// quote-only use; order placement then fails with an auth error upstream.
func NewBinance(apiKey, apiSecret string, timeout time.Duration) *Binance {
	return &Binance{
		spot:    binance.NewClient(apiKey, apiSecret),
		futures: binance.NewFuturesClient(apiKey, apiSecret),
		timeout: timeout,
	}
}

// Name implements Venue.
func (b *Binance) Name() string { return "binance" }

// FetchTicker implements Venue using the 24hr price-change statistics
// endpoint, which carries best bid/ask, last price, and quote volume in a
// single call.
func (b *Binance) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	stats, err := b.spot.NewListPriceChangeStatsService().Symbol(compactSymbol(symbol)).Do(ctx)
	if err != nil {
		return domain.VenueTicker{}, mapBinanceErr("ticker "+symbol, err)
	}
	if len(stats) == 0 {
		return domain.VenueTicker{}, fmt.Errorf("binance: ticker %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	s := stats[0]

	bid, err := parsePrice("binance", "bid", s.BidPrice)
	if err != nil {
		return domain.VenueTicker{}, err
	}
	ask, err := parsePrice("binance", "ask", s.AskPrice)
	if err != nil {
		return domain.VenueTicker{}, err
	}

	return domain.VenueTicker{
		Venue:          b.Name(),
		Symbol:         symbol,
		Bid:            bid,
		Ask:            ask,
		Last:           parseOptional(s.LastPrice),
		QuoteVolume24h: parseOptional(s.QuoteVolume),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// FetchMarkets implements Venue via the spot exchange-info endpoint.
func (b *Binance) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	info, err := b.spot.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, mapBinanceErr("markets", err)
	}

	markets := make([]domain.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		markets = append(markets, domain.Market{
			Venue:  b.Name(),
			Symbol: s.BaseAsset + "/" + s.QuoteAsset,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
			Active: s.Status == "TRADING",
		})
	}
	return markets, nil
}

// FetchFundingRate implements Venue via the USD-M futures premium index,
// which reports the last funding rate and the next settlement time.
func (b *Binance) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	premiums, err := b.futures.NewPremiumIndexService().Symbol(compactSymbol(symbol)).Do(ctx)
	if err != nil {
		return domain.FundingRate{}, mapBinanceErr("funding "+symbol, err)
	}
	if len(premiums) == 0 {
		return domain.FundingRate{}, fmt.Errorf("binance: funding %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	p := premiums[0]

	rate, err := parsePrice("binance", "funding rate", p.LastFundingRate)
	if err != nil {
		return domain.FundingRate{}, err
	}

	return domain.FundingRate{
		Venue:           b.Name(),
		Symbol:          symbol,
		Rate:            rate,
		IntervalsPerDay: binanceFundingPerDay,
		NextFundingAt:   time.UnixMilli(p.NextFundingTime).UTC(),
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// PlaceMarketOrder implements OrderPlacer with a spot market order sized in
// quote currency.
func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quoteAmount float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	sideType := binance.SideTypeBuy
	if side == SideSell {
		sideType = binance.SideTypeSell
	}

	order, err := b.spot.NewCreateOrderService().
		Symbol(compactSymbol(symbol)).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(quoteAmount, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return "", mapBinanceErr("order "+symbol, err)
	}
	return strconv.FormatInt(order.OrderID, 10), nil
}

// mapBinanceErr converts SDK and transport failures into domain sentinels so
// detectors can pattern-match instead of string-matching.
func mapBinanceErr(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1121, -1100: // invalid symbol / illegal characters
			return fmt.Errorf("binance: %s: %w", op, domain.ErrSymbolNotFound)
		case -1003: // too many requests
			return fmt.Errorf("binance: %s: %w", op, domain.ErrRateLimited)
		case -2014, -2015, -1022: // bad API key, invalid signature
			return fmt.Errorf("binance: %s: %w", op, domain.ErrUnauthorized)
		default:
			return fmt.Errorf("binance: %s: code %d %s: %w", op, apiErr.Code, apiErr.Message, domain.ErrNetworkUnavailable)
		}
	}
	return fmt.Errorf("binance: %s: %v: %w", op, err, domain.ErrNetworkUnavailable)
}
