package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinarb/arbot/internal/domain"
)

const testTimeout = 2 * time.Second

func TestBybitFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"retCode": 0, "retMsg": "OK",
			"result": {"category": "spot", "list": [{
				"symbol": "BTCUSDT",
				"bid1Price": "64000.5", "ask1Price": "64001.1",
				"lastPrice": "64000.9", "turnover24h": "1234567.89"
			}]}
		}`))
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, "", "", testTimeout)
	tick, err := b.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "bybit", tick.Venue)
	assert.Equal(t, "BTC/USDT", tick.Symbol)
	assert.Equal(t, 64000.5, tick.Bid)
	assert.Equal(t, 64001.1, tick.Ask)
	assert.Equal(t, 64000.9, tick.Last)
	assert.Equal(t, 1234567.89, tick.QuoteVolume24h)
	assert.False(t, tick.FetchedAt.IsZero())
}

func TestBybitUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode": 10001, "retMsg": "params error: Symbol Is Invalid", "result": {}}`))
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, "", "", testTimeout)
	_, err := b.FetchTicker(context.Background(), "NOPE/USDT")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestBybitRateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, "", "", testTimeout)
	_, err := b.FetchTicker(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestBybitPlaceMarketOrderSignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v5/order/create", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		assert.Len(t, r.Header.Get("X-BAPI-SIGN"), 64)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Buy", body["side"])
		assert.Equal(t, "Market", body["orderType"])
		assert.Equal(t, "quoteCoin", body["marketUnit"])

		w.Write([]byte(`{"retCode": 0, "retMsg": "OK", "result": {"orderId": "ord-42"}}`))
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, "key-1", "secret-1", testTimeout)
	id, err := b.PlaceMarketOrder(context.Background(), "BTC/USDT", SideBuy, 100)
	require.NoError(t, err)
	assert.Equal(t, "ord-42", id)
}

func TestOKXFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/ticker", r.URL.Path)
		assert.Equal(t, "ETH-USDT", r.URL.Query().Get("instId"))
		w.Write([]byte(`{
			"code": "0", "msg": "",
			"data": [{"bidPx": "3000.1", "askPx": "3000.4", "last": "3000.2", "volCcy24h": "987654.3"}]
		}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL, testTimeout)
	tick, err := o.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, "okx", tick.Venue)
	assert.Equal(t, 3000.1, tick.Bid)
	assert.Equal(t, 3000.4, tick.Ask)
	assert.Equal(t, 987654.3, tick.QuoteVolume24h)
}

func TestOKXUnknownInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": "51001", "msg": "Instrument ID does not exist", "data": []}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL, testTimeout)
	_, err := o.FetchTicker(context.Background(), "NOPE/USDT")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestOKXFetchFundingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/funding-rate", r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		w.Write([]byte(`{
			"code": "0", "msg": "",
			"data": [{"fundingRate": "0.0007", "nextFundingTime": "1700000000000"}]
		}`))
	}))
	defer srv.Close()

	o := NewOKX(srv.URL, testTimeout)
	fr, err := o.FetchFundingRate(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, 0.0007, fr.Rate)
	assert.Equal(t, okxFundingPerDay, fr.IntervalsPerDay)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), fr.NextFundingAt)
}

func TestMEXCFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"symbol": "SOLUSDT",
			"bidPrice": "150.25", "askPrice": "150.30",
			"lastPrice": "150.27", "quoteVolume": "456789.1"
		}`))
	}))
	defer srv.Close()

	m := NewMEXC(srv.URL, testTimeout)
	tick, err := m.FetchTicker(context.Background(), "SOL/USDT")
	require.NoError(t, err)

	assert.Equal(t, "mexc", tick.Venue)
	assert.Equal(t, 150.25, tick.Bid)
	assert.Equal(t, 150.30, tick.Ask)
	assert.Equal(t, 150.27, tick.Last)
}

func TestMEXCUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -1121, "msg": "Invalid symbol."}`))
	}))
	defer srv.Close()

	m := NewMEXC(srv.URL, testTimeout)
	_, err := m.FetchTicker(context.Background(), "NOPE/USDT")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestMEXCFundingUnsupported(t *testing.T) {
	m := NewMEXC("http://unused", testTimeout)
	_, err := m.FetchFundingRate(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, domain.ErrFundingUnsupported)
}

func TestLimitedPassesThroughAndGuardsOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"symbol": "BTCUSDT",
			"bidPrice": "100", "askPrice": "101",
			"lastPrice": "100.5", "quoteVolume": "1000"
		}`))
	}))
	defer srv.Close()

	limited := Limit(NewMEXC(srv.URL, testTimeout), 100, 10)

	tick, err := limited.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "mexc", limited.Name())
	assert.Equal(t, 100.0, tick.Bid)

	// MEXC is quote-only, so orders through the wrapper surface a typed error.
	_, err = limited.PlaceMarketOrder(context.Background(), "BTC/USDT", SideBuy, 50)
	assert.ErrorIs(t, err, domain.ErrLiveUnsupported)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMEXC("http://one", testTimeout))
	r.Register(NewOKX("http://two", testTimeout))

	assert.Equal(t, 2, r.Len())

	got, err := r.Get("MEXC")
	require.NoError(t, err)
	assert.Equal(t, "mexc", got.Name())

	_, err = r.Get("kraken")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	names := make([]string, 0, 2)
	for _, v := range r.List() {
		names = append(names, v.Name())
	}
	assert.Equal(t, []string{"mexc", "okx"}, names, "List is sorted for deterministic scans")
}
