package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/coinarb/arbot/internal/crypto"
	"github.com/coinarb/arbot/internal/domain"
)

const (
	bybitDefaultBaseURL = "https://api.bybit.com"
	bybitRecvWindow     = "5000"
	// Bybit linear perps settle funding every 8 hours.
	bybitFundingPerDay   = 3
	bybitFundingInterval = 8 * time.Hour
)

// Bybit is a REST adapter for the Bybit v5 API. Market data uses the public
// endpoints; order placement signs requests with HMAC-SHA256.
type Bybit struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
	timeout    time.Duration
}

var (
	_ Venue       = (*Bybit)(nil)
	_ OrderPlacer = (*Bybit)(nil)
)

// NewBybit creates a Bybit adapter. An empty baseURL selects the production
// API; tests point it at a local server.
func NewBybit(baseURL, apiKey, apiSecret string, timeout time.Duration) *Bybit {
	if baseURL == "" {
		baseURL = bybitDefaultBaseURL
	}
	return &Bybit{
		baseURL:    baseURL,
		auth:       &crypto.HMACAuth{Key: apiKey, Secret: apiSecret},
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Name implements Venue.
func (b *Bybit) Name() string { return "bybit" }

type bybitTicker struct {
	Symbol      string `json:"symbol"`
	Bid1Price   string `json:"bid1Price"`
	Ask1Price   string `json:"ask1Price"`
	LastPrice   string `json:"lastPrice"`
	Turnover24h string `json:"turnover24h"`
}

// FetchTicker implements Venue.
func (b *Bybit) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", compactSymbol(symbol))

	var result struct {
		List []bybitTicker `json:"list"`
	}
	if err := b.doRequest(ctx, http.MethodGet, "/v5/market/tickers?"+params.Encode(), nil, false, &result); err != nil {
		return domain.VenueTicker{}, fmt.Errorf("bybit: ticker %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return domain.VenueTicker{}, fmt.Errorf("bybit: ticker %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	t := result.List[0]

	bid, err := parsePrice("bybit", "bid", t.Bid1Price)
	if err != nil {
		return domain.VenueTicker{}, err
	}
	ask, err := parsePrice("bybit", "ask", t.Ask1Price)
	if err != nil {
		return domain.VenueTicker{}, err
	}

	return domain.VenueTicker{
		Venue:          b.Name(),
		Symbol:         symbol,
		Bid:            bid,
		Ask:            ask,
		Last:           parseOptional(t.LastPrice),
		QuoteVolume24h: parseOptional(t.Turnover24h),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// FetchMarkets implements Venue via the spot instruments-info endpoint.
func (b *Bybit) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	}
	if err := b.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info?category=spot", nil, false, &result); err != nil {
		return nil, fmt.Errorf("bybit: markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(result.List))
	for _, s := range result.List {
		markets = append(markets, domain.Market{
			Venue:  b.Name(),
			Symbol: s.BaseCoin + "/" + s.QuoteCoin,
			Base:   s.BaseCoin,
			Quote:  s.QuoteCoin,
			Active: s.Status == "Trading",
		})
	}
	return markets, nil
}

// FetchFundingRate implements Venue via the linear funding-history endpoint;
// the latest settled rate stands in for the current interval.
func (b *Bybit) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", compactSymbol(symbol))
	params.Set("limit", "1")

	var result struct {
		List []struct {
			FundingRate          string `json:"fundingRate"`
			FundingRateTimestamp string `json:"fundingRateTimestamp"`
		} `json:"list"`
	}
	if err := b.doRequest(ctx, http.MethodGet, "/v5/market/funding/history?"+params.Encode(), nil, false, &result); err != nil {
		return domain.FundingRate{}, fmt.Errorf("bybit: funding %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return domain.FundingRate{}, fmt.Errorf("bybit: funding %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	entry := result.List[0]

	rate, err := parsePrice("bybit", "funding rate", entry.FundingRate)
	if err != nil {
		return domain.FundingRate{}, err
	}

	var next time.Time
	if settled := parseOptional(entry.FundingRateTimestamp); settled > 0 {
		next = time.UnixMilli(int64(settled)).Add(bybitFundingInterval).UTC()
	}

	return domain.FundingRate{
		Venue:           b.Name(),
		Symbol:          symbol,
		Rate:            rate,
		IntervalsPerDay: bybitFundingPerDay,
		NextFundingAt:   next,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// PlaceMarketOrder implements OrderPlacer with a spot market order. The
// marketUnit field makes qty quote-denominated for both sides.
func (b *Bybit) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quoteAmount float64) (string, error) {
	sideStr := "Buy"
	if side == SideSell {
		sideStr = "Sell"
	}
	order := map[string]string{
		"category":   "spot",
		"symbol":     compactSymbol(symbol),
		"side":       sideStr,
		"orderType":  "Market",
		"qty":        fmt.Sprintf("%g", quoteAmount),
		"marketUnit": "quoteCoin",
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", order, true, &result); err != nil {
		return "", fmt.Errorf("bybit: order %s: %w", symbol, err)
	}
	return result.OrderID, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// bybitEnvelope is the wrapper every v5 response comes in.
type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// doRequest builds, optionally signs, sends, and decodes a v5 API request,
// unmarshalling the envelope's result field into out.
func (b *Bybit) doRequest(ctx context.Context, method, path string, reqBody any, signed bool, out any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var bodyStr string
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if signed {
		for k, v := range b.auth.BybitHeaders(bybitRecvWindow, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus("bybit", resp.StatusCode); err != nil {
		return err
	}

	var env bybitEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := mapBybitRetCode(env.RetCode, env.RetMsg); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// mapBybitRetCode converts Bybit business error codes to domain sentinels.
func mapBybitRetCode(code int, msg string) error {
	switch {
	case code == 0:
		return nil
	case code == 10001: // params error, includes unknown symbols
		return fmt.Errorf("%s: %w", msg, domain.ErrSymbolNotFound)
	case code == 10003 || code == 10004 || code == 10005: // key/signature/permission
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	case code == 10006 || code == 10018: // rate limits
		return fmt.Errorf("%s: %w", msg, domain.ErrRateLimited)
	default:
		return fmt.Errorf("retCode %d: %s: %w", code, msg, domain.ErrNetworkUnavailable)
	}
}

// checkHTTPStatus maps non-2xx transport statuses to domain sentinels.
// Shared by the hand-written REST adapters.
func checkHTTPStatus(venue string, statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%s: HTTP %d: %w", venue, statusCode, domain.ErrSymbolNotFound)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%s: HTTP %d: %w", venue, statusCode, domain.ErrUnauthorized)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: HTTP %d: %w", venue, statusCode, domain.ErrRateLimited)
	default:
		return fmt.Errorf("%s: HTTP %d: %w", venue, statusCode, domain.ErrNetworkUnavailable)
	}
}
