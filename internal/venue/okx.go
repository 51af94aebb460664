package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

const (
	okxDefaultBaseURL = "https://www.okx.com"
	// OKX perp funding settles every 8 hours.
	okxFundingPerDay = 3
)

// OKX is a quote-only REST adapter for the OKX v5 public API.
type OKX struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

var _ Venue = (*OKX)(nil)

// NewOKX creates an OKX adapter. An empty baseURL selects the production API.
func NewOKX(baseURL string, timeout time.Duration) *OKX {
	if baseURL == "" {
		baseURL = okxDefaultBaseURL
	}
	return &OKX{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Name implements Venue.
func (o *OKX) Name() string { return "okx" }

// FetchTicker implements Venue.
func (o *OKX) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	params := url.Values{}
	params.Set("instId", dashSymbol(symbol))

	var data []struct {
		BidPx     string `json:"bidPx"`
		AskPx     string `json:"askPx"`
		Last      string `json:"last"`
		VolCcy24h string `json:"volCcy24h"` // quote-currency volume for spot
	}
	if err := o.doRequest(ctx, "/api/v5/market/ticker?"+params.Encode(), &data); err != nil {
		return domain.VenueTicker{}, fmt.Errorf("okx: ticker %s: %w", symbol, err)
	}
	if len(data) == 0 {
		return domain.VenueTicker{}, fmt.Errorf("okx: ticker %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	t := data[0]

	bid, err := parsePrice("okx", "bid", t.BidPx)
	if err != nil {
		return domain.VenueTicker{}, err
	}
	ask, err := parsePrice("okx", "ask", t.AskPx)
	if err != nil {
		return domain.VenueTicker{}, err
	}

	return domain.VenueTicker{
		Venue:          o.Name(),
		Symbol:         symbol,
		Bid:            bid,
		Ask:            ask,
		Last:           parseOptional(t.Last),
		QuoteVolume24h: parseOptional(t.VolCcy24h),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// FetchMarkets implements Venue via the public instruments endpoint.
func (o *OKX) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var data []struct {
		InstID   string `json:"instId"`
		BaseCcy  string `json:"baseCcy"`
		QuoteCcy string `json:"quoteCcy"`
		State    string `json:"state"`
	}
	if err := o.doRequest(ctx, "/api/v5/public/instruments?instType=SPOT", &data); err != nil {
		return nil, fmt.Errorf("okx: markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(data))
	for _, s := range data {
		markets = append(markets, domain.Market{
			Venue:  o.Name(),
			Symbol: s.BaseCcy + "/" + s.QuoteCcy,
			Base:   s.BaseCcy,
			Quote:  s.QuoteCcy,
			Active: s.State == "live",
		})
	}
	return markets, nil
}

// FetchFundingRate implements Venue against the perpetual swap instrument
// derived from the spot symbol (BTC/USDT -> BTC-USDT-SWAP).
func (o *OKX) FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	params := url.Values{}
	params.Set("instId", dashSymbol(symbol)+"-SWAP")

	var data []struct {
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	}
	if err := o.doRequest(ctx, "/api/v5/public/funding-rate?"+params.Encode(), &data); err != nil {
		return domain.FundingRate{}, fmt.Errorf("okx: funding %s: %w", symbol, err)
	}
	if len(data) == 0 {
		return domain.FundingRate{}, fmt.Errorf("okx: funding %s: %w", symbol, domain.ErrSymbolNotFound)
	}
	entry := data[0]

	rate, err := parsePrice("okx", "funding rate", entry.FundingRate)
	if err != nil {
		return domain.FundingRate{}, err
	}

	var next time.Time
	if ts := parseOptional(entry.NextFundingTime); ts > 0 {
		next = time.UnixMilli(int64(ts)).UTC()
	}

	return domain.FundingRate{
		Venue:           o.Name(),
		Symbol:          symbol,
		Rate:            rate,
		IntervalsPerDay: okxFundingPerDay,
		NextFundingAt:   next,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// okxEnvelope is the wrapper every v5 response comes in. OKX serializes its
// business code as a string.
type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (o *OKX) doRequest(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus("okx", resp.StatusCode); err != nil {
		return err
	}

	var env okxEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := mapOKXCode(env.Code, env.Msg); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// mapOKXCode converts OKX business error codes to domain sentinels.
func mapOKXCode(code, msg string) error {
	switch code {
	case "0":
		return nil
	case "51001": // instrument does not exist
		return fmt.Errorf("%s: %w", msg, domain.ErrSymbolNotFound)
	case "50011": // requests too frequent
		return fmt.Errorf("%s: %w", msg, domain.ErrRateLimited)
	case "50102", "50103", "50111", "50113": // timestamp/key/signature
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	default:
		return fmt.Errorf("code %s: %s: %w", code, msg, domain.ErrNetworkUnavailable)
	}
}
