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

const mexcDefaultBaseURL = "https://api.mexc.com"

// MEXC is a quote-only REST adapter for the MEXC spot v3 API. The spot API
// carries no funding rates, so the funding detector skips this venue.
type MEXC struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

var _ Venue = (*MEXC)(nil)

// NewMEXC creates a MEXC adapter. An empty baseURL selects the production API.
func NewMEXC(baseURL string, timeout time.Duration) *MEXC {
	if baseURL == "" {
		baseURL = mexcDefaultBaseURL
	}
	return &MEXC{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Name implements Venue.
func (m *MEXC) Name() string { return "mexc" }

// FetchTicker implements Venue via the 24hr statistics endpoint.
func (m *MEXC) FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error) {
	params := url.Values{}
	params.Set("symbol", compactSymbol(symbol))

	var t struct {
		BidPrice    string `json:"bidPrice"`
		AskPrice    string `json:"askPrice"`
		LastPrice   string `json:"lastPrice"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := m.doRequest(ctx, "/api/v3/ticker/24hr?"+params.Encode(), &t); err != nil {
		return domain.VenueTicker{}, fmt.Errorf("mexc: ticker %s: %w", symbol, err)
	}

	bid, err := parsePrice("mexc", "bid", t.BidPrice)
	if err != nil {
		return domain.VenueTicker{}, err
	}
	ask, err := parsePrice("mexc", "ask", t.AskPrice)
	if err != nil {
		return domain.VenueTicker{}, err
	}

	return domain.VenueTicker{
		Venue:          m.Name(),
		Symbol:         symbol,
		Bid:            bid,
		Ask:            ask,
		Last:           parseOptional(t.LastPrice),
		QuoteVolume24h: parseOptional(t.QuoteVolume),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// FetchMarkets implements Venue via the exchange-info endpoint.
func (m *MEXC) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var info struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			Status     string `json:"status"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
		} `json:"symbols"`
	}
	if err := m.doRequest(ctx, "/api/v3/exchangeInfo", &info); err != nil {
		return nil, fmt.Errorf("mexc: markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		markets = append(markets, domain.Market{
			Venue:  m.Name(),
			Symbol: s.BaseAsset + "/" + s.QuoteAsset,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
			// MEXC has shipped both spellings across API revisions.
			Active: s.Status == "1" || s.Status == "ENABLED",
		})
	}
	return markets, nil
}

// FetchFundingRate implements Venue. Perpetuals live on a separate contract
// API this adapter does not speak, so funding is reported as unsupported.
func (m *MEXC) FetchFundingRate(_ context.Context, symbol string) (domain.FundingRate, error) {
	return domain.FundingRate{}, fmt.Errorf("mexc: funding %s: %w", symbol, domain.ErrFundingUnsupported)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// mexcError is the JSON error body MEXC returns alongside non-2xx statuses.
type mexcError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (m *MEXC) doRequest(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr mexcError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != 0 {
			return mapMEXCCode(apiErr.Code, apiErr.Msg)
		}
		return checkHTTPStatus("mexc", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapMEXCCode converts MEXC business error codes to domain sentinels.
func mapMEXCCode(code int, msg string) error {
	switch code {
	case -1121, -1100: // invalid symbol
		return fmt.Errorf("%s: %w", msg, domain.ErrSymbolNotFound)
	case -1003: // too many requests
		return fmt.Errorf("%s: %w", msg, domain.ErrRateLimited)
	case 700002, -2015: // signature / api key
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	default:
		return fmt.Errorf("code %d: %s: %w", code, msg, domain.ErrNetworkUnavailable)
	}
}
