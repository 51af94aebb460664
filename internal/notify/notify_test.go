package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinarb/arbot/internal/domain"
)

type captureSender struct {
	name     string
	titles   []string
	messages []string
	err      error
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	sender := &captureSender{name: "test"}
	n := New([]Sender{sender}, []string{EventExecuted}, discard())

	require.NoError(t, n.Notify(context.Background(), EventReport, "report", "body"))
	assert.Empty(t, sender.titles, "report events are not in the allowed list")

	require.NoError(t, n.Notify(context.Background(), EventExecuted, "executed", "body"))
	assert.Equal(t, []string{"executed"}, sender.titles)
}

func TestNotifyEmptyEventListAllowsEverything(t *testing.T) {
	sender := &captureSender{name: "test"}
	n := New([]Sender{sender}, nil, discard())

	require.NoError(t, n.Notify(context.Background(), EventHealth, "health", "body"))
	assert.Len(t, sender.titles, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &captureSender{name: "broken", err: errors.New("chat gone")}
	working := &captureSender{name: "working"}
	n := New([]Sender{broken, working}, nil, discard())

	err := n.Notify(context.Background(), EventStartup, "up", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"up"}, working.titles, "healthy sender still delivers")
}

func TestNoSendersIsANoOp(t *testing.T) {
	n := New(nil, nil, discard())
	assert.NoError(t, n.Notify(context.Background(), EventStartup, "up", "body"))
}

func TestTradeExecutedFormatting(t *testing.T) {
	sender := &captureSender{name: "test"}
	alerts := NewAlerts(New([]Sender{sender}, nil, discard()), domain.ModePaper)

	opp := domain.ArbitrageOpportunity{
		Kind:      domain.KindCrossExchange,
		Symbol:    "BTC/USDT",
		BuyVenue:  "okx",
		BuyPrice:  64000,
		SellVenue: "bybit",
		SellPrice: 64100,
		SpreadPct: 0.156,
	}
	trade := domain.TradeRecord{Size: 250, EstimatedProfit: 1.23}

	require.NoError(t, alerts.TradeExecuted(context.Background(), trade, opp))
	require.Len(t, sender.titles, 1)
	assert.Equal(t, "arbitrage executed [paper]", sender.titles[0])

	msg := sender.messages[0]
	assert.Contains(t, msg, "symbol: BTC/USDT")
	assert.Contains(t, msg, "buy: okx @ $64000.0000")
	assert.Contains(t, msg, "sell: bybit @ $64100.0000")
	assert.Contains(t, msg, "spread: 0.156%")
	assert.Contains(t, msg, "size: $250.00")
	assert.Contains(t, msg, "est. profit: $+1.23")
}

func TestTradeFailedCarriesError(t *testing.T) {
	sender := &captureSender{name: "test"}
	alerts := NewAlerts(New([]Sender{sender}, nil, discard()), domain.ModeLive)

	opp := domain.ArbitrageOpportunity{
		Kind:      domain.KindCrossExchange,
		Symbol:    "ETH/USDT",
		BuyVenue:  "okx",
		SellVenue: "bybit",
	}
	require.NoError(t, alerts.TradeFailed(context.Background(), opp, 120, errors.New("insufficient balance")))

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "execution failed [live]", sender.titles[0])
	assert.Contains(t, sender.messages[0], "venues: okx -> bybit")
	assert.Contains(t, sender.messages[0], "error: insufficient balance")
}

func TestAllocationUpdatedFormatting(t *testing.T) {
	sender := &captureSender{name: "test"}
	alerts := NewAlerts(New([]Sender{sender}, nil, discard()), domain.ModePaper)

	alloc := domain.Allocation{
		TradingPct:   40,
		ArbitragePct: 40,
		ReservePct:   20,
		TotalCapital: 10000,
	}
	require.NoError(t, alerts.AllocationUpdated(context.Background(), alloc))

	msg := sender.messages[0]
	assert.Contains(t, msg, "arbitrage: 40% ($4000.00)")
	assert.Contains(t, msg, "trading: 40% ($4000.00)")
	assert.Contains(t, msg, "reserve: 20% ($2000.00)")
}

func TestDiscordSenderDelivers(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "title", "line one\nline two"))
	assert.Equal(t, "**title**\nline one\nline two", got["content"])
}

func TestDiscordSenderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "invalid webhook"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	err := d.Send(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
