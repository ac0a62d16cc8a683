package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFeedCanonicalisesSymbols(t *testing.T) {
	feed := NewStaticFeed()
	feed.Set("XAUUSDm", decimal.RequireFromString("2000.0"), decimal.RequireFromString("2000.4"))

	q, err := feed.Quote(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.True(t, q.Mid().Equal(decimal.RequireFromString("2000.2")))
	assert.True(t, q.Spread().Equal(decimal.RequireFromString("0.4")))
}

func TestStaticFeedMaxAge(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	feed := NewStaticFeed()
	feed.Now = func() time.Time { return now }
	feed.MaxAge = time.Minute
	feed.SetPrice("BTCUSDT", decimal.NewFromInt(50000))

	_, err := Price(context.Background(), feed, "BTCUSDT")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = Price(context.Background(), feed, "BTCUSDT")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPriceMissingSymbol(t *testing.T) {
	_, err := Price(context.Background(), NewStaticFeed(), "ETHUSDT")
	assert.ErrorIs(t, err, ErrNoPrice)
	_, err = Price(context.Background(), nil, "ETHUSDT")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestParseBookTicker(t *testing.T) {
	combined := []byte(`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"50000.10","B":"1","a":"50000.20","A":"2"}}`)
	q, ok := parseBookTicker(combined)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.True(t, q.Bid.Equal(decimal.RequireFromString("50000.10")))

	raw := []byte(`{"s":"ETHUSDT","b":"3000","a":"3001"}`)
	q, ok = parseBookTicker(raw)
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", q.Symbol)

	_, ok = parseBookTicker([]byte(`{"result":null,"id":1}`))
	assert.False(t, ok)
}

func TestStreamURL(t *testing.T) {
	s := &BinanceStream{Symbols: []string{"BTCUSDT", "ethusdt"}}
	assert.Equal(t, "wss://fstream.binance.com/stream?streams=btcusdt@bookTicker/ethusdt@bookTicker", s.URL())
}
