package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/secrets"
)

func testOrder() *models.Order {
	sl := decimal.RequireFromString("49000")
	tp := decimal.RequireFromString("51500")
	return &models.Order{
		ID:            1,
		ClientOrderID: "abc123",
		Symbol:        "BTCUSDT",
		Side:          models.SideBuy,
		Qty:           decimal.RequireFromString("0.01"),
		SL:            &sl,
		TP:            &tp,
	}
}

func TestNormalizeBroker(t *testing.T) {
	cases := map[string]string{
		"exness_mt5":    BrokerMT5,
		"ICMARKET_MT5":  BrokerMT5,
		" Binance ":     BrokerBinance,
		"paper":         BrokerPaper,
		"ctrader":       BrokerCTrader,
		"unknown_venue": "unknown_venue",
	}
	for in, want := range cases {
		if got := NormalizeBroker(in); got != want {
			t.Fatalf("NormalizeBroker(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNotConfiguredAlwaysFails(t *testing.T) {
	c := NotConfigured{Broker: BrokerCTrader}
	report, err := c.PlaceOrder(context.Background(), testOrder())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, IsConfiguration(err))
	assert.False(t, IsTransient(err))
	require.NotNil(t, report)
	assert.Equal(t, models.OrderStatusError, report.Status)
	assert.Contains(t, report.Message, "ctrader connector not configured")

	_, err = c.CancelOrder(context.Background(), testOrder())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPaperAckThenFill(t *testing.T) {
	feed := marketdata.NewStaticFeed()
	feed.SetPrice("BTCUSDT", decimal.NewFromInt(50000))
	p := NewPaper(feed, nil)
	order := testOrder()

	ack, err := p.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAck, ack.Status)
	assert.NotEmpty(t, ack.VenueOrderID)
	require.NotNil(t, ack.AvgPrice)
	assert.True(t, ack.AvgPrice.Equal(decimal.NewFromInt(50000)))

	order.VenueOrderID = ack.VenueOrderID
	feed.SetPrice("BTCUSDT", decimal.NewFromInt(50100))
	fill, err := p.FetchOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, fill.Status)
	assert.True(t, fill.FilledQty.Equal(order.Qty))
	assert.True(t, fill.AvgPrice.Equal(decimal.NewFromInt(50100)))
}

func TestPaperCancelWinsOverFill(t *testing.T) {
	feed := marketdata.NewStaticFeed()
	feed.SetPrice("BTCUSDT", decimal.NewFromInt(50000))
	p := NewPaper(feed, nil)
	order := testOrder()

	_, err := p.CancelOrder(context.Background(), order)
	require.NoError(t, err)
	report, err := p.FetchOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, report.Status)
}

func TestPaperWithoutPrice(t *testing.T) {
	p := NewPaper(marketdata.NewStaticFeed(), nil)
	order := testOrder()

	_, err := p.PlaceOrder(context.Background(), order)
	assert.ErrorIs(t, err, ErrOrderRejected)

	price := decimal.NewFromInt(42)
	order.Price = &price
	report, err := p.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, report.AvgPrice.Equal(price))
}

func TestMapBinanceError(t *testing.T) {
	cases := []struct {
		code int64
		want error
	}{
		{-1003, ErrRateLimited},
		{-1021, ErrTimeout},
		{-1022, ErrAuthentication},
		{-2015, ErrAuthentication},
		{-2010, ErrOrderRejected},
		{-4003, ErrOrderRejected},
		{-2013, ErrOrderNotFound},
		{-2019, ErrInsufficientFunds},
		{-9999, ErrUnknown},
	}
	for _, tc := range cases {
		err := mapBinanceError("op", &common.APIError{Code: tc.code, Message: "x"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %d: got %v want %v", tc.code, err, tc.want)
		}
		var apiErr *common.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("code %d: original api error lost", tc.code)
		}
	}

	err := mapBinanceError("op", fmt.Errorf("dial: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTransient(err))

	err = mapBinanceError("op", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestBinancePlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":987,"symbol":"BTCUSDT","status":"FILLED","clientOrderId":"abc123","executedQty":"0.01","avgPrice":"50010.5","side":"BUY","type":"MARKET"}`))
	}))
	defer srv.Close()

	b := NewBinance(BinanceConfig{APIKey: "k", SecretKey: "s", BaseURL: srv.URL})
	report, err := b.PlaceOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, report.Status)
	assert.Equal(t, "987", report.VenueOrderID)
	assert.True(t, report.FilledQty.Equal(decimal.RequireFromString("0.01")))
	require.NotNil(t, report.AvgPrice)
	assert.True(t, report.AvgPrice.Equal(decimal.RequireFromString("50010.5")))
}

func TestBinancePlaceOrderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	}))
	defer srv.Close()

	b := NewBinance(BinanceConfig{APIKey: "k", SecretKey: "s", BaseURL: srv.URL})
	_, err := b.PlaceOrder(context.Background(), testOrder())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, IsTransient(err))
}

func TestBinanceStatusMapping(t *testing.T) {
	assert.Equal(t, models.OrderStatusAck, binanceStatus("NEW"))
	assert.Equal(t, models.OrderStatusPartFilled, binanceStatus("PARTIALLY_FILLED"))
	assert.Equal(t, models.OrderStatusCanceled, binanceStatus("EXPIRED"))
	assert.Equal(t, models.OrderStatusError, binanceStatus("REJECTED"))
}

func TestMapAlpacaError(t *testing.T) {
	err := mapAlpacaError("op", &alpaca.APIError{StatusCode: http.StatusForbidden, Message: "insufficient buying power"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = mapAlpacaError("op", &alpaca.APIError{StatusCode: http.StatusForbidden, Message: "forbidden"})
	assert.ErrorIs(t, err, ErrAuthentication)

	err = mapAlpacaError("op", &alpaca.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"})
	assert.ErrorIs(t, err, ErrRateLimited)

	err = mapAlpacaError("op", &alpaca.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "qty must be > 0"})
	assert.ErrorIs(t, err, ErrOrderRejected)
}

func TestAlpacaOrderRequestBracket(t *testing.T) {
	req := alpacaOrderRequest(testOrder())
	assert.Equal(t, alpaca.Bracket, req.OrderClass)
	require.NotNil(t, req.StopLoss)
	require.NotNil(t, req.TakeProfit)
	assert.Equal(t, "abc123", req.ClientOrderID)

	closing := testOrder()
	closing.ClientOrderID = ClosePrefix + "deadbeef"
	req = alpacaOrderRequest(closing)
	assert.Nil(t, req.StopLoss)
	assert.Equal(t, alpaca.OrderClass(""), req.OrderClass)
}

func TestAlpacaStatusMapping(t *testing.T) {
	assert.Equal(t, models.OrderStatusAck, alpacaStatus("accepted"))
	assert.Equal(t, models.OrderStatusFilled, alpacaStatus("filled"))
	assert.Equal(t, models.OrderStatusCanceled, alpacaStatus("expired"))
	assert.Equal(t, models.OrderStatusError, alpacaStatus("rejected"))
}

func TestWithContextAbandonsSlowCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)
	_, err := withContext(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistryFor(t *testing.T) {
	box := secrets.New("0123456789abcdef0123456789abcdef")
	paper := NewPaper(marketdata.NewStaticFeed(), nil)
	reg := NewRegistry(box, paper, VenueOptions{}, nil)

	paperAcct := &models.BrokerAccount{ID: 1, Broker: "paper", AccountRef: "p1", IsActive: true}
	assert.Same(t, paper, reg.For(paperAcct))

	mt5 := &models.BrokerAccount{ID: 2, Broker: "exness_mt5", AccountRef: "m1", IsActive: true}
	nc, ok := reg.For(mt5).(NotConfigured)
	require.True(t, ok)
	assert.Equal(t, BrokerMT5, nc.Name())

	missing := &models.BrokerAccount{ID: 3, Broker: "binance", AccountRef: "b1", IsActive: true}
	_, ok = reg.For(missing).(NotConfigured)
	assert.True(t, ok)

	acct := &models.BrokerAccount{ID: 4, Broker: "binance", AccountRef: "b2", APIKey: "key", IsActive: true, Testnet: true}
	sealed, err := box.Seal(SecretScope(acct), "secret")
	require.NoError(t, err)
	acct.APISecretEnc = sealed
	first := reg.For(acct)
	_, ok = first.(*Binance)
	require.True(t, ok)
	assert.Same(t, first, reg.For(acct))

	acct.UpdatedAt = time.Now()
	acct.IsActive = false
	_, ok = reg.For(acct).(NotConfigured)
	assert.True(t, ok)
}

func TestRegistryOverride(t *testing.T) {
	reg := NewRegistry(nil, nil, VenueOptions{}, nil)
	fake := NotConfigured{Broker: "fake", Reason: "stub"}
	reg.Register("icmarket_mt5", fake)
	got := reg.For(&models.BrokerAccount{ID: 9, Broker: "mt5", IsActive: true})
	assert.Equal(t, fake, got)
}
