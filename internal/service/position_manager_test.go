package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository/memory"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/strategy"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestShouldEarlyExit(t *testing.T) {
	long := models.Position{Qty: d("1"), AvgPrice: d("100")}
	short := models.Position{Qty: d("-1"), AvgPrice: d("100")}
	maxPct := d("0.02")

	if !ShouldEarlyExit(long, d("97"), maxPct) {
		t.Fatalf("expected early exit for long at 97")
	}
	if ShouldEarlyExit(long, d("99"), maxPct) {
		t.Fatalf("unexpected early exit for long at 99")
	}
	if !ShouldEarlyExit(short, d("103"), maxPct) {
		t.Fatalf("expected early exit for short at 103")
	}
	if ShouldEarlyExit(short, d("90"), maxPct) {
		t.Fatalf("profitable short must not exit")
	}
	if ShouldEarlyExit(long, d("50"), decimal.Zero) {
		t.Fatalf("zero threshold disables early exit")
	}
	assert.True(t, UnrealizedPnL(short, d("90")).Equal(d("10")))
}

func TestShouldKillSwitch(t *testing.T) {
	long := models.Position{Qty: d("1"), AvgPrice: d("100")}
	pct := normalizePct(d("1"))
	assert.True(t, pct.Equal(d("0.01")))
	assert.True(t, normalizePct(d("0.05")).Equal(d("0.05")))

	assert.True(t, ShouldKillSwitch(long, d("98"), pct, false))
	assert.False(t, ShouldKillSwitch(long, d("98.5"), pct, false))
	assert.True(t, ShouldKillSwitch(long, d("98.5"), pct, true))
	assert.False(t, ShouldKillSwitch(long, d("101"), pct, true))
	assert.False(t, ShouldKillSwitch(models.Position{}, d("98"), pct, true))
}

func TestApplyTrailing(t *testing.T) {
	trigger, distance := d("0.0005"), d("0.0003")

	long := models.Position{Qty: d("1"), AvgPrice: d("1.1000")}
	if ApplyTrailing(&long, d("1.1003"), trigger, distance) {
		t.Fatalf("trail before trigger")
	}
	require.True(t, ApplyTrailing(&long, d("1.1010"), trigger, distance))
	assert.True(t, long.SL.Equal(d("1.1007")))
	assert.False(t, ApplyTrailing(&long, d("1.1008"), trigger, distance), "stop never loosens")
	assert.True(t, long.SL.Equal(d("1.1007")))

	short := models.Position{Qty: d("-1"), AvgPrice: d("1.1000"), SL: dp("1.1050")}
	require.True(t, ApplyTrailing(&short, d("1.0990"), trigger, distance))
	assert.True(t, short.SL.Equal(d("1.0993")))
}

func TestProtectiveHit(t *testing.T) {
	long := models.Position{Qty: d("1"), AvgPrice: d("1.1"), SL: dp("1.09"), TP: dp("1.12")}
	assert.Equal(t, CloseReasonStopLoss, ProtectiveHit(long, d("1.0899")))
	assert.Equal(t, CloseReasonTakeProfit, ProtectiveHit(long, d("1.12")))
	assert.Equal(t, "", ProtectiveHit(long, d("1.1")))

	short := models.Position{Qty: d("-1"), AvgPrice: d("1.1"), SL: dp("1.11"), TP: dp("1.08")}
	assert.Equal(t, CloseReasonStopLoss, ProtectiveHit(short, d("1.11")))
	assert.Equal(t, CloseReasonTakeProfit, ProtectiveHit(short, d("1.07")))
}

type closeCall struct {
	positionID uint64
	reason     string
}

type fakeCloser struct {
	calls []closeCall
	err   error
}

func (f *fakeCloser) ClosePosition(_ context.Context, pos *models.Position, reason string) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, closeCall{pos.ID, reason})
	return &models.Order{ID: 900 + pos.ID}, nil
}

type recordedAlerts struct{ events []alert.Event }

func (r *recordedAlerts) Notify(_ context.Context, ev alert.Event) { r.events = append(r.events, ev) }

type monitorFixture struct {
	store   *memory.Store
	feed    *marketdata.StaticFeed
	closer  *fakeCloser
	alerts  *recordedAlerts
	manager *PositionManager
	paperID uint64
	liveID  uint64
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	store.SetClock(func() time.Time { return t0 })
	paper := &models.BrokerAccount{Name: "paper", Broker: "paper", AccountRef: "p", IsActive: true}
	require.NoError(t, store.InsertBrokerAccount(ctx, paper))
	live := &models.BrokerAccount{Name: "live", Broker: "binance", AccountRef: "b", IsActive: true}
	require.NoError(t, store.InsertBrokerAccount(ctx, live))
	f := &monitorFixture{
		store:   store,
		feed:    marketdata.NewStaticFeed(),
		closer:  &fakeCloser{},
		alerts:  &recordedAlerts{},
		paperID: paper.ID,
		liveID:  live.ID,
	}
	f.manager = &PositionManager{
		Repo:   store,
		Closer: f.closer,
		Feed:   f.feed,
		Alerts: f.alerts,
		Now:    func() time.Time { return t0 },
	}
	return f
}

func (f *monitorFixture) position(t *testing.T, accountID uint64, symbol, qty, avg string, mutate func(*models.Position)) *models.Position {
	t.Helper()
	pos := &models.Position{
		BrokerAccountID: accountID,
		BotID:           1,
		Symbol:          symbol,
		Qty:             d(qty),
		AvgPrice:        d(avg),
		Status:          models.PositionStatusOpen,
		OpenedAt:        t0.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(pos)
	}
	require.NoError(t, f.store.SavePosition(context.Background(), pos))
	return pos
}

func TestRunOnceEarlyExitAndStops(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	losing := f.position(t, f.liveID, "EURUSD", "1000", "1.1000", nil)
	stopped := f.position(t, f.paperID, "GBPUSD", "1000", "1.2500", func(p *models.Position) { p.SL = dp("1.2490") })
	liveStop := f.position(t, f.liveID, "AUDUSD", "1000", "0.6600", func(p *models.Position) { p.SL = dp("0.6590") })
	f.position(t, f.paperID, "USDJPY", "1000", "150", nil)

	f.feed.SetPrice("EURUSD", d("1.0700"))
	f.feed.SetPrice("GBPUSD", d("1.2480"))
	f.feed.SetPrice("AUDUSD", d("0.6580"))

	res, err := f.manager.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonitorResult{Checked: 4, Updated: 3, Closed: 2, NoPrice: 1}, res)
	assert.ElementsMatch(t, []closeCall{
		{losing.ID, CloseReasonEarlyExit},
		{stopped.ID, CloseReasonStopLoss},
	}, f.closer.calls)

	// the venue holds the live stop
	for _, c := range f.closer.calls {
		assert.NotEqual(t, liveStop.ID, c.positionID)
	}

	status := models.PositionStatusOpen
	symbol := "EURUSD"
	items, err := f.store.ListPositions(ctx, repository.ListPositionsParams{Status: &status, Symbol: &symbol})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnrealizedPnL.Equal(d("-30")))

	require.Len(t, f.alerts.events, 2)
	kinds := []string{f.alerts.events[0].Kind, f.alerts.events[1].Kind}
	assert.ElementsMatch(t, []string{alert.KindEarlyExit, CloseReasonStopLoss}, kinds)
}

func TestRunOnceReportsCloseFailures(t *testing.T) {
	f := newMonitorFixture(t)
	f.position(t, f.liveID, "EURUSD", "1000", "1.1000", nil)
	f.feed.SetPrice("EURUSD", d("1.0500"))
	f.closer.err = errors.New("venue down")

	res, err := f.manager.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected close error")
	}
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, f.alerts.events)
}

func TestTrailPersistsStop(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	long := f.position(t, f.liveID, "EURUSD", "1", "1.1000", nil)
	f.position(t, f.liveID, "GBPUSD", "1", "1.2500", nil)
	f.feed.SetPrice("EURUSD", d("1.1010"))
	f.feed.SetPrice("GBPUSD", d("1.2501"))

	res, err := f.manager.Trail(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonitorResult{Checked: 2, Updated: 1}, res)

	botID := long.BotID
	symbol := "EURUSD"
	items, err := f.store.ListPositions(ctx, repository.ListPositionsParams{BotID: &botID, Symbol: &symbol})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SL)
	assert.True(t, items[0].SL.Equal(d("1.1007")))
}

type fixedDetector struct{ dir string }

func (fixedDetector) Name() string { return "fixed" }

func (f fixedDetector) Detect([]connector.Candle) strategy.Setup {
	return strategy.Setup{Strategy: "fixed", Open: true, Direction: f.dir, Score: 1}
}

type staticCandles struct{ calls int }

func (s *staticCandles) Candles(context.Context, string, string, int) ([]connector.Candle, error) {
	s.calls++
	return []connector.Candle{{Close: d("1")}, {Close: d("1")}}, nil
}

func TestKillSwitch(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	accountID := f.liveID
	armed := &models.Bot{Name: "armed", AutoTrade: true, BrokerAccountID: &accountID,
		AllowedSymbols: []string{"EURUSDm", "GBPUSD"}, KillSwitchEnabled: true, KillSwitchMaxUnrealizedPct: d("1")}
	require.NoError(t, f.store.InsertBot(ctx, armed))

	deep := f.position(t, f.liveID, "EURUSD", "1000", "1.1000", func(p *models.Position) { p.BotID = 77 })
	shallow := f.position(t, f.liveID, "GBPUSD", "1000", "1.2500", func(p *models.Position) { p.BotID = 77 })
	f.position(t, f.paperID, "EURUSD", "1000", "1.1000", nil)
	f.position(t, f.liveID, "USDJPY", "1000", "150", func(p *models.Position) { p.BotID = 77 })

	f.feed.SetPrice("EURUSD", d("1.0770"))
	f.feed.SetPrice("GBPUSD", d("1.2490"))

	res, err := f.manager.KillSwitch(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonitorResult{Checked: 2, Closed: 1}, res)
	assert.Equal(t, []closeCall{{deep.ID, CloseReasonKillSwitch}}, f.closer.calls)
	require.Len(t, f.alerts.events, 1)
	assert.Equal(t, alert.KindKillSwitch, f.alerts.events[0].Kind)
	assert.Equal(t, alert.LevelError, f.alerts.events[0].Level)
	assert.Equal(t, uint64(900+deep.ID), f.alerts.events[0].OrderID)

	// an opposing engine setup closes the shallow loser too
	candles := &staticCandles{}
	f.manager.Candles = candles
	f.manager.Detectors = []strategy.Detector{fixedDetector{models.DirectionSell}}
	f.closer.calls = nil
	_, err = f.manager.KillSwitch(ctx)
	require.NoError(t, err)
	assert.Contains(t, f.closer.calls, closeCall{shallow.ID, CloseReasonKillSwitch})
	assert.Positive(t, candles.calls)

	// a confirming setup does not
	f.manager.Detectors = []strategy.Detector{fixedDetector{models.DirectionBuy}}
	f.closer.calls = nil
	_, err = f.manager.KillSwitch(ctx)
	require.NoError(t, err)
	assert.NotContains(t, f.closer.calls, closeCall{shallow.ID, CloseReasonKillSwitch})
}

func TestKillSwitchIgnoresDisarmedBots(t *testing.T) {
	ctx := context.Background()
	f := newMonitorFixture(t)
	accountID := f.liveID
	require.NoError(t, f.store.InsertBot(ctx, &models.Bot{Name: "calm", AutoTrade: true, BrokerAccountID: &accountID}))
	f.position(t, f.liveID, "EURUSD", "1000", "1.1000", nil)
	f.feed.SetPrice("EURUSD", d("1.0000"))

	res, err := f.manager.KillSwitch(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonitorResult{}, res)
	assert.Empty(t, f.closer.calls)
}
