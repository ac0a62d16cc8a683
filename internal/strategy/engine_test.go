package strategy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(open, high, low, close string) connector.Candle {
	return connector.Candle{Open: d(open), High: d(high), Low: d(low), Close: d(close)}
}

// downtrend is twenty steadily falling 5m bars.
func downtrend() []connector.Candle {
	out := make([]connector.Candle, 0, 22)
	for i := 0; i < 20; i++ {
		open := d("1.2").Sub(d("0.001").Mul(decimal.NewFromInt(int64(i))))
		closePx := open.Sub(d("0.0008"))
		out = append(out, connector.Candle{Open: open, High: open.Add(d("0.0002")), Low: closePx.Sub(d("0.0002")), Close: closePx})
	}
	return out
}

func bullishHarami() []connector.Candle {
	return append(downtrend(),
		bar("1.1800", "1.1802", "1.1776", "1.1780"),
		bar("1.1782", "1.1795", "1.1779", "1.1792"),
	)
}

func bullishEngulfing() []connector.Candle {
	return append(downtrend(),
		bar("1.1800", "1.1802", "1.1776", "1.1780"),
		bar("1.1778", "1.1805", "1.1776", "1.1803"),
	)
}

// stamped gives bars consecutive 5m windows ending at t0 and appends a forming bar.
func stamped(bars []connector.Candle) []connector.Candle {
	out := make([]connector.Candle, 0, len(bars)+1)
	for i, b := range bars {
		b.OpenTime = t0.Add(-time.Duration(len(bars)-i) * 5 * time.Minute)
		b.CloseTime = b.OpenTime.Add(5*time.Minute - time.Millisecond)
		out = append(out, b)
	}
	forming := bar("1.1792", "1.1900", "1.1700", "1.1701")
	forming.OpenTime = t0
	forming.CloseTime = t0.Add(5*time.Minute - time.Millisecond)
	return append(out, forming)
}

func TestHaramiDetect(t *testing.T) {
	s := Harami{MinScore: 0.5}.Detect(bullishHarami())
	if !s.Open {
		t.Fatalf("expected bullish harami, got reason=%s", s.Reason)
	}
	assert.Equal(t, models.DirectionBuy, s.Direction)
	assert.Equal(t, "bullish_harami", s.Reason)
	assert.True(t, s.Entry.Equal(d("1.1792")))
	assert.True(t, s.SL.LessThan(d("1.1776")))
	// 1:3 reward
	assert.True(t, s.TP.Sub(s.Entry).Equal(s.Entry.Sub(s.SL).Mul(dThree)))
	assert.GreaterOrEqual(t, s.Score, 0.5)

	strict := Harami{MinScore: 0.99}.Detect(bullishHarami())
	assert.False(t, strict.Open)
	assert.Equal(t, "harami_quality_too_low", strict.Reason)
}

func TestHaramiNeedsTrend(t *testing.T) {
	bars := bullishHarami()
	assert.Equal(t, "atr_zero", Harami{}.Detect(bars[len(bars)-5:]).Reason)

	flat := make([]connector.Candle, 0, 22)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			flat = append(flat, bar("1.1790", "1.1798", "1.1782", "1.1784"))
		} else {
			flat = append(flat, bar("1.1784", "1.1798", "1.1782", "1.1790"))
		}
	}
	flat = append(flat, bars[20], bars[21])
	assert.Equal(t, "no_downtrend", Harami{}.Detect(flat).Reason)
}

func TestEngulfingDetect(t *testing.T) {
	s := Engulfing{}.Detect(bullishEngulfing())
	require.True(t, s.Open, s.Reason)
	assert.Equal(t, models.DirectionBuy, s.Direction)
	assert.True(t, s.TP.Sub(s.Entry).Equal(s.Entry.Sub(s.SL).Mul(dTwo)))

	assert.Equal(t, "no_engulfing", Engulfing{}.Detect(bullishHarami()).Reason)
	assert.Equal(t, "no_harami", Harami{}.Detect(bullishEngulfing()).Reason)
}

type conflicting struct{ dir string }

func (c conflicting) Name() string { return "fixed_" + c.dir }
func (c conflicting) Detect([]connector.Candle) Setup {
	return Setup{Strategy: c.Name(), Open: true, Direction: c.dir, Score: 0.9}
}

func TestCombine(t *testing.T) {
	s := Combine(DefaultDetectors(), bullishHarami())
	assert.Equal(t, "harami", s.Strategy)

	s = Combine(DefaultDetectors(), bullishEngulfing())
	assert.Equal(t, "engulfing", s.Strategy)

	s = Combine([]Detector{conflicting{"buy"}, conflicting{"sell"}}, bullishHarami())
	assert.False(t, s.Open)
	assert.Equal(t, "conflicting_directions", s.Reason)

	assert.Equal(t, "no_candles", Combine(DefaultDetectors(), nil).Reason)
}

func TestScalperSessions(t *testing.T) {
	p, err := ParseScalperParams(datatypes.JSON(`{"sessions":[{"label":"london","start":"07:00","end":"11:00"},{"label":"asia","start":"23:00","end":"02:00"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "1m", p.Timeframe)

	_, open := p.Session(t0)
	assert.False(t, open)
	label, open := p.Session(time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC))
	assert.True(t, open)
	assert.Equal(t, "london", label)
	label, _ = p.Session(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, "asia", label)

	_, err = ParseScalperParams(datatypes.JSON(`{"sessions":"x"}`))
	assert.Error(t, err)
}

type fakeCandles struct {
	bars  []connector.Candle
	calls []string
}

func (f *fakeCandles) Candles(_ context.Context, symbol, interval string, _ int) ([]connector.Candle, error) {
	f.calls = append(f.calls, symbol+"@"+interval)
	return f.bars, nil
}

func newRunnerFixture(t *testing.T, bars []connector.Candle) (*Runner, *memory.Store, *fakeCandles, uint64) {
	t.Helper()
	store := memory.New()
	store.SetClock(func() time.Time { return t0 })
	account := &models.BrokerAccount{Name: "paper", Broker: "paper", AccountRef: "p", IsActive: true}
	require.NoError(t, store.InsertBrokerAccount(context.Background(), account))
	feed := &fakeCandles{bars: bars}
	return &Runner{Repo: store, Candles: feed, Now: func() time.Time { return t0 }}, store, feed, account.ID
}

func TestRunModeEmitsOncePerBar(t *testing.T) {
	ctx := context.Background()
	r, store, feed, accountID := newRunnerFixture(t, stamped(bullishHarami()))
	bot := &models.Bot{Name: "h", Status: models.BotStatusActive, EngineMode: models.EngineModeHarami, AutoTrade: true,
		BrokerAccountID: &accountID, AllowedSymbols: []string{"EURUSDm"}}
	require.NoError(t, store.InsertBot(ctx, bot))

	sum, err := r.RunMode(ctx, models.EngineModeHarami)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Bots: 1, Emitted: 1}, sum)
	assert.Equal(t, []string{"EURUSD@5m"}, feed.calls)

	botID := bot.ID
	signals, err := store.ListSignals(ctx, repository.ListSignalsParams{BotID: &botID})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, models.EngineModeHarami, sig.Source)
	assert.Equal(t, models.DirectionBuy, sig.Direction)
	// the forming bar is ignored, the key is the last closed bar
	assert.Equal(t, DedupeKey(bot.ID, "EURUSD", "5m", t0.Add(-5*time.Minute)), sig.DedupeKey)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(sig.Payload, &payload))
	assert.Equal(t, "harami", payload["strategy"])
	assert.Equal(t, "1.1792", payload["entry"])

	sum, err = r.RunMode(ctx, models.EngineModeHarami)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Bots: 1, Skipped: 1}, sum)
}

func TestRunBotSkips(t *testing.T) {
	ctx := context.Background()
	r, store, _, accountID := newRunnerFixture(t, stamped(bullishHarami()))

	noSymbol := &models.Bot{Name: "a", EngineMode: models.EngineModeHarami, BrokerAccountID: &accountID}
	require.NoError(t, store.InsertBot(ctx, noSymbol))
	res, err := r.RunBot(ctx, noSymbol)
	require.NoError(t, err)
	assert.Equal(t, SkipNoSymbol, res.Reason)

	noBroker := &models.Bot{Name: "b", EngineMode: models.EngineModeHarami, AllowedSymbols: []string{"EURUSD"}}
	require.NoError(t, store.InsertBot(ctx, noBroker))
	res, err = r.RunBot(ctx, noBroker)
	require.NoError(t, err)
	assert.Equal(t, SkipNoBroker, res.Reason)

	wrongTF := &models.Bot{Name: "c", EngineMode: models.EngineModeHarami, AllowedSymbols: []string{"EURUSD"},
		BrokerAccountID: &accountID, AllowedTimeframes: []string{"1h"}}
	require.NoError(t, store.InsertBot(ctx, wrongTF))
	res, err = r.RunBot(ctx, wrongTF)
	require.NoError(t, err)
	assert.Equal(t, SkipTimeframe, res.Reason)
}

func TestScalperRunWritesLog(t *testing.T) {
	ctx := context.Background()
	r, store, feed, accountID := newRunnerFixture(t, stamped(bullishEngulfing()))

	closed := &models.Bot{Name: "s1", EngineMode: models.EngineModeScalper, AutoTrade: true, BrokerAccountID: &accountID,
		AllowedSymbols: []string{"EURUSD"},
		ScalperParams:  datatypes.JSON(`{"sessions":[{"label":"london","start":"07:00","end":"11:00"}]}`)}
	require.NoError(t, store.InsertBot(ctx, closed))
	res, err := r.RunBot(ctx, closed)
	require.NoError(t, err)
	assert.Equal(t, SkipSessionClosed, res.Reason)
	assert.Empty(t, feed.calls)

	logs, err := store.ListScalperRunLogs(ctx, closed.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, SessionClosed, logs[0].Session)
	assert.Equal(t, "1m", logs[0].Timeframe)
	assert.NotEmpty(t, logs[0].RunID)

	open := &models.Bot{Name: "s2", EngineMode: models.EngineModeScalper, AutoTrade: true, BrokerAccountID: &accountID,
		AllowedSymbols: []string{"EURUSD"}, ScalperParams: datatypes.JSON(`{"timeframe":"1m","min_score":0.1}`)}
	require.NoError(t, store.InsertBot(ctx, open))
	res, err = r.RunBot(ctx, open)
	require.NoError(t, err)
	assert.True(t, res.Emitted)
	assert.Equal(t, "engulfing", res.Strategy)
	assert.Equal(t, []string{"EURUSD@1m"}, feed.calls)

	logs, err = store.ListScalperRunLogs(ctx, open.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, SessionAll, logs[0].Session)
}
