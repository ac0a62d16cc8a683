package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository/memory"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/risk"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubVenue struct {
	mu          sync.Mutex
	name        string
	placeErr    error
	fetchStatus string
	cancelErr   error
	positions   []connector.VenuePosition
	placed      []models.Order
	canceled    []string
}

func (s *stubVenue) Name() string { return s.name }

func (s *stubVenue) PlaceOrder(_ context.Context, order *models.Order) (*connector.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, *order)
	if s.placeErr != nil {
		return &connector.Report{Status: models.OrderStatusError, Message: s.placeErr.Error()}, s.placeErr
	}
	return &connector.Report{Status: models.OrderStatusAck, VenueOrderID: "v-" + order.ClientOrderID}, nil
}

func (s *stubVenue) CancelOrder(ctx context.Context, order *models.Order) (*connector.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	s.canceled = append(s.canceled, order.ClientOrderID)
	return &connector.Report{Status: models.OrderStatusCanceled}, nil
}

func (s *stubVenue) FetchOrder(_ context.Context, order *models.Order) (*connector.Report, error) {
	status := s.fetchStatus
	if status == "" {
		status = models.OrderStatusAck
	}
	r := &connector.Report{Status: status, VenueOrderID: order.VenueOrderID, AvgPrice: order.Price}
	if status == models.OrderStatusFilled {
		r.FilledQty = order.Qty
	}
	return r, nil
}

func (s *stubVenue) ListPositions(context.Context) ([]connector.VenuePosition, error) {
	return s.positions, nil
}

// silentVenue acks nothing and reports nothing.
type silentVenue struct{ stubVenue }

func (s *silentVenue) PlaceOrder(context.Context, *models.Order) (*connector.Report, error) {
	return nil, nil
}

type brokenSettings struct{ *memory.Store }

func (brokenSettings) GetExecutionSetting(context.Context, string) (*models.ExecutionSetting, error) {
	return nil, errors.New("settings unavailable")
}

type venues map[string]connector.Connector

func (v venues) For(account *models.BrokerAccount) connector.Connector {
	if c, ok := v[connector.NormalizeBroker(account.Broker)]; ok {
		return c
	}
	return connector.NotConfigured{Broker: account.Broker}
}

type recorder struct {
	mu     sync.Mutex
	events []alert.Event
}

func (r *recorder) Notify(_ context.Context, ev alert.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	orch   *Orchestrator
	store  *memory.Store
	feed   *marketdata.StaticFeed
	venue  *stubVenue
	alerts *recorder
	now    time.Time
	signal uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		store:  memory.New(),
		feed:   marketdata.NewStaticFeed(),
		venue:  &stubVenue{name: connector.BrokerBinance},
		alerts: &recorder{},
		now:    t0,
	}
	clock := func() time.Time { return h.now }
	h.store.SetClock(clock)
	h.feed.Set("EURUSD", decimal.RequireFromString("1.1000"), decimal.RequireFromString("1.1002"))

	require.NoError(t, h.store.UpsertAsset(ctx, &models.Asset{
		Symbol:         "EURUSD",
		Category:       models.AssetCategoryForex,
		MinQty:         decimal.RequireFromString("0.01"),
		RecommendedQty: decimal.RequireFromString("0.10"),
		LotStep:        decimal.RequireFromString("0.01"),
		IsActive:       true,
	}))

	paper := connector.NewPaper(h.feed, nil)
	guard := risk.NewGuard(h.store, nil)
	guard.Now = clock
	locker := lease.NewMemoryLocker()
	locker.Now = clock

	h.orch = &Orchestrator{
		Repo:       h.store,
		Connectors: venues{connector.BrokerPaper: paper, connector.BrokerBinance: h.venue},
		Assets:     assets.NewResolver(h.store, time.Minute, nil),
		Guard:      guard,
		Locker:     locker,
		Feed:       h.feed,
		Alerts:     h.alerts,
		Now:        clock,
	}
	return h
}

func (h *harness) account(t *testing.T, broker string) *models.BrokerAccount {
	t.Helper()
	a := &models.BrokerAccount{Name: broker, Broker: broker, AccountRef: broker + "-1", IsActive: true}
	require.NoError(t, h.store.InsertBrokerAccount(context.Background(), a))
	return a
}

func (h *harness) bot(t *testing.T, account *models.BrokerAccount, mutate func(b *models.Bot)) *models.Bot {
	t.Helper()
	accountID := account.ID
	b := &models.Bot{
		Name:            "bot",
		Status:          models.BotStatusActive,
		BrokerAccountID: &accountID,
		DefaultQty:      decimal.RequireFromString("0.02"),
	}
	if mutate != nil {
		mutate(b)
	}
	require.NoError(t, h.store.InsertBot(context.Background(), b))
	return b
}

func (h *harness) decision(t *testing.T, bot *models.Bot, action string, params models.DecisionParams) *models.Decision {
	t.Helper()
	h.signal++
	d := &models.Decision{
		BotID:     bot.ID,
		SignalID:  h.signal,
		Symbol:    "EURUSD",
		Action:    action,
		Score:     0.9,
		Params:    datatypes.NewJSONType(params),
		DecidedAt: h.now,
	}
	created, err := h.store.InsertDecision(context.Background(), d)
	require.NoError(t, err)
	require.True(t, created)
	return d
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.OrderStatusNew, models.OrderStatusAck, true},
		{models.OrderStatusNew, models.OrderStatusFilled, true},
		{models.OrderStatusNew, models.OrderStatusError, true},
		{models.OrderStatusAck, models.OrderStatusPartFilled, true},
		{models.OrderStatusPartFilled, models.OrderStatusFilled, true},
		{models.OrderStatusPartFilled, models.OrderStatusAck, false},
		{models.OrderStatusFilled, models.OrderStatusCanceled, false},
		{models.OrderStatusCanceled, models.OrderStatusAck, false},
		{models.OrderStatusError, models.OrderStatusNew, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransition(%s,%s)=%v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestOrderIDs(t *testing.T) {
	a := ClientOrderID(7, 1, "EURUSD", "buy")
	assert.Equal(t, a, ClientOrderID(7, 1, "EURUSD", "buy"))
	assert.NotEqual(t, a, ClientOrderID(7, 1, "EURUSD", "sell"))
	assert.LessOrEqual(t, len(a), 64)

	closeID := CloseOrderID(3, 1, "EURUSD")
	assert.True(t, strings.HasPrefix(closeID, connector.ClosePrefix))
	assert.Equal(t, closeID+"|r2", retryID(closeID, 2))
	assert.Equal(t, closeID, retryID(closeID, 0))

	half := decimal.RequireFromString("-0.5")
	rec := ReconcileCloseID(4, "ETHUSDT", half, t0)
	assert.True(t, strings.HasPrefix(rec, connector.ClosePrefix))
	assert.LessOrEqual(t, len(rec), 36)
	assert.Equal(t, rec, ReconcileCloseID(4, "ETHUSDT", half, t0))
	assert.NotEqual(t, rec, ReconcileCloseID(4, "ETHUSDT", half, t0.Add(5*time.Minute)))
	assert.NotEqual(t, rec, ReconcileCloseID(4, "ETHUSDT", decimal.RequireFromString("-0.4"), t0))
	assert.NotEqual(t, rec, ReconcileCloseID(5, "ETHUSDT", half, t0))
}

func TestExecutePaperAckThenFill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerPaper)
	bot := h.bot(t, acct, nil)
	d := h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy})

	order, err := h.orch.Execute(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, order)
	if order.Status != models.OrderStatusAck || order.VenueOrderID == "" {
		t.Fatalf("order=%+v want ack with venue id", order)
	}
	assert.True(t, order.Qty.Equal(decimal.RequireFromString("0.02")), "qty=%s", order.Qty)
	require.NotNil(t, order.SL)
	require.NotNil(t, order.TP)

	// replaying the decision returns the same row without a second submission
	again, err := h.orch.Execute(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	n, _ := h.store.CountOrders(ctx, repository.ListOrdersParams{})
	assert.EqualValues(t, 1, n)

	changed, err := h.orch.RefreshAcked(ctx, IsPaperAccount)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	if stored.Status != models.OrderStatusFilled || !stored.FilledQty.Equal(stored.Qty) {
		t.Fatalf("stored=%+v want filled", stored)
	}
	require.NotNil(t, stored.PositionID)
	pos, _ := h.store.GetPositionByID(ctx, *stored.PositionID)
	require.NotNil(t, pos)
	assert.Equal(t, models.PositionStatusOpen, pos.Status)
	assert.True(t, pos.Qty.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, pos.AvgPrice.Equal(decimal.RequireFromString("1.1001")), "avg=%s", pos.AvgPrice)

	logs, _ := h.store.ListTradeLogs(ctx, repository.ListTradeLogsParams{})
	require.Len(t, logs, 1)
	assert.Equal(t, TradeLogOpen, logs[0].Status)
}

func TestExecuteOrderCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerPaper)
	bot := h.bot(t, acct, nil)

	_, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	h.now = t0.Add(10 * time.Second)
	_, err = h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	if RejectionReason(err) != ReasonOrderCooldown || !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("err=%v want cooldown rejection", err)
	}

	h.now = t0.Add(2 * time.Minute)
	_, err = h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)
}

func TestExecuteLiveRequiresProtectiveLevels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	h.orch.Feed = marketdata.NewStaticFeed()

	_, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideSell}))
	if RejectionReason(err) != ReasonMissingSLTP {
		t.Fatalf("err=%v want missing_sl_tp", err)
	}
	n, _ := h.store.CountOrders(ctx, repository.ListOrdersParams{})
	assert.Zero(t, n)
	assert.Empty(t, h.venue.placed)
}

func TestExecuteDispatchErrorAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	h.venue.placeErr = fmt.Errorf("PlaceOrder failed: %w", connector.ErrAuthentication)

	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrAuthentication)
	require.NotNil(t, order)

	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, models.OrderStatusError, stored.Status)
	assert.Contains(t, stored.ErrorMsg, "PlaceOrder failed")
	assert.Equal(t, []string{alert.KindConnectorConfig}, h.alerts.kinds())
}

func TestExecuteNotConfiguredBroker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerMT5)
	bot := h.bot(t, acct, nil)

	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.ErrorIs(t, err, connector.ErrNotConfigured)
	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, models.OrderStatusError, stored.Status)
}

func openFilledPaperPosition(t *testing.T, h *harness, bot *models.Bot) *models.Position {
	t.Helper()
	ctx := context.Background()
	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)
	_, err = h.orch.RefreshAcked(ctx, IsPaperAccount)
	require.NoError(t, err)
	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	require.NotNil(t, stored.PositionID)
	pos, _ := h.store.GetPositionByID(ctx, *stored.PositionID)
	return pos
}

func TestClosePositionBooksLossAndPauses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerPaper)
	bot := h.bot(t, acct, func(b *models.Bot) {
		b.LossStreakAutopauseEnabled = true
		b.MaxLossStreakBeforePause = 1
		b.LossStreakCooldownMin = 30
	})
	pos := openFilledPaperPosition(t, h, bot)

	h.feed.SetPrice("EURUSD", decimal.RequireFromString("1.0901"))
	closing, err := h.orch.ClosePosition(ctx, pos, "manual")
	require.NoError(t, err)
	require.True(t, closing.Close)
	assert.Equal(t, models.SideSell, closing.Side)
	assert.True(t, strings.HasPrefix(closing.ClientOrderID, connector.ClosePrefix))

	// a second request while the close is in flight returns the same order
	again, err := h.orch.ClosePosition(ctx, pos, "manual")
	require.NoError(t, err)
	assert.Equal(t, closing.ID, again.ID)

	_, err = h.orch.RefreshAcked(ctx, IsPaperAccount)
	require.NoError(t, err)

	closed, _ := h.store.GetPositionByID(ctx, pos.ID)
	assert.Equal(t, models.PositionStatusClosed, closed.Status)
	assert.Equal(t, "manual", closed.CloseReason)
	assert.True(t, closed.RealizedPnL.Equal(decimal.RequireFromString("-0.0002")), "pnl=%s", closed.RealizedPnL)

	stored, _ := h.store.GetBotByID(ctx, bot.ID)
	assert.Equal(t, 1, stored.CurrentLossStreak)
	require.NotNil(t, stored.PausedUntil)
	assert.Contains(t, h.alerts.kinds(), alert.KindLossStreakPause)

	_, err = h.orch.ClosePosition(ctx, closed, "manual")
	assert.Equal(t, ReasonNothingToDo, RejectionReason(err))
}

func TestFlipClosesBeforeOpening(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerPaper)
	bot := h.bot(t, acct, func(b *models.Bot) {
		zero := 0
		b.OrderCooldownSec = &zero
	})
	pos := openFilledPaperPosition(t, h, bot)

	d := h.decision(t, bot, models.ActionFlip, models.DecisionParams{Direction: models.SideSell, PositionID: pos.ID})
	opened, err := h.orch.Execute(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, models.SideSell, opened.Side)
	assert.False(t, opened.Close)

	closes, _ := h.store.ListOrders(ctx, repository.ListOrdersParams{Close: boolPtr(true)})
	require.Len(t, closes, 1)
	assert.Equal(t, pos.ID, *closes[0].PositionID)

	_, err = h.orch.RefreshAcked(ctx, IsPaperAccount)
	require.NoError(t, err)
	old, _ := h.store.GetPositionByID(ctx, pos.ID)
	assert.Equal(t, models.PositionStatusClosed, old.Status)
	assert.Equal(t, "flip", old.CloseReason)

	open, _ := h.store.ListOpenPositions(ctx, acct.ID, "EURUSD")
	require.Len(t, open, 1)
	assert.True(t, open[0].Qty.IsNegative())
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	canceled, err := h.orch.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, []string{order.ClientOrderID}, h.venue.canceled)

	_, err = h.orch.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOrderWithZeroAckTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	zero := 0
	require.NoError(t, h.store.UpsertExecutionSetting(ctx, &models.ExecutionSetting{OrderAckTimeoutSec: &zero}))
	canceled, err := h.orch.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel with zero ack timeout: %v", err)
	}
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, []string{order.ClientOrderID}, h.venue.canceled)
}

func TestCancelOrderSettingsError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	h.orch.Repo = brokenSettings{h.store}
	_, err = h.orch.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings unavailable")
	assert.Empty(t, h.venue.canceled)

	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, models.OrderStatusAck, stored.Status)
}

func TestDispatchWithoutReportMarksError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.orch.Connectors = venues{connector.BrokerBinance: &silentVenue{stubVenue{name: connector.BrokerBinance}}}
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)

	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrUnknown)
	require.NotNil(t, order)

	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, models.OrderStatusError, stored.Status)
	assert.Contains(t, stored.ErrorMsg, "connector returned no report")
	assert.Equal(t, []string{alert.KindOrderError}, h.alerts.kinds())
}

func TestSweepStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, func(b *models.Bot) {
		zero := 0
		b.OrderCooldownSec = &zero
	})
	first, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	// not stale yet
	h.now = t0.Add(time.Minute)
	n, err := h.orch.SweepStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	second, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	h.now = t0.Add(10 * time.Minute)
	h.venue.cancelErr = fmt.Errorf("cancel: %w", connector.ErrConnection)
	n, err = h.orch.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uint64{first.ID, second.ID} {
		stored, _ := h.store.GetOrderByID(ctx, id)
		assert.Equal(t, models.OrderStatusError, stored.Status)
		assert.Contains(t, stored.ErrorMsg, StaleCancelMsg)
	}
}

func TestSweepStaleCancels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)
	order, err := h.orch.Execute(ctx, h.decision(t, bot, models.ActionOpen, models.DecisionParams{Direction: models.SideBuy}))
	require.NoError(t, err)

	h.now = t0.Add(10 * time.Minute)
	n, err := h.orch.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, _ := h.store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, models.OrderStatusCanceled, stored.Status)
	assert.Equal(t, StaleCancelMsg, stored.ErrorMsg)
}

func TestReconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	bot := h.bot(t, acct, nil)

	// local position the venue no longer holds
	missing := &models.Position{
		BrokerAccountID: acct.ID,
		BotID:           bot.ID,
		Symbol:          "EURUSD",
		Qty:             decimal.RequireFromString("0.02"),
		AvgPrice:        decimal.RequireFromString("1.1"),
		Status:          models.PositionStatusOpen,
		OpenedAt:        t0,
	}
	require.NoError(t, h.store.SavePosition(ctx, missing))
	h.venue.positions = []connector.VenuePosition{
		{Symbol: "ETHUSDT", Qty: decimal.RequireFromString("-0.5"), AvgPrice: decimal.NewFromInt(3000)},
	}

	h.now = t0.Add(time.Hour)
	require.NoError(t, h.orch.Reconcile(ctx))

	closed, _ := h.store.GetPositionByID(ctx, missing.ID)
	assert.Equal(t, models.PositionStatusClosed, closed.Status)
	assert.Equal(t, CloseReasonReconcileMissing, closed.CloseReason)

	flatten, _ := h.store.GetOrderByClientOrderID(ctx, ReconcileCloseID(acct.ID, "ETHUSDT", decimal.RequireFromString("-0.5"), h.now))
	require.NotNil(t, flatten)
	assert.Equal(t, models.SideBuy, flatten.Side)
	assert.True(t, flatten.Qty.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, bot.ID, flatten.BotID)
	assert.Equal(t, models.OrderStatusAck, flatten.Status)

	kinds := h.alerts.kinds()
	assert.Len(t, kinds, 2)
	for _, k := range kinds {
		assert.Equal(t, alert.KindReconcileDivergence, k)
	}

	// the flatten order is recent activity, so a second pass leaves ETHUSDT alone
	require.NoError(t, h.orch.Reconcile(ctx))
	n, _ := h.store.CountOrders(ctx, repository.ListOrdersParams{})
	assert.EqualValues(t, 1, n)
}

func TestReconcileFlattensRepeatedStrays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, connector.BrokerBinance)
	h.bot(t, acct, nil)
	qty := decimal.RequireFromString("-0.5")
	h.venue.positions = []connector.VenuePosition{{Symbol: "ETHUSDT", Qty: qty, AvgPrice: decimal.NewFromInt(3000)}}

	for i := 1; i <= 8; i++ {
		h.now = t0.Add(time.Duration(i) * time.Hour)
		if err := h.orch.Reconcile(ctx); err != nil {
			t.Fatalf("reconcile round %d: %v", i, err)
		}
		flatten, err := h.store.GetOrderByClientOrderID(ctx, ReconcileCloseID(acct.ID, "ETHUSDT", qty, h.now))
		require.NoError(t, err)
		require.NotNil(t, flatten, "round %d", i)
		assert.Equal(t, models.OrderStatusAck, flatten.Status)
		require.NoError(t, h.store.UpdateOrder(ctx, flatten.ID, models.OrderStatusAck, map[string]any{
			"status":     models.OrderStatusFilled,
			"filled_qty": flatten.Qty,
		}))
	}

	n, _ := h.store.CountOrders(ctx, repository.ListOrdersParams{})
	assert.EqualValues(t, 8, n)
	h.venue.mu.Lock()
	defer h.venue.mu.Unlock()
	assert.Len(t, h.venue.placed, 8)
}
