package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

const (
	StaleCancelMsg        = "auto-cancel: stale new/ack"
	defaultReconcileGrace = 5 * time.Minute
	sweepBatch            = 200
)

// SweepStale cancels new/ack orders that outlived the ack timeout. The venue is asked first:
// a venue fill wins, a venue refusal leaves the order in error.
func (o *Orchestrator) SweepStale(ctx context.Context) (int, error) {
	cfg, err := settings.Load(ctx, o.Repo, nil)
	if err != nil {
		return 0, err
	}
	cutoff := o.now().Add(-ackTimeout(cfg))
	items, err := o.Repo.ListOrders(ctx, repository.ListOrdersParams{
		Statuses:      []string{models.OrderStatusNew, models.OrderStatusAck},
		UpdatedBefore: &cutoff,
		Limit:         sweepBatch,
	})
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range items {
		order := &items[i]
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if err := o.sweepOne(ctx, order, cfg); err != nil {
			if o.Logger != nil {
				o.Logger.Warn("stale sweep failed", zap.Uint64("order_id", order.ID), zap.Error(err))
			}
			continue
		}
		swept++
	}
	return swept, nil
}

func (o *Orchestrator) sweepOne(ctx context.Context, order *models.Order, cfg settings.ResolvedConfig) error {
	account, err := o.Repo.GetBrokerAccountByID(ctx, order.BrokerAccountID)
	if err != nil {
		return err
	}
	if account == nil {
		_, err := o.UpdateStatus(ctx, order, models.OrderStatusCanceled, Patch{ErrorMsg: StaleCancelMsg})
		return err
	}
	conn := o.connectorFor(account)
	cctx, cancel := context.WithTimeout(ctx, ackTimeout(cfg))
	defer cancel()

	if f, ok := conn.(connector.OrderFetcher); ok && order.Status == models.OrderStatusAck {
		report, err := f.FetchOrder(cctx, order)
		if err == nil && report != nil && (report.Status == models.OrderStatusFilled || report.Status == models.OrderStatusPartFilled) {
			_, err = o.ApplyReport(ctx, order, report)
			return err
		}
	}
	_, err = conn.CancelOrder(cctx, order)
	switch {
	case err == nil, errors.Is(err, connector.ErrOrderNotFound), errors.Is(err, connector.ErrNotConfigured):
		_, err = o.UpdateStatus(ctx, order, models.OrderStatusCanceled, Patch{ErrorMsg: StaleCancelMsg})
		return err
	default:
		_, uerr := o.UpdateStatus(ctx, order, models.OrderStatusError, Patch{ErrorMsg: StaleCancelMsg + "; venue refused cancel: " + err.Error()})
		return uerr
	}
}

// RefreshAcked polls venues for acked and partially filled orders on accounts accepted by
// filter (nil accepts all) and applies what they report. It returns the orders that changed.
func (o *Orchestrator) RefreshAcked(ctx context.Context, filter func(*models.BrokerAccount) bool) (int, error) {
	items, err := o.Repo.ListOrders(ctx, repository.ListOrdersParams{
		Statuses: []string{models.OrderStatusAck, models.OrderStatusPartFilled},
		Limit:    sweepBatch,
		Asc:      boolPtr(true),
	})
	if err != nil {
		return 0, err
	}
	accounts := map[uint64]*models.BrokerAccount{}
	changed := 0
	var errs []error
	for i := range items {
		order := &items[i]
		account, ok := accounts[order.BrokerAccountID]
		if !ok {
			account, err = o.Repo.GetBrokerAccountByID(ctx, order.BrokerAccountID)
			if err != nil {
				return changed, err
			}
			accounts[order.BrokerAccountID] = account
		}
		if account == nil || (filter != nil && !filter(account)) {
			continue
		}
		fetcher, ok := o.connectorFor(account).(connector.OrderFetcher)
		if !ok {
			continue
		}
		report, err := fetcher.FetchOrder(ctx, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch order %d: %w", order.ID, err))
			continue
		}
		updated, err := o.ApplyReport(ctx, order, report)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if updated != nil && (updated.Status != order.Status || !updated.FilledQty.Equal(order.FilledQty)) {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// IsPaperAccount selects paper accounts for the simulated fill task.
func IsPaperAccount(a *models.BrokerAccount) bool {
	return connector.NormalizeBroker(a.Broker) == connector.BrokerPaper
}

func isLiveAccount(a *models.BrokerAccount) bool {
	return !IsPaperAccount(a)
}

// Reconcile brings local state in line with the venues: order states are refreshed, venue
// positions nobody ordered are flattened and local positions the venue no longer holds are
// closed locally.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	var errs []error
	if _, err := o.RefreshAcked(ctx, isLiveAccount); err != nil {
		errs = append(errs, err)
	}
	accounts, err := o.Repo.ListBrokerAccounts(ctx, true)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for i := range accounts {
		account := &accounts[i]
		if !isLiveAccount(account) {
			continue
		}
		lister, ok := o.connectorFor(account).(connector.PositionLister)
		if !ok {
			continue
		}
		if err := o.reconcileAccount(ctx, account, lister); err != nil {
			errs = append(errs, fmt.Errorf("reconcile account %d: %w", account.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) reconcileAccount(ctx context.Context, account *models.BrokerAccount, lister connector.PositionLister) error {
	venue, err := lister.ListPositions(ctx)
	if err != nil {
		return err
	}
	local, err := o.Repo.ListOpenPositions(ctx, account.ID, "")
	if err != nil {
		return err
	}
	localBySymbol := map[string][]models.Position{}
	for _, p := range local {
		key := assets.CanonicalSymbol(p.Symbol)
		localBySymbol[key] = append(localBySymbol[key], p)
	}
	venueBySymbol := map[string]connector.VenuePosition{}
	for _, vp := range venue {
		venueBySymbol[assets.CanonicalSymbol(vp.Symbol)] = vp
	}

	var errs []error
	for key, vp := range venueBySymbol {
		mine := localBySymbol[key]
		if len(mine) > 0 {
			localQty := decimal.Zero
			for _, p := range mine {
				localQty = localQty.Add(p.Qty)
			}
			if !localQty.Equal(vp.Qty) {
				o.divergence(ctx, account, vp.Symbol, fmt.Sprintf("venue qty %s differs from local %s", vp.Qty, localQty))
			}
			continue
		}
		recent, err := o.recentActivity(ctx, account.ID, vp.Symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if recent {
			continue
		}
		if err := o.flattenStray(ctx, account, vp); err != nil {
			errs = append(errs, err)
		}
	}

	for key, positions := range localBySymbol {
		if _, ok := venueBySymbol[key]; ok {
			continue
		}
		for i := range positions {
			pos := &positions[i]
			recent, err := o.recentActivity(ctx, account.ID, pos.Symbol)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if recent {
				continue
			}
			o.divergence(ctx, account, pos.Symbol, fmt.Sprintf("local position %d missing at venue", pos.ID))
			if err := o.closeLocally(ctx, pos, CloseReasonReconcileMissing); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) reconcileGrace() time.Duration {
	if o.ReconcileGrace > 0 {
		return o.ReconcileGrace
	}
	return defaultReconcileGrace
}

func (o *Orchestrator) recentActivity(ctx context.Context, accountID uint64, symbol string) (bool, error) {
	since := o.now().Add(-o.reconcileGrace())
	n, err := o.Repo.CountOrders(ctx, repository.ListOrdersParams{
		BrokerAccountID: &accountID,
		Symbol:          &symbol,
		CreatedSince:    &since,
	})
	return n > 0, err
}

func (o *Orchestrator) flattenStray(ctx context.Context, account *models.BrokerAccount, vp connector.VenuePosition) error {
	side := models.SideSell
	if vp.Qty.IsNegative() {
		side = models.SideBuy
	}
	order := &models.Order{
		BotID:           o.ownerBot(ctx, account.ID),
		BrokerAccountID: account.ID,
		Symbol:          vp.Symbol,
		Side:            side,
		Qty:             vp.Qty.Abs(),
		Close:           true,
		Status:          models.OrderStatusNew,
		FilledQty:       decimal.Zero,
	}
	if vp.AvgPrice.IsPositive() {
		p := vp.AvgPrice
		order.Price = &p
	}
	o.divergence(ctx, account, vp.Symbol, fmt.Sprintf("stray venue position %s flattened", vp.Qty))
	stored, fresh, err := o.createCloseOrder(ctx, ReconcileCloseID(account.ID, vp.Symbol, vp.Qty, o.now().Truncate(o.reconcileGrace())), order)
	if err != nil || !fresh {
		return err
	}
	cfg, err := settings.Load(ctx, o.Repo, nil)
	if err != nil {
		return err
	}
	_, err = o.dispatch(ctx, stored, account, cfg)
	return err
}

// ownerBot picks the bot trading on an account so reconcile orders stay attributable.
func (o *Orchestrator) ownerBot(ctx context.Context, accountID uint64) uint64 {
	bots, err := o.Repo.ListBots(ctx, repository.ListBotsParams{Limit: 500})
	if err != nil {
		return 0
	}
	for _, b := range bots {
		if b.BrokerAccountID != nil && *b.BrokerAccountID == accountID {
			return b.ID
		}
	}
	return 0
}

func (o *Orchestrator) divergence(ctx context.Context, account *models.BrokerAccount, symbol, msg string) {
	if o.Logger != nil {
		o.Logger.Warn("reconcile divergence",
			zap.Uint64("broker_account_id", account.ID),
			zap.String("symbol", symbol),
			zap.String("detail", msg),
		)
	}
	if o.Alerts != nil {
		o.Alerts.Notify(ctx, alert.Event{
			Kind:    alert.KindReconcileDivergence,
			Level:   alert.LevelWarn,
			Message: msg,
			Symbol:  symbol,
			Details: map[string]any{"broker_account_id": account.ID},
		})
	}
}

func boolPtr(v bool) *bool { return &v }
