package decision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

// Summary counts what one ProcessPending pass did.
type Summary struct {
	Evaluated int `json:"evaluated"`
	Skipped   int `json:"skipped"`
	Submitted int `json:"submitted"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

func (s *Summary) add(o Summary) {
	s.Evaluated += o.Evaluated
	s.Skipped += o.Skipped
	s.Submitted += o.Submitted
	s.Rejected += o.Rejected
	s.Failed += o.Failed
}

// ProcessPending evaluates the bot's undecided signals oldest first and hands every
// actionable decision to the executor. Executor failures are counted, not returned, so one
// bad order does not stall the queue.
func (e *Engine) ProcessPending(ctx context.Context, bot *models.Bot) (Summary, error) {
	var sum Summary
	if bot == nil {
		return sum, nil
	}
	symbols, err := e.botSymbols(ctx, bot)
	if err != nil {
		return sum, err
	}
	limit := e.PendingLimit
	if limit <= 0 {
		limit = defaultPendingBatchLimit
	}
	signals, err := e.Repo.ListPendingSignals(ctx, bot.ID, symbols, limit)
	if err != nil {
		return sum, err
	}
	for i := range signals {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		var (
			gone    bool
			evalErr error
		)
		err := e.withBotLease(ctx, bot.ID, func(ctx context.Context) error {
			// reload so pauses and orders from the previous decision are seen
			current, err := e.Repo.GetBotByID(ctx, bot.ID)
			if err != nil {
				return err
			}
			if current == nil {
				gone = true
				return nil
			}
			d, err := e.Evaluate(ctx, &signals[i], current)
			if err != nil {
				evalErr = err
				return nil
			}
			sum.Evaluated++
			sum.add(e.execute(ctx, d))
			return nil
		})
		if errors.Is(err, lease.ErrHeld) {
			// another worker owns the bot; its pass will pick these signals up
			if e.Logger != nil {
				e.Logger.Debug("bot lease busy, pending signals deferred", zap.Uint64("bot_id", bot.ID))
			}
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		if gone {
			return sum, nil
		}
		if evalErr != nil {
			sum.Failed++
			if e.Logger != nil {
				e.Logger.Warn("decision evaluate failed", zap.Uint64("bot_id", bot.ID), zap.Uint64("signal_id", signals[i].ID), zap.Error(evalErr))
			}
		}
	}
	return sum, nil
}

func (e *Engine) execute(ctx context.Context, d *models.Decision) Summary {
	var sum Summary
	if d.Action == models.ActionSkip {
		sum.Skipped++
		return sum
	}
	if e.Executor == nil {
		return sum
	}
	_, err := e.Executor.Execute(ctx, d)
	switch {
	case err == nil:
		sum.Submitted++
	case isRejection(err):
		sum.Rejected++
		if e.Logger != nil {
			e.Logger.Debug("decision not submitted", zap.Uint64("decision_id", d.ID), zap.Error(err))
		}
	default:
		sum.Failed++
		if e.Logger != nil {
			e.Logger.Warn("decision execution failed", zap.Uint64("decision_id", d.ID), zap.Uint64("bot_id", d.BotID), zap.Error(err))
		}
	}
	return sum
}

func isRejection(err error) bool {
	return orchestrator.RejectionReason(err) != ""
}

// RunMode processes pending signals for every active auto-trading bot in engine mode.
func (e *Engine) RunMode(ctx context.Context, mode string) (Summary, error) {
	var total Summary
	active := models.BotStatusActive
	autoTrade := true
	bots, err := e.Repo.ListBots(ctx, repository.ListBotsParams{
		Status:     &active,
		EngineMode: &mode,
		AutoTrade:  &autoTrade,
		Limit:      1000,
	})
	if err != nil {
		return total, err
	}
	var errs []error
	for i := range bots {
		sum, err := e.ProcessPending(ctx, &bots[i])
		total.add(sum)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return total, err
			}
			errs = append(errs, fmt.Errorf("bot %d: %w", bots[i].ID, err))
		}
	}
	return total, errors.Join(errs...)
}

// EvaluateSignal decides a stored signal for its owning bot and executes the result.
func (e *Engine) EvaluateSignal(ctx context.Context, signalID uint64) (*models.Decision, *models.Order, error) {
	signal, err := e.Repo.GetSignalByID(ctx, signalID)
	if err != nil {
		return nil, nil, err
	}
	if signal == nil {
		return nil, nil, fmt.Errorf("signal %d: %w", signalID, ErrSignalNotFound)
	}
	if signal.BotID == nil {
		return nil, nil, fmt.Errorf("signal %d has no bot", signalID)
	}
	bot, err := e.Repo.GetBotByID(ctx, *signal.BotID)
	if err != nil {
		return nil, nil, err
	}
	if bot == nil {
		return nil, nil, fmt.Errorf("bot %d: %w", *signal.BotID, orchestrator.ErrNotFound)
	}
	var (
		d     *models.Decision
		order *models.Order
	)
	err = e.withBotLease(ctx, bot.ID, func(ctx context.Context) error {
		var err error
		d, err = e.Evaluate(ctx, signal, bot)
		if err != nil || d.Action == models.ActionSkip || e.Executor == nil {
			return err
		}
		order, err = e.Executor.Execute(ctx, d)
		return err
	})
	return d, order, err
}

func (e *Engine) botSymbols(ctx context.Context, bot *models.Bot) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	if bot.AssetID != nil && *bot.AssetID != 0 && e.Assets != nil {
		asset, err := e.Assets.ResolveAsset(ctx, *bot.AssetID)
		if err != nil && !errors.Is(err, assets.ErrUnknownAsset) {
			return nil, err
		}
		if asset != nil {
			add(asset.Symbol)
			add(assets.CanonicalSymbol(asset.Symbol))
		}
	}
	for _, s := range bot.AllowedSymbols {
		add(s)
		add(assets.CanonicalSymbol(s))
	}
	return out, nil
}
