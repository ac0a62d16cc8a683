package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	KindConnectorConfig     = "connector_config_error"
	KindOrderError          = "order_error"
	KindReconcileDivergence = "reconcile_divergence"
	KindLossStreakPause     = "loss_streak_pause"
	KindKillSwitch          = "kill_switch"
	KindEarlyExit           = "early_exit"

	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Event struct {
	Kind    string         `json:"kind"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	BotID   uint64         `json:"bot_id,omitempty"`
	OrderID uint64         `json:"order_id,omitempty"`
	Symbol  string         `json:"symbol,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Source  string         `json:"source"`
	SentAt  time.Time      `json:"sent_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Webhook posts events as JSON. Notify never blocks the caller for more than the timeout and
// never fails it: alerts are best-effort.
type Webhook struct {
	URL    string
	Token  string
	Source string
	Logger *zap.Logger

	Timeout time.Duration
	client  *resty.Client
}

func NewWebhook(url, token string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &Webhook{
		URL:     strings.TrimSpace(url),
		Token:   strings.TrimSpace(token),
		Source:  "ezpip",
		Logger:  logger,
		Timeout: timeout,
		client:  client,
	}
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	if w == nil || w.URL == "" {
		return nil
	}
	if ev.Source == "" {
		ev.Source = w.Source
	}
	if ev.Level == "" {
		ev.Level = LevelWarn
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	req := w.client.R().SetContext(ctx).SetBody(ev)
	if w.Token != "" {
		req.SetAuthToken(w.Token)
	}
	resp, err := req.Post(w.URL)
	if err != nil {
		return fmt.Errorf("alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (w *Webhook) Notify(ctx context.Context, ev Event) {
	if w == nil || w.URL == "" {
		return
	}
	// detached so a cancelled request or task context still delivers
	ctx2, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.Timeout)
	defer cancel()
	if err := w.Send(ctx2, ev); err != nil && w.Logger != nil {
		w.Logger.Warn("alert delivery failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

// LogNotifier writes events to the log only. Used when no webhook is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev Event) {
	if n.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.String("message", ev.Message),
	}
	if ev.BotID != 0 {
		fields = append(fields, zap.Uint64("bot_id", ev.BotID))
	}
	if ev.OrderID != 0 {
		fields = append(fields, zap.Uint64("order_id", ev.OrderID))
	}
	if ev.Symbol != "" {
		fields = append(fields, zap.String("symbol", ev.Symbol))
	}
	if ev.Level == LevelError {
		n.Logger.Error("alert", fields...)
		return
	}
	n.Logger.Warn("alert", fields...)
}

// Multi fans an event out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
