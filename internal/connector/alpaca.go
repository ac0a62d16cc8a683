package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	alpacaBaseURLLive  = "https://api.alpaca.markets"
	alpacaBaseURLPaper = "https://paper-api.alpaca.markets"
)

type AlpacaConfig struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	Paper      bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Alpaca places market orders, with a bracket when both protective levels are set.
type Alpaca struct {
	client *alpaca.Client
	logger *zap.Logger
}

func NewAlpaca(cfg AlpacaConfig) *Alpaca {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = alpacaBaseURLLive
		if cfg.Paper {
			base = alpacaBaseURLPaper
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Alpaca{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    base,
			HTTPClient: httpClient,
		}),
		logger: cfg.Logger,
	}
}

func (a *Alpaca) Name() string { return BrokerAlpaca }

func (a *Alpaca) PlaceOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "alpaca PlaceOrder"
	if order == nil || !order.Qty.IsPositive() {
		return nil, fmt.Errorf("%s: %w: qty must be positive", op, ErrOrderRejected)
	}
	req := alpacaOrderRequest(order)
	o, err := withContext(ctx, func() (*alpaca.Order, error) {
		return a.client.PlaceOrder(req)
	})
	if err != nil {
		return nil, a.handleError(err, op)
	}
	report := reportFromAlpaca(o)
	if a.logger != nil {
		a.logger.Info("alpaca order placed",
			zap.String("symbol", order.Symbol),
			zap.String("side", order.Side),
			zap.String("qty", order.Qty.String()),
			zap.String("client_order_id", order.ClientOrderID),
			zap.String("venue_order_id", report.VenueOrderID),
			zap.String("status", report.Status),
		)
	}
	return report, nil
}

func alpacaOrderRequest(order *models.Order) alpaca.PlaceOrderRequest {
	qty := order.Qty
	req := alpaca.PlaceOrderRequest{
		Symbol:        order.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(strings.ToLower(order.Side)),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: order.ClientOrderID,
	}
	if IsCloseOrder(order) {
		return req
	}
	if order.SL != nil && order.TP != nil && order.SL.IsPositive() && order.TP.IsPositive() {
		sl := *order.SL
		tp := *order.TP
		req.OrderClass = alpaca.Bracket
		req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
		req.StopLoss = &alpaca.StopLoss{StopPrice: &sl}
	}
	return req
}

func (a *Alpaca) CancelOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "alpaca CancelOrder"
	venueID := order.VenueOrderID
	if venueID == "" {
		o, err := withContext(ctx, func() (*alpaca.Order, error) {
			return a.client.GetOrderByClientOrderID(order.ClientOrderID)
		})
		if err != nil {
			return nil, a.handleError(err, op)
		}
		venueID = o.ID
	}
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, a.client.CancelOrder(venueID)
	})
	if err != nil {
		return nil, a.handleError(err, op)
	}
	return &Report{Status: models.OrderStatusCanceled, VenueOrderID: venueID, At: time.Now().UTC()}, nil
}

func (a *Alpaca) FetchOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "alpaca FetchOrder"
	o, err := withContext(ctx, func() (*alpaca.Order, error) {
		if order.VenueOrderID != "" {
			return a.client.GetOrder(order.VenueOrderID)
		}
		return a.client.GetOrderByClientOrderID(order.ClientOrderID)
	})
	if err != nil {
		return nil, a.handleError(err, op)
	}
	return reportFromAlpaca(o), nil
}

func (a *Alpaca) ListPositions(ctx context.Context) ([]VenuePosition, error) {
	const op = "alpaca ListPositions"
	positions, err := withContext(ctx, func() ([]alpaca.Position, error) {
		return a.client.GetPositions()
	})
	if err != nil {
		return nil, a.handleError(err, op)
	}
	out := make([]VenuePosition, 0, len(positions))
	for _, p := range positions {
		qty := p.Qty.Abs()
		if qty.IsZero() {
			continue
		}
		if strings.EqualFold(p.Side, "short") {
			qty = qty.Neg()
		}
		out = append(out, VenuePosition{Symbol: p.Symbol, Qty: qty, AvgPrice: p.AvgEntryPrice})
	}
	return out, nil
}

func (a *Alpaca) handleError(err error, op string) error {
	mapped := mapAlpacaError(op, err)
	if a.logger != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("alpaca call failed", zap.String("operation", op), zap.Error(err))
	}
	return mapped
}

func mapAlpacaError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return classifyTransport(op, err)
	}
	msg := strings.ToLower(apiErr.Message)
	var sentinel error
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case apiErr.StatusCode == http.StatusUnauthorized:
		sentinel = ErrAuthentication
	case strings.Contains(msg, "insufficient"):
		sentinel = ErrInsufficientFunds
	case apiErr.StatusCode == http.StatusForbidden:
		sentinel = ErrAuthentication
	case apiErr.StatusCode == http.StatusNotFound:
		sentinel = ErrOrderNotFound
	case apiErr.StatusCode == http.StatusUnprocessableEntity, apiErr.StatusCode == http.StatusBadRequest:
		sentinel = ErrOrderRejected
	case apiErr.StatusCode >= 500:
		sentinel = ErrConnection
	default:
		sentinel = ErrUnknown
	}
	return wrap(op, sentinel, err)
}

func reportFromAlpaca(o *alpaca.Order) *Report {
	if o == nil {
		return &Report{Status: models.OrderStatusAck, At: time.Now().UTC()}
	}
	r := &Report{
		Status:       alpacaStatus(o.Status),
		VenueOrderID: o.ID,
		FilledQty:    o.FilledQty,
		At:           time.Now().UTC(),
	}
	if o.FilledAvgPrice != nil && o.FilledAvgPrice.IsPositive() {
		r.AvgPrice = decPtr(*o.FilledAvgPrice)
	}
	if r.Status == models.OrderStatusError {
		r.Message = "venue status " + o.Status
	}
	return r
}

func alpacaStatus(s string) string {
	switch strings.ToLower(s) {
	case "filled":
		return models.OrderStatusFilled
	case "partially_filled":
		return models.OrderStatusPartFilled
	case "canceled", "expired", "done_for_day", "replaced":
		return models.OrderStatusCanceled
	case "rejected", "suspended":
		return models.OrderStatusError
	default:
		return models.OrderStatusAck
	}
}

// withContext runs a blocking SDK call that takes no context and abandons it when ctx ends.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
