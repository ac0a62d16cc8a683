package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	binanceBaseURLProduction = "https://fapi.binance.com"
	binanceBaseURLTestnet    = "https://testnet.binancefuture.com"
)

type BinanceConfig struct {
	APIKey     string
	SecretKey  string
	BaseURL    string
	Testnet    bool
	HTTPClient *http.Client
	Logger     *zap.Logger
	// PlaceProtective sends STOP_MARKET / TAKE_PROFIT_MARKET orders after an opening fill.
	PlaceProtective bool
}

// Binance trades USDⓈ-M futures.
type Binance struct {
	client          *futures.Client
	logger          *zap.Logger
	placeProtective bool
}

func NewBinance(cfg BinanceConfig) *Binance {
	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case strings.TrimSpace(cfg.BaseURL) != "":
		client.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	case cfg.Testnet:
		client.BaseURL = binanceBaseURLTestnet
	default:
		client.BaseURL = binanceBaseURLProduction
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	return &Binance{client: client, logger: cfg.Logger, placeProtective: cfg.PlaceProtective}
}

func (b *Binance) Name() string { return BrokerBinance }

func (b *Binance) PlaceOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "binance PlaceOrder"
	if order == nil || !order.Qty.IsPositive() {
		return nil, fmt.Errorf("%s: %w: qty must be positive", op, ErrOrderRejected)
	}
	svc := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(binanceSide(order.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(order.Qty.String()).
		NewClientOrderID(order.ClientOrderID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if IsCloseOrder(order) {
		svc = svc.ReduceOnly(true)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, op)
	}
	report := reportFromBinance(string(res.Status), res.OrderID, res.ExecutedQuantity, res.AvgPrice)
	if b.logger != nil {
		b.logger.Info("binance order placed",
			zap.String("symbol", order.Symbol),
			zap.String("side", order.Side),
			zap.String("qty", order.Qty.String()),
			zap.String("client_order_id", order.ClientOrderID),
			zap.String("venue_order_id", report.VenueOrderID),
			zap.String("status", report.Status),
		)
	}
	if b.placeProtective && !IsCloseOrder(order) {
		if msg := b.placeProtectiveOrders(ctx, order); msg != "" {
			report.Message = msg
		}
	}
	return report, nil
}

// placeProtectiveOrders attaches close-position stops. Failures are reported, not returned:
// the entry is already live.
func (b *Binance) placeProtectiveOrders(ctx context.Context, order *models.Order) string {
	var problems []string
	exit := binanceSide(oppositeSide(order.Side))
	if order.SL != nil && order.SL.IsPositive() {
		_, err := b.client.NewCreateOrderService().
			Symbol(order.Symbol).
			Side(exit).
			Type(futures.OrderTypeStopMarket).
			StopPrice(order.SL.String()).
			ClosePosition(true).
			Do(ctx)
		if err != nil {
			problems = append(problems, "sl: "+b.handleError(ctx, err, "binance PlaceStopMarket").Error())
		}
	}
	if order.TP != nil && order.TP.IsPositive() {
		_, err := b.client.NewCreateOrderService().
			Symbol(order.Symbol).
			Side(exit).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(order.TP.String()).
			ClosePosition(true).
			Do(ctx)
		if err != nil {
			problems = append(problems, "tp: "+b.handleError(ctx, err, "binance PlaceTakeProfitMarket").Error())
		}
	}
	return strings.Join(problems, "; ")
}

func (b *Binance) CancelOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "binance CancelOrder"
	res, err := b.client.NewCancelOrderService().
		Symbol(order.Symbol).
		OrigClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, op)
	}
	return reportFromBinance(string(res.Status), res.OrderID, res.ExecutedQuantity, ""), nil
}

func (b *Binance) FetchOrder(ctx context.Context, order *models.Order) (*Report, error) {
	const op = "binance FetchOrder"
	res, err := b.client.NewGetOrderService().
		Symbol(order.Symbol).
		OrigClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, op)
	}
	return reportFromBinance(string(res.Status), res.OrderID, res.ExecutedQuantity, res.AvgPrice), nil
}

func (b *Binance) ListPositions(ctx context.Context) ([]VenuePosition, error) {
	const op = "binance ListPositions"
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, op)
	}
	out := make([]VenuePosition, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		qty, err := decimal.NewFromString(r.PositionAmt)
		if err != nil || qty.IsZero() {
			continue
		}
		entry, _ := decimal.NewFromString(r.EntryPrice)
		out = append(out, VenuePosition{Symbol: r.Symbol, Qty: qty, AvgPrice: entry})
	}
	return out, nil
}

func (b *Binance) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	const op = "binance Candles"
	if limit <= 0 {
		limit = 100
	}
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, op)
	}
	out := make([]Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		c, err := candleFromKline(k)
		if err != nil {
			return nil, wrap(op, ErrUnknown, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func candleFromKline(k *futures.Kline) (Candle, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	vals := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return Candle{}, fmt.Errorf("parse kline field %q: %w", f, err)
		}
		vals[i] = d
	}
	return Candle{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// handleError translates binance API error codes into connector sentinels.
func (b *Binance) handleError(_ context.Context, err error, op string) error {
	mapped := mapBinanceError(op, err)
	if b.logger != nil && !errors.Is(err, context.Canceled) {
		fields := []zap.Field{zap.String("operation", op), zap.Error(err)}
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			fields = append(fields, zap.Int64("api_code", apiErr.Code), zap.String("api_message", apiErr.Message))
		}
		b.logger.Warn("binance call failed", fields...)
	}
	return mapped
}

func mapBinanceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return classifyTransport(op, err)
	}
	var sentinel error
	switch apiErr.Code {
	case -1003:
		sentinel = ErrRateLimited
	case -1021:
		sentinel = ErrTimeout
	case -1022, -2014, -2015:
		sentinel = ErrAuthentication
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130,
		-4003, -4014, -4015:
		sentinel = ErrOrderRejected
	case -2010, -2011, -2022:
		sentinel = ErrOrderRejected
	case -2013:
		sentinel = ErrOrderNotFound
	case -2019, -3005, -3041, -4047:
		sentinel = ErrInsufficientFunds
	default:
		sentinel = ErrUnknown
	}
	return wrap(op, sentinel, err)
}

func binanceSide(side string) futures.SideType {
	if strings.EqualFold(side, models.SideSell) {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func reportFromBinance(status string, orderID int64, executedQty, avgPrice string) *Report {
	r := &Report{
		Status:       binanceStatus(status),
		VenueOrderID: fmt.Sprintf("%d", orderID),
		At:           time.Now().UTC(),
	}
	if q, err := decimal.NewFromString(executedQty); err == nil {
		r.FilledQty = q
	}
	if p, err := decimal.NewFromString(avgPrice); err == nil && p.IsPositive() {
		r.AvgPrice = decPtr(p)
	}
	if r.Status == models.OrderStatusError {
		r.Message = "venue status " + status
	}
	return r
}

func binanceStatus(s string) string {
	switch futures.OrderStatusType(strings.ToUpper(s)) {
	case futures.OrderStatusTypeFilled:
		return models.OrderStatusFilled
	case futures.OrderStatusTypePartiallyFilled:
		return models.OrderStatusPartFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return models.OrderStatusCanceled
	case futures.OrderStatusTypeRejected:
		return models.OrderStatusError
	default:
		return models.OrderStatusAck
	}
}
