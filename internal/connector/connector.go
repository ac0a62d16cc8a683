package connector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

const (
	BrokerPaper     = "paper"
	BrokerBinance   = "binance"
	BrokerAlpaca    = "alpaca"
	BrokerMT5       = "mt5"
	BrokerCTrader   = "ctrader"
	BrokerExnessWeb = "exness_web"

	// ClosePrefix marks client order ids of position-closing orders.
	ClosePrefix = "close|"
)

var brokerAliases = map[string]string{
	"exness_mt5":   BrokerMT5,
	"icmarket_mt5": BrokerMT5,
	"icmarkets":    BrokerMT5,
	"binance_usdm": BrokerBinance,
}

// NormalizeBroker lower-cases a broker code and resolves aliases.
func NormalizeBroker(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if v, ok := brokerAliases[c]; ok {
		return v
	}
	return c
}

// Report is what a venue said about an order. Status is one of the models.OrderStatus values.
type Report struct {
	Status       string
	VenueOrderID string
	FilledQty    decimal.Decimal
	AvgPrice     *decimal.Decimal
	Message      string
	At           time.Time
}

type Connector interface {
	Name() string
	PlaceOrder(ctx context.Context, order *models.Order) (*Report, error)
	CancelOrder(ctx context.Context, order *models.Order) (*Report, error)
}

// OrderFetcher is implemented by venues that can be polled for order state.
type OrderFetcher interface {
	FetchOrder(ctx context.Context, order *models.Order) (*Report, error)
}

// VenuePosition qty is signed: positive long, negative short.
type VenuePosition struct {
	Symbol   string
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
}

type PositionLister interface {
	ListPositions(ctx context.Context) ([]VenuePosition, error)
}

type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// CandleSource serves closed and forming bars, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// IsCloseOrder reports whether a client order id belongs to a closing order.
func IsCloseOrder(o *models.Order) bool {
	if o == nil {
		return false
	}
	return o.Close || strings.HasPrefix(o.ClientOrderID, ClosePrefix)
}

func oppositeSide(side string) string {
	if strings.EqualFold(side, models.SideBuy) {
		return models.SideSell
	}
	return models.SideBuy
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
