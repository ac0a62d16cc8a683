package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

// Paper simulates a venue. Orders are acked at the feed price; FetchOrder reports them filled
// at the price current when the fill task polls, which stands in for the next tick.
type Paper struct {
	Feed   marketdata.PriceFeed
	Logger *zap.Logger
	Now    func() time.Time

	seq      atomic.Uint64
	mu       sync.Mutex
	canceled map[string]struct{}
}

func NewPaper(feed marketdata.PriceFeed, logger *zap.Logger) *Paper {
	return &Paper{Feed: feed, Logger: logger, canceled: map[string]struct{}{}}
}

func (p *Paper) Name() string { return BrokerPaper }

func (p *Paper) PlaceOrder(ctx context.Context, order *models.Order) (*Report, error) {
	if order == nil {
		return nil, fmt.Errorf("paper PlaceOrder: %w: nil order", ErrOrderRejected)
	}
	if !order.Qty.IsPositive() {
		return &Report{Status: models.OrderStatusError, Message: "qty must be positive", At: p.now()},
			fmt.Errorf("paper PlaceOrder: %w: qty %s", ErrOrderRejected, order.Qty)
	}
	price, err := p.price(ctx, order)
	if err != nil {
		return &Report{Status: models.OrderStatusError, Message: err.Error(), At: p.now()}, err
	}
	id := fmt.Sprintf("paper-%d", p.seq.Add(1))
	if p.Logger != nil {
		p.Logger.Debug("paper order acked",
			zap.String("client_order_id", order.ClientOrderID),
			zap.String("symbol", order.Symbol),
			zap.String("price", price.String()),
		)
	}
	return &Report{
		Status:       models.OrderStatusAck,
		VenueOrderID: id,
		AvgPrice:     decPtr(price),
		At:           p.now(),
	}, nil
}

func (p *Paper) CancelOrder(_ context.Context, order *models.Order) (*Report, error) {
	if order == nil {
		return nil, fmt.Errorf("paper CancelOrder: %w", ErrOrderNotFound)
	}
	p.mu.Lock()
	if p.canceled == nil {
		p.canceled = map[string]struct{}{}
	}
	p.canceled[order.ClientOrderID] = struct{}{}
	p.mu.Unlock()
	return &Report{Status: models.OrderStatusCanceled, VenueOrderID: order.VenueOrderID, At: p.now()}, nil
}

// FetchOrder fills an acked order in full at the current price.
func (p *Paper) FetchOrder(ctx context.Context, order *models.Order) (*Report, error) {
	if order == nil {
		return nil, fmt.Errorf("paper FetchOrder: %w", ErrOrderNotFound)
	}
	p.mu.Lock()
	_, canceled := p.canceled[order.ClientOrderID]
	p.mu.Unlock()
	if canceled {
		return &Report{Status: models.OrderStatusCanceled, VenueOrderID: order.VenueOrderID, At: p.now()}, nil
	}
	price, err := p.price(ctx, order)
	if err != nil {
		return nil, err
	}
	return &Report{
		Status:       models.OrderStatusFilled,
		VenueOrderID: order.VenueOrderID,
		FilledQty:    order.Qty,
		AvgPrice:     decPtr(price),
		At:           p.now(),
	}, nil
}

func (p *Paper) price(ctx context.Context, order *models.Order) (decimal.Decimal, error) {
	price, err := marketdata.Price(ctx, p.Feed, order.Symbol)
	if err == nil {
		return price, nil
	}
	if order.Price != nil && order.Price.IsPositive() {
		return *order.Price, nil
	}
	return decimal.Zero, fmt.Errorf("paper price %s: %w: %w", order.Symbol, ErrOrderRejected, err)
}

func (p *Paper) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
