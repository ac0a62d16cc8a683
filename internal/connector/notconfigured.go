package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

// NotConfigured stands in for venues without a live adapter (mt5, ctrader, exness_web) and
// for accounts missing credentials. Every call fails with ErrNotConfigured.
type NotConfigured struct {
	Broker string
	Reason string
}

func (n NotConfigured) Name() string { return n.Broker }

func (n NotConfigured) PlaceOrder(_ context.Context, _ *models.Order) (*Report, error) {
	return n.fail("PlaceOrder")
}

func (n NotConfigured) CancelOrder(_ context.Context, _ *models.Order) (*Report, error) {
	return n.fail("CancelOrder")
}

func (n NotConfigured) fail(op string) (*Report, error) {
	reason := n.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s connector not configured", n.Broker)
	}
	return &Report{
		Status:  models.OrderStatusError,
		Message: reason,
		At:      time.Now().UTC(),
	}, fmt.Errorf("%s %s: %w: %s", n.Broker, op, ErrNotConfigured, reason)
}
