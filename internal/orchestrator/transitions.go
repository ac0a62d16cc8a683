package orchestrator

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

var allowedTransitions = map[string][]string{
	models.OrderStatusNew:        {models.OrderStatusAck, models.OrderStatusFilled, models.OrderStatusError, models.OrderStatusCanceled},
	models.OrderStatusAck:        {models.OrderStatusFilled, models.OrderStatusPartFilled, models.OrderStatusError, models.OrderStatusCanceled},
	models.OrderStatusPartFilled: {models.OrderStatusFilled, models.OrderStatusError, models.OrderStatusCanceled},
}

// CanTransition reports whether an order may move from one status to another.
// filled, canceled and error are terminal.
func CanTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func shortHash(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:20]
}

// ClientOrderID is deterministic per decision, account, symbol and side so a retried
// dispatch never produces a second venue order.
func ClientOrderID(decisionID, accountID uint64, symbol, side string) string {
	return shortHash(fmt.Sprint(decisionID), fmt.Sprint(accountID), symbol, side)
}

func CloseOrderID(positionID, accountID uint64, symbol string) string {
	return connector.ClosePrefix + shortHash("close", fmt.Sprint(positionID), fmt.Sprint(accountID), symbol)
}

// ReconcileCloseID identifies one flatten of a stray venue position. The venue qty and the
// grace window the sweep ran in keep a later stray on the same symbol from reusing it.
func ReconcileCloseID(accountID uint64, symbol string, qty decimal.Decimal, window time.Time) string {
	return connector.ClosePrefix + shortHash("reconcile", fmt.Sprint(accountID), symbol, qty.String(), fmt.Sprint(window.UTC().Unix()))
}

// retryID derives the n-th retry id of a close order whose earlier attempt died.
func retryID(base string, n int) string {
	if n <= 0 {
		return base
	}
	return fmt.Sprintf("%s|r%d", base, n)
}
