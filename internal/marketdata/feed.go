package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
)

var ErrNoPrice = errors.New("marketdata: no price for symbol")

type Quote struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	At     time.Time
}

func (q Quote) Mid() decimal.Decimal {
	if q.Bid.IsZero() {
		return q.Ask
	}
	if q.Ask.IsZero() {
		return q.Bid
	}
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

func (q Quote) Spread() decimal.Decimal {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid)
}

// PriceFeed returns the latest known quote for a canonical symbol.
type PriceFeed interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Price returns the mid of the latest quote.
func Price(ctx context.Context, feed PriceFeed, symbol string) (decimal.Decimal, error) {
	if feed == nil {
		return decimal.Zero, ErrNoPrice
	}
	q, err := feed.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	mid := q.Mid()
	if !mid.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return mid, nil
}

// StaticFeed is a settable in-memory quote board. It backs tests and the paper venue when no
// stream is configured, and the stream writes into it.
type StaticFeed struct {
	MaxAge time.Duration
	Now    func() time.Time

	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{quotes: map[string]Quote{}}
}

func (f *StaticFeed) Set(symbol string, bid, ask decimal.Decimal) {
	f.Put(Quote{Symbol: symbol, Bid: bid, Ask: ask, At: f.now()})
}

// SetPrice sets a zero-spread quote.
func (f *StaticFeed) SetPrice(symbol string, price decimal.Decimal) {
	f.Set(symbol, price, price)
}

func (f *StaticFeed) Put(q Quote) {
	key := assets.CanonicalSymbol(q.Symbol)
	if key == "" {
		return
	}
	q.Symbol = key
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotes == nil {
		f.quotes = map[string]Quote{}
	}
	f.quotes[key] = q
}

func (f *StaticFeed) Quote(_ context.Context, symbol string) (Quote, error) {
	if f == nil {
		return Quote{}, ErrNoPrice
	}
	key := assets.CanonicalSymbol(symbol)
	f.mu.RLock()
	q, ok := f.quotes[key]
	f.mu.RUnlock()
	if !ok {
		return Quote{}, ErrNoPrice
	}
	if f.MaxAge > 0 && f.now().Sub(q.At) > f.MaxAge {
		return Quote{}, ErrNoPrice
	}
	return q, nil
}

func (f *StaticFeed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.quotes))
	for k := range f.quotes {
		out = append(out, k)
	}
	return out
}

func (f *StaticFeed) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

// streamSymbol maps a canonical symbol to the lower-case stream name binance uses.
func streamSymbol(symbol string) string {
	return strings.ToLower(assets.CanonicalSymbol(symbol))
}
