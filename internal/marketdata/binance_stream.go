package marketdata

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const defaultBinanceStreamBase = "wss://fstream.binance.com/stream"

// BinanceStream follows the combined bookTicker stream for a set of symbols and writes
// best bid/ask into Board. It reconnects with backoff until ctx is done.
type BinanceStream struct {
	Logger *zap.Logger

	BaseURL string
	Symbols []string
	Board   *StaticFeed

	ReconnectMin time.Duration
	ReconnectMax time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	lastMsg   *time.Time
	lastError *string
	status    string
}

type StreamHealth struct {
	Status    string     `json:"status"`
	LastMsgAt *time.Time `json:"last_msg_at,omitempty"`
	LastError *string    `json:"last_error,omitempty"`
}

func (s *BinanceStream) URL() string {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		base = defaultBinanceStreamBase
	}
	streams := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		if n := streamSymbol(sym); n != "" {
			streams = append(streams, n+"@bookTicker")
		}
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

// Run blocks until ctx is cancelled.
func (s *BinanceStream) Run(ctx context.Context) error {
	if s == nil || s.Board == nil || len(s.Symbols) == 0 {
		return nil
	}
	minWait := s.ReconnectMin
	if minWait <= 0 {
		minWait = time.Second
	}
	maxWait := s.ReconnectMax
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	wait := minWait
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.setHealth(time.Now().UTC(), "down", strPtr(err.Error()))
			if s.Logger != nil {
				s.Logger.Warn("binance stream disconnected", zap.Error(err), zap.Duration("retry_in", wait))
			}
		} else {
			wait = minWait
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
}

func (s *BinanceStream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.URL(), nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		_, msg, err := conn.Read(ctx)
		now := time.Now().UTC()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		q, ok := parseBookTicker(msg)
		if !ok {
			continue
		}
		q.At = now
		s.Board.Put(q)
		s.setHealth(now, "healthy", nil)
	}
}

func (s *BinanceStream) Stop() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "stop")
	}
	return nil
}

func (s *BinanceStream) Health() StreamHealth {
	if s == nil {
		return StreamHealth{Status: "unknown"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	if strings.TrimSpace(status) == "" {
		status = "unknown"
	}
	return StreamHealth{Status: status, LastMsgAt: s.lastMsg, LastError: s.lastError}
}

func (s *BinanceStream) setHealth(ts time.Time, status string, errStr *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = &ts
	s.status = status
	s.lastError = errStr
}

type bookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

type streamEnvelope struct {
	Stream string      `json:"stream"`
	Data   *bookTicker `json:"data"`
}

func parseBookTicker(msg []byte) (Quote, bool) {
	if len(msg) == 0 {
		return Quote{}, false
	}
	var bt *bookTicker
	var env streamEnvelope
	if err := json.Unmarshal(msg, &env); err == nil && env.Data != nil && env.Data.Symbol != "" {
		bt = env.Data
	} else {
		var raw bookTicker
		if err := json.Unmarshal(msg, &raw); err != nil || raw.Symbol == "" {
			return Quote{}, false
		}
		bt = &raw
	}
	bid, err := decimal.NewFromString(bt.Bid)
	if err != nil {
		return Quote{}, false
	}
	ask, err := decimal.NewFromString(bt.Ask)
	if err != nil {
		return Quote{}, false
	}
	return Quote{Symbol: bt.Symbol, Bid: bid, Ask: ask}, true
}

func strPtr(s string) *string { return &s }
