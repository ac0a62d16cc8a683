package connector

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/secrets"
)

// VenueOptions holds process-wide venue settings that accounts do not carry.
type VenueOptions struct {
	BinanceBaseURL         string
	BinancePlaceProtective bool
	AlpacaBaseURL          string
	HTTPTimeout            time.Duration
}

type cachedConnector struct {
	conn      Connector
	updatedAt time.Time
}

// Registry hands out one connector per broker account, built from its decrypted credentials.
type Registry struct {
	Logger  *zap.Logger
	Secrets *secrets.Box
	Paper   *Paper
	Options VenueOptions

	// CandleFeed replaces the public binance kline client when set.
	CandleFeed CandleSource

	mu        sync.Mutex
	cache     map[uint64]cachedConnector
	overrides map[string]Connector
	public    *Binance
}

func NewRegistry(box *secrets.Box, paper *Paper, opts VenueOptions, logger *zap.Logger) *Registry {
	return &Registry{
		Logger:    logger,
		Secrets:   box,
		Paper:     paper,
		Options:   opts,
		cache:     map[uint64]cachedConnector{},
		overrides: map[string]Connector{},
	}
}

// Register pins a connector for a broker code, replacing whatever For would build.
func (r *Registry) Register(broker string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overrides == nil {
		r.overrides = map[string]Connector{}
	}
	r.overrides[NormalizeBroker(broker)] = c
	r.cache = map[uint64]cachedConnector{}
}

// SecretScope is the additional data an account secret is sealed with.
func SecretScope(account *models.BrokerAccount) string {
	return NormalizeBroker(account.Broker) + ":" + strings.TrimSpace(account.AccountRef)
}

func (r *Registry) For(account *models.BrokerAccount) Connector {
	if account == nil {
		return NotConfigured{Broker: "unknown", Reason: "no broker account"}
	}
	broker := NormalizeBroker(account.Broker)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.overrides[broker]; ok {
		return c
	}
	if r.cache == nil {
		r.cache = map[uint64]cachedConnector{}
	}
	if cached, ok := r.cache[account.ID]; ok && cached.updatedAt.Equal(account.UpdatedAt) {
		return cached.conn
	}
	conn := r.build(broker, account)
	r.cache[account.ID] = cachedConnector{conn: conn, updatedAt: account.UpdatedAt}
	return conn
}

func (r *Registry) build(broker string, account *models.BrokerAccount) Connector {
	if !account.IsActive {
		return NotConfigured{Broker: broker, Reason: "broker account inactive"}
	}
	switch broker {
	case BrokerPaper:
		if r.Paper == nil {
			r.Paper = NewPaper(nil, r.Logger)
		}
		return r.Paper
	case BrokerBinance, BrokerAlpaca:
	default:
		return NotConfigured{Broker: broker}
	}

	secret, err := r.Secrets.Open(SecretScope(account), account.APISecretEnc)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("broker secret unreadable",
				zap.Uint64("broker_account_id", account.ID),
				zap.String("broker", broker),
				zap.Error(err),
			)
		}
		return NotConfigured{Broker: broker, Reason: "broker credentials unreadable"}
	}
	if strings.TrimSpace(account.APIKey) == "" || strings.TrimSpace(secret) == "" {
		return NotConfigured{Broker: broker, Reason: "missing broker credentials"}
	}

	httpClient := &http.Client{Timeout: r.httpTimeout()}
	if broker == BrokerBinance {
		base := account.BaseURL
		if base == "" {
			base = r.Options.BinanceBaseURL
		}
		return NewBinance(BinanceConfig{
			APIKey:          account.APIKey,
			SecretKey:       secret,
			BaseURL:         base,
			Testnet:         account.Testnet,
			HTTPClient:      httpClient,
			Logger:          r.Logger,
			PlaceProtective: r.Options.BinancePlaceProtective,
		})
	}
	base := account.BaseURL
	if base == "" {
		base = r.Options.AlpacaBaseURL
	}
	return NewAlpaca(AlpacaConfig{
		APIKey:     account.APIKey,
		APISecret:  secret,
		BaseURL:    base,
		Paper:      account.Testnet,
		HTTPClient: httpClient,
		Logger:     r.Logger,
	})
}

// Candles returns a key-less binance client for public kline data.
func (r *Registry) Candles() CandleSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CandleFeed != nil {
		return r.CandleFeed
	}
	if r.public == nil {
		r.public = NewBinance(BinanceConfig{
			BaseURL:    r.Options.BinanceBaseURL,
			HTTPClient: &http.Client{Timeout: r.httpTimeout()},
			Logger:     r.Logger,
		})
	}
	return r.public
}

func (r *Registry) httpTimeout() time.Duration {
	if r.Options.HTTPTimeout > 0 {
		return r.Options.HTTPTimeout
	}
	return 15 * time.Second
}
