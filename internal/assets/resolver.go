package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

var ErrUnknownAsset = errors.New("unknown or inactive asset")

// Store is the slice of the repository the resolver reads.
type Store interface {
	GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
	GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error)
}

type cachedAsset struct {
	asset    models.Asset
	loadedAt time.Time
}

// Resolver turns symbols into sizing constraints, caching asset rows for TTL.
type Resolver struct {
	Store  Store
	TTL    time.Duration
	Logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedAsset
	now   func() time.Time
}

func NewResolver(store Store, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Resolver{Store: store, TTL: ttl, Logger: logger, cache: map[string]cachedAsset{}, now: time.Now}
}

// Resolve returns constraints for symbol, trying the canonical key before the raw one.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (Constraints, error) {
	asset, err := r.lookup(ctx, symbol)
	if err != nil {
		return Constraints{}, err
	}
	return FromAsset(asset), nil
}

// ResolveAsset returns the asset row itself; used when the bot pins an asset id.
func (r *Resolver) ResolveAsset(ctx context.Context, assetID uint64) (*models.Asset, error) {
	if r == nil || r.Store == nil {
		return nil, ErrUnknownAsset
	}
	asset, err := r.Store.GetAssetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil || !asset.IsActive {
		return nil, fmt.Errorf("asset id %d: %w", assetID, ErrUnknownAsset)
	}
	return asset, nil
}

// Invalidate drops cached rows, e.g. after an asset upsert.
func (r *Resolver) Invalidate() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.cache = map[string]cachedAsset{}
	r.mu.Unlock()
}

func (r *Resolver) lookup(ctx context.Context, symbol string) (models.Asset, error) {
	if r == nil || r.Store == nil {
		return models.Asset{}, ErrUnknownAsset
	}
	canonical := CanonicalSymbol(symbol)
	if canonical == "" {
		return models.Asset{}, fmt.Errorf("symbol %q: %w", symbol, ErrUnknownAsset)
	}
	now := r.now()
	r.mu.Lock()
	if hit, ok := r.cache[canonical]; ok && now.Sub(hit.loadedAt) < r.TTL {
		r.mu.Unlock()
		return hit.asset, nil
	}
	r.mu.Unlock()

	asset, err := r.Store.GetAssetBySymbol(ctx, canonical)
	if err != nil {
		return models.Asset{}, err
	}
	if asset == nil && canonical != symbol {
		if asset, err = r.Store.GetAssetBySymbol(ctx, symbol); err != nil {
			return models.Asset{}, err
		}
	}
	if asset == nil || !asset.IsActive {
		if r.Logger != nil {
			r.Logger.Debug("assets: unresolved symbol", zap.String("symbol", symbol), zap.String("canonical", canonical))
		}
		return models.Asset{}, fmt.Errorf("symbol %q: %w", symbol, ErrUnknownAsset)
	}
	r.mu.Lock()
	r.cache[canonical] = cachedAsset{asset: *asset, loadedAt: now}
	r.mu.Unlock()
	return *asset, nil
}

func FromAsset(a models.Asset) Constraints {
	return Constraints{
		Symbol:   a.Symbol,
		Category: a.Category,
		Lot: LotConstraints{
			MinLot:  a.MinQty,
			MaxLot:  a.MaxQty,
			LotStep: a.LotStep,
		},
		RecommendedQty: a.RecommendedQty,
		Point:          a.Point,
		MinNotional:    a.MinNotional,
		MaxSpread:      a.MaxSpread,
	}
}
