package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- bots -------------------------------------------------------------------

func (s *Store) InsertBot(ctx context.Context, item *models.Bot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetBotByID(ctx context.Context, id uint64) (*models.Bot, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Bot
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) ListBots(ctx context.Context, params repository.ListBotsParams) ([]models.Bot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := botFilters(s.db.WithContext(ctx).Model(&models.Bot{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.Bot
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBots(ctx context.Context, params repository.ListBotsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := botFilters(s.db.WithContext(ctx).Model(&models.Bot{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func botFilters(query *gorm.DB, params repository.ListBotsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.EngineMode != nil && strings.TrimSpace(*params.EngineMode) != "" {
		query = query.Where("engine_mode = ?", strings.TrimSpace(*params.EngineMode))
	}
	if params.AutoTrade != nil {
		query = query.Where("auto_trade = ?", *params.AutoTrade)
	}
	return query
}

func (s *Store) UpdateBotLocked(ctx context.Context, id uint64, fn func(bot *models.Bot) error) (*models.Bot, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var out models.Bot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&out).Error; err != nil {
			return err
		}
		if fn != nil {
			if err := fn(&out); err != nil {
				return err
			}
		}
		return tx.Save(&out).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- reference data -----------------------------------------------------------

func (s *Store) UpsertAsset(ctx context.Context, item *models.Asset) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	if item.Symbol == "" {
		return nil
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name",
			"category",
			"min_qty",
			"recommended_qty",
			"max_qty",
			"lot_step",
			"point",
			"max_spread",
			"min_notional",
			"is_active",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Asset
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, nil
	}
	var item models.Asset
	return firstOrNil(s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&item), &item)
}

func (s *Store) ListAssets(ctx context.Context, params repository.ListAssetsParams) ([]models.Asset, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Asset{})
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	var items []models.Asset
	if err := query.Order("symbol asc").Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertTradingProfile(ctx context.Context, item *models.TradingProfile) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Slug = strings.TrimSpace(item.Slug)
	if item.Slug == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) GetTradingProfileByID(ctx context.Context, id uint64) (*models.TradingProfile, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.TradingProfile
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) GetDefaultTradingProfile(ctx context.Context) (*models.TradingProfile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TradingProfile
	return firstOrNil(s.db.WithContext(ctx).Where("is_default = ?", true).Order("id asc").First(&item), &item)
}

func (s *Store) ListTradingProfiles(ctx context.Context) ([]models.TradingProfile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TradingProfile
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertBrokerAccount(ctx context.Context, item *models.BrokerAccount) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetBrokerAccountByID(ctx context.Context, id uint64) (*models.BrokerAccount, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.BrokerAccount
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) ListBrokerAccounts(ctx context.Context, activeOnly bool) ([]models.BrokerAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BrokerAccount{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var items []models.BrokerAccount
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetExecutionSetting(ctx context.Context, key string) (*models.ExecutionSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = models.ExecutionSettingDefaultKey
	}
	var item models.ExecutionSetting
	return firstOrNil(s.db.WithContext(ctx).Where("key = ?", key).First(&item), &item)
}

func (s *Store) UpsertExecutionSetting(ctx context.Context, item *models.ExecutionSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		item.Key = models.ExecutionSettingDefaultKey
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(item).Error
}

// --- feature switches ---------------------------------------------------------

func (s *Store) UpsertFeatureSwitch(ctx context.Context, item *models.FeatureSwitch) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetFeatureSwitch(ctx context.Context, key string) (*models.FeatureSwitch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.FeatureSwitch
	return firstOrNil(s.db.WithContext(ctx).Where("key = ?", key).First(&item), &item)
}

func (s *Store) ListFeatureSwitches(ctx context.Context) ([]models.FeatureSwitch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.FeatureSwitch
	if err := s.db.WithContext(ctx).Order("key asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ------------------------------------------------------------------

func firstOrNil[T any](res *gorm.DB, item *T) (*T, error) {
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return item, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
