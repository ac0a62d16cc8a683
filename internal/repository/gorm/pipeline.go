package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

// --- signals ------------------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.Signal) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetSignalByID(ctx context.Context, id uint64) (*models.Signal, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Signal
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := signalFilters(s.db.WithContext(ctx).Model(&models.Signal{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "received_at")
	var items []models.Signal
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := signalFilters(s.db.WithContext(ctx).Model(&models.Signal{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func signalFilters(query *gorm.DB, params repository.ListSignalsParams) *gorm.DB {
	if params.BotID != nil && *params.BotID > 0 {
		query = query.Where("bot_id = ?", *params.BotID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("received_at >= ?", params.Since.UTC())
	}
	return query
}

// ListPendingSignals returns signals addressed to the bot (or unaddressed, matching symbols)
// that have no decision for that bot yet, oldest first.
func (s *Store) ListPendingSignals(ctx context.Context, botID uint64, symbols []string, limit int) ([]models.Signal, error) {
	if s == nil || s.db == nil || botID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Signal{}).
		Where("NOT EXISTS (SELECT 1 FROM decisions d WHERE d.signal_id = signals.id AND d.bot_id = ?)", botID)
	symbols = cleanStrings(symbols)
	if len(symbols) > 0 {
		query = query.Where("bot_id = ? OR (bot_id IS NULL AND symbol IN ?)", botID, symbols)
	} else {
		query = query.Where("bot_id = ?", botID)
	}
	var items []models.Signal
	if err := query.Order("received_at asc").Order("id asc").Limit(normalizeLimit(limit, 50)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- decisions ----------------------------------------------------------------

func (s *Store) InsertDecision(ctx context.Context, item *models.Decision) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}, {Name: "signal_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetDecisionByID(ctx context.Context, id uint64) (*models.Decision, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Decision
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) GetDecisionByBotSignal(ctx context.Context, botID, signalID uint64) (*models.Decision, error) {
	if s == nil || s.db == nil || botID == 0 || signalID == 0 {
		return nil, nil
	}
	var item models.Decision
	return firstOrNil(s.db.WithContext(ctx).Where("bot_id = ? AND signal_id = ?", botID, signalID).First(&item), &item)
}

func (s *Store) ListDecisions(ctx context.Context, params repository.ListDecisionsParams) ([]models.Decision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := decisionFilters(s.db.WithContext(ctx).Model(&models.Decision{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "decided_at")
	var items []models.Decision
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDecisions(ctx context.Context, params repository.ListDecisionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := decisionFilters(s.db.WithContext(ctx).Model(&models.Decision{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func decisionFilters(query *gorm.DB, params repository.ListDecisionsParams) *gorm.DB {
	if params.BotID != nil && *params.BotID > 0 {
		query = query.Where("bot_id = ?", *params.BotID)
	}
	if params.SignalID != nil && *params.SignalID > 0 {
		query = query.Where("signal_id = ?", *params.SignalID)
	}
	if params.Action != nil && strings.TrimSpace(*params.Action) != "" {
		query = query.Where("action = ?", strings.TrimSpace(*params.Action))
	}
	if actions := cleanStrings(params.Actions); len(actions) > 0 {
		query = query.Where("action IN ?", actions)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("decided_at >= ?", params.Since.UTC())
	}
	return query
}

func (s *Store) LastActionableDecision(ctx context.Context, botID uint64) (*models.Decision, error) {
	if s == nil || s.db == nil || botID == 0 {
		return nil, nil
	}
	var item models.Decision
	res := s.db.WithContext(ctx).
		Where("bot_id = ? AND action <> ?", botID, models.ActionSkip).
		Order("decided_at desc").Order("id desc").
		First(&item)
	return firstOrNil(res, &item)
}

// --- orders -------------------------------------------------------------------

func (s *Store) CreateOrderIfAbsent(ctx context.Context, item *models.Order) (*models.Order, bool, error) {
	if s == nil || s.db == nil || item == nil {
		return nil, false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_order_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return item, true, nil
	}
	existing, err := s.GetOrderByClientOrderID(ctx, item.ClientOrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Order
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	clientOrderID = strings.TrimSpace(clientOrderID)
	if clientOrderID == "" {
		return nil, nil
	}
	var item models.Order
	return firstOrNil(s.db.WithContext(ctx).Where("client_order_id = ?", clientOrderID).First(&item), &item)
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := orderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.Order
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := orderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func orderFilters(query *gorm.DB, params repository.ListOrdersParams) *gorm.DB {
	if params.BotID != nil && *params.BotID > 0 {
		query = query.Where("bot_id = ?", *params.BotID)
	}
	if params.BrokerAccountID != nil && *params.BrokerAccountID > 0 {
		query = query.Where("broker_account_id = ?", *params.BrokerAccountID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if statuses := cleanStrings(params.Statuses); len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if params.Close != nil {
		query = query.Where("is_close = ?", *params.Close)
	}
	if params.CreatedSince != nil && !params.CreatedSince.IsZero() {
		query = query.Where("created_at >= ?", params.CreatedSince.UTC())
	}
	if params.UpdatedBefore != nil && !params.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", params.UpdatedBefore.UTC())
	}
	if params.FilledSince != nil && !params.FilledSince.IsZero() {
		query = query.Where("filled_at >= ?", params.FilledSince.UTC())
	}
	return query
}

func (s *Store) UpdateOrder(ctx context.Context, id uint64, expectedStatus string, updates map[string]any) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	next := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		next[k] = v
	}
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if strings.TrimSpace(expectedStatus) != "" {
		query = query.Where("status = ?", strings.TrimSpace(expectedStatus))
	}
	res := query.Updates(next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

func (s *Store) LastOrderForBot(ctx context.Context, botID uint64) (*models.Order, error) {
	if s == nil || s.db == nil || botID == 0 {
		return nil, nil
	}
	var item models.Order
	res := s.db.WithContext(ctx).Where("bot_id = ?", botID).Order("created_at desc").Order("id desc").First(&item)
	return firstOrNil(res, &item)
}

// --- positions ----------------------------------------------------------------

func (s *Store) GetPositionByID(ctx context.Context, id uint64) (*models.Position, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Position
	return firstOrNil(s.db.WithContext(ctx).Where("id = ?", id).First(&item), &item)
}

func (s *Store) ListOpenPositions(ctx context.Context, accountID uint64, symbol string) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{}).Where("status = ?", models.PositionStatusOpen)
	if accountID > 0 {
		query = query.Where("broker_account_id = ?", accountID)
	}
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	var items []models.Position
	if err := query.Order("opened_at asc").Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := positionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "opened_at")
	var items []models.Position
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := positionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func positionFilters(query *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	if params.BotID != nil && *params.BotID > 0 {
		query = query.Where("bot_id = ?", *params.BotID)
	}
	if params.BrokerAccountID != nil && *params.BrokerAccountID > 0 {
		query = query.Where("broker_account_id = ?", *params.BrokerAccountID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	return query
}

func (s *Store) SavePosition(ctx context.Context, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

// --- trade logs -----------------------------------------------------------------

func (s *Store) InsertTradeLog(ctx context.Context, item *models.TradeLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTradeLogs(ctx context.Context, params repository.ListTradeLogsParams) ([]models.TradeLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeLog{})
	if params.BotID != nil && *params.BotID > 0 {
		query = query.Where("bot_id = ?", *params.BotID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	var items []models.TradeLog
	if err := query.Order("created_at desc").Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SumRealizedPnLSince(ctx context.Context, botID uint64, since time.Time) (decimal.Decimal, error) {
	if s == nil || s.db == nil || botID == 0 {
		return decimal.Zero, nil
	}
	var out decimal.NullDecimal
	query := s.db.WithContext(ctx).
		Model(&models.TradeLog{}).
		Select("COALESCE(SUM(pnl),0)").
		Where("bot_id = ? AND pnl IS NOT NULL", botID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since.UTC())
	}
	if err := query.Scan(&out).Error; err != nil {
		return decimal.Zero, err
	}
	if !out.Valid {
		return decimal.Zero, nil
	}
	return out.Decimal, nil
}

// --- scalper runs ---------------------------------------------------------------

func (s *Store) InsertScalperRunLog(ctx context.Context, item *models.ScalperRunLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListScalperRunLogs(ctx context.Context, botID uint64, limit int) ([]models.ScalperRunLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.ScalperRunLog{})
	if botID > 0 {
		query = query.Where("bot_id = ?", botID)
	}
	var items []models.ScalperRunLog
	if err := query.Order("created_at desc").Limit(normalizeLimit(limit, 50)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

