package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
)

// ErrStatusConflict is returned by UpdateOrder when the row no longer has the expected status.
var ErrStatusConflict = errors.New("order status changed concurrently")

type BotRepository interface {
	InsertBot(ctx context.Context, item *models.Bot) error
	GetBotByID(ctx context.Context, id uint64) (*models.Bot, error)
	ListBots(ctx context.Context, params ListBotsParams) ([]models.Bot, error)
	CountBots(ctx context.Context, params ListBotsParams) (int64, error)
	// UpdateBotLocked loads the bot row under a write lock, applies fn and saves the result
	// in one transaction. Returning an error from fn rolls back.
	UpdateBotLocked(ctx context.Context, id uint64, fn func(bot *models.Bot) error) (*models.Bot, error)
}

type ReferenceRepository interface {
	UpsertAsset(ctx context.Context, item *models.Asset) error
	GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
	ListAssets(ctx context.Context, params ListAssetsParams) ([]models.Asset, error)

	UpsertTradingProfile(ctx context.Context, item *models.TradingProfile) error
	GetTradingProfileByID(ctx context.Context, id uint64) (*models.TradingProfile, error)
	GetDefaultTradingProfile(ctx context.Context) (*models.TradingProfile, error)
	ListTradingProfiles(ctx context.Context) ([]models.TradingProfile, error)

	InsertBrokerAccount(ctx context.Context, item *models.BrokerAccount) error
	GetBrokerAccountByID(ctx context.Context, id uint64) (*models.BrokerAccount, error)
	ListBrokerAccounts(ctx context.Context, activeOnly bool) ([]models.BrokerAccount, error)

	GetExecutionSetting(ctx context.Context, key string) (*models.ExecutionSetting, error)
	UpsertExecutionSetting(ctx context.Context, item *models.ExecutionSetting) error
}

type PipelineRepository interface {
	// InsertSignal reports false when a signal with the same dedupe key already exists.
	InsertSignal(ctx context.Context, item *models.Signal) (bool, error)
	GetSignalByID(ctx context.Context, id uint64) (*models.Signal, error)
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)
	CountSignals(ctx context.Context, params ListSignalsParams) (int64, error)
	ListPendingSignals(ctx context.Context, botID uint64, symbols []string, limit int) ([]models.Signal, error)

	// InsertDecision reports false when the (bot, signal) pair already has a decision.
	InsertDecision(ctx context.Context, item *models.Decision) (bool, error)
	GetDecisionByID(ctx context.Context, id uint64) (*models.Decision, error)
	GetDecisionByBotSignal(ctx context.Context, botID, signalID uint64) (*models.Decision, error)
	ListDecisions(ctx context.Context, params ListDecisionsParams) ([]models.Decision, error)
	CountDecisions(ctx context.Context, params ListDecisionsParams) (int64, error)
	LastActionableDecision(ctx context.Context, botID uint64) (*models.Decision, error)

	// CreateOrderIfAbsent inserts item unless client_order_id exists; the stored row is
	// returned either way with created reporting whether it was inserted.
	CreateOrderIfAbsent(ctx context.Context, item *models.Order) (*models.Order, bool, error)
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*models.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	CountOrders(ctx context.Context, params ListOrdersParams) (int64, error)
	// UpdateOrder applies updates only when the row still has expectedStatus.
	UpdateOrder(ctx context.Context, id uint64, expectedStatus string, updates map[string]any) error
	LastOrderForBot(ctx context.Context, botID uint64) (*models.Order, error)

	GetPositionByID(ctx context.Context, id uint64) (*models.Position, error)
	ListOpenPositions(ctx context.Context, accountID uint64, symbol string) ([]models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)
	SavePosition(ctx context.Context, item *models.Position) error

	InsertTradeLog(ctx context.Context, item *models.TradeLog) error
	ListTradeLogs(ctx context.Context, params ListTradeLogsParams) ([]models.TradeLog, error)
	SumRealizedPnLSince(ctx context.Context, botID uint64, since time.Time) (decimal.Decimal, error)

	InsertScalperRunLog(ctx context.Context, item *models.ScalperRunLog) error
	ListScalperRunLogs(ctx context.Context, botID uint64, limit int) ([]models.ScalperRunLog, error)
}

type SwitchRepository interface {
	UpsertFeatureSwitch(ctx context.Context, item *models.FeatureSwitch) error
	GetFeatureSwitch(ctx context.Context, key string) (*models.FeatureSwitch, error)
	ListFeatureSwitches(ctx context.Context) ([]models.FeatureSwitch, error)
}

// Repository is everything the execution pipeline persists.
type Repository interface {
	BotRepository
	ReferenceRepository
	PipelineRepository
	SwitchRepository
}

type ListBotsParams struct {
	Limit      int
	Offset     int
	Status     *string
	EngineMode *string
	AutoTrade  *bool
	OrderBy    string
	Asc        *bool
}

type ListAssetsParams struct {
	Limit      int
	Offset     int
	Category   *string
	ActiveOnly bool
}

type ListSignalsParams struct {
	Limit   int
	Offset  int
	BotID   *uint64
	Symbol  *string
	Source  *string
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListDecisionsParams struct {
	Limit    int
	Offset   int
	BotID    *uint64
	SignalID *uint64
	Action   *string
	Actions  []string
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListOrdersParams struct {
	Limit           int
	Offset          int
	BotID           *uint64
	BrokerAccountID *uint64
	Symbol          *string
	Statuses        []string
	Close           *bool
	CreatedSince    *time.Time
	UpdatedBefore   *time.Time
	FilledSince     *time.Time
	OrderBy         string
	Asc             *bool
}

type ListPositionsParams struct {
	Limit           int
	Offset          int
	BotID           *uint64
	BrokerAccountID *uint64
	Symbol          *string
	Status          *string
	OrderBy         string
	Asc             *bool
}

type ListTradeLogsParams struct {
	Limit  int
	Offset int
	BotID  *uint64
	Since  *time.Time
}
