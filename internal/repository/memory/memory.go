// Package memory is an in-process Repository used by tests and the paper CLI runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

type Store struct {
	mu sync.Mutex

	seq uint64
	now func() time.Time

	bots       map[uint64]models.Bot
	assets     map[uint64]models.Asset
	profiles   map[uint64]models.TradingProfile
	accounts   map[uint64]models.BrokerAccount
	settings   map[string]models.ExecutionSetting
	signals    map[uint64]models.Signal
	decisions  map[uint64]models.Decision
	orders     map[uint64]models.Order
	positions  map[uint64]models.Position
	tradeLogs  []models.TradeLog
	scalperLog []models.ScalperRunLog
	switches   map[string]models.FeatureSwitch
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		bots:      map[uint64]models.Bot{},
		assets:    map[uint64]models.Asset{},
		profiles:  map[uint64]models.TradingProfile{},
		accounts:  map[uint64]models.BrokerAccount{},
		settings:  map[string]models.ExecutionSetting{},
		signals:   map[uint64]models.Signal{},
		decisions: map[uint64]models.Decision{},
		orders:    map[uint64]models.Order{},
		positions: map[uint64]models.Position{},
		switches:  map[string]models.FeatureSwitch{},
	}
}

// SetClock overrides the timestamp source used for created/updated columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

// --- bots -------------------------------------------------------------------

func (s *Store) InsertBot(ctx context.Context, item *models.Bot) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.nextID()
	}
	if item.Status == "" {
		item.Status = models.BotStatusActive
	}
	if item.EngineMode == "" {
		item.EngineMode = models.EngineModeExternal
	}
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	s.bots[item.ID] = *item
	return nil
}

func (s *Store) GetBotByID(ctx context.Context, id uint64) (*models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListBots(ctx context.Context, params repository.ListBotsParams) ([]models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bot
	for _, b := range s.bots {
		if params.Status != nil && *params.Status != "" && b.Status != *params.Status {
			continue
		}
		if params.EngineMode != nil && *params.EngineMode != "" && b.EngineMode != *params.EngineMode {
			continue
		}
		if params.AutoTrade != nil && b.AutoTrade != *params.AutoTrade {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) CountBots(ctx context.Context, params repository.ListBotsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, _ := s.ListBots(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) UpdateBotLocked(ctx context.Context, id uint64, fn func(bot *models.Bot) error) (*models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	if fn != nil {
		if err := fn(&item); err != nil {
			return nil, err
		}
	}
	item.UpdatedAt = s.now()
	s.bots[id] = item
	return &item, nil
}

// --- reference data -----------------------------------------------------------

func (s *Store) UpsertAsset(ctx context.Context, item *models.Asset) error {
	if item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	if item.Symbol == "" {
		return nil
	}
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assets {
		if a.Symbol == item.Symbol {
			item.ID = id
			item.CreatedAt = a.CreatedAt
		}
	}
	if item.ID == 0 {
		item.ID = s.nextID()
		item.CreatedAt = s.now()
	}
	item.UpdatedAt = s.now()
	s.assets[item.ID] = *item
	return nil
}

func (s *Store) GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.assets[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.Symbol == symbol {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAssets(ctx context.Context, params repository.ListAssetsParams) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Asset
	for _, a := range s.assets {
		if params.Category != nil && *params.Category != "" && a.Category != *params.Category {
			continue
		}
		if params.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) UpsertTradingProfile(ctx context.Context, item *models.TradingProfile) error {
	if item == nil || strings.TrimSpace(item.Slug) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.profiles {
		if p.Slug == item.Slug {
			item.ID = id
		}
	}
	if item.ID == 0 {
		item.ID = s.nextID()
	}
	item.UpdatedAt = s.now()
	s.profiles[item.ID] = *item
	return nil
}

func (s *Store) GetTradingProfileByID(ctx context.Context, id uint64) (*models.TradingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) GetDefaultTradingProfile(ctx context.Context) (*models.TradingProfile, error) {
	items, _ := s.ListTradingProfiles(ctx)
	for _, p := range items {
		if p.IsDefault {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListTradingProfiles(ctx context.Context) ([]models.TradingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TradingProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertBrokerAccount(ctx context.Context, item *models.BrokerAccount) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.nextID()
	}
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	s.accounts[item.ID] = *item
	return nil
}

func (s *Store) GetBrokerAccountByID(ctx context.Context, id uint64) (*models.BrokerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListBrokerAccounts(ctx context.Context, activeOnly bool) ([]models.BrokerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BrokerAccount
	for _, a := range s.accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetExecutionSetting(ctx context.Context, key string) (*models.ExecutionSetting, error) {
	if strings.TrimSpace(key) == "" {
		key = models.ExecutionSettingDefaultKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) UpsertExecutionSetting(ctx context.Context, item *models.ExecutionSetting) error {
	if item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		item.Key = models.ExecutionSettingDefaultKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.settings[item.Key]; ok {
		item.ID = prev.ID
	} else if item.ID == 0 {
		item.ID = s.nextID()
	}
	item.UpdatedAt = s.now()
	s.settings[item.Key] = *item
	return nil
}

// --- signals / decisions ------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.Signal) (bool, error) {
	if item == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		if sig.DedupeKey == item.DedupeKey {
			return false, nil
		}
	}
	item.ID = s.nextID()
	if item.ReceivedAt.IsZero() {
		item.ReceivedAt = s.now()
	}
	s.signals[item.ID] = *item
	return true, nil
}

func (s *Store) GetSignalByID(ctx context.Context, id uint64) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.signals[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Signal
	for _, sig := range s.signals {
		if params.BotID != nil && (sig.BotID == nil || *sig.BotID != *params.BotID) {
			continue
		}
		if params.Symbol != nil && *params.Symbol != "" && sig.Symbol != *params.Symbol {
			continue
		}
		if params.Source != nil && *params.Source != "" && sig.Source != *params.Source {
			continue
		}
		if params.Since != nil && sig.ReceivedAt.Before(*params.Since) {
			continue
		}
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, _ := s.ListSignals(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) ListPendingSignals(ctx context.Context, botID uint64, symbols []string, limit int) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decided := map[uint64]bool{}
	for _, d := range s.decisions {
		if d.BotID == botID {
			decided[d.SignalID] = true
		}
	}
	var out []models.Signal
	for _, sig := range s.signals {
		if decided[sig.ID] {
			continue
		}
		switch {
		case sig.BotID != nil:
			if *sig.BotID != botID {
				continue
			}
		case !contains(symbols, sig.Symbol):
			continue
		}
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}

func (s *Store) InsertDecision(ctx context.Context, item *models.Decision) (bool, error) {
	if item == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decisions {
		if d.BotID == item.BotID && d.SignalID == item.SignalID {
			return false, nil
		}
	}
	item.ID = s.nextID()
	if item.DecidedAt.IsZero() {
		item.DecidedAt = s.now()
	}
	s.decisions[item.ID] = *item
	return true, nil
}

func (s *Store) GetDecisionByID(ctx context.Context, id uint64) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.decisions[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) GetDecisionByBotSignal(ctx context.Context, botID, signalID uint64) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decisions {
		if d.BotID == botID && d.SignalID == signalID {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListDecisions(ctx context.Context, params repository.ListDecisionsParams) ([]models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Decision
	for _, d := range s.decisions {
		if params.BotID != nil && d.BotID != *params.BotID {
			continue
		}
		if params.SignalID != nil && d.SignalID != *params.SignalID {
			continue
		}
		if params.Action != nil && *params.Action != "" && d.Action != *params.Action {
			continue
		}
		if len(params.Actions) > 0 && !contains(params.Actions, d.Action) {
			continue
		}
		if params.Since != nil && d.DecidedAt.Before(*params.Since) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) CountDecisions(ctx context.Context, params repository.ListDecisionsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, _ := s.ListDecisions(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) LastActionableDecision(ctx context.Context, botID uint64) (*models.Decision, error) {
	items, _ := s.ListDecisions(ctx, repository.ListDecisionsParams{
		BotID:   &botID,
		Actions: []string{models.ActionOpen, models.ActionFlip, models.ActionClose},
	})
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// --- orders -------------------------------------------------------------------

func (s *Store) CreateOrderIfAbsent(ctx context.Context, item *models.Order) (*models.Order, bool, error) {
	if item == nil {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ClientOrderID == item.ClientOrderID {
			out := o
			return &out, false, nil
		}
	}
	item.ID = s.nextID()
	if item.Status == "" {
		item.Status = models.OrderStatusNew
	}
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	s.orders[item.ID] = *item
	return item, true, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ClientOrderID == clientOrderID {
			out := o
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if params.BotID != nil && o.BotID != *params.BotID {
			continue
		}
		if params.BrokerAccountID != nil && o.BrokerAccountID != *params.BrokerAccountID {
			continue
		}
		if params.Symbol != nil && *params.Symbol != "" && o.Symbol != *params.Symbol {
			continue
		}
		if len(params.Statuses) > 0 && !contains(params.Statuses, o.Status) {
			continue
		}
		if params.Close != nil && o.Close != *params.Close {
			continue
		}
		if params.CreatedSince != nil && o.CreatedAt.Before(*params.CreatedSince) {
			continue
		}
		if params.UpdatedBefore != nil && !o.UpdatedAt.Before(*params.UpdatedBefore) {
			continue
		}
		if params.FilledSince != nil && (o.FilledAt == nil || o.FilledAt.Before(*params.FilledSince)) {
			continue
		}
		out = append(out, o)
	}
	asc := params.Asc != nil && *params.Asc
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, _ := s.ListOrders(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) UpdateOrder(ctx context.Context, id uint64, expectedStatus string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.orders[id]
	if !ok || (expectedStatus != "" && item.Status != expectedStatus) {
		return repository.ErrStatusConflict
	}
	for k, v := range updates {
		applyOrderField(&item, k, v)
	}
	if _, ok := updates["updated_at"]; !ok {
		item.UpdatedAt = s.now()
	}
	s.orders[id] = item
	return nil
}

func applyOrderField(o *models.Order, key string, v any) {
	switch key {
	case "status":
		o.Status = v.(string)
	case "venue_order_id":
		o.VenueOrderID = v.(string)
	case "error_msg":
		o.ErrorMsg = v.(string)
	case "filled_qty":
		o.FilledQty = v.(decimal.Decimal)
	case "avg_fill_price":
		o.AvgFillPrice = decPtr(v)
	case "price":
		o.Price = decPtr(v)
	case "acked_at":
		o.AckedAt = timePtr(v)
	case "filled_at":
		o.FilledAt = timePtr(v)
	case "canceled_at":
		o.CanceledAt = timePtr(v)
	case "position_id":
		if id, ok := v.(uint64); ok {
			o.PositionID = &id
		}
	case "updated_at":
		if t, ok := v.(time.Time); ok {
			o.UpdatedAt = t
		}
	}
}

func decPtr(v any) *decimal.Decimal {
	switch d := v.(type) {
	case decimal.Decimal:
		return &d
	case *decimal.Decimal:
		return d
	}
	return nil
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

func (s *Store) LastOrderForBot(ctx context.Context, botID uint64) (*models.Order, error) {
	items, _ := s.ListOrders(ctx, repository.ListOrdersParams{BotID: &botID, Limit: 1})
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// --- positions ----------------------------------------------------------------

func (s *Store) GetPositionByID(ctx context.Context, id uint64) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.positions[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListOpenPositions(ctx context.Context, accountID uint64, symbol string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.Status != models.PositionStatusOpen {
			continue
		}
		if accountID > 0 && p.BrokerAccountID != accountID {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if params.BotID != nil && p.BotID != *params.BotID {
			continue
		}
		if params.BrokerAccountID != nil && p.BrokerAccountID != *params.BrokerAccountID {
			continue
		}
		if params.Symbol != nil && *params.Symbol != "" && p.Symbol != *params.Symbol {
			continue
		}
		if params.Status != nil && *params.Status != "" && p.Status != *params.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, _ := s.ListPositions(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) SavePosition(ctx context.Context, item *models.Position) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.nextID()
		item.CreatedAt = s.now()
	}
	item.UpdatedAt = s.now()
	s.positions[item.ID] = *item
	return nil
}

// --- trade logs -----------------------------------------------------------------

func (s *Store) InsertTradeLog(ctx context.Context, item *models.TradeLog) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.tradeLogs = append(s.tradeLogs, *item)
	return nil
}

func (s *Store) ListTradeLogs(ctx context.Context, params repository.ListTradeLogsParams) ([]models.TradeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TradeLog
	for i := len(s.tradeLogs) - 1; i >= 0; i-- {
		t := s.tradeLogs[i]
		if params.BotID != nil && t.BotID != *params.BotID {
			continue
		}
		if params.Since != nil && t.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, t)
	}
	return page(out, params.Limit, params.Offset), nil
}

func (s *Store) SumRealizedPnLSince(ctx context.Context, botID uint64, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, t := range s.tradeLogs {
		if t.BotID != botID || t.PnL == nil {
			continue
		}
		if !since.IsZero() && t.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(*t.PnL)
	}
	return total, nil
}

func (s *Store) InsertScalperRunLog(ctx context.Context, item *models.ScalperRunLog) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID()
	item.CreatedAt = s.now()
	s.scalperLog = append(s.scalperLog, *item)
	return nil
}

func (s *Store) ListScalperRunLogs(ctx context.Context, botID uint64, limit int) ([]models.ScalperRunLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScalperRunLog
	for i := len(s.scalperLog) - 1; i >= 0; i-- {
		if botID > 0 && s.scalperLog[i].BotID != botID {
			continue
		}
		out = append(out, s.scalperLog[i])
	}
	return page(out, limit, 0), nil
}

// --- feature switches ---------------------------------------------------------

func (s *Store) UpsertFeatureSwitch(ctx context.Context, item *models.FeatureSwitch) error {
	if item == nil || strings.TrimSpace(item.Key) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.switches[item.Key]; ok {
		item.ID = prev.ID
		item.CreatedAt = prev.CreatedAt
	} else {
		item.ID = s.nextID()
		item.CreatedAt = s.now()
	}
	item.UpdatedAt = s.now()
	s.switches[item.Key] = *item
	return nil
}

func (s *Store) GetFeatureSwitch(ctx context.Context, key string) (*models.FeatureSwitch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.switches[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListFeatureSwitches(ctx context.Context) ([]models.FeatureSwitch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FeatureSwitch, 0, len(s.switches))
	for _, sw := range s.switches {
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if strings.EqualFold(it, v) {
			return true
		}
	}
	return false
}
