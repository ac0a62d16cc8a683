package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

// AssetCache is the resolver cache dropped after an asset edit.
type AssetCache interface {
	Invalidate()
}

type ReferenceHandler struct {
	Repo   repository.Repository
	Assets AssetCache
}

func (h *ReferenceHandler) Register(r *gin.Engine) {
	a := r.Group(apiPrefix + "/assets")
	a.GET("", h.listAssets)
	a.PUT("/:symbol", h.upsertAsset)

	s := r.Group(apiPrefix + "/execution-settings")
	s.GET("", h.getSettings)
	s.PUT("", h.putSettings)

	r.GET(apiPrefix+"/trading-profiles", h.listProfiles)
}

// @Summary List assets
// @Tags reference
// @Param category query string false "asset category"
// @Param active query bool false "active only"
// @Success 200 {object} apiResponse
// @Router /api/v1/assets [get]
func (h *ReferenceHandler) listAssets(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	activeOnly := false
	if v := boolQueryPtr(c, "active"); v != nil {
		activeOnly = *v
	}
	items, err := h.Repo.ListAssets(c.Request.Context(), repository.ListAssetsParams{
		Limit:      intQuery(c, "limit", 200),
		Offset:     intQuery(c, "offset", 0),
		Category:   stringQueryPtr(c, "category"),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type assetRequest struct {
	DisplayName    *string          `json:"display_name"`
	Category       *string          `json:"category"`
	MinQty         *decimal.Decimal `json:"min_qty"`
	RecommendedQty *decimal.Decimal `json:"recommended_qty"`
	MaxQty         *decimal.Decimal `json:"max_qty"`
	LotStep        *decimal.Decimal `json:"lot_step"`
	Point          *decimal.Decimal `json:"point"`
	MaxSpread      *decimal.Decimal `json:"max_spread"`
	MinNotional    *decimal.Decimal `json:"min_notional"`
	IsActive       *bool            `json:"is_active"`
}

// @Summary Create or update an asset by canonical symbol
// @Tags reference
// @Param symbol path string true "symbol, broker aliases are normalised"
// @Param body body assetRequest true "fields to set"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/assets/{symbol} [put]
func (h *ReferenceHandler) upsertAsset(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	symbol := assets.CanonicalSymbol(c.Param("symbol"))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "invalid symbol", nil)
		return
	}
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	ctx := c.Request.Context()
	item, err := h.Repo.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		item = &models.Asset{
			Symbol:         symbol,
			Category:       models.AssetCategoryForex,
			MinQty:         decimal.RequireFromString("0.01"),
			RecommendedQty: decimal.RequireFromString("0.10"),
			IsActive:       true,
		}
	}
	if req.DisplayName != nil {
		item.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Category != nil {
		item.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	setDec(&item.MinQty, req.MinQty)
	setDec(&item.RecommendedQty, req.RecommendedQty)
	setDec(&item.MaxQty, req.MaxQty)
	setDec(&item.LotStep, req.LotStep)
	setDec(&item.Point, req.Point)
	setDec(&item.MaxSpread, req.MaxSpread)
	setDec(&item.MinNotional, req.MinNotional)
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if err := item.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.Repo.UpsertAsset(ctx, item); err != nil {
		fail(c, err)
		return
	}
	if h.Assets != nil {
		h.Assets.Invalidate()
	}
	Ok(c, item, nil)
}

func setDec(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

// @Summary Get global execution settings
// @Tags reference
// @Success 200 {object} apiResponse
// @Router /api/v1/execution-settings [get]
func (h *ReferenceHandler) getSettings(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetExecutionSetting(c.Request.Context(), models.ExecutionSettingDefaultKey)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		item = &models.ExecutionSetting{Key: models.ExecutionSettingDefaultKey}
	}
	Ok(c, item, nil)
}

// executionSettingsRequest mirrors ExecutionSetting. Omitted fields keep their stored value
// and an explicit null falls back to the compiled default.
type executionSettingsRequest struct {
	DecisionMinScore   *float64         `json:"decision_min_score"`
	DecisionFlipScore  *float64         `json:"decision_flip_score"`
	AllowHedging       *bool            `json:"allow_hedging"`
	FlipCooldownMin    *int             `json:"flip_cooldown_min"`
	MaxFlipsPerDay     *int             `json:"max_flips_per_day"`
	OrderCooldownSec   *int             `json:"order_cooldown_seconds"`
	OrderAckTimeoutSec *int             `json:"order_ack_timeout_seconds"`
	ScalpSLOffset      *decimal.Decimal `json:"scalp_sl_offset"`
	ScalpTPOffset      *decimal.Decimal `json:"scalp_tp_offset"`
	ScalpQtyMultiplier *decimal.Decimal `json:"scalp_qty_multiplier"`
	EarlyExitMaxPct    *decimal.Decimal `json:"early_exit_max_unrealized_pct"`
	TrailingTrigger    *decimal.Decimal `json:"trailing_trigger"`
	TrailingDistance   *decimal.Decimal `json:"trailing_distance"`
	PaperStartBalance  *decimal.Decimal `json:"paper_start_balance"`
	MaxOrderLot        *decimal.Decimal `json:"max_order_lot"`
	MaxOrderNotional   *decimal.Decimal `json:"max_order_notional"`
	BotMinDefaultQty   *decimal.Decimal `json:"bot_min_default_qty"`

	MaxLossStreakBeforePause *int             `json:"max_loss_streak_before_pause"`
	LossStreakCooldownMin    *int             `json:"loss_streak_cooldown_min"`
	SoftDrawdownLimitPct     *decimal.Decimal `json:"soft_drawdown_limit_pct"`
	HardDrawdownLimitPct     *decimal.Decimal `json:"hard_drawdown_limit_pct"`
	SoftSizeMultiplier       *decimal.Decimal `json:"soft_size_multiplier"`
	HardSizeMultiplier       *decimal.Decimal `json:"hard_size_multiplier"`
}

func (r executionSettingsRequest) apply(item *models.ExecutionSetting) {
	item.DecisionMinScore = r.DecisionMinScore
	item.DecisionFlipScore = r.DecisionFlipScore
	item.AllowHedging = r.AllowHedging
	item.FlipCooldownMin = r.FlipCooldownMin
	item.MaxFlipsPerDay = r.MaxFlipsPerDay
	item.OrderCooldownSec = r.OrderCooldownSec
	item.OrderAckTimeoutSec = r.OrderAckTimeoutSec
	item.ScalpSLOffset = r.ScalpSLOffset
	item.ScalpTPOffset = r.ScalpTPOffset
	item.ScalpQtyMultiplier = r.ScalpQtyMultiplier
	item.EarlyExitMaxPct = r.EarlyExitMaxPct
	item.TrailingTrigger = r.TrailingTrigger
	item.TrailingDistance = r.TrailingDistance
	item.PaperStartBalance = r.PaperStartBalance
	item.MaxOrderLot = r.MaxOrderLot
	item.MaxOrderNotional = r.MaxOrderNotional
	item.BotMinDefaultQty = r.BotMinDefaultQty
	item.MaxLossStreakBeforePause = r.MaxLossStreakBeforePause
	item.LossStreakCooldownMin = r.LossStreakCooldownMin
	item.SoftDrawdownLimitPct = r.SoftDrawdownLimitPct
	item.HardDrawdownLimitPct = r.HardDrawdownLimitPct
	item.SoftSizeMultiplier = r.SoftSizeMultiplier
	item.HardSizeMultiplier = r.HardSizeMultiplier
}

// @Summary Replace global execution settings
// @Tags reference
// @Param body body executionSettingsRequest true "settings"
// @Success 200 {object} apiResponse
// @Router /api/v1/execution-settings [put]
func (h *ReferenceHandler) putSettings(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	item, err := h.Repo.GetExecutionSetting(ctx, models.ExecutionSettingDefaultKey)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		item = &models.ExecutionSetting{Key: models.ExecutionSettingDefaultKey}
	}
	req := requestFromSetting(item)
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.apply(item)
	if err := h.Repo.UpsertExecutionSetting(ctx, item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// requestFromSetting seeds the request with stored values so a partial body keeps them.
func requestFromSetting(item *models.ExecutionSetting) executionSettingsRequest {
	return executionSettingsRequest{
		DecisionMinScore:         item.DecisionMinScore,
		DecisionFlipScore:        item.DecisionFlipScore,
		AllowHedging:             item.AllowHedging,
		FlipCooldownMin:          item.FlipCooldownMin,
		MaxFlipsPerDay:           item.MaxFlipsPerDay,
		OrderCooldownSec:         item.OrderCooldownSec,
		OrderAckTimeoutSec:       item.OrderAckTimeoutSec,
		ScalpSLOffset:            item.ScalpSLOffset,
		ScalpTPOffset:            item.ScalpTPOffset,
		ScalpQtyMultiplier:       item.ScalpQtyMultiplier,
		EarlyExitMaxPct:          item.EarlyExitMaxPct,
		TrailingTrigger:          item.TrailingTrigger,
		TrailingDistance:         item.TrailingDistance,
		PaperStartBalance:        item.PaperStartBalance,
		MaxOrderLot:              item.MaxOrderLot,
		MaxOrderNotional:         item.MaxOrderNotional,
		BotMinDefaultQty:         item.BotMinDefaultQty,
		MaxLossStreakBeforePause: item.MaxLossStreakBeforePause,
		LossStreakCooldownMin:    item.LossStreakCooldownMin,
		SoftDrawdownLimitPct:     item.SoftDrawdownLimitPct,
		HardDrawdownLimitPct:     item.HardDrawdownLimitPct,
		SoftSizeMultiplier:       item.SoftSizeMultiplier,
		HardSizeMultiplier:       item.HardSizeMultiplier,
	}
}

// @Summary List trading profiles
// @Tags reference
// @Success 200 {object} apiResponse
// @Router /api/v1/trading-profiles [get]
func (h *ReferenceHandler) listProfiles(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListTradingProfiles(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
