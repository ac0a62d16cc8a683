package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

type SignalEvaluator interface {
	EvaluateSignal(ctx context.Context, signalID uint64) (*models.Decision, *models.Order, error)
}

type SignalHandler struct {
	Repo     repository.Repository
	Decision SignalEvaluator
	Now      func() time.Time
}

func (h *SignalHandler) Register(r *gin.Engine) {
	s := r.Group(apiPrefix + "/signals")
	s.GET("", h.list)
	s.POST("", h.create)
	s.GET("/:id", h.get)
	s.POST("/:id/evaluate", h.evaluate)

	d := r.Group(apiPrefix + "/decisions")
	d.GET("", h.listDecisions)
}

// @Summary List signals
// @Tags signals
// @Param bot_id query int false "bot id"
// @Param symbol query string false "symbol"
// @Param source query string false "source"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/signals [get]
func (h *SignalHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSignalsParams{
		Limit:   limit,
		Offset:  offset,
		BotID:   uint64QueryPtr(c, "bot_id"),
		Symbol:  stringQueryPtr(c, "symbol"),
		Source:  stringQueryPtr(c, "source"),
		OrderBy: "received_at",
		Asc:     boolPtr(false),
	}
	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	OkPage(c, items, limit, offset, total)
}

type createSignalRequest struct {
	BotID     *uint64        `json:"bot_id"`
	Source    string         `json:"source"`
	Symbol    string         `json:"symbol" binding:"required"`
	Timeframe string         `json:"timeframe"`
	Direction string         `json:"direction" binding:"required"`
	Score     float64        `json:"score"`
	DedupeKey string         `json:"dedupe_key"`
	Payload   map[string]any `json:"payload"`
}

// @Summary Record an external signal
// @Description Duplicate dedupe keys are accepted without creating a second row.
// @Tags signals
// @Param body body createSignalRequest true "signal"
// @Success 200 {object} apiResponse
// @Router /api/v1/signals [post]
func (h *SignalHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	direction := strings.ToLower(strings.TrimSpace(req.Direction))
	switch direction {
	case models.DirectionBuy, models.DirectionSell, models.DirectionClose:
	default:
		Error(c, http.StatusBadRequest, "direction must be buy, sell or close", nil)
		return
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = models.EngineModeExternal
	}
	timeframe := strings.TrimSpace(req.Timeframe)
	if timeframe == "" {
		timeframe = "5m"
	}
	key := strings.TrimSpace(req.DedupeKey)
	if key == "" {
		bot := uint64(0)
		if req.BotID != nil {
			bot = *req.BotID
		}
		key = fmt.Sprintf("%s|%d|%s|%s|%s|%d", source, bot, strings.ToUpper(req.Symbol), timeframe, direction, now.UnixNano())
	}
	sig := &models.Signal{
		BotID:     req.BotID,
		Source:    source,
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Timeframe: timeframe,
		Direction: direction,
		Score:     req.Score,
		DedupeKey: key,
	}
	if len(req.Payload) > 0 {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid payload", nil)
			return
		}
		sig.Payload = datatypes.JSON(raw)
	}
	created, err := h.Repo.InsertSignal(c.Request.Context(), sig)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, sig, map[string]any{"created": created})
}

// @Summary Get signal
// @Tags signals
// @Param id path int true "signal id"
// @Success 200 {object} apiResponse
// @Router /api/v1/signals/{id} [get]
func (h *SignalHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetSignalByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Decide one signal for its bot and execute the result
// @Tags signals
// @Param id path int true "signal id"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/signals/{id}/evaluate [post]
func (h *SignalHandler) evaluate(c *gin.Context) {
	if h.Decision == nil {
		Error(c, http.StatusServiceUnavailable, "decision engine unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	d, order, err := h.Decision.EvaluateSignal(c.Request.Context(), id)
	if err != nil && d == nil {
		fail(c, err)
		return
	}
	meta := map[string]any{}
	if err != nil {
		meta["error"] = err.Error()
	}
	Ok(c, gin.H{"decision": d, "order": order}, meta)
}

// @Summary List decisions
// @Tags signals
// @Param bot_id query int false "bot id"
// @Param signal_id query int false "signal id"
// @Param action query string false "open|flip|close|skip"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/decisions [get]
func (h *SignalHandler) listDecisions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListDecisionsParams{
		Limit:    limit,
		Offset:   offset,
		BotID:    uint64QueryPtr(c, "bot_id"),
		SignalID: uint64QueryPtr(c, "signal_id"),
		Action:   stringQueryPtr(c, "action"),
		OrderBy:  "created_at",
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListDecisions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDecisions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	OkPage(c, items, limit, offset, total)
}
