package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/decision"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

// BotController holds the operator actions on a bot's risk state.
type BotController interface {
	Pause(ctx context.Context, botID uint64) (*models.Bot, error)
	Resume(ctx context.Context, botID uint64) (*models.Bot, error)
	ResetAllocation(ctx context.Context, botID uint64) (*models.Bot, error)
}

type PendingProcessor interface {
	ProcessPending(ctx context.Context, bot *models.Bot) (decision.Summary, error)
}

type BotHandler struct {
	Repo     repository.Repository
	Guard    BotController
	Decision PendingProcessor
}

func (h *BotHandler) Register(r *gin.Engine) {
	g := r.Group(apiPrefix + "/bots")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/scalper-runs", h.scalperRuns)
	g.POST("/:id/pause", h.pause)
	g.POST("/:id/resume", h.resume)
	g.POST("/:id/reset-allocation", h.resetAllocation)
	g.POST("/:id/evaluate", h.evaluate)
}

// @Summary List bots
// @Tags bots
// @Param status query string false "active|paused|stopped"
// @Param engine_mode query string false "external|harami|scalper"
// @Param auto_trade query bool false "auto trade flag"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots [get]
func (h *BotHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListBotsParams{
		Limit:      limit,
		Offset:     offset,
		Status:     stringQueryPtr(c, "status"),
		EngineMode: stringQueryPtr(c, "engine_mode"),
		AutoTrade:  boolQueryPtr(c, "auto_trade"),
		OrderBy:    "id",
		Asc:        boolPtr(true),
	}
	items, err := h.Repo.ListBots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountBots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	OkPage(c, items, limit, offset, total)
}

// @Summary Get bot
// @Tags bots
// @Param id path int true "bot id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/bots/{id} [get]
func (h *BotHandler) get(c *gin.Context) {
	bot, ok := h.loadBot(c)
	if !ok {
		return
	}
	Ok(c, bot, nil)
}

// @Summary Recent scalper runs of a bot
// @Tags bots
// @Param id path int true "bot id"
// @Param limit query int false "max rows"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots/{id}/scalper-runs [get]
func (h *BotHandler) scalperRuns(c *gin.Context) {
	bot, ok := h.loadBot(c)
	if !ok {
		return
	}
	items, err := h.Repo.ListScalperRunLogs(c.Request.Context(), bot.ID, intQuery(c, "limit", 50))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// @Summary Pause bot until resumed
// @Tags bots
// @Param id path int true "bot id"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots/{id}/pause [post]
func (h *BotHandler) pause(c *gin.Context) {
	h.guardAction(c, func(ctx context.Context, id uint64) (*models.Bot, error) { return h.Guard.Pause(ctx, id) })
}

// @Summary Resume bot and clear its loss streak
// @Tags bots
// @Param id path int true "bot id"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots/{id}/resume [post]
func (h *BotHandler) resume(c *gin.Context) {
	h.guardAction(c, func(ctx context.Context, id uint64) (*models.Bot, error) { return h.Guard.Resume(ctx, id) })
}

// @Summary Start a new drawdown baseline
// @Tags bots
// @Param id path int true "bot id"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots/{id}/reset-allocation [post]
func (h *BotHandler) resetAllocation(c *gin.Context) {
	h.guardAction(c, func(ctx context.Context, id uint64) (*models.Bot, error) {
		return h.Guard.ResetAllocation(ctx, id)
	})
}

// @Summary Evaluate the bot's pending signals now
// @Tags bots
// @Param id path int true "bot id"
// @Success 200 {object} apiResponse
// @Router /api/v1/bots/{id}/evaluate [post]
func (h *BotHandler) evaluate(c *gin.Context) {
	if h.Decision == nil {
		Error(c, http.StatusServiceUnavailable, "decision engine unavailable", nil)
		return
	}
	bot, ok := h.loadBot(c)
	if !ok {
		return
	}
	sum, err := h.Decision.ProcessPending(c.Request.Context(), bot)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, sum, nil)
}

func (h *BotHandler) guardAction(c *gin.Context, fn func(ctx context.Context, id uint64) (*models.Bot, error)) {
	if h.Guard == nil {
		Error(c, http.StatusServiceUnavailable, "risk guard unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	bot, err := fn(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, bot, nil)
}

func (h *BotHandler) loadBot(c *gin.Context) (*models.Bot, bool) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return nil, false
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return nil, false
	}
	bot, err := h.Repo.GetBotByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return nil, false
	}
	if bot == nil {
		Error(c, http.StatusNotFound, "bot not found", nil)
		return nil, false
	}
	return bot, true
}
