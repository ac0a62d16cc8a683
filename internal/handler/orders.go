package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/repository"
)

// OrderController is the operator surface of the order lifecycle.
type OrderController interface {
	CancelOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	ClosePosition(ctx context.Context, pos *models.Position, reason string) (*models.Order, error)
}

type OrderHandler struct {
	Repo   repository.Repository
	Orders OrderController
}

func (h *OrderHandler) Register(r *gin.Engine) {
	o := r.Group(apiPrefix + "/orders")
	o.GET("", h.list)
	o.GET("/:id", h.get)
	o.POST("/:id/cancel", h.cancel)

	p := r.Group(apiPrefix + "/positions")
	p.GET("", h.listPositions)
	p.POST("/:id/close", h.closePosition)
}

// @Summary List orders
// @Tags orders
// @Param bot_id query int false "bot id"
// @Param broker_account_id query int false "broker account id"
// @Param symbol query string false "symbol"
// @Param status query string false "comma separated statuses"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/orders [get]
func (h *OrderHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var statuses []string
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	params := repository.ListOrdersParams{
		Limit:           limit,
		Offset:          offset,
		BotID:           uint64QueryPtr(c, "bot_id"),
		BrokerAccountID: uint64QueryPtr(c, "broker_account_id"),
		Symbol:          stringQueryPtr(c, "symbol"),
		Statuses:        statuses,
		OrderBy:         "created_at",
		Asc:             boolPtr(false),
	}
	items, err := h.Repo.ListOrders(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountOrders(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	OkPage(c, items, limit, offset, total)
}

// @Summary Get order
// @Tags orders
// @Param id path int true "order id"
// @Success 200 {object} apiResponse
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "order not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Cancel order at the venue and locally
// @Tags orders
// @Param id path int true "order id"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) cancel(c *gin.Context) {
	if h.Orders == nil {
		Error(c, http.StatusServiceUnavailable, "orchestrator unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary List positions
// @Tags positions
// @Param bot_id query int false "bot id"
// @Param broker_account_id query int false "broker account id"
// @Param symbol query string false "symbol"
// @Param status query string false "open|closed"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/positions [get]
func (h *OrderHandler) listPositions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPositionsParams{
		Limit:           limit,
		Offset:          offset,
		BotID:           uint64QueryPtr(c, "bot_id"),
		BrokerAccountID: uint64QueryPtr(c, "broker_account_id"),
		Symbol:          stringQueryPtr(c, "symbol"),
		Status:          stringQueryPtr(c, "status"),
		OrderBy:         "opened_at",
		Asc:             boolPtr(false),
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	OkPage(c, items, limit, offset, total)
}

type closePositionRequest struct {
	Reason string `json:"reason"`
}

// @Summary Close position with a market order
// @Tags positions
// @Param id path int true "position id"
// @Param body body closePositionRequest false "close reason"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/positions/{id}/close [post]
func (h *OrderHandler) closePosition(c *gin.Context) {
	if h.Orders == nil || h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "orchestrator unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req closePositionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = orchestrator.CloseReasonDefault
	}
	pos, err := h.Repo.GetPositionByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if pos == nil {
		Error(c, http.StatusNotFound, "position not found", nil)
		return
	}
	order, err := h.Orders.ClosePosition(c.Request.Context(), pos, reason)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, order, nil)
}
