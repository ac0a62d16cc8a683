package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/scheduler"
)

type TaskRunner interface {
	List(ctx context.Context) []scheduler.TaskStatus
	RunNow(ctx context.Context, name string) (any, error)
}

type SwitchStore interface {
	List(ctx context.Context) ([]models.FeatureSwitch, error)
	SetEnabled(ctx context.Context, key string, enabled bool) (*models.FeatureSwitch, error)
}

type TaskHandler struct {
	Tasks    TaskRunner
	Switches SwitchStore
}

func (h *TaskHandler) Register(r *gin.Engine) {
	t := r.Group(apiPrefix + "/tasks")
	t.GET("", h.list)
	t.POST("/:name/run", h.run)

	s := r.Group(apiPrefix + "/switches")
	s.GET("", h.listSwitches)
	s.PUT("/:key", h.setSwitch)
}

// @Summary List scheduled tasks with last run status
// @Tags tasks
// @Success 200 {object} apiResponse
// @Router /api/v1/tasks [get]
func (h *TaskHandler) list(c *gin.Context) {
	if h.Tasks == nil {
		Error(c, http.StatusServiceUnavailable, "scheduler unavailable", nil)
		return
	}
	Ok(c, h.Tasks.List(c.Request.Context()), nil)
}

// @Summary Run a task immediately, ignoring its switch
// @Tags tasks
// @Param name path string true "task name"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/tasks/{name}/run [post]
func (h *TaskHandler) run(c *gin.Context) {
	if h.Tasks == nil {
		Error(c, http.StatusServiceUnavailable, "scheduler unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	res, err := h.Tasks.RunNow(c.Request.Context(), name)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"task": name, "result": res}, nil)
}

// @Summary List feature switches
// @Tags tasks
// @Success 200 {object} apiResponse
// @Router /api/v1/switches [get]
func (h *TaskHandler) listSwitches(c *gin.Context) {
	if h.Switches == nil {
		Error(c, http.StatusServiceUnavailable, "switches unavailable", nil)
		return
	}
	items, err := h.Switches.List(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type switchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary Enable or disable a feature switch
// @Tags tasks
// @Param key path string true "switch key, e.g. task.kill_switch.enabled"
// @Param body body switchRequest true "state"
// @Success 200 {object} apiResponse
// @Router /api/v1/switches/{key} [put]
func (h *TaskHandler) setSwitch(c *gin.Context) {
	if h.Switches == nil {
		Error(c, http.StatusServiceUnavailable, "switches unavailable", nil)
		return
	}
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Switches.SetEnabled(c.Request.Context(), c.Param("key"), *req.Enabled)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
