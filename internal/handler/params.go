package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/decision"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/models"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/risk"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/scheduler"
)

const apiPrefix = "/api/v1"

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func stringQueryPtr(c *gin.Context, key string) *string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return &v
	}
	return nil
}

func uint64QueryPtr(c *gin.Context, key string) *uint64 {
	if v := parseUint64(c.Query(key)); v > 0 {
		return &v
	}
	return nil
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func uint64Param(c *gin.Context, key string) uint64 {
	return parseUint64(c.Param(key))
}

func parseUint64(v string) uint64 {
	out, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

// fail maps pipeline errors onto HTTP statuses. Guardrail rejections carry their reason.
func fail(c *gin.Context, err error) {
	if reason := orchestrator.RejectionReason(err); reason != "" {
		Error(c, http.StatusConflict, err.Error(), map[string]any{"reason": reason})
		return
	}
	switch {
	case errors.Is(err, orchestrator.ErrNotFound),
		errors.Is(err, risk.ErrBotNotFound),
		errors.Is(err, decision.ErrSignalNotFound),
		errors.Is(err, scheduler.ErrUnknownTask):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, orchestrator.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrNoBrokerAccount),
		errors.Is(err, scheduler.ErrTaskRunning),
		errors.Is(err, lease.ErrHeld):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidAssetLimits):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
