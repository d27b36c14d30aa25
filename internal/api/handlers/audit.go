package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/errors"
	"github.com/troikatech/collections-agent/pkg/utils"
)

const defaultAuditWindow = 30 * 24 * time.Hour

// ListAuditLogs pages through operator and carrier actions, newest first.
// Without a date range the last 30 days are returned.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	if h.deps.Audit == nil {
		errors.ServiceUnavailable(c, "audit log is not configured")
		return
	}
	pagination := utils.ParsePagination(c)

	filter := audit.Filter{
		Actor:        c.Query("actor"),
		Action:       audit.Action(c.Query("action")),
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
	}
	var err error
	if filter.Since, err = parseDate(c.Query("start_date")); err != nil {
		errors.BadRequest(c, "start_date must be RFC3339 or YYYY-MM-DD")
		return
	}
	if filter.Until, err = parseDate(c.Query("end_date")); err != nil {
		errors.BadRequest(c, "end_date must be RFC3339 or YYYY-MM-DD")
		return
	}
	if filter.Since.IsZero() && filter.Until.IsZero() {
		filter.Since = time.Now().Add(-defaultAuditWindow)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	events, total, err := h.deps.Audit.List(ctx, filter, pagination.Page, pagination.Limit)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data:  events,
		Page:  pagination.Page,
		Limit: pagination.Limit,
		Total: total,
		Count: len(events),
	})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
