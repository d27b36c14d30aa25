package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/pkg/errors"
)

const maxOutcomeDays = 90

// OutcomeCounter tallies final call statuses
type OutcomeCounter interface {
	OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

type OutcomeSummary struct {
	PeriodDays  int              `json:"period_days"`
	Since       time.Time        `json:"since"`
	Total       int64            `json:"total"`
	Promises    int64            `json:"promises"`
	Handoffs    int64            `json:"handoffs"`
	Unreached   int64            `json:"unreached"`
	PromiseRate float64          `json:"promise_rate"`
	ByStatus    map[string]int64 `json:"by_status"`
}

// GetCallOutcomes summarizes how calls ended over the last days (default 30)
func (h *Handler) GetCallOutcomes(c *gin.Context) {
	if h.deps.Outcomes == nil {
		errors.ServiceUnavailable(c, "call outcomes are not available")
		return
	}

	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxOutcomeDays {
			errors.BadRequest(c, "days must be between 1 and 90")
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	since := time.Now().AddDate(0, 0, -days)
	counts, err := h.deps.Outcomes.OutcomeCounts(ctx, since)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, summarize(counts, days, since))
}

func summarize(counts map[string]int64, days int, since time.Time) OutcomeSummary {
	s := OutcomeSummary{PeriodDays: days, Since: since, ByStatus: counts}
	if s.ByStatus == nil {
		s.ByStatus = map[string]int64{}
	}
	for status, n := range s.ByStatus {
		s.Total += n
		switch status {
		case callflow.StatusPromise:
			s.Promises += n
		case callflow.StatusTransferred, callflow.StatusEscalated:
			s.Handoffs += n
		case callflow.StatusNoResponse, callflow.StatusFailed:
			s.Unreached += n
		}
	}
	if reached := s.Total - s.Unreached; reached > 0 {
		s.PromiseRate = float64(s.Promises) / float64(reached)
	}
	return s
}
