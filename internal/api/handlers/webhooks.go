package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/lifecycle"
	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/errors"
	"github.com/troikatech/collections-agent/pkg/exotel"
)

const webhookDedupeTTL = 24 * time.Hour

// carrierOutcomes maps terminal carrier statuses for calls that never
// reached the voicebot. A completed call already reported its own outcome
// from the stream.
var carrierOutcomes = map[string]string{
	exotel.StatusBusy:     callflow.StatusNoResponse,
	exotel.StatusNoAnswer: callflow.StatusNoResponse,
	exotel.StatusFailed:   callflow.StatusFailed,
	exotel.StatusCanceled: callflow.StatusFailed,
}

// ExotelStatusWebhook receives the terminal status callback for dialed
// calls. The signature is checked by middleware; repeats are dropped.
func (h *Handler) ExotelStatusWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		errors.BadRequest(c, "invalid form body")
		return
	}
	cb, err := exotel.ParseStatusCallback(c.Request.Form)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	log := h.logger.With(zap.String("call_sid", cb.CallSid), zap.String("status", cb.Status))

	if h.deps.Dedupe != nil {
		first, err := h.deps.Dedupe.Claim(c.Request.Context(), "exotel:"+cb.CallSid+":"+cb.Status, webhookDedupeTTL)
		if err != nil {
			log.Warn("Webhook dedupe unavailable, processing anyway", zap.Error(err))
		} else if !first {
			log.Debug("Duplicate status callback dropped")
			c.JSON(http.StatusOK, gin.H{"message": "duplicate"})
			return
		}
	}

	callID := cb.CallSid
	if h.deps.Resolver != nil {
		if p, err := h.deps.Resolver.ByOfficialID(c.Request.Context(), cb.CallSid); err == nil {
			log = log.With(zap.String("loan_suffix", p.LoanSuffix()))
		}
	}
	if id := cb.CustomField["transient_id"]; id != "" {
		log = log.With(zap.String("transient_id", id))
	}

	if status, ok := carrierOutcomes[cb.Status]; ok && h.deps.Reporter != nil {
		h.deps.Reporter.Report(lifecycle.Transition{
			CallID:  callID,
			Status:  status,
			Message: "carrier: " + cb.Status,
			Stage:   "carrier",
			Final:   true,
		})
	}

	log.Info("Carrier status received", zap.Int("duration_sec", cb.Duration))
	h.audit(c.Request.Context(), "exotel", audit.ActionWebhook, "call", callID, map[string]interface{}{
		"status":   cb.Status,
		"duration": cb.Duration,
	})
	c.JSON(http.StatusOK, gin.H{"message": "webhook processed"})
}
