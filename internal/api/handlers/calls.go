package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/errors"
	"github.com/troikatech/collections-agent/pkg/exotel"
	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/utils"
)

const dialTimeout = 15 * time.Second

type CreateCallRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Flow     string `json:"flow"`
	Language string `json:"language"`
}

type CreateCallResponse struct {
	TransientID string `json:"transient_id"`
	CallSid     string `json:"call_sid,omitempty"`
	Status      string `json:"status,omitempty"`
}

// CreateCall looks up the customer, caches them under a fresh transient
// id and dials them into the voicebot.
func (h *Handler) CreateCall(c *gin.Context) {
	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if req.Flow != "" {
		if _, err := callflow.ParseFlow(req.Flow); err != nil {
			errors.BadRequest(c, err.Error())
			return
		}
	}
	if h.deps.Customers == nil || h.deps.Resolver == nil || h.deps.Dialer == nil {
		errors.ServiceUnavailable(c, "outbound dialing is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dialTimeout)
	defer cancel()

	p, err := h.deps.Customers.FindByPhone(ctx, utils.PhoneVariants(phone))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if p == nil {
		errors.NotFound(c, "no customer for this phone number")
		return
	}
	if p.Phone == "" {
		p.Phone = phone
	}
	if req.Language != "" {
		lang, ok := language.Parse(req.Language)
		if !ok {
			errors.BadRequest(c, "unsupported language "+req.Language)
			return
		}
		p.PreferredLanguage = string(lang)
	}

	transientID := uuid.NewString()
	if err := h.deps.Resolver.Remember(ctx, transientID, p); err != nil {
		if stderrors.Is(err, session.ErrIncompleteParticipant) {
			errors.ErrorResponse(c, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
			return
		}
		errors.InternalError(c, err, h.logger)
		return
	}

	custom := map[string]string{"transient_id": transientID}
	if req.Flow != "" {
		custom["flow"] = req.Flow
	}
	resp, err := h.deps.Dialer.DialVoicebot(ctx, exotel.DialRequest{
		Customer:    phone,
		CustomField: custom,
		CallbackURL: h.publicBaseURL(c) + "/webhooks/exotel/status",
	})
	if err != nil {
		if stderrors.Is(err, exotel.ErrNotConfigured) {
			errors.ServiceUnavailable(c, "carrier account is not configured")
			return
		}
		h.logger.Error("Dial failed", logger.MaskPhone("phone", phone), zap.Error(err))
		errors.BadGateway(c, "carrier rejected the call")
		return
	}

	out := CreateCallResponse{TransientID: transientID}
	if resp != nil {
		out.CallSid = resp.Call.Sid
		out.Status = resp.Call.Status
	}
	if out.CallSid != "" {
		if err := h.deps.Resolver.Link(ctx, out.CallSid, p); err != nil {
			h.logger.Warn("Failed to cache participant under call sid", zap.String("call_sid", out.CallSid), zap.Error(err))
		}
	}

	h.logger.Info("Outbound call placed",
		zap.String("transient_id", transientID),
		zap.String("call_sid", out.CallSid),
		zap.String("loan_suffix", p.LoanSuffix()),
	)
	h.audit(c.Request.Context(), c.GetString("subject"), audit.ActionDial, "call", transientID, map[string]interface{}{
		"call_sid":    out.CallSid,
		"loan_suffix": p.LoanSuffix(),
		"flow":        req.Flow,
	})
	c.JSON(http.StatusAccepted, out)
}

// ListLiveCalls pages through calls currently on a media stream
func (h *Handler) ListLiveCalls(c *gin.Context) {
	var calls []session.Entry
	if h.deps.Registry != nil {
		calls = h.deps.Registry.Snapshot()
	}
	c.JSON(http.StatusOK, utils.Paginate(calls, utils.ParsePagination(c)))
}

// HangupCall ends a live call from the console
func (h *Handler) HangupCall(c *gin.Context) {
	callID := c.Param("call_id")
	if h.deps.Registry == nil || !h.deps.Registry.Hangup(callID) {
		errors.NotFound(c, "call is not live")
		return
	}
	h.logger.Info("Call hung up by operator", zap.String("call_sid", callID), zap.String("operator", c.GetString("subject")))
	h.audit(c.Request.Context(), c.GetString("subject"), audit.ActionHangup, "call", callID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "hangup requested"})
}
