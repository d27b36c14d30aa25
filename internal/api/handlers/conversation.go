package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/errors"
	"github.com/troikatech/collections-agent/pkg/utils"
)

const maxPreviewTurns = 40

type DialogueTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type DialogueRequest struct {
	Utterance string         `json:"utterance" binding:"required"`
	Language  string         `json:"language"`
	Phone     string         `json:"phone"`
	History   []DialogueTurn `json:"history"`
}

type DialogueResponse struct {
	Reply     string `json:"reply"`
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	LatencyMs int64  `json:"latency_ms"`
}

// PreviewDialogue runs one chat turn against the live persona so operators
// can check how the agent answers without placing a call.
func (h *Handler) PreviewDialogue(c *gin.Context) {
	start := time.Now()
	var req DialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if h.deps.Chat == nil {
		errors.ServiceUnavailable(c, "chat is not configured")
		return
	}

	lang, ok := language.Parse(h.cfg.DefaultLanguage)
	if !ok {
		lang = language.English
	}
	if req.Language != "" {
		l, ok := language.Parse(req.Language)
		if !ok {
			errors.BadRequest(c, "unsupported language "+req.Language)
			return
		}
		lang = l
	}
	history, err := toTurns(req.History)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.cfg.AITimeoutMs)*time.Millisecond+5*time.Second)
	defer cancel()

	p := previewParticipant
	if req.Phone != "" && h.deps.Customers != nil {
		phone, err := utils.NormalizePhone(req.Phone)
		if err != nil {
			errors.BadRequest(c, err.Error())
			return
		}
		found, err := h.deps.Customers.FindByPhone(ctx, utils.PhoneVariants(phone))
		if err != nil {
			errors.InternalError(c, err, h.logger)
			return
		}
		if found == nil {
			errors.NotFound(c, "no customer for this phone number")
			return
		}
		p = found
	}

	policy := dialogue.NewPolicy(h.deps.Chat, p, lang, dialogue.Options{}, h.logger)
	policy.Restore(history)
	reply, err := policy.Send(ctx, req.Utterance)
	if stderrors.Is(err, ai.ErrUnavailable) {
		errors.ServiceUnavailable(c, "no chat provider is configured")
		return
	}
	if err != nil {
		errors.Upstream(c, err, "chat provider failed", h.logger)
		return
	}

	c.JSON(http.StatusOK, DialogueResponse{
		Reply:     reply.Text,
		Status:    string(reply.Status),
		Provider:  h.deps.Chat.Name(),
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// toTurns validates that history alternates customer and agent, starting
// with the customer, so the next utterance is a customer turn.
func toTurns(in []DialogueTurn) ([]dialogue.Turn, error) {
	if len(in) > maxPreviewTurns {
		return nil, stderrors.New("history is too long")
	}
	out := make([]dialogue.Turn, 0, len(in))
	for i, t := range in {
		want := dialogue.RoleCustomer
		if i%2 == 1 {
			want = dialogue.RoleAgent
		}
		if dialogue.Role(strings.ToLower(t.Role)) != want {
			return nil, stderrors.New("history must alternate customer and agent turns")
		}
		out = append(out, dialogue.Turn{Role: want, Text: strings.TrimSpace(t.Text)})
	}
	if len(out)%2 == 1 {
		return nil, stderrors.New("history must end with an agent turn")
	}
	return out, nil
}
