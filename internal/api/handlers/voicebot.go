package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/media"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/speech"
	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/errors"
	"github.com/troikatech/collections-agent/pkg/logger"
)

const keepAliveInterval = 30 * time.Second

// ExotelVoicebotRequest is what the voicebot applet sends when a call connects
type ExotelVoicebotRequest struct {
	CallSid     string `json:"CallSid" form:"CallSid"`
	From        string `json:"From" form:"From"`
	To          string `json:"To" form:"To"`
	CustomField string `json:"CustomField" form:"CustomField"`
}

// VoicebotWebSocketResponse is what Exotel expects - a WebSocket URL
type VoicebotWebSocketResponse struct {
	WebSocketURL string `json:"websocket_url"`
}

// ExotelVoicebotEndpoint tells the voicebot applet which socket to stream
// the call to. Supports both GET (query params) and POST (form/json).
func (h *Handler) ExotelVoicebotEndpoint(c *gin.Context) {
	var req ExotelVoicebotRequest
	if err := c.ShouldBind(&req); err != nil {
		req.CallSid = c.Query("CallSid")
		req.From = c.Query("From")
		req.To = c.Query("To")
		req.CustomField = c.Query("CustomField")
	}
	if req.CallSid == "" {
		req.CallSid = c.Query("call_sid")
	}
	if req.From == "" {
		req.From = c.Query("CallFrom")
	}
	if req.CallSid == "" {
		h.logger.Warn("Voicebot init without CallSid",
			zap.String("method", c.Request.Method),
			zap.Any("query", c.Request.URL.Query()),
		)
		errors.BadRequest(c, "CallSid is required")
		return
	}

	q := url.Values{}
	q.Set("call_sid", req.CallSid)
	if req.From != "" {
		q.Set("from", req.From)
	}
	if id := transientFromCustomField(req.CustomField); id != "" {
		q.Set("transient_id", id)
	}
	wsURL := fmt.Sprintf("%s/voicebot/ws?%s", wsBase(h.publicBaseURL(c)), q.Encode())

	h.logger.Info("Voicebot session requested",
		zap.String("call_sid", req.CallSid),
		logger.MaskPhone("from", req.From),
	)
	c.JSON(http.StatusOK, VoicebotWebSocketResponse{WebSocketURL: wsURL})
}

// transientFromCustomField accepts either the JSON object DialVoicebot
// sends or a bare id.
func transientFromCustomField(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return ""
	}
	if v, ok := fields["transient_id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (h *Handler) publicBaseURL(c *gin.Context) string {
	if h.cfg.PublicBaseURL != "" {
		return strings.TrimRight(h.cfg.PublicBaseURL, "/")
	}
	scheme := "https"
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" {
		scheme = "http"
	} else if proto == "" && c.Request.TLS == nil {
		scheme = "http"
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}

// wsBase swaps http(s) for ws(s)
func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// voicebotUpgrader accepts Exotel origins, and anything in development
func (h *Handler) voicebotUpgrader() websocket.Upgrader {
	allowed := []string{
		"https://my.exotel.com",
		"https://api.exotel.com",
		"https://" + h.cfg.ExotelSubdomain + ".exotel.com",
	}
	if h.cfg.PublicBaseURL != "" {
		allowed = append(allowed, strings.TrimRight(h.cfg.PublicBaseURL, "/"))
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || h.cfg.AppEnv == "development" {
				return true
			}
			for _, a := range allowed {
				if origin == a {
					return true
				}
			}
			h.logger.Warn("WebSocket connection rejected - invalid origin",
				zap.String("origin", origin),
				zap.String("remote_addr", r.RemoteAddr),
			)
			return false
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// VoicebotWebSocket is the media stream Exotel connects to. One Call runs
// per socket until either side hangs up.
func (h *Handler) VoicebotWebSocket(c *gin.Context) {
	if token := h.cfg.ExotelVoicebotToken; token != "" {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got == "" {
			got = c.Query("token")
		}
		if got != token {
			errors.Unauthorized(c, "invalid voicebot token")
			return
		}
	}

	sampleRate := audio.DefaultSampleRate
	if sr, err := strconv.Atoi(c.Query("sample-rate")); err == nil && sr > 0 {
		sampleRate = sr
	}
	lookup := session.Lookup{
		OfficialID:  firstQuery(c, "call_sid", "callLogId", "CallSid"),
		TransientID: firstQuery(c, "transient_id", "transientId"),
		Phone:       firstQuery(c, "from", "From"),
	}

	deps := h.callDeps(sampleRate)
	if deps.Transcriber == nil || deps.Synthesizer == nil || deps.NewPolicy == nil {
		h.logger.Error("Voicebot stream refused, speech or chat is not configured", zap.String("call_sid", lookup.OfficialID))
		errors.ServiceUnavailable(c, "voice pipeline is not configured")
		return
	}

	upgrader := h.voicebotUpgrader()
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to WebSocket",
			zap.Error(err),
			zap.String("call_sid", lookup.OfficialID),
			zap.String("remote_addr", c.Request.RemoteAddr),
		)
		return
	}

	h.logger.Info("Voicebot WebSocket connection established",
		zap.String("call_sid", lookup.OfficialID),
		logger.MaskPhone("from", lookup.Phone),
		zap.Int("sample_rate", sampleRate),
	)

	opts := h.opts
	opts.SampleRate = sampleRate
	opts.KeepAlive = keepAliveInterval
	opts.Lookup = lookup

	call := callflow.NewCall(media.NewConn(ws), deps, opts)
	if err := call.Run(h.deps.Context); err != nil && err != context.Canceled {
		h.logger.Debug("Call ended with error", zap.String("call_sid", lookup.OfficialID), zap.Error(err))
	}
}

// callDeps binds the shared collaborators to one stream's sample rate
func (h *Handler) callDeps(sampleRate int) callflow.Deps {
	d := h.deps.Call
	minAudio := h.cfg.MinUtterance
	if d.Transcriber == nil && h.deps.STT != nil {
		d.Transcriber = speech.NewTranscriber(h.deps.STT, h.deps.STTGuard, sampleRate, minAudio, h.logger)
	}
	if d.Synthesizer == nil && h.deps.TTS != nil {
		d.Synthesizer = speech.NewSynthesizer(h.deps.TTS, h.deps.TTSGuard, sampleRate, h.logger)
	}
	if d.NewPolicy == nil && h.deps.Chat != nil {
		chat := h.deps.Chat
		popts := dialogue.Options{Timeout: time.Duration(h.cfg.AITimeoutMs) * time.Millisecond}
		d.NewPolicy = func(p *session.CallParticipant, lang language.Code) callflow.Policy {
			return dialogue.NewPolicy(chat, p, lang, popts, h.logger)
		}
	}
	return d
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}
