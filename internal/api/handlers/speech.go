package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/speech"
	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/errors"
)

const (
	speechTimeout  = 20 * time.Second
	maxUploadBytes = 10 << 20
)

type PreviewRequest struct {
	Language string `json:"language"`
	Prompt   string `json:"prompt"` // confirm | greeting | reminder
	Text     string `json:"text"`
}

type TranscribeResponse struct {
	Text           string `json:"text"`
	EngineLanguage string `json:"engine_language,omitempty"`
	Language       string `json:"language"`
	Source         string `json:"source"`
}

// previewParticipant fills scripted prompts when previewing them
var previewParticipant = &session.CallParticipant{
	Name:              "Ravi Kumar",
	LoanRef:           "LN0000451234",
	OutstandingAmount: 4500,
}

// PreviewSpeech renders a scripted line, or free text, the way a caller
// would hear it: synthesized, resampled to 8 kHz and wrapped as WAV.
func (h *Handler) PreviewSpeech(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if h.deps.TTS == nil || !h.deps.TTS.IsAvailable() {
		errors.ServiceUnavailable(c, "TTS service is not available")
		return
	}

	lang := h.opts.Machine.DefaultLanguage
	if req.Language != "" {
		l, ok := language.Parse(req.Language)
		if !ok {
			errors.BadRequest(c, "unsupported language "+req.Language)
			return
		}
		lang = l
	}

	text := req.Text
	if text == "" {
		lines := callflow.LinesFor(lang)
		switch req.Prompt {
		case "", "confirm":
			text = lines.ConfirmPrompt(previewParticipant)
		case "greeting":
			text = lines.GreetingPrompt(previewParticipant)
		case "reminder":
			text = lines.ReminderPrompt(previewParticipant)
		default:
			errors.BadRequest(c, "prompt must be confirm, greeting or reminder")
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), speechTimeout)
	defer cancel()

	synth := speech.NewSynthesizer(h.deps.TTS, h.deps.TTSGuard, audio.DefaultSampleRate, h.logger)
	pcm, err := synth.Synthesize(ctx, text, string(lang))
	if err != nil {
		h.logger.Error("Speech preview failed", zap.String("language", string(lang)), zap.Error(err))
		errors.BadGateway(c, "speech synthesis failed")
		return
	}
	wav, err := audio.EncodeWAV(pcm, audio.DefaultSampleRate)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.Header("Content-Disposition", "inline; filename=preview.wav")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "audio/wav", wav)
}

// TranscribeSpeech transcribes an uploaded WAV file and reports which
// language the call loop would pick for it.
func (h *Handler) TranscribeSpeech(c *gin.Context) {
	if h.deps.STT == nil || !h.deps.STT.IsAvailable() {
		errors.ServiceUnavailable(c, "STT service is not available")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		errors.BadRequest(c, "file is required")
		return
	}
	if file.Size > maxUploadBytes {
		errors.BadRequest(c, "file is larger than 10 MB")
		return
	}
	src, err := file.Open()
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	pcm, rate, err := audio.DecodeWAV(data)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), speechTimeout)
	defer cancel()

	tr := speech.NewTranscriber(h.deps.STT, h.deps.STTGuard, rate, h.cfg.MinUtterance, h.logger)
	out, err := tr.Transcribe(ctx, pcm, c.PostForm("language"))
	if err != nil {
		h.logger.Error("Transcription failed", zap.Error(err))
		errors.BadGateway(c, "speech recognition failed")
		return
	}

	ident := h.deps.Call.Identifier
	if ident == nil {
		ident = language.NewIdentifier(h.opts.Machine.DefaultLanguage)
	}
	detected := ident.Identify(out.Text, c.PostForm("state"))
	c.JSON(http.StatusOK, TranscribeResponse{
		Text:           out.Text,
		EngineLanguage: out.Language,
		Language:       string(detected.Lang),
		Source:         string(detected.Source),
	})
}
