package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ElevenLabsSampleRate matches the pcm_16000 output format
const ElevenLabsSampleRate = 16000

// TTSService handles Text-to-Speech using ElevenLabs
type TTSService struct {
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

// NewTTSService creates a new ElevenLabs TTS service
func NewTTSService(apiKey, voiceID, modelID string, timeout time.Duration, logger *zap.Logger) *TTSService {
	if apiKey == "" {
		return &TTSService{logger: logger}
	}
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	return &TTSService{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: "https://api.elevenlabs.io/v1",
	}
}

// Name identifies the engine in logs and metrics
func (s *TTSService) Name() string {
	return "elevenlabs"
}

// IsAvailable checks if TTS service is available
func (s *TTSService) IsAvailable() bool {
	return s.apiKey != ""
}

// SynthesizePCM returns raw 16-bit mono PCM at 16kHz. language is an
// ISO-639-1 code passed through as language_code.
func (s *TTSService) SynthesizePCM(ctx context.Context, text, language string) ([]byte, int, error) {
	if !s.IsAvailable() {
		return nil, 0, ErrUnavailable
	}
	if text == "" {
		return nil, 0, fmt.Errorf("text cannot be empty")
	}

	requestBody := map[string]interface{}{
		"text":     text,
		"model_id": s.modelID,
		"voice_settings": map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	if language != "" {
		requestBody["language_code"] = language
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=pcm_16000", s.baseURL, url.PathEscape(s.voiceID))
	headers := map[string]string{
		"xi-api-key": s.apiKey,
		"Accept":     "audio/pcm",
	}

	var pcm []byte
	if err := doJSON(ctx, s.client, "ElevenLabs", endpoint, headers, requestBody, &pcm); err != nil {
		return nil, 0, err
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("no audio data received")
	}
	return pcm, ElevenLabsSampleRate, nil
}
