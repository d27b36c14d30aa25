package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OpenAITTSSampleRate is the rate of response_format=pcm output
const OpenAITTSSampleRate = 24000

// OpenAITTSService handles Text-to-Speech using OpenAI TTS API
type OpenAITTSService struct {
	apiKey  string
	model   string
	voice   string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

// NewOpenAITTSService creates a new OpenAI TTS service
func NewOpenAITTSService(apiKey, model, voice string, timeout time.Duration, logger *zap.Logger) *OpenAITTSService {
	if apiKey == "" {
		return &OpenAITTSService{logger: logger}
	}
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}

	return &OpenAITTSService{
		apiKey:  apiKey,
		model:   model,
		voice:   voice,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: "https://api.openai.com/v1",
	}
}

// Name identifies the engine in logs and metrics
func (s *OpenAITTSService) Name() string {
	return "openai-tts"
}

// IsAvailable checks if OpenAI TTS service is available
func (s *OpenAITTSService) IsAvailable() bool {
	return s.apiKey != ""
}

// SynthesizePCM returns raw 16-bit mono PCM and its sample rate.
// The voice is multilingual; the language follows the input text.
func (s *OpenAITTSService) SynthesizePCM(ctx context.Context, text, _ string) ([]byte, int, error) {
	if !s.IsAvailable() {
		return nil, 0, ErrUnavailable
	}
	if text == "" {
		return nil, 0, fmt.Errorf("text cannot be empty")
	}

	requestBody := map[string]interface{}{
		"model":           s.model,
		"input":           text,
		"voice":           s.voice,
		"response_format": "pcm",
	}

	var pcm []byte
	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	if err := doJSON(ctx, s.client, "OpenAI TTS", s.baseURL+"/audio/speech", headers, requestBody, &pcm); err != nil {
		return nil, 0, err
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("no audio data received")
	}
	return pcm, OpenAITTSSampleRate, nil
}
