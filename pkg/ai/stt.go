package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/retry"
)

// STTService handles Speech-to-Text using OpenAI Whisper
type STTService struct {
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

// NewSTTService creates a new STT service
func NewSTTService(apiKey, model string, timeout time.Duration, logger *zap.Logger) *STTService {
	if apiKey == "" {
		return &STTService{logger: logger}
	}
	if model == "" {
		model = "whisper-1"
	}

	return &STTService{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: "https://api.openai.com/v1",
	}
}

// IsAvailable checks if STT service is available
func (s *STTService) IsAvailable() bool {
	return s.apiKey != ""
}

// STTRequest represents a STT request
type STTRequest struct {
	WAV      []byte
	Language string // ISO-639-1 hint, empty lets Whisper detect
	Prompt   string
}

// STTResponse represents a STT response
type STTResponse struct {
	Text     string
	Language string
}

// SpeechToText uploads a WAV file to /audio/transcriptions
func (s *STTService) SpeechToText(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if !s.IsAvailable() {
		return nil, ErrUnavailable
	}
	if len(req.WAV) == 0 {
		return nil, retry.Permanent(fmt.Errorf("audio data cannot be empty"))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create form file: %w", err))
	}
	if _, err := part.Write(req.WAV); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to write audio data: %w", err))
	}

	fields := map[string]string{
		"model":           s.model,
		"response_format": "verbose_json",
		"language":        req.Language,
		"prompt":          req.Prompt,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, retry.Permanent(fmt.Errorf("failed to write %s field: %w", k, err))
		}
	}
	if err := writer.Close(); err != nil {
		return nil, retry.Permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("OpenAI Whisper", resp)
	}

	var whisperResp struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&whisperResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &STTResponse{
		Text:     whisperResp.Text,
		Language: whisperResp.Language,
	}, nil
}
