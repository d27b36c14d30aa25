package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/retry"
)

// DeepgramSTT transcribes with Deepgram's prerecorded listen endpoint
type DeepgramSTT struct {
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

func NewDeepgramSTT(apiKey, model string, timeout time.Duration, logger *zap.Logger) *DeepgramSTT {
	if apiKey == "" {
		return &DeepgramSTT{logger: logger}
	}
	if model == "" {
		model = "nova-2"
	}
	return &DeepgramSTT{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: "https://api.deepgram.com/v1",
	}
}

func (d *DeepgramSTT) IsAvailable() bool {
	return d.apiKey != ""
}

// SpeechToText posts the WAV as is; Deepgram reads the encoding from the
// header. Without a language hint it detects the language itself.
func (d *DeepgramSTT) SpeechToText(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if !d.IsAvailable() {
		return nil, ErrUnavailable
	}
	if len(req.WAV) == 0 {
		return nil, retry.Permanent(fmt.Errorf("audio data cannot be empty"))
	}

	q := url.Values{}
	q.Set("model", d.model)
	q.Set("punctuate", "true")
	if req.Language != "" {
		q.Set("language", req.Language)
	} else {
		q.Set("detect_language", "true")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/listen?"+q.Encode(), bytes.NewReader(req.WAV))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "audio/wav")
	httpReq.Header.Set("Authorization", "Token "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("Deepgram", resp)
	}

	var dg struct {
		Results struct {
			Channels []struct {
				DetectedLanguage string `json:"detected_language"`
				Alternatives     []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &STTResponse{Language: req.Language}
	if len(dg.Results.Channels) > 0 {
		ch := dg.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			out.Language = ch.DetectedLanguage
		}
		if len(ch.Alternatives) > 0 {
			out.Text = ch.Alternatives[0].Transcript
		}
	}
	return out, nil
}
