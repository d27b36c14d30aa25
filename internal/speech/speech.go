// Package speech adapts the STT and TTS engines to the call loop: PCM in
// the stream's format on both sides, guarded remote calls, traced.
package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/client"
	"github.com/troikatech/collections-agent/pkg/otel"
)

// DefaultMinAudio is the shortest utterance worth sending to STT
const DefaultMinAudio = 200 * time.Millisecond

// STTEngine turns a WAV upload into text
type STTEngine interface {
	SpeechToText(ctx context.Context, req *ai.STTRequest) (*ai.STTResponse, error)
	IsAvailable() bool
}

// TTSEngine turns text into 16-bit mono PCM at the returned sample rate
type TTSEngine interface {
	SynthesizePCM(ctx context.Context, text, language string) ([]byte, int, error)
	Name() string
	IsAvailable() bool
}

// Transcript is what the caller said
type Transcript struct {
	Text     string
	Language string
}

// Empty reports whether nothing intelligible was heard
func (t Transcript) Empty() bool { return strings.TrimSpace(t.Text) == "" }

// Transcriber wraps an STT engine for one stream format
type Transcriber struct {
	engine     STTEngine
	guard      *client.Guard
	sampleRate int
	minBytes   int
	logger     *zap.Logger
}

// NewTranscriber creates a transcriber. guard may be nil for the default.
func NewTranscriber(engine STTEngine, guard *client.Guard, sampleRate int, minAudio time.Duration, logger *zap.Logger) *Transcriber {
	if guard == nil {
		guard = client.NewDefaultGuard("stt")
	}
	if minAudio <= 0 {
		minAudio = DefaultMinAudio
	}
	return &Transcriber{
		engine:     engine,
		guard:      guard,
		sampleRate: sampleRate,
		minBytes:   audio.BytesFor(minAudio, sampleRate),
		logger:     logger,
	}
}

// MinBytes is the buffer length below which Transcribe never calls out
func (t *Transcriber) MinBytes() int { return t.minBytes }

// Transcribe returns an empty transcript for audio shorter than the
// minimum without contacting the engine. lang is an optional hint.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, lang string) (Transcript, error) {
	if len(pcm) < t.minBytes {
		return Transcript{}, nil
	}

	wav, err := audio.EncodeWAV(pcm, t.sampleRate)
	if err != nil {
		t.logger.Warn("Dropping undecodable utterance", zap.Error(err))
		return Transcript{}, nil
	}

	var out Transcript
	err = otel.Trace(ctx, "stt.transcribe", func(ctx context.Context) error {
		return t.guard.Do(ctx, func(ctx context.Context) error {
			resp, err := t.engine.SpeechToText(ctx, &ai.STTRequest{WAV: wav, Language: lang})
			if err != nil {
				return err
			}
			out = Transcript{Text: strings.TrimSpace(resp.Text), Language: resp.Language}
			return nil
		})
	}, attribute.Int("audio.bytes", len(pcm)))
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}
	return out, nil
}

// Synthesizer wraps a TTS engine and resamples to the stream rate
type Synthesizer struct {
	engine     TTSEngine
	guard      *client.Guard
	sampleRate int
	logger     *zap.Logger
}

// NewSynthesizer creates a synthesizer. guard may be nil for the default.
func NewSynthesizer(engine TTSEngine, guard *client.Guard, sampleRate int, logger *zap.Logger) *Synthesizer {
	if guard == nil {
		guard = client.NewDefaultGuard("tts-" + engine.Name())
	}
	return &Synthesizer{engine: engine, guard: guard, sampleRate: sampleRate, logger: logger}
}

// Synthesize returns PCM at the stream sample rate. Empty text yields no
// audio and no error.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var (
		pcm  []byte
		rate int
	)
	err := otel.Trace(ctx, "tts.synthesize", func(ctx context.Context) error {
		return s.guard.Do(ctx, func(ctx context.Context) error {
			var err error
			pcm, rate, err = s.engine.SynthesizePCM(ctx, text, lang)
			return err
		})
	}, attribute.String("tts.engine", s.engine.Name()), attribute.String("tts.language", lang))
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("synthesize: %s returned no audio", s.engine.Name())
	}
	return audio.Resample(pcm, rate, s.sampleRate), nil
}
