package media

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/metrics"
)

// FrameSender is the outbound half of a media connection
type FrameSender interface {
	SendMedia(frame []byte) error
	SendMark(name string) error
}

// Playback describes how much of an utterance reached the carrier
type Playback struct {
	Sent      int
	Total     int
	Truncated bool
}

// Streamer drains PCM to the carrier one frame per frame duration
type Streamer struct {
	out       FrameSender
	frameSize int
	interval  time.Duration
	burst     int
	logger    *zap.Logger
}

// StreamerOption adjusts pacing
type StreamerOption func(*Streamer)

// WithPacing overrides the frame interval and burst. A small burst lets
// the carrier's jitter buffer fill ahead of playback.
func WithPacing(interval time.Duration, burst int) StreamerOption {
	return func(s *Streamer) {
		s.interval = interval
		if burst > 0 {
			s.burst = burst
		}
	}
}

// WithFrameSize overrides the bytes per frame, e.g. 160 for 8 kHz mu-law
func WithFrameSize(n int) StreamerOption {
	return func(s *Streamer) {
		if n > 0 {
			s.frameSize = n
		}
	}
}

func NewStreamer(out FrameSender, sampleRate int, logger *zap.Logger, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		out:       out,
		frameSize: audio.FrameBytes(sampleRate),
		interval:  audio.FrameDuration,
		burst:     3,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream sends pcm as paced frames followed by mark. A cancelled context
// or a closed socket stops it early; the result reports truncation and no
// error is returned.
func (s *Streamer) Stream(ctx context.Context, pcm []byte, mark string) Playback {
	if len(pcm) == 0 {
		s.logger.Warn("Empty audio payload, nothing to stream", zap.String("mark", mark))
		return Playback{}
	}

	frames := audio.Frames(pcm, s.frameSize)
	pb := Playback{Total: len(frames)}
	limiter := rate.NewLimiter(rate.Every(s.interval), s.burst)

	for _, f := range frames {
		if err := limiter.Wait(ctx); err != nil {
			pb.Truncated = true
			break
		}
		if err := s.out.SendMedia(f); err != nil {
			s.logger.Warn("Socket closed mid-stream", zap.Error(err))
			pb.Truncated = true
			break
		}
		pb.Sent++
	}

	metrics.Default.FramesSent.Add(float64(pb.Sent))
	if pb.Truncated {
		metrics.Default.PlaybacksTruncated.Inc()
		s.logger.Info("Playback truncated",
			zap.String("mark", mark),
			zap.Int("sent", pb.Sent),
			zap.Int("total", pb.Total),
		)
		return pb
	}

	if mark != "" {
		if err := s.out.SendMark(mark); err != nil {
			s.logger.Warn("Failed to send mark", zap.String("mark", mark), zap.Error(err))
		}
	}
	return pb
}
