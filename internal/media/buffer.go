package media

import (
	"time"

	"github.com/troikatech/collections-agent/pkg/audio"
)

// DefaultMaxUtterance bounds one buffered utterance
const DefaultMaxUtterance = 30 * time.Second

// Buffer accumulates one caller utterance. It belongs to a single call
// loop and is not safe for concurrent use.
type Buffer struct {
	data       []byte
	max        int
	sampleRate int
}

func NewBuffer(sampleRate int, maxDuration time.Duration) *Buffer {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxUtterance
	}
	max := audio.BytesFor(maxDuration, sampleRate)
	return &Buffer{data: make([]byte, 0, audio.BytesFor(5*time.Second, sampleRate)), max: max, sampleRate: sampleRate}
}

// Append adds pcm and reports whether the buffer is now full. Bytes past
// the bound are dropped.
func (b *Buffer) Append(pcm []byte) bool {
	room := b.max - len(b.data)
	if room <= 0 {
		return true
	}
	if len(pcm) > room {
		pcm = pcm[:room]
	}
	b.data = append(b.data, pcm...)
	return len(b.data) >= b.max
}

func (b *Buffer) Len() int { return len(b.data) }

// Duration is the playback length of the buffered audio
func (b *Buffer) Duration() time.Duration { return audio.DurationOf(b.data, b.sampleRate) }

// Take returns the buffered audio and clears the buffer
func (b *Buffer) Take() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

func (b *Buffer) Reset() { b.data = b.data[:0] }
