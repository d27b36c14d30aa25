package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"
)

// Telephony PCM is 16-bit signed little-endian mono.
const BytesPerSample = 2

// DefaultSampleRate is the Exotel voicebot stream rate
const DefaultSampleRate = 8000

// FrameDuration is the protocol frame length
const FrameDuration = 20 * time.Millisecond

// FrameBytes returns the size of one frame at sampleRate.
// 8kHz -> 320 bytes, 16kHz -> 640 bytes.
func FrameBytes(sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return int(int64(sampleRate)*int64(FrameDuration)/int64(time.Second)) * BytesPerSample
}

// BytesFor returns the byte length of d of audio at sampleRate
func BytesFor(d time.Duration, sampleRate int) int {
	samples := int64(sampleRate) * int64(d) / int64(time.Second)
	return int(samples) * BytesPerSample
}

// DurationOf returns the playback length of pcm at sampleRate
func DurationOf(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Frames splits pcm into frameSize chunks. A short final chunk is padded
// with silence so every frame has the protocol size.
func Frames(pcm []byte, frameSize int) [][]byte {
	if len(pcm) == 0 || frameSize <= 0 {
		return nil
	}

	frames := make([][]byte, 0, (len(pcm)+frameSize-1)/frameSize)
	for i := 0; i < len(pcm); i += frameSize {
		end := i + frameSize
		if end <= len(pcm) {
			frames = append(frames, pcm[i:end])
			continue
		}
		last := make([]byte, frameSize)
		copy(last, pcm[i:])
		frames = append(frames, last)
	}
	return frames
}

// EncodeFrame base64-encodes one PCM frame for a media event
func EncodeFrame(frame []byte) string {
	return base64.StdEncoding.EncodeToString(frame)
}

// DecodeFrame decodes a media event payload
func DecodeFrame(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}

// RMS returns the root-mean-square level of 16-bit PCM in sample units
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
