package audio

import "encoding/binary"

// Resample converts 16-bit mono PCM between sample rates using linear
// interpolation. TTS engines return 16k/24k audio; the stream wants 8k.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if len(pcm) < BytesPerSample || fromRate <= 0 || toRate <= 0 || fromRate == toRate {
		return pcm
	}

	in := make([]int16, len(pcm)/BytesPerSample)
	for i := range in {
		in[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]byte, outLen*BytesPerSample)
	ratio := float64(fromRate) / float64(toRate)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := float64(in[idx])
		s1 := s0
		if idx+1 < len(in) {
			s1 = float64(in[idx+1])
		}
		sample := int16(s0 + (s1-s0)*frac)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}
