package audio

import "encoding/binary"

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// DecodeMuLaw converts G.711 μ-law (8-bit) to 16-bit signed little-endian PCM
func DecodeMuLaw(muLaw []byte) []byte {
	if len(muLaw) == 0 {
		return nil
	}

	pcm := make([]byte, len(muLaw)*BytesPerSample)
	for i, mu := range muLaw {
		mu = ^mu
		sign := mu & 0x80
		exponent := (mu >> 4) & 0x07
		mantissa := mu & 0x0F

		sample := ((int(mantissa) << 3) + muLawBias) << exponent
		sample -= muLawBias
		if sign != 0 {
			sample = -sample
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm
}

// EncodeMuLaw converts 16-bit signed little-endian PCM to G.711 μ-law
func EncodeMuLaw(pcm []byte) []byte {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return nil
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))

		var sign byte
		if sample < 0 {
			sign = 0x80
			sample = -sample
		}
		if sample > muLawClip {
			sample = muLawClip
		}
		sample += muLawBias

		exponent := byte(7)
		for mask := 0x4000; sample&mask == 0 && exponent > 0; mask >>= 1 {
			exponent--
		}
		mantissa := byte(sample>>(exponent+3)) & 0x0F
		out[i] = ^(sign | exponent<<4 | mantissa)
	}
	return out
}
