package audio

import (
	"encoding/binary"
	"testing"
)

func TestResample_Lengths(t *testing.T) {
	pcm := make([]byte, 4800) // 2400 samples
	tests := []struct {
		from, to int
		want     int
	}{
		{24000, 8000, 1600},
		{16000, 8000, 2400},
		{8000, 16000, 9600},
		{8000, 8000, 4800},
	}
	for _, tt := range tests {
		if got := len(Resample(pcm, tt.from, tt.to)); got != tt.want {
			t.Errorf("Resample(%d->%d) len = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestResample_PreservesConstant(t *testing.T) {
	pcm := make([]byte, 960)
	for i := 0; i < 480; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(1234)))
	}
	out := Resample(pcm, 24000, 8000)
	for i := 0; i < len(out)/2; i++ {
		if s := int16(binary.LittleEndian.Uint16(out[i*2:])); s != 1234 {
			t.Fatalf("sample %d = %d, want 1234", i, s)
		}
	}
}
