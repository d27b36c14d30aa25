package utils

import "testing"

func TestFormatINR(t *testing.T) {
	tests := map[float64]string{
		0:        "0",
		999:      "999",
		4500:     "4,500",
		123456:   "1,23,456",
		12345678: "1,23,45,678",
		1500.5:   "1,500.50",
		250.05:   "250.05",
		-4500:    "-4,500",
		99.999:   "100",
	}
	for in, want := range tests {
		if got := FormatINR(in); got != want {
			t.Errorf("FormatINR(%v) = %q, want %q", in, got, want)
		}
	}
}
