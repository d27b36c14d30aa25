package utils

import (
	"reflect"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "e164", input: "+919876543210", want: "+919876543210"},
		{name: "country code without plus", input: "919876543210", want: "+919876543210"},
		{name: "leading zero", input: "09876543210", want: "+919876543210"},
		{name: "ten digits", input: "98765 43210", want: "+919876543210"},
		{name: "dashes", input: "987-654-3210", want: "+919876543210"},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePhone(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhoneVariants(t *testing.T) {
	want := []string{"+919876543210", "919876543210", "09876543210", "9876543210"}
	for _, in := range []string{"+919876543210", "919876543210", "09876543210", "9876543210"} {
		if got := PhoneVariants(in); !reflect.DeepEqual(got, want) {
			t.Errorf("PhoneVariants(%q) = %v, want %v", in, got, want)
		}
	}

	if got := PhoneVariants("abc"); !reflect.DeepEqual(got, []string{"abc"}) {
		t.Errorf("PhoneVariants(abc) = %v", got)
	}
	if got := PhoneVariants(" "); got != nil {
		t.Errorf("PhoneVariants(blank) = %v, want nil", got)
	}
}

func TestMaskPhoneNumber(t *testing.T) {
	if got := MaskPhoneNumber("+919876543210"); got != "+919876••3210" {
		t.Errorf("MaskPhoneNumber = %q", got)
	}
	if got := MaskPhoneNumber("12345"); got != "•2345" {
		t.Errorf("MaskPhoneNumber short = %q", got)
	}
	if got := MaskPhoneNumber(""); got != "" {
		t.Errorf("MaskPhoneNumber empty = %q", got)
	}
}

func TestLastDigits(t *testing.T) {
	tests := map[string]string{
		"LOAN123":     "0123",
		"LN-00098765": "8765",
		"ABC":         "0000",
	}
	for in, want := range tests {
		if got := LastDigits(in, 4); got != want {
			t.Errorf("LastDigits(%q) = %q, want %q", in, got, want)
		}
	}
}
