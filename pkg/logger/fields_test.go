package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestMaskPhone(t *testing.T) {
	f := MaskPhone("phone", "+919876543210")
	assert.Equal(t, zapcore.StringType, f.Type)
	assert.NotContains(t, f.String, "98765")
	assert.Contains(t, f.String, "3210")

	assert.Equal(t, zapcore.SkipType, MaskPhone("phone", "").Type)
}

func TestCallFields(t *testing.T) {
	assert.Len(t, CallFields("CA1", "", ""), 1)
	assert.Len(t, CallFields("CA1", "MZ1", "+919876543210"), 3)
	assert.Empty(t, CallFields("", "", ""))
}
