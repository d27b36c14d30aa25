package logger

import (
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/utils"
)

// MaskPhone logs only the last digits of a phone number. An empty number
// is omitted from the entry.
func MaskPhone(key, phone string) zap.Field {
	if phone == "" {
		return zap.Skip()
	}
	return zap.String(key, utils.MaskPhoneNumber(phone))
}

// CallFields returns the fields every per-call log line carries.
// Empty identifiers are skipped.
func CallFields(callSid, streamSid, phone string) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if callSid != "" {
		fields = append(fields, zap.String("call_sid", callSid))
	}
	if streamSid != "" {
		fields = append(fields, zap.String("stream_sid", streamSid))
	}
	if phone != "" {
		fields = append(fields, MaskPhone("phone", phone))
	}
	return fields
}
