package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Start(t *testing.T) {
	raw := `{
		"event": "start",
		"sequence_number": 1,
		"stream_sid": "MZ123",
		"start": {
			"call_sid": "CA456",
			"from": "09876543210",
			"to": "08047112345",
			"custom_parameters": {"transient_id": "tmp-1", "amount": 4500, "flow": "chat"},
			"media_format": {"encoding": "base64", "sample_rate": "8000"}
		}
	}`

	in, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventStart, in.Event)
	assert.Equal(t, "MZ123", in.StreamSID)
	require.NotNil(t, in.Start)
	assert.Equal(t, "CA456", in.Start.CallSID)
	assert.Equal(t, "MZ123", in.Start.StreamSID)
	assert.Equal(t, "tmp-1", in.Start.CustomParameters["transient_id"])
	assert.Equal(t, "4500", in.Start.CustomParameters["amount"])
	assert.Equal(t, 8000, in.Start.SampleRate)
}

func TestParse_TopLevelCustomParameters(t *testing.T) {
	raw := `{"event":"start","streamSid":"MZ9","custom_parameters":{"name":"Vijay","loan_id":"LOAN123"},
		"start":{"custom_parameters":{"name":"Vijay Kumar"},"media_format":{"sample_rate":16000}}}`

	in, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "MZ9", in.StreamSID)
	assert.Equal(t, "Vijay Kumar", in.Start.CustomParameters["name"], "nested wins")
	assert.Equal(t, "LOAN123", in.Start.CustomParameters["loan_id"])
	assert.Equal(t, 16000, in.Start.SampleRate)
}

func TestParse_Events(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, in *Inbound)
	}{
		{
			name: "media",
			raw:  `{"event":"media","stream_sid":"MZ1","media":{"chunk":"3","payload":"AAAA"}}`,
			want: func(t *testing.T, in *Inbound) {
				assert.Equal(t, "AAAA", in.Media.Payload)
				assert.Equal(t, 3, in.Media.Chunk)
			},
		},
		{
			name: "mark",
			raw:  `{"event":"mark","stream_sid":"MZ1","mark":{"name":"utt-2"}}`,
			want: func(t *testing.T, in *Inbound) { assert.Equal(t, "utt-2", in.Mark) },
		},
		{
			name: "dtmf",
			raw:  `{"event":"dtmf","stream_sid":"MZ1","dtmf":{"digit":"5"}}`,
			want: func(t *testing.T, in *Inbound) { assert.Equal(t, "5", in.Digit) },
		},
		{
			name: "stop",
			raw:  `{"event":"stop","stream_sid":"MZ1"}`,
			want: func(t *testing.T, in *Inbound) { assert.Equal(t, EventStop, in.Event) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse([]byte(tt.raw))
			require.NoError(t, err)
			tt.want(t, in)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"event":`,
		"no event":      `{"stream_sid":"MZ1"}`,
		"media no body": `{"event":"media"}`,
		"unknown event": `{"event":"transcript"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.True(t, IsProtocolError(err))
		})
	}
}
