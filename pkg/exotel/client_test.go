package exotel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("api", "acct", "key", "token", "08047000000", "1234", zap.NewNop(), WithBaseURL(srv.URL))
}

func TestNormalizeSubdomain(t *testing.T) {
	assert.Equal(t, "api", normalizeSubdomain("api.exotel.com"))
	assert.Equal(t, "api.in", normalizeSubdomain("api.in"))
}

func TestDialVoicebot(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/Accounts/acct/Calls/connect.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"Call":{"Sid":"CA1","Status":"in-progress"}}`))
	})

	resp, err := c.DialVoicebot(context.Background(), DialRequest{
		Customer:    "+919812345678",
		CustomField: map[string]string{"transient_id": "t-1"},
		CallbackURL: "https://example.com/exotel/status",
	})
	require.NoError(t, err)
	assert.Equal(t, "CA1", resp.Call.Sid)
	assert.Equal(t, "+919812345678", form.Get("From"))
	assert.Equal(t, "08047000000", form.Get("CallerId"))
	assert.Equal(t, "http://my.exotel.com/acct/exoml/start_voice/1234", form.Get("Url"))
	assert.Equal(t, "https://example.com/exotel/status", form.Get("StatusCallback"))

	var cf map[string]string
	require.NoError(t, json.Unmarshal([]byte(form.Get("CustomField")), &cf))
	assert.Equal(t, "t-1", cf["transient_id"])
}

func TestTransferToAgent(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.TransferToAgent(context.Background(), "+919812345678", "+911140000000"))
	assert.Equal(t, "+919812345678", form.Get("From"))
	assert.Equal(t, "+911140000000", form.Get("To"))
	assert.Equal(t, "08047000000", form.Get("CallerId"))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad number", http.StatusBadRequest)
	})

	err := c.TransferToAgent(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)
}

func TestGetCallStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/Accounts/acct/Calls/CA9.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"Call":{"Sid":"CA9","Status":"completed","Duration":"42"}}`))
	})

	resp, err := c.GetCallStatus(context.Background(), "CA9")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Call.Status)
	assert.Equal(t, "42", resp.Call.Duration)
}

func TestUnconfigured(t *testing.T) {
	c := NewClient("api", "", "", "", "", "", zap.NewNop())
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.TransferToAgent(context.Background(), "a", "b"), ErrNotConfigured)
	_, err := c.DialVoicebot(context.Background(), DialRequest{Customer: "a"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseStatusCallback(t *testing.T) {
	form := url.Values{
		"CallSid":              {"CA1"},
		"Status":               {"No-Answer"},
		"ConversationDuration": {"0"},
		"CustomField":          {`{"transient_id":"t-1"}`},
	}
	sc, err := ParseStatusCallback(form)
	require.NoError(t, err)
	assert.Equal(t, "CA1", sc.CallSid)
	assert.Equal(t, StatusNoAnswer, sc.Status)
	assert.False(t, sc.Answered())
	assert.Equal(t, "t-1", sc.CustomField["transient_id"])

	_, err = ParseStatusCallback(url.Values{"Status": {"completed"}})
	assert.Error(t, err)
}
