package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/api/handlers"
	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/lifecycle"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/audio"
	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/exotel"
	"github.com/troikatech/collections-agent/pkg/webhook"
)

const (
	testSecret  = "test-jwt-secret"
	testIssuer  = "test-issuer"
	hookSecret  = "hook-secret"
	knownPhone  = "+919876543210"
	operatorPwd = "s3cret-pass"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]*session.CallParticipant
}

func (m *memCache) Get(_ context.Context, key string) (*session.CallParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memCache) Set(_ context.Context, key string, p *session.CallParticipant, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = p
	return nil
}

type fakeCustomers struct{}

func (fakeCustomers) FindByPhone(_ context.Context, variants []string) (*session.CallParticipant, error) {
	for _, v := range variants {
		if v == knownPhone {
			return &session.CallParticipant{Name: "Ravi Kumar", LoanRef: "LN00451234", OutstandingAmount: 5000, Phone: knownPhone}, nil
		}
	}
	return nil, nil
}

type fakeDialer struct {
	reqs []exotel.DialRequest
	err  error
}

func (d *fakeDialer) DialVoicebot(_ context.Context, req exotel.DialRequest) (*exotel.CallResponse, error) {
	d.reqs = append(d.reqs, req)
	if d.err != nil {
		return nil, d.err
	}
	resp := &exotel.CallResponse{}
	resp.Call.Sid = "CA123"
	resp.Call.Status = "in-progress"
	return resp, nil
}

type fakeClaimer struct {
	seen map[string]bool
}

func (f *fakeClaimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeReporter struct {
	mu  sync.Mutex
	got []lifecycle.Transition
}

func (r *fakeReporter) Report(t lifecycle.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, t)
}

type fakeAuditor struct {
	actions    []audit.Action
	events     []audit.Event
	lastFilter audit.Filter
}

func (a *fakeAuditor) Log(_ context.Context, actor string, action audit.Action, resourceType, resourceID string, _ map[string]interface{}) error {
	a.actions = append(a.actions, action)
	a.events = append(a.events, audit.Event{Actor: actor, Action: action, ResourceType: resourceType, ResourceID: resourceID, CreatedAt: time.Now()})
	return nil
}

func (a *fakeAuditor) List(_ context.Context, f audit.Filter, _, _ int) ([]audit.Event, int64, error) {
	a.lastFilter = f
	var out []audit.Event
	for _, e := range a.events {
		if f.Action == "" || e.Action == f.Action {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

type fakeTTS struct {
	texts []string
}

func (f *fakeTTS) SynthesizePCM(_ context.Context, text, _ string) ([]byte, int, error) {
	f.texts = append(f.texts, text)
	return make([]byte, 3200), 16000, nil
}

func (f *fakeTTS) Name() string { return "fake" }
func (f *fakeTTS) IsAvailable() bool { return true }

type fakeSTT struct {
	text string
}

func (f fakeSTT) SpeechToText(_ context.Context, req *ai.STTRequest) (*ai.STTResponse, error) {
	return &ai.STTResponse{Text: f.text, Language: "hindi"}, nil
}

func (fakeSTT) IsAvailable() bool { return true }

type fixture struct {
	router   *gin.Engine
	cache    *memCache
	dialer   *fakeDialer
	reporter *fakeReporter
	auditor  *fakeAuditor
	registry *session.Registry
	tts      *fakeTTS
	chat     *fakeChat
}

type fakeChat struct {
	mu   sync.Mutex
	msgs int
}

func (f *fakeChat) Chat(_ context.Context, req *ai.ChatRequest) (string, error) {
	f.mu.Lock()
	f.msgs = len(req.Messages)
	f.mu.Unlock()
	return "Theek hai Ravi ji, kal tak payment kar dijiye. [promise]", nil
}

func (f *fakeChat) IsAvailable() bool { return true }
func (f *fakeChat) Name() string { return "fake" }

type fakeOutcomes map[string]int64

func (f fakeOutcomes) OutcomeCounts(context.Context, time.Time) (map[string]int64, error) {
	return f, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := auth.HashPassword(operatorPwd)
	require.NoError(t, err)

	cfg := &env.Config{
		AppEnv:              "test",
		PublicBaseURL:       "https://voice.example.com",
		JWTSecret:           testSecret,
		JWTIssuer:           testIssuer,
		AccessTTLMin:        15,
		ExotelWebhookSecret: hookSecret,
		DefaultLanguage:     "en",
	}
	f := &fixture{
		cache:    &memCache{data: map[string]*session.CallParticipant{}},
		dialer:   &fakeDialer{},
		reporter: &fakeReporter{},
		auditor:  &fakeAuditor{},
		registry: session.NewRegistry(),
		tts:      &fakeTTS{},
		chat:     &fakeChat{},
	}
	outcomes := fakeOutcomes{
		callflow.StatusPromise:     3,
		callflow.StatusDeclined:    1,
		callflow.StatusTransferred: 2,
		callflow.StatusNoResponse:  4,
	}
	h := handlers.NewHandler(handlers.Deps{
		Config:    cfg,
		Logger:    zap.NewNop(),
		Chat:      f.chat,
		STT:       fakeSTT{text: "haan ji, kal paise dunga"},
		TTS:       f.tts,
		Resolver:  session.NewResolver(f.cache, fakeCustomers{}, time.Hour, zap.NewNop()),
		Registry:  f.registry,
		Reporter:  f.reporter,
		Customers: fakeCustomers{},
		Outcomes:  outcomes,
		Dialer:    f.dialer,
		Dedupe:    &fakeClaimer{seen: map[string]bool{}},
		Audit:     f.auditor,
		Operator:  auth.Operator{User: "ops", PasswordHash: hash},
	})
	f.router = NewRouter(cfg, h, nil, zap.NewNop())
	return f
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := auth.GenerateAccessToken("ops", role, testSecret, testIssuer, 15)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, bearer string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Services["api"])
	assert.Equal(t, "unavailable", body.Services["chat"])
	assert.Equal(t, "degraded", body.Status)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(jsonRequest(http.MethodPost, "/auth/token", "", map[string]string{"user": "ops", "password": operatorPwd}))
	require.Equal(t, http.StatusOK, w.Code)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	claims, err := auth.ParseToken(pair.AccessToken, testSecret, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Empty(t, pair.RefreshToken)
	assert.Contains(t, f.auditor.actions, audit.ActionLogin)

	w = f.do(jsonRequest(http.MethodPost, "/auth/token", "", map[string]string{"user": "ops", "password": "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateCall_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	w := f.do(jsonRequest(http.MethodPost, "/api/calls", "", map[string]string{"phone": knownPhone}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(jsonRequest(http.MethodPost, "/api/calls", token(t, auth.RoleViewer), map[string]string{"phone": knownPhone}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.dialer.reqs)
}

func TestCreateCall_Dials(t *testing.T) {
	f := newFixture(t)

	w := f.do(jsonRequest(http.MethodPost, "/api/calls", token(t, auth.RoleOperator), map[string]string{
		"phone":    "98765 43210",
		"language": "hindi",
	}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp handlers.CreateCallResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TransientID)
	assert.Equal(t, "CA123", resp.CallSid)

	require.Len(t, f.dialer.reqs, 1)
	req := f.dialer.reqs[0]
	assert.Equal(t, knownPhone, req.Customer)
	assert.Equal(t, resp.TransientID, req.CustomField["transient_id"])
	assert.Equal(t, "https://voice.example.com/webhooks/exotel/status", req.CallbackURL)

	byTransient := f.cache.data[session.TransientKey(resp.TransientID)]
	require.NotNil(t, byTransient)
	assert.Equal(t, "hi", byTransient.PreferredLanguage)
	assert.NotNil(t, f.cache.data[session.OfficialKey("CA123")])
	assert.Contains(t, f.auditor.actions, audit.ActionDial)
}

func TestCreateCall_Errors(t *testing.T) {
	f := newFixture(t)
	tok := token(t, auth.RoleOperator)

	w := f.do(jsonRequest(http.MethodPost, "/api/calls", tok, map[string]string{"phone": "+919000000000"}))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(jsonRequest(http.MethodPost, "/api/calls", tok, map[string]string{"phone": "12"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(jsonRequest(http.MethodPost, "/api/calls", tok, map[string]string{"phone": knownPhone, "language": "klingon"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.dialer.err = exotel.ErrNotConfigured
	w = f.do(jsonRequest(http.MethodPost, "/api/calls", tok, map[string]string{"phone": knownPhone}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func statusForm(sid, status string) url.Values {
	return url.Values{
		"CallSid":     {sid},
		"Status":      {status},
		"CustomField": {`{"transient_id":"t-1"}`},
	}
}

func signedRequest(form url.Values, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/exotel/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(secret, form))
	return req
}

func TestStatusWebhook(t *testing.T) {
	f := newFixture(t)
	form := statusForm("CA777", exotel.StatusNoAnswer)

	w := f.do(signedRequest(form, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.reporter.got)

	w = f.do(signedRequest(form, hookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.reporter.got, 1)
	got := f.reporter.got[0]
	assert.Equal(t, "CA777", got.CallID)
	assert.Equal(t, callflow.StatusNoResponse, got.Status)
	assert.True(t, got.Final)

	w = f.do(signedRequest(form, hookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")
	assert.Len(t, f.reporter.got, 1)
}

func TestStatusWebhook_CompletedNotReported(t *testing.T) {
	f := newFixture(t)

	w := f.do(signedRequest(statusForm("CA778", exotel.StatusCompleted), hookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.reporter.got)
	assert.Contains(t, f.auditor.actions, audit.ActionWebhook)
}

func TestVoicebotInit(t *testing.T) {
	f := newFixture(t)

	q := url.Values{
		"CallSid":     {"CA900"},
		"From":        {knownPhone},
		"CustomField": {`{"transient_id":"abc-123","flow":"reminder"}`},
	}
	w := f.do(httptest.NewRequest(http.MethodGet, "/voicebot/init?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.VoicebotWebSocketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	u, err := url.Parse(resp.WebSocketURL)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "voice.example.com", u.Host)
	assert.Equal(t, "/voicebot/ws", u.Path)
	assert.Equal(t, "CA900", u.Query().Get("call_sid"))
	assert.Equal(t, "abc-123", u.Query().Get("transient_id"))

	w = f.do(httptest.NewRequest(http.MethodGet, "/voicebot/init", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLiveCallsAndHangup(t *testing.T) {
	f := newFixture(t)
	tok := token(t, auth.RoleOperator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.registry.Add(session.Entry{CallID: "CA1", StreamSID: "ST1", Name: "Ravi", StartedAt: time.Now()}, cancel)

	req := httptest.NewRequest(http.MethodGet, "/api/calls/live", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data  []session.Entry `json:"data"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "CA1", page.Data[0].CallID)

	w = f.do(jsonRequest(http.MethodPost, "/api/calls/CA404/hangup", tok, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(jsonRequest(http.MethodPost, "/api/calls/CA1/hangup", tok, nil))
	require.Equal(t, http.StatusOK, w.Code)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("hangup did not cancel the call")
	}
	assert.Contains(t, f.auditor.actions, audit.ActionHangup)
}

func TestListAuditLogs(t *testing.T) {
	f := newFixture(t)
	tok := token(t, auth.RoleOperator)

	w := f.do(jsonRequest(http.MethodPost, "/api/calls", tok, map[string]string{"phone": knownPhone}))
	require.Equal(t, http.StatusAccepted, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?action=dial", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Data  []audit.Event `json:"data"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, audit.ActionDial, page.Data[0].Action)
	assert.Equal(t, "ops", page.Data[0].Actor)
	assert.False(t, f.auditor.lastFilter.Since.IsZero())

	req = httptest.NewRequest(http.MethodGet, "/api/audit?start_date=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleViewer))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestPreviewSpeech(t *testing.T) {
	f := newFixture(t)
	tok := token(t, auth.RoleOperator)

	w := f.do(jsonRequest(http.MethodPost, "/api/speech/preview", tok, map[string]string{"language": "en", "prompt": "greeting"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))

	pcm, rate, err := audio.DecodeWAV(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultSampleRate, rate)
	assert.Equal(t, 1600, len(pcm))
	require.Len(t, f.tts.texts, 1)
	assert.Contains(t, f.tts.texts[0], "Ravi")

	w = f.do(jsonRequest(http.MethodPost, "/api/speech/preview", tok, map[string]string{"prompt": "farewell"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribeSpeech(t *testing.T) {
	f := newFixture(t)

	wav, err := audio.EncodeWAV(make([]byte, 16000), 8000)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "reply.wav")
	require.NoError(t, err)
	_, err = part.Write(wav)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/speech/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleViewer))
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.TranscribeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "haan ji, kal paise dunga", resp.Text)
	assert.Equal(t, "hi", resp.Language)
	assert.Equal(t, "keyword", resp.Source)
}

func TestCallOutcomes(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calls/outcomes?days=7", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleViewer))
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var got handlers.OutcomeSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 7, got.PeriodDays)
	assert.EqualValues(t, 10, got.Total)
	assert.EqualValues(t, 3, got.Promises)
	assert.EqualValues(t, 2, got.Handoffs)
	assert.EqualValues(t, 4, got.Unreached)
	assert.InDelta(t, 0.5, got.PromiseRate, 1e-9)

	req = httptest.NewRequest(http.MethodGet, "/api/calls/outcomes?days=365", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleViewer))
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}

func TestPreviewDialogue(t *testing.T) {
	f := newFixture(t)
	tok := token(t, auth.RoleOperator)

	w := f.do(jsonRequest(http.MethodPost, "/api/dialogue/preview", tok, handlers.DialogueRequest{
		Utterance: "kal de dunga",
		Language:  "hindi",
		History: []handlers.DialogueTurn{
			{Role: "customer", Text: "haan bolo"},
			{Role: "agent", Text: "Aapka EMI baaki hai."},
		},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got handlers.DialogueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "promise", got.Status)
	assert.Equal(t, "Theek hai Ravi ji, kal tak payment kar dijiye.", got.Reply)
	assert.Equal(t, 3, f.chat.msgs)

	w = f.do(jsonRequest(http.MethodPost, "/api/dialogue/preview", tok, handlers.DialogueRequest{
		Utterance: "kal de dunga",
		History:   []handlers.DialogueTurn{{Role: "agent", Text: "hello"}},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(jsonRequest(http.MethodPost, "/api/dialogue/preview", token(t, auth.RoleViewer), handlers.DialogueRequest{Utterance: "hi"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
