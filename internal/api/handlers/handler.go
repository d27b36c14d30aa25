package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/lifecycle"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/speech"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/client"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/exotel"
)

// Dialer places outbound voicebot calls
type Dialer interface {
	DialVoicebot(ctx context.Context, req exotel.DialRequest) (*exotel.CallResponse, error)
}

// Claimer deduplicates carrier webhooks
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Auditor records and lists operator actions
type Auditor interface {
	Log(ctx context.Context, actor string, action audit.Action, resourceType, resourceID string, metadata map[string]interface{}) error
	List(ctx context.Context, f audit.Filter, page, limit int) ([]audit.Event, int64, error)
}

// RefreshTokens persists refresh tokens for operator sessions
type RefreshTokens interface {
	Store(ctx context.Context, subject, token string) error
	Verify(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// Dependency is one backing service reported on /health
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps wires the handler. Engines and guards are shared across calls;
// transcribers and synthesizers are built per stream for its sample rate.
type Deps struct {
	Config *env.Config
	Logger *zap.Logger
	// Context bounds every call; cancel it to end live calls on shutdown
	Context context.Context

	Chat     ai.ChatProvider
	STT      speech.STTEngine
	TTS      speech.TTSEngine
	STTGuard *client.Guard
	TTSGuard *client.Guard

	Call     callflow.Deps
	Resolver *session.Resolver
	Registry *session.Registry
	Hub      *lifecycle.Hub
	Reporter callflow.Reporter

	Customers session.CustomerLookup
	Outcomes  OutcomeCounter
	Dialer    Dialer
	Dedupe    Claimer
	Audit     Auditor
	Operator  auth.Operator
	Refresh   RefreshTokens

	Dependencies []Dependency
}

type Handler struct {
	cfg    *env.Config
	logger *zap.Logger
	deps   Deps
	opts   callflow.Options
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.STTGuard == nil {
		deps.STTGuard = client.NewDefaultGuard("stt")
	}
	if deps.TTSGuard == nil {
		deps.TTSGuard = client.NewDefaultGuard("tts")
	}
	if deps.Call.Logger == nil {
		deps.Call.Logger = deps.Logger
	}
	if deps.Call.Registry == nil {
		deps.Call.Registry = deps.Registry
	}
	if deps.Call.Reporter == nil {
		deps.Call.Reporter = deps.Reporter
	}
	if deps.Call.Resolver == nil && deps.Resolver != nil {
		deps.Call.Resolver = deps.Resolver
	}
	return &Handler{
		cfg:    deps.Config,
		logger: deps.Logger,
		deps:   deps,
		opts:   callflow.OptionsFromEnv(deps.Config),
	}
}

// audit logs an operator action; failures never fail the request
func (h *Handler) audit(ctx context.Context, actor string, action audit.Action, resourceType, resourceID string, meta map[string]interface{}) {
	if h.deps.Audit == nil {
		return
	}
	if err := h.deps.Audit.Log(ctx, actor, action, resourceType, resourceID, meta); err != nil {
		h.logger.Warn("Audit log failed", zap.String("action", string(action)), zap.Error(err))
	}
}
