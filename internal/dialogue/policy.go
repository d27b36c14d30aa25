// Package dialogue runs the free-form part of a collections call against a
// chat model: it keeps the turn history, builds the persona and turns raw
// model output into what to say and what to do next.
package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/otel"
)

// ErrEmptyReply is returned when the model answers with nothing speakable
var ErrEmptyReply = errors.New("model returned an empty reply")

// Role is who spoke a turn
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Turn is one entry of the conversation history
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Reply is the agent's next line and what it means for the call
type Reply struct {
	Text   string
	Status Status
}

// Result is delivered by Go
type Result struct {
	Reply Reply
	Err   error
}

// Options tunes model requests
type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Policy is the conversation with one customer. Sends are serialized;
// history alternates customer, agent, customer, ...
type Policy struct {
	chat        ai.ChatProvider
	participant *session.CallParticipant
	opts        Options
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	lang    language.Code
	history []Turn
}

func NewPolicy(chat ai.ChatProvider, p *session.CallParticipant, lang language.Code, opts Options, logger *zap.Logger) *Policy {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.4
	}
	return &Policy{
		chat:        chat,
		participant: p,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
		lang:        lang,
	}
}

// SetLanguage switches the persona language for subsequent turns
func (p *Policy) SetLanguage(lang language.Code) {
	p.mu.Lock()
	p.lang = lang
	p.mu.Unlock()
}

// History returns a copy of the turns so far
func (p *Policy) History() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Turn, len(p.history))
	copy(out, p.history)
	return out
}

// Restore replaces the history, e.g. to replay a recorded conversation
func (p *Policy) Restore(turns []Turn) {
	p.mu.Lock()
	p.history = append([]Turn(nil), turns...)
	p.mu.Unlock()
}

// Send records the customer's utterance, asks the model with the full
// history and records the agent's reply. On failure the customer turn is
// rolled back so a retry does not break alternation.
func (p *Policy) Send(ctx context.Context, utterance string) (Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	utterance = strings.TrimSpace(utterance)
	p.history = append(p.history, Turn{Role: RoleCustomer, Text: utterance, At: p.now()})

	req := &ai.ChatRequest{
		System:      Persona(p.participant, p.lang),
		Messages:    p.messages(),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	var raw string
	err := otel.Trace(ctx, "llm.chat", func(ctx context.Context) error {
		var err error
		raw, err = p.chat.Chat(ctx, req)
		return err
	}, attribute.Int("dialogue.turns", len(p.history)), attribute.String("dialogue.provider", p.chat.Name()))
	if err == nil {
		if text, _ := ParseStatus(raw); text == "" {
			err = ErrEmptyReply
		}
	}
	if err != nil {
		p.history = p.history[:len(p.history)-1]
		return Reply{}, err
	}

	text, status := ParseStatus(raw)
	p.history = append(p.history, Turn{Role: RoleAgent, Text: text, At: p.now()})

	p.logger.Debug("Dialogue turn",
		zap.Int("turns", len(p.history)),
		zap.String("status", string(status)),
	)
	return Reply{Text: text, Status: status}, nil
}

// Go runs Send on its own goroutine so the call loop keeps its timers.
// The channel receives exactly one result.
func (p *Policy) Go(ctx context.Context, utterance string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		reply, err := p.Send(ctx, utterance)
		out <- Result{Reply: reply, Err: err}
	}()
	return out
}

func (p *Policy) messages() []ai.ChatMessage {
	msgs := make([]ai.ChatMessage, 0, len(p.history))
	for _, t := range p.history {
		role := ai.RoleUser
		if t.Role == RoleAgent {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.ChatMessage{Role: role, Content: t.Text})
	}
	return msgs
}
