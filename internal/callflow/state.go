// Package callflow drives one collections call: a pure state machine that
// turns caller events into effects, and the runtime that executes those
// effects against the media stream.
package callflow

import (
	"fmt"
	"time"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
)

// Flow selects the conversation script
type Flow string

const (
	FlowChat     Flow = "chat"
	FlowScripted Flow = "scripted"
)

// ParseFlow accepts "chat" or "scripted"
func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case FlowChat, FlowScripted:
		return Flow(s), nil
	}
	return "", fmt.Errorf("unknown call flow %q", s)
}

// State is a call's position in its flow
type State string

const (
	AwaitStart           State = "AwaitStart"
	WaitingConfirmation  State = "WaitingConfirmation"
	ClaudeChat           State = "ClaudeChat"
	WaitingDisconnect    State = "WaitingDisconnect"
	GoodbyeSent          State = "GoodbyeSent"
	WaitingLangDetect    State = "WaitingLangDetect"
	WaitingAgentResponse State = "WaitingAgentResponse"
	TransferringToAgent  State = "TransferringToAgent"
	GoodbyeDecline       State = "GoodbyeDecline"
	Failed               State = "Failed"
)

// Terminal states only wait for the line to drop
func (s State) Terminal() bool {
	switch s {
	case WaitingDisconnect, GoodbyeSent, TransferringToAgent, GoodbyeDecline, Failed:
		return true
	}
	return false
}

// Lifecycle statuses reported on transitions
const (
	StatusConfirming   = "confirming"
	StatusGreeting     = "greeting"
	StatusChatting     = "in-conversation"
	StatusReminder     = "reminder"
	StatusPromise      = "promise-to-pay"
	StatusEscalated    = "escalated"
	StatusTransferred  = "transferred"
	StatusDeclined     = "declined"
	StatusWrongPerson  = "wrong-person"
	StatusNoResponse   = "no-response"
	StatusTimeout      = "timeout"
	StatusFailed       = "failed"
	StatusDisconnected = "disconnected"
)

// Config holds the call tuning knobs
type Config struct {
	Flow              Flow
	DefaultLanguage   language.Code
	ConfirmSilence    time.Duration
	ChatSilence       time.Duration
	MaxAttempts       int
	RefusalThreshold  int
	MaxTurns          int
	MaxRemoteFailures int
	MaxNoInput        int
	HangupGrace       time.Duration
}

// DefaultConfig returns the production tuning
func DefaultConfig() Config {
	return Config{
		Flow:              FlowChat,
		DefaultLanguage:   language.English,
		ConfirmSilence:    time.Second,
		ChatSilence:       3 * time.Second,
		MaxAttempts:       3,
		RefusalThreshold:  5,
		MaxTurns:          6,
		MaxRemoteFailures: 3,
		MaxNoInput:        3,
		HangupGrace:       2500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Flow == "" {
		c.Flow = d.Flow
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	if c.ConfirmSilence <= 0 {
		c.ConfirmSilence = d.ConfirmSilence
	}
	if c.ChatSilence <= 0 {
		c.ChatSilence = d.ChatSilence
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RefusalThreshold <= 0 {
		c.RefusalThreshold = d.RefusalThreshold
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = d.MaxTurns
	}
	if c.MaxRemoteFailures <= 0 {
		c.MaxRemoteFailures = d.MaxRemoteFailures
	}
	if c.MaxNoInput <= 0 {
		c.MaxNoInput = d.MaxNoInput
	}
	if c.HangupGrace < 0 {
		c.HangupGrace = 0
	}
	return c
}

// Event is something that happened on the call
type Event interface{ event() }

// Started carries the resolved customer. An empty Flow uses the configured one.
type Started struct {
	Participant *session.CallParticipant
	Flow        Flow
}

// ResolveFailed means no customer could be found for the stream
type ResolveFailed struct{ Err error }

// Heard is a finished transcription. Err is a speech-to-text failure.
type Heard struct {
	Text string
	Err  error
}

// SpeechFailed means a line could not be synthesized and the caller
// never heard it
type SpeechFailed struct{ Err error }

// NoInput fires when the caller stayed silent after a prompt
type NoInput struct{}

// Replied is the dialogue policy's answer to the last AskPolicy
type Replied struct {
	Reply dialogue.Reply
	Err   error
}

// WatchdogFired means the call has run too long
type WatchdogFired struct{}

// Stopped means the line dropped or the call was cancelled
type Stopped struct{}

func (Started) event()       {}
func (ResolveFailed) event() {}
func (Heard) event()         {}
func (SpeechFailed) event()  {}
func (NoInput) event()       {}
func (Replied) event()       {}
func (WatchdogFired) event() {}
func (Stopped) event()       {}

// Effect is something the runtime must do
type Effect interface{ effect() }

// Say queues text for synthesis and playback, in order
type Say struct {
	Text string
	Lang language.Code
}

// StartPolicy creates the dialogue policy for the call
type StartPolicy struct{ Lang language.Code }

// AskPolicy sends the caller's utterance to the dialogue policy
type AskPolicy struct {
	Utterance string
	Lang      language.Code
}

// Transfer bridges the caller to a human agent
type Transfer struct{}

// Fail sends an error event and drops the stream at once
type Fail struct{ Message string }

// Hangup closes the stream Grace after queued speech drains
type Hangup struct{ Grace time.Duration }

// CancelSpeech stops playback and discards queued speech
type CancelSpeech struct{}

// Report publishes a lifecycle transition
type Report struct {
	Status  string
	Message string
	Final   bool
}

func (Say) effect()          {}
func (StartPolicy) effect()  {}
func (AskPolicy) effect()    {}
func (Transfer) effect()     {}
func (Fail) effect()         {}
func (Hangup) effect()       {}
func (CancelSpeech) effect() {}
func (Report) effect()       {}
