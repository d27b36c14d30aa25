package callflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
)

type promptKind int

const (
	promptConfirm promptKind = iota
	promptGreeting
	promptReminder
)

// Machine is the per-call state machine. Handle is pure: it only updates
// the machine and returns effects for the runtime to execute, so every
// transition can be driven from a test without a socket.
type Machine struct {
	cfg   Config
	ident *language.Identifier
	flow  Flow
	state State
	p     *session.CallParticipant

	lang     language.Code
	locked   bool
	replayed bool

	attempts       int
	noInput        int
	remoteFailures int
	refusals       int
	turns          int

	asking         bool
	pendingRefusal bool
	transferred    bool
	stopped        bool
}

// NewMachine creates a machine in AwaitStart
func NewMachine(cfg Config, ident *language.Identifier) *Machine {
	cfg = cfg.withDefaults()
	if ident == nil {
		ident = language.NewIdentifier(cfg.DefaultLanguage)
	}
	return &Machine{
		cfg:   cfg,
		ident: ident,
		flow:  cfg.Flow,
		state: AwaitStart,
		lang:  cfg.DefaultLanguage,
	}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Flow() Flow { return m.flow }
func (m *Machine) Language() language.Code { return m.lang }
func (m *Machine) LanguageLocked() bool { return m.locked }
func (m *Machine) Refusals() int { return m.refusals }
func (m *Machine) Turns() int { return m.turns }
func (m *Machine) Transferred() bool { return m.transferred }
func (m *Machine) Participant() *session.CallParticipant { return m.p }

// Listening reports whether caller audio should be buffered now
func (m *Machine) Listening() bool {
	return !m.stopped && m.state != AwaitStart && !m.state.Terminal() && !m.asking
}

// SilenceGap is how long the caller must be quiet to end an utterance
func (m *Machine) SilenceGap() time.Duration {
	if m.state == ClaudeChat {
		return m.cfg.ChatSilence
	}
	return m.cfg.ConfirmSilence
}

// Handle applies ev and returns the effects to execute, in order
func (m *Machine) Handle(ev Event) []Effect {
	if m.stopped {
		return nil
	}

	switch e := ev.(type) {
	case Started:
		return m.start(e)
	case ResolveFailed:
		return m.resolveFailed(e)
	case Stopped:
		return m.stop()
	case WatchdogFired:
		return m.watchdog()
	}

	if m.state == AwaitStart || m.state.Terminal() {
		return nil
	}

	switch e := ev.(type) {
	case Heard:
		return m.heard(e)
	case NoInput:
		return m.silent()
	case SpeechFailed:
		return m.speechFailed()
	case Replied:
		return m.replied(e)
	}
	return nil
}

func (m *Machine) start(e Started) []Effect {
	if m.state != AwaitStart || e.Participant == nil {
		return nil
	}
	m.p = e.Participant
	if e.Flow != "" {
		m.flow = e.Flow
	}
	m.lang = m.p.Language(m.cfg.DefaultLanguage)

	if m.flow == FlowScripted {
		m.state = WaitingLangDetect
		return []Effect{m.sayLine(m.prompt(promptGreeting)), Report{Status: StatusGreeting}}
	}
	m.state = WaitingConfirmation
	return []Effect{m.sayLine(m.prompt(promptConfirm)), Report{Status: StatusConfirming}}
}

func (m *Machine) resolveFailed(e ResolveFailed) []Effect {
	if m.state != AwaitStart {
		return nil
	}
	m.state = Failed
	msg := session.ErrNotFound.Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return []Effect{Fail{Message: msg}, Report{Status: StatusFailed, Message: msg, Final: true}}
}

func (m *Machine) stop() []Effect {
	m.stopped = true
	m.asking = false
	effects := []Effect{CancelSpeech{}}
	if !m.state.Terminal() {
		effects = append(effects, Report{Status: StatusDisconnected, Final: true})
	}
	return effects
}

func (m *Machine) watchdog() []Effect {
	if m.state == AwaitStart || m.state.Terminal() {
		return nil
	}
	m.asking = false
	m.pendingRefusal = false
	m.state = GoodbyeSent
	return []Effect{
		CancelSpeech{},
		m.sayLine(m.lines().WatchdogClose),
		m.hangup(),
		Report{Status: StatusTimeout, Final: true},
	}
}

func (m *Machine) heard(e Heard) []Effect {
	if m.asking {
		return nil
	}
	if e.Err != nil {
		return m.remoteFailure()
	}
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return m.silent()
	}

	m.noInput = 0
	if m.state != ClaudeChat {
		m.remoteFailures = 0
	}
	switched := m.detect(text)

	switch m.state {
	case WaitingConfirmation:
		return m.confirm(text, switched)
	case ClaudeChat:
		m.pendingRefusal = IsRefusal(text)
		m.asking = true
		return []Effect{AskPolicy{Utterance: text, Lang: m.lang}}
	case WaitingLangDetect:
		m.state = WaitingAgentResponse
		m.attempts = 0
		return []Effect{m.sayLine(m.prompt(promptReminder)), Report{Status: StatusReminder}}
	case WaitingAgentResponse:
		return m.agentResponse(text, switched)
	}
	return nil
}

// detect identifies the language of the first utterance with real
// evidence and locks it. It reports whether the call language changed.
func (m *Machine) detect(text string) bool {
	if m.locked {
		return false
	}
	r := m.ident.Identify(text, m.p.State)
	if r.Source == language.SourceResident || r.Source == language.SourceDefault {
		return false
	}
	m.locked = true
	if r.Lang == m.lang {
		return false
	}
	m.lang = r.Lang
	return true
}

func (m *Machine) confirm(text string, switched bool) []Effect {
	lines := m.lines()
	switch ClassifyYesNo(text) {
	case Affirmative:
		m.state = ClaudeChat
		m.attempts = 0
		m.asking = true
		return []Effect{
			m.sayLine(lines.Connecting),
			StartPolicy{Lang: m.lang},
			AskPolicy{Utterance: text, Lang: m.lang},
			Report{Status: StatusChatting},
		}
	case Negative:
		m.state = GoodbyeSent
		return []Effect{m.sayLine(lines.WrongPerson), m.hangup(), Report{Status: StatusWrongPerson, Final: true}}
	}
	return m.unclear(switched, promptConfirm)
}

func (m *Machine) agentResponse(text string, switched bool) []Effect {
	lines := m.lines()
	switch ClassifyYesNo(text) {
	case Affirmative:
		m.state = TransferringToAgent
		effects := []Effect{m.sayLine(lines.Transferring)}
		effects = append(effects, m.transfer()...)
		return append(effects, m.hangup(), Report{Status: StatusTransferred, Final: true})
	case Negative:
		m.state = GoodbyeDecline
		return []Effect{m.sayLine(lines.DeclineGoodbye), m.hangup(), Report{Status: StatusDeclined, Final: true}}
	}
	return m.unclear(switched, promptReminder)
}

// unclear answers a reply that was neither yes nor no. It uses up an
// attempt either way; the first reply in a newly detected language hears
// the prompt again in that language instead of the unclear prefix.
func (m *Machine) unclear(switched bool, kind promptKind) []Effect {
	if !switched || m.replayed || !HasLines(m.lang) {
		return m.retry(m.lines().Unclear, kind)
	}
	m.replayed = true
	return m.retry("", kind)
}

// retry re-prompts after an unclear or missing answer, closing the call
// on the last attempt.
func (m *Machine) retry(prefix string, kind promptKind) []Effect {
	m.attempts++
	if m.attempts < m.cfg.MaxAttempts {
		return []Effect{m.sayLine(prefix + m.prompt(kind))}
	}
	if m.flow == FlowScripted {
		m.state = GoodbyeDecline
	} else {
		m.state = GoodbyeSent
	}
	return []Effect{m.sayLine(m.lines().NoResponseClose), m.hangup(), Report{Status: StatusNoResponse, Final: true}}
}

func (m *Machine) silent() []Effect {
	if m.asking {
		return nil
	}
	lines := m.lines()
	switch m.state {
	case WaitingConfirmation:
		return m.retry(lines.StillThere, promptConfirm)
	case WaitingLangDetect:
		return m.retry(lines.StillThere, promptGreeting)
	case WaitingAgentResponse:
		return m.retry(lines.StillThere, promptReminder)
	case ClaudeChat:
		m.noInput++
		if m.noInput < m.cfg.MaxNoInput {
			return []Effect{m.sayLine(strings.TrimSpace(lines.StillThere))}
		}
		m.state = WaitingDisconnect
		return []Effect{m.sayLine(lines.NoResponseClose), m.hangup(), Report{Status: StatusNoResponse, Final: true}}
	}
	return nil
}

// remoteFailure handles a failed speech or chat call. The caller hears an
// apology and nothing else advances until failures run out.
func (m *Machine) remoteFailure() []Effect {
	m.asking = false
	m.pendingRefusal = false
	m.remoteFailures++
	lines := m.lines()
	if m.remoteFailures < m.cfg.MaxRemoteFailures {
		return []Effect{m.sayLine(lines.Apology)}
	}

	const msg = "remote services unavailable"
	switch {
	case m.state == ClaudeChat:
		m.state = WaitingDisconnect
		effects := []Effect{m.sayLine(lines.Transferring)}
		effects = append(effects, m.transfer()...)
		return append(effects, m.hangup(), Report{Status: StatusTransferred, Message: msg, Final: true})
	case m.flow == FlowScripted:
		m.state = GoodbyeDecline
	default:
		m.state = GoodbyeSent
	}
	return []Effect{m.sayLine(lines.NoResponseClose), m.hangup(), Report{Status: StatusFailed, Message: msg, Final: true}}
}

// speechFailed treats a line lost to synthesis like any other remote
// failure. While a policy reply is in flight only the failure is counted;
// the reply will speak next.
func (m *Machine) speechFailed() []Effect {
	if m.asking && m.remoteFailures+1 < m.cfg.MaxRemoteFailures {
		m.remoteFailures++
		return nil
	}
	return m.remoteFailure()
}

func (m *Machine) replied(e Replied) []Effect {
	if m.state != ClaudeChat || !m.asking {
		return nil
	}
	m.asking = false
	if e.Err != nil {
		return m.remoteFailure()
	}

	m.remoteFailures = 0
	if m.pendingRefusal {
		m.refusals++
	}
	m.pendingRefusal = false
	m.turns++

	// Escalation is decided by the refusal count alone; the model's own
	// escalate tag is only advisory.
	status := e.Reply.Status
	switch {
	case m.refusals >= m.cfg.RefusalThreshold:
		status = dialogue.StatusEscalate
	case status == dialogue.StatusEscalate:
		status = dialogue.StatusContinue
	}

	switch status {
	case dialogue.StatusEscalate:
		m.state = WaitingDisconnect
		effects := []Effect{m.sayLine(m.lines().Escalation)}
		effects = append(effects, m.transfer()...)
		msg := fmt.Sprintf("%d refusals in %d turns", m.refusals, m.turns)
		if m.turns >= m.cfg.MaxTurns {
			msg += ", turn cap reached"
		}
		return append(effects, m.hangup(), Report{Status: StatusEscalated, Message: msg, Final: true})
	case dialogue.StatusPromise:
		m.state = WaitingDisconnect
		effects := []Effect{m.sayReply(e.Reply.Text)}
		effects = append(effects, m.transfer()...)
		return append(effects, m.hangup(), Report{Status: StatusPromise, Message: e.Reply.Text, Final: true})
	}
	return []Effect{m.sayReply(e.Reply.Text)}
}

func (m *Machine) transfer() []Effect {
	if m.transferred {
		return nil
	}
	m.transferred = true
	return []Effect{Transfer{}}
}

func (m *Machine) hangup() Effect {
	return Hangup{Grace: m.cfg.HangupGrace}
}

func (m *Machine) lines() Lines {
	return LinesFor(m.lang)
}

func (m *Machine) prompt(kind promptKind) string {
	lines := m.lines()
	switch kind {
	case promptGreeting:
		return lines.GreetingPrompt(m.p)
	case promptReminder:
		return lines.ReminderPrompt(m.p)
	}
	return lines.ConfirmPrompt(m.p)
}

// sayLine speaks catalog text, which is English when the call language
// has no catalog of its own.
func (m *Machine) sayLine(text string) Say {
	lang := m.lang
	if !HasLines(lang) {
		lang = language.English
	}
	return Say{Text: text, Lang: lang}
}

// sayReply speaks model text, already in the call language
func (m *Machine) sayReply(text string) Say {
	return Say{Text: text, Lang: m.lang}
}
