package callflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troikatech/collections-agent/internal/dialogue"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/session"
)

func vijay() *session.CallParticipant {
	return &session.CallParticipant{
		Name:              "Vijay",
		LoanRef:           "LOAN123",
		OutstandingAmount: 4500,
		DueDate:           time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC),
		Phone:             "+919876543210",
	}
}

func started(t *testing.T, cfg Config, p *session.CallParticipant) (*Machine, []Effect) {
	t.Helper()
	m := NewMachine(cfg, language.NewIdentifier(language.English))
	effects := m.Handle(Started{Participant: p})
	require.NotEmpty(t, effects)
	return m, effects
}

// chatting drives a machine through confirmation into ClaudeChat with the
// first policy reply delivered.
func chatting(t *testing.T) *Machine {
	t.Helper()
	m, _ := started(t, DefaultConfig(), vijay())
	m.Handle(Heard{Text: "yes"})
	m.Handle(Replied{Reply: dialogue.Reply{Text: "Your EMI of Rs 4,500 is due. When can you pay?", Status: dialogue.StatusContinue}})
	require.Equal(t, ClaudeChat, m.State())
	return m
}

func says(effects []Effect) []Say {
	var out []Say
	for _, e := range effects {
		if s, ok := e.(Say); ok {
			out = append(out, s)
		}
	}
	return out
}

func has[T Effect](effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func count[T Effect](effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func finalReport(effects []Effect) (Report, bool) {
	for _, e := range effects {
		if r, ok := e.(Report); ok && r.Final {
			return r, true
		}
	}
	return Report{}, false
}

func TestMachine_ConfirmationPromptNamesCustomer(t *testing.T) {
	m, effects := started(t, DefaultConfig(), vijay())

	assert.Equal(t, WaitingConfirmation, m.State())
	s := says(effects)
	require.Len(t, s, 1)
	assert.Contains(t, s[0].Text, "Vijay")
	assert.Contains(t, s[0].Text, "0123")
	assert.Equal(t, language.English, s[0].Lang)
	assert.Equal(t, time.Second, m.SilenceGap())
	assert.True(t, m.Listening())
}

func TestMachine_PreferredLanguagePrompt(t *testing.T) {
	p := vijay()
	p.PreferredLanguage = "Hindi"
	m, effects := started(t, DefaultConfig(), p)

	assert.Equal(t, language.Hindi, m.Language())
	s := says(effects)
	require.Len(t, s, 1)
	assert.Equal(t, language.Hindi, s[0].Lang)
	assert.Contains(t, s[0].Text, "Vijay")
	assert.Contains(t, s[0].Text, "0123")
}

func TestMachine_AffirmativeStartsConversation(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "Yes, speaking"})

	assert.Equal(t, ClaudeChat, m.State())
	require.Len(t, effects, 4)
	assert.Equal(t, LinesFor(language.English).Connecting, effects[0].(Say).Text)
	assert.IsType(t, StartPolicy{}, effects[1])
	ask, ok := effects[2].(AskPolicy)
	require.True(t, ok)
	assert.Equal(t, "Yes, speaking", ask.Utterance)
	assert.False(t, m.Listening(), "caller audio is ignored while the policy is thinking")
	assert.Equal(t, 3*time.Second, m.SilenceGap())
}

func TestMachine_NegativeSaysGoodbye(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "no, wrong number"})

	assert.Equal(t, GoodbyeSent, m.State())
	assert.False(t, has[StartPolicy](effects))
	assert.False(t, has[AskPolicy](effects))
	assert.True(t, has[Hangup](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusWrongPerson, r.Status)
}

func TestMachine_ThirdUnclearReplyEndsCall(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "who is this"})
	assert.Equal(t, WaitingConfirmation, m.State())
	require.Len(t, says(effects), 1)
	assert.True(t, strings.HasPrefix(says(effects)[0].Text, LinesFor(language.English).Unclear))

	m.Handle(NoInput{})
	assert.Equal(t, WaitingConfirmation, m.State(), "second miss must not end the call")

	effects = m.Handle(Heard{Text: "sorry what"})
	assert.Equal(t, GoodbyeSent, m.State())
	assert.True(t, has[Hangup](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusNoResponse, r.Status)
}

func TestMachine_EmptyTranscriptCountsAsNoInput(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())
	m.Handle(Heard{Text: "  "})
	m.Handle(Heard{Text: ""})
	assert.Equal(t, WaitingConfirmation, m.State())
	m.Handle(Heard{Text: ""})
	assert.Equal(t, GoodbyeSent, m.State())
}

func TestMachine_LanguageMismatchReplaysOnce(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "कौन बोल रहा है"})
	s := says(effects)
	require.Len(t, s, 1)
	assert.Equal(t, language.Hindi, s[0].Lang)
	assert.Equal(t, LinesFor(language.Hindi).ConfirmPrompt(vijay()), s[0].Text)
	assert.True(t, m.LanguageLocked())

	// A later switch neither changes the language nor replays again.
	effects = m.Handle(Heard{Text: "enna solringa"})
	s = says(effects)
	require.Len(t, s, 1)
	assert.Equal(t, language.Hindi, s[0].Lang)
	assert.True(t, strings.HasPrefix(s[0].Text, LinesFor(language.Hindi).Unclear))
}

func TestMachine_LanguageReplayUsesAnAttempt(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	m.Handle(Heard{Text: "कौन बोल रहा है"})
	assert.Equal(t, 1, m.attempts)
	m.Handle(Heard{Text: "क्या"})
	assert.Equal(t, WaitingConfirmation, m.State())

	effects := m.Handle(Heard{Text: "कौन"})
	assert.Equal(t, GoodbyeSent, m.State())
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusNoResponse, r.Status)
}

func TestMachine_DecisiveReplyInNewLanguage(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "ஆமாம்"})

	assert.Equal(t, ClaudeChat, m.State())
	assert.Equal(t, language.Tamil, m.Language())
	assert.Equal(t, language.Tamil, says(effects)[0].Lang)
	assert.Equal(t, StartPolicy{Lang: language.Tamil}, effects[1])
	assert.Equal(t, language.Tamil, effects[2].(AskPolicy).Lang)
}

func TestMachine_UnsupportedLanguageDoesNotReplay(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Text: "আপনি কে"})

	assert.Equal(t, language.Bengali, m.Language())
	s := says(effects)
	require.Len(t, s, 1)
	assert.Equal(t, language.English, s[0].Lang, "catalog lines fall back to English")
	assert.True(t, strings.HasPrefix(s[0].Text, LinesFor(language.English).Unclear))
}

func TestMachine_ReplayAtMostOncePerLanguage(t *testing.T) {
	for _, lang := range []language.Code{language.Hindi, language.Tamil, language.Telugu, language.Kannada} {
		t.Run(string(lang), func(t *testing.T) {
			m, _ := started(t, DefaultConfig(), vijay())
			unclear := map[language.Code]string{
				language.Hindi:   "कौन",
				language.Tamil:   "யார்",
				language.Telugu:  "ఎవరు",
				language.Kannada: "ಯಾರು",
			}[lang]

			replays := 0
			for i := 0; i < 2; i++ {
				for _, s := range says(m.Handle(Heard{Text: unclear})) {
					if s.Text == LinesFor(lang).ConfirmPrompt(vijay()) {
						replays++
					}
				}
			}
			assert.Equal(t, 1, replays)
		})
	}
}

func TestMachine_ChatTurn(t *testing.T) {
	m := chatting(t)

	effects := m.Handle(Heard{Text: "I will pay next week"})
	require.Len(t, effects, 1)
	assert.Equal(t, AskPolicy{Utterance: "I will pay next week", Lang: language.English}, effects[0])

	effects = m.Handle(Replied{Reply: dialogue.Reply{Text: "Thank you, noted for next Friday.", Status: dialogue.StatusPromise}})
	assert.Equal(t, WaitingDisconnect, m.State())
	assert.Equal(t, "Thank you, noted for next Friday.", says(effects)[0].Text)
	assert.Equal(t, 1, count[Transfer](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusPromise, r.Status)
}

func TestMachine_FiveRefusalsEscalate(t *testing.T) {
	m := chatting(t)
	refusals := []string{
		"I can't pay",
		"I don't have money",
		"nahi dunga",
		"I lost my job, cannot pay the EMI",
		"I refuse to pay",
	}

	var effects []Effect
	for i, text := range refusals {
		require.Equal(t, ClaudeChat, m.State(), "turn %d", i)
		m.Handle(Heard{Text: text})
		effects = m.Handle(Replied{Reply: dialogue.Reply{Text: "I understand, can you pay part?", Status: dialogue.StatusContinue}})
		assert.Equal(t, i+1, m.Refusals())
	}

	assert.Equal(t, WaitingDisconnect, m.State())
	s := says(effects)
	require.Len(t, s, 1)
	assert.Equal(t, LinesFor(language.English).Escalation, s[0].Text)
	assert.Equal(t, 1, count[Transfer](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusEscalated, r.Status)
}

func TestMachine_ModelEscalationBelowThresholdContinues(t *testing.T) {
	m := chatting(t)

	m.Handle(Heard{Text: "I can't pay"})
	effects := m.Handle(Replied{Reply: dialogue.Reply{Text: "Let me help you plan it.", Status: dialogue.StatusEscalate}})

	assert.Equal(t, ClaudeChat, m.State())
	assert.Equal(t, "Let me help you plan it.", says(effects)[0].Text)
	assert.False(t, has[Transfer](effects))
}

func TestMachine_RefusalCountMonotonic(t *testing.T) {
	m := chatting(t)
	prev := m.Refusals()
	inputs := []string{"I can't pay", "ok I will try", "no money", "sure", "cannot pay"}
	for _, text := range inputs {
		m.Handle(Heard{Text: text})
		m.Handle(Replied{Reply: dialogue.Reply{Text: "Okay.", Status: dialogue.StatusContinue}})
		assert.GreaterOrEqual(t, m.Refusals(), prev)
		prev = m.Refusals()
	}
	assert.Equal(t, 3, m.Refusals())
	assert.Equal(t, ClaudeChat, m.State())
}

func TestMachine_FailedReplyDoesNotCommitRefusal(t *testing.T) {
	m := chatting(t)

	m.Handle(Heard{Text: "I can't pay"})
	effects := m.Handle(Replied{Err: errors.New("upstream 503")})

	assert.Equal(t, 0, m.Refusals())
	assert.Equal(t, ClaudeChat, m.State())
	require.Len(t, says(effects), 1)
	assert.Equal(t, LinesFor(language.English).Apology, says(effects)[0].Text)
	assert.True(t, m.Listening())
}

func TestMachine_RemoteFailuresTransfer(t *testing.T) {
	m := chatting(t)

	var effects []Effect
	for i := 0; i < 3; i++ {
		m.Handle(Heard{Text: "hello?"})
		effects = m.Handle(Replied{Err: errors.New("timeout")})
	}

	assert.Equal(t, WaitingDisconnect, m.State())
	assert.Equal(t, 1, count[Transfer](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusTransferred, r.Status)
	assert.Equal(t, 0, m.Refusals())
}

func TestMachine_STTFailureBeforeChat(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(Heard{Err: errors.New("whisper down")})
	assert.Equal(t, WaitingConfirmation, m.State())
	assert.Equal(t, LinesFor(language.English).Apology, says(effects)[0].Text)

	// Remote failures do not use up confirmation attempts.
	m.Handle(Heard{Text: "what"})
	m.Handle(Heard{Text: "what"})
	assert.Equal(t, WaitingConfirmation, m.State())
}

func TestMachine_SpeechFailureApologizes(t *testing.T) {
	m, _ := started(t, DefaultConfig(), vijay())

	effects := m.Handle(SpeechFailed{Err: errors.New("tts down")})
	assert.Equal(t, WaitingConfirmation, m.State())
	assert.Equal(t, LinesFor(language.English).Apology, says(effects)[0].Text)
	assert.Zero(t, m.attempts)
	assert.Zero(t, m.noInput)

	m.Handle(SpeechFailed{Err: errors.New("tts down")})
	effects = m.Handle(SpeechFailed{Err: errors.New("tts down")})
	assert.Equal(t, GoodbyeSent, m.State())
	assert.True(t, has[Hangup](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, r.Status)

	// The goodbye itself failing changes nothing.
	assert.Empty(t, m.Handle(SpeechFailed{Err: errors.New("tts down")}))
}

func TestMachine_SpeechFailureWhileAskingWaitsForReply(t *testing.T) {
	m := chatting(t)
	m.Handle(Heard{Text: "I will pay next week"})

	assert.Empty(t, m.Handle(SpeechFailed{Err: errors.New("tts down")}))
	assert.Equal(t, 1, m.remoteFailures)

	effects := m.Handle(Replied{Reply: dialogue.Reply{Text: "Which day?", Status: dialogue.StatusContinue}})
	require.Len(t, says(effects), 1)
	assert.Equal(t, "Which day?", says(effects)[0].Text)
	assert.Equal(t, ClaudeChat, m.State())
}

func TestMachine_SpeechFailuresInChatTransfer(t *testing.T) {
	m := chatting(t)

	m.Handle(SpeechFailed{Err: errors.New("tts down")})
	m.Handle(SpeechFailed{Err: errors.New("tts down")})
	effects := m.Handle(SpeechFailed{Err: errors.New("tts down")})

	assert.Equal(t, WaitingDisconnect, m.State())
	assert.True(t, has[Transfer](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusTransferred, r.Status)
}

func TestMachine_ChatNoInput(t *testing.T) {
	m := chatting(t)

	m.Handle(NoInput{})
	m.Handle(NoInput{})
	assert.Equal(t, ClaudeChat, m.State())

	effects := m.Handle(NoInput{})
	assert.Equal(t, WaitingDisconnect, m.State())
	assert.False(t, has[Transfer](effects))
	assert.True(t, has[Hangup](effects))
}

func TestMachine_Watchdog(t *testing.T) {
	m := chatting(t)
	m.Handle(Heard{Text: "let me think"})

	effects := m.Handle(WatchdogFired{})

	assert.Equal(t, GoodbyeSent, m.State())
	assert.IsType(t, CancelSpeech{}, effects[0])
	assert.Equal(t, LinesFor(language.English).WatchdogClose, says(effects)[0].Text)
	assert.False(t, has[Transfer](effects))

	// The in-flight reply arrives late and is dropped.
	assert.Nil(t, m.Handle(Replied{Reply: dialogue.Reply{Text: "late", Status: dialogue.StatusPromise}}))
}

func TestMachine_TransferAtMostOnce(t *testing.T) {
	m := chatting(t)
	m.Handle(Heard{Text: "I'll pay on Friday"})
	effects := m.Handle(Replied{Reply: dialogue.Reply{Text: "Noted, Friday.", Status: dialogue.StatusPromise}})
	require.Equal(t, 1, count[Transfer](effects))

	assert.Nil(t, m.Handle(Heard{Text: "hello"}))
	assert.Nil(t, m.Handle(Replied{Reply: dialogue.Reply{Text: "again", Status: dialogue.StatusPromise}}))
	assert.True(t, m.Transferred())
}

func TestMachine_ResolveFailed(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)

	effects := m.Handle(ResolveFailed{Err: session.ErrNotFound})

	assert.Equal(t, Failed, m.State())
	require.Len(t, effects, 2)
	assert.Equal(t, Fail{Message: "customer not found"}, effects[0])
	assert.Empty(t, says(effects))
}

func TestMachine_StoppedReportsOnce(t *testing.T) {
	m := chatting(t)

	effects := m.Handle(Stopped{})
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusDisconnected, r.Status)
	assert.Nil(t, m.Handle(Stopped{}))
	assert.Nil(t, m.Handle(WatchdogFired{}))

	// A call that already reached an outcome reports nothing more.
	m2, _ := started(t, DefaultConfig(), vijay())
	m2.Handle(Heard{Text: "no"})
	_, ok = finalReport(m2.Handle(Stopped{}))
	assert.False(t, ok)
}

func TestMachine_ScriptedFlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Flow = FlowScripted
	m, effects := started(t, cfg, vijay())

	assert.Equal(t, WaitingLangDetect, m.State())
	assert.Contains(t, says(effects)[0].Text, "Vijay")

	effects = m.Handle(Heard{Text: "नमस्ते, मैं ठीक हूँ"})
	assert.Equal(t, WaitingAgentResponse, m.State())
	assert.Equal(t, language.Hindi, m.Language())
	s := says(effects)
	require.Len(t, s, 1)
	assert.Contains(t, s[0].Text, "4,500")
	assert.Contains(t, s[0].Text, "0123")
	assert.Contains(t, s[0].Text, "05/11/2026")

	effects = m.Handle(Heard{Text: "हाँ"})
	assert.Equal(t, TransferringToAgent, m.State())
	assert.Equal(t, 1, count[Transfer](effects))
	assert.Equal(t, LinesFor(language.Hindi).Transferring, says(effects)[0].Text)
}

func TestMachine_ScriptedDecline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Flow = FlowScripted
	m, _ := started(t, cfg, vijay())
	m.Handle(Heard{Text: "hello, I am fine"})

	effects := m.Handle(Heard{Text: "no thanks"})

	assert.Equal(t, GoodbyeDecline, m.State())
	assert.False(t, has[Transfer](effects))
	r, ok := finalReport(effects)
	require.True(t, ok)
	assert.Equal(t, StatusDeclined, r.Status)
}

func TestMachine_ScriptedUnresolvedReplies(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	m.Handle(Started{Participant: vijay(), Flow: FlowScripted})
	m.Handle(Heard{Text: "hello"})
	require.Equal(t, WaitingAgentResponse, m.State())

	m.Handle(Heard{Text: "what is this about"})
	m.Handle(NoInput{})
	assert.Equal(t, WaitingAgentResponse, m.State())
	m.Handle(Heard{Text: "sorry what"})
	assert.Equal(t, GoodbyeDecline, m.State())
}

func TestMachine_IgnoresEventsBeforeStart(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	assert.Nil(t, m.Handle(Heard{Text: "yes"}))
	assert.Nil(t, m.Handle(NoInput{}))
	assert.Nil(t, m.Handle(WatchdogFired{}))
	assert.False(t, m.Listening())
	assert.Equal(t, AwaitStart, m.State())
}
