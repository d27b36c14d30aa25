package session

import (
	"time"

	"github.com/troikatech/collections-agent/internal/language"
)

// CallSession is the per-call state owned by one call loop. Nothing else
// mutates it; observers receive copies through lifecycle reports.
type CallSession struct {
	OfficialCallID  string
	TransientCallID string
	StreamSID       string
	Flow            string

	Participant *CallParticipant

	Stage            string
	DetectedLanguage language.Code
	LanguageLocked   bool
	RefusalCount     int
	TurnCount        int
	CreatedAt        time.Time
}

// New creates a session for a resolved participant
func New(ids Lookup, streamSID string, p *CallParticipant, lang language.Code, now time.Time) *CallSession {
	return &CallSession{
		OfficialCallID:   ids.OfficialID,
		TransientCallID:  ids.TransientID,
		StreamSID:        streamSID,
		Participant:      p,
		DetectedLanguage: lang,
		CreatedAt:        now,
	}
}

// CallID is the best identifier for reporting: the official id once known
func (s *CallSession) CallID() string {
	if s.OfficialCallID != "" {
		return s.OfficialCallID
	}
	return s.TransientCallID
}
