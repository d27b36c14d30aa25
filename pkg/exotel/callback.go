package exotel

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Terminal call statuses reported by the status callback
const (
	StatusCompleted = "completed"
	StatusBusy      = "busy"
	StatusNoAnswer  = "no-answer"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// StatusCallback is the form body Exotel posts when a call ends
type StatusCallback struct {
	CallSid      string
	Status       string
	From         string
	To           string
	Duration     int
	RecordingURL string
	CustomField  map[string]string
}

// Answered reports whether the customer picked up
func (s StatusCallback) Answered() bool {
	return s.Status == StatusCompleted
}

// ParseStatusCallback reads a status callback form. Exotel has used both
// CallSid and CallSID over time; either is accepted.
func ParseStatusCallback(form url.Values) (StatusCallback, error) {
	sc := StatusCallback{
		CallSid:      first(form, "CallSid", "CallSID"),
		Status:       strings.ToLower(first(form, "Status", "CallStatus")),
		From:         form.Get("From"),
		To:           form.Get("To"),
		RecordingURL: form.Get("RecordingUrl"),
	}
	if sc.CallSid == "" {
		return sc, errors.New("status callback missing CallSid")
	}
	if d := first(form, "ConversationDuration", "DialCallDuration", "Duration"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			sc.Duration = n
		}
	}
	if cf := form.Get("CustomField"); cf != "" {
		m := map[string]string{}
		if err := json.Unmarshal([]byte(cf), &m); err == nil {
			sc.CustomField = m
		}
	}
	return sc, nil
}

func first(form url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(form.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
