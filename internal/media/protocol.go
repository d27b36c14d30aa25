// Package media speaks the Exotel voicebot websocket protocol: JSON
// events carrying base64 PCM frames in both directions.
package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EventType is the "event" field of a protocol message
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
	EventClear     EventType = "clear"
	EventDTMF      EventType = "dtmf"
	EventError     EventType = "error"
)

var (
	// ErrMalformed is a message that is not valid JSON or lacks its body
	ErrMalformed = errors.New("malformed media event")
	// ErrUnknownEvent is a well-formed message of a type we do not handle
	ErrUnknownEvent = errors.New("unknown media event")
)

// IsProtocolError reports whether err should be logged and skipped
// rather than end the connection.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnknownEvent)
}

// Inbound is one decoded message from the carrier
type Inbound struct {
	Event     EventType
	StreamSID string
	Start     *Start
	Media     *Media
	Mark      string
	Digit     string
}

// Start carries the correlation identifiers of a new stream
type Start struct {
	StreamSID        string
	CallSID          string
	AccountSID       string
	From             string
	To               string
	CustomParameters map[string]string
	Encoding         string
	SampleRate       int
}

// Media is one inbound audio chunk
type Media struct {
	Payload string
	Chunk   int
}

type wireStart struct {
	StreamSID        string                 `json:"stream_sid"`
	CallSID          string                 `json:"call_sid"`
	AccountSID       string                 `json:"account_sid"`
	From             string                 `json:"from"`
	To               string                 `json:"to"`
	CustomParameters map[string]interface{} `json:"custom_parameters"`
	MediaFormat      struct {
		Encoding   string          `json:"encoding"`
		SampleRate json.RawMessage `json:"sample_rate"`
	} `json:"media_format"`
}

type wireEvent struct {
	Event            string                 `json:"event"`
	StreamSID        string                 `json:"stream_sid"`
	StreamSIDCamel   string                 `json:"streamSid"`
	Start            *wireStart             `json:"start"`
	CustomParameters map[string]interface{} `json:"custom_parameters"`
	Media            *struct {
		Payload string          `json:"payload"`
		Chunk   json.RawMessage `json:"chunk"`
	} `json:"media"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark"`
	DTMF *struct {
		Digit string `json:"digit"`
	} `json:"dtmf"`
}

// Parse decodes one inbound message. Custom parameters may arrive at the
// top level or nested under "start"; both are merged, nested winning.
func Parse(raw []byte) (*Inbound, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	in := &Inbound{Event: EventType(strings.ToLower(w.Event)), StreamSID: w.StreamSID}
	if in.StreamSID == "" {
		in.StreamSID = w.StreamSIDCamel
	}

	switch in.Event {
	case EventConnected, EventStop, EventClear:
	case EventStart:
		in.Start = parseStart(&w)
		if in.StreamSID == "" {
			in.StreamSID = in.Start.StreamSID
		}
		in.Start.StreamSID = in.StreamSID
	case EventMedia:
		if w.Media == nil {
			return nil, fmt.Errorf("%w: media event without media", ErrMalformed)
		}
		in.Media = &Media{Payload: w.Media.Payload, Chunk: rawInt(w.Media.Chunk)}
	case EventMark:
		if w.Mark != nil {
			in.Mark = w.Mark.Name
		}
	case EventDTMF:
		if w.DTMF != nil {
			in.Digit = w.DTMF.Digit
		}
	case "":
		return nil, fmt.Errorf("%w: missing event field", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Event)
	}
	return in, nil
}

func parseStart(w *wireEvent) *Start {
	s := &Start{CustomParameters: make(map[string]string)}
	for k, v := range w.CustomParameters {
		s.CustomParameters[k] = stringify(v)
	}
	if w.Start == nil {
		return s
	}
	s.StreamSID = w.Start.StreamSID
	s.CallSID = w.Start.CallSID
	s.AccountSID = w.Start.AccountSID
	s.From = w.Start.From
	s.To = w.Start.To
	s.Encoding = strings.ToLower(w.Start.MediaFormat.Encoding)
	s.SampleRate = rawInt(w.Start.MediaFormat.SampleRate)
	for k, v := range w.Start.CustomParameters {
		s.CustomParameters[k] = stringify(v)
	}
	return s
}

// rawInt accepts a JSON number or a quoted number
func rawInt(raw json.RawMessage) int {
	n, err := strconv.Atoi(strings.Trim(string(raw), `" `))
	if err != nil {
		return 0
	}
	return n
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

type outMedia struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"stream_sid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outMark struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"stream_sid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type outClear struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"stream_sid"`
}

type outError struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"stream_sid,omitempty"`
	Message   string    `json:"message"`
}
