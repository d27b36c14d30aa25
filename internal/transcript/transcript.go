// Package transcript appends what was said on each call to a shared,
// line-oriented log file.
package transcript

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Speakers
const (
	SpeakerCustomer = "CUSTOMER"
	SpeakerAgent    = "AGENT"
	SpeakerSystem   = "SYSTEM"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one recorded utterance
type Entry struct {
	At      time.Time
	Speaker string
	Text    string
}

// Log is the shared transcript file. Every line is written with a single
// append so concurrent calls never interleave within a line.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	logger *zap.Logger
}

// OpenLog opens path for appending, creating it if needed
func OpenLog(path string, logger *zap.Logger) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript log: %w", err)
	}
	return &Log{f: f, logger: logger}, nil
}

func (l *Log) write(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	_, err := l.f.Write(b)
	return err
}

// Close closes the file; recorders still open just log write failures
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Recorder writes one call's utterances to the log. Filesystem errors are
// logged and never surface to the call.
type Recorder struct {
	log          *Log
	callID       string
	sessionID    string
	writeThrough bool
	now          func() time.Time
	logger       *zap.Logger

	mu      sync.Mutex
	started bool
	pending []Entry
	entries []Entry
}

// Option configures a Recorder
type Option func(*Recorder)

// Batched holds entries until Flush instead of writing each one through
func Batched() Option { return func(r *Recorder) { r.writeThrough = false } }

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option { return func(r *Recorder) { r.now = now } }

// Recorder returns a recorder for callID
func (l *Log) Recorder(callID string, opts ...Option) *Recorder {
	r := &Recorder{
		log:          l,
		callID:       callID,
		sessionID:    uuid.NewString(),
		writeThrough: true,
		now:          time.Now,
		logger:       l.logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append records an utterance. Blank text is ignored.
func (r *Recorder) Append(speaker, text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{At: r.now(), Speaker: speaker, Text: text}
	r.entries = append(r.entries, e)
	r.pending = append(r.pending, e)
	if r.writeThrough {
		r.flushLocked()
	}
}

// Flush writes pending entries. With nothing pending it does nothing.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	var b strings.Builder
	if !r.started {
		fmt.Fprintf(&b, "=== [%s] session %s started %s ===\n", r.callID, r.sessionID, r.pending[0].At.Format(timeLayout))
	}
	for _, e := range r.pending {
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", e.At.Format(timeLayout), r.callID, e.Speaker, e.Text)
	}
	r.pending = r.pending[:0]

	if err := r.log.write([]byte(b.String())); err != nil {
		r.logger.Warn("Transcript write failed", zap.String("call_sid", r.callID), zap.Error(err))
		return err
	}
	r.started = true
	return nil
}

// Entries returns everything recorded so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Close flushes what is pending and writes a footer if anything was written
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.flushLocked()
	if !r.started {
		return
	}
	line := fmt.Sprintf("=== [%s] session %s ended %s ===\n", r.callID, r.sessionID, r.now().Format(timeLayout))
	if err := r.log.write([]byte(line)); err != nil {
		r.logger.Warn("Transcript write failed", zap.String("call_sid", r.callID), zap.Error(err))
	}
}
