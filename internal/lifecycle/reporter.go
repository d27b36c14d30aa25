// Package lifecycle fans call status transitions out to everything that
// watches calls: the call store, the event bus, live dashboards and the
// audit trail. Reporting never blocks or fails a call.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/metrics"
)

// DefaultTimeout bounds each observer delivery
const DefaultTimeout = 5 * time.Second

// Transition is one status change of a call
type Transition struct {
	CallID  string    `json:"call_id"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Final   bool      `json:"final"`
	At      time.Time `json:"at"`
}

// Observer receives transitions
type Observer interface {
	Name() string
	Observe(ctx context.Context, t Transition) error
}

// Reporter delivers transitions to every observer in the background with
// a timeout per delivery. Observers run independently of each other, but
// one observer sees the transitions of a call in the order they were
// reported. Failures are logged and counted.
type Reporter struct {
	observers []Observer
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
	wg        sync.WaitGroup

	mu    sync.Mutex
	lanes map[laneKey]*lane
}

type laneKey struct {
	observer int
	callID   string
}

// lane holds the transitions still waiting for one observer and call
type lane struct {
	pending []Transition
}

func NewReporter(timeout time.Duration, logger *zap.Logger, observers ...Observer) *Reporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reporter{
		observers: observers,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
		lanes:     make(map[laneKey]*lane),
	}
}

// Add registers another observer. Not safe once reporting has started.
func (r *Reporter) Add(o Observer) { r.observers = append(r.observers, o) }

// Report returns immediately; delivery happens in the background
func (r *Reporter) Report(t Transition) {
	if t.At.IsZero() {
		t.At = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.observers {
		key := laneKey{observer: i, callID: t.CallID}
		if l, ok := r.lanes[key]; ok {
			l.pending = append(l.pending, t)
			continue
		}
		l := &lane{pending: []Transition{t}}
		r.lanes[key] = l
		r.wg.Add(1)
		go r.drain(key, o, l)
	}
}

func (r *Reporter) drain(key laneKey, o Observer, l *lane) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(l.pending) == 0 {
			delete(r.lanes, key)
			r.mu.Unlock()
			return
		}
		t := l.pending[0]
		l.pending = l.pending[1:]
		r.mu.Unlock()
		r.deliver(o, t)
	}
}

func (r *Reporter) deliver(o Observer, t Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := o.Observe(ctx, t); err != nil {
		metrics.Default.LifecycleDropped.WithLabelValues(o.Name()).Inc()
		r.logger.Warn("Lifecycle observer failed",
			zap.String("observer", o.Name()),
			zap.String("call_sid", t.CallID),
			zap.String("status", t.Status),
			zap.Error(err),
		)
	}
}

// Wait blocks until in-flight deliveries finish, for shutdown
func (r *Reporter) Wait() { r.wg.Wait() }
