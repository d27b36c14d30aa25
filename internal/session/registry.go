package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one live call in the registry
type Entry struct {
	CallID    string    `json:"call_id"`
	StreamSID string    `json:"stream_sid"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	cancel    context.CancelFunc
}

// Registry tracks live calls for the dashboard and operator hangups.
// It is created once per server and passed to the handlers that need it.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*Entry)}
}

// Add registers a call; cancel ends it when an operator hangs up
func (r *Registry) Add(e Entry, cancel context.CancelFunc) {
	e.cancel = cancel
	r.mu.Lock()
	r.calls[e.CallID] = &e
	r.mu.Unlock()
}

// Remove drops a call once its connection closes
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	delete(r.calls, callID)
	r.mu.Unlock()
}

// Get returns a copy of the entry for callID
func (r *Registry) Get(callID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.calls[callID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Hangup cancels a live call; false when the call is unknown
func (r *Registry) Hangup(callID string) bool {
	r.mu.RLock()
	e, ok := r.calls[callID]
	r.mu.RUnlock()
	if !ok || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Len returns the number of live calls
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

// Snapshot returns live calls, oldest first
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.calls))
	for _, e := range r.calls {
		c := *e
		c.cancel = nil
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
