// Package notify implements the synchronous in-process change notifier.
//
// Listeners are invoked in registration order on the goroutine that
// performed the triggering write, after the write has committed. A failing
// listener never rolls back the committed write; its error (or recovered
// panic) is captured per listener and handed back to the emitter as a
// secondary diagnostic.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/chora/internal/entity"
)

// ChangeType identifies what happened to an entity.
type ChangeType string

const (
	Created ChangeType = "created"
	Updated ChangeType = "updated"
	Deleted ChangeType = "deleted"
)

// Event is a committed entity change. Entity is the new value (nil for
// deletes); Old is the prior value (nil for creates). MergeOrigin marks
// writes produced by a sync pass rather than a local caller.
type Event struct {
	Type        ChangeType
	EntityID    string
	EntityType  string
	Entity      *entity.Entity
	Old         *entity.Entity
	OldStatus   string
	NewStatus   string
	MergeOrigin bool
	OccurredAt  time.Time
}

// Listener receives committed change events. Returning an error (or
// panicking) is isolated to this listener.
type Listener func(Event) error

// DeliveryError records a single listener failure during an emission.
type DeliveryError struct {
	ListenerID int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("listener %d: %v", e.ListenerID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// maxLogSize bounds the retained event log.
const maxLogSize = 1000

type registration struct {
	id int
	fn Listener
}

// Notifier fans committed change events out to registered listeners.
// Registration order is delivery order; listeners are not deduplicated.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners []registration
	log       []Event
}

// New returns an empty Notifier.
func New() *Notifier {
	return &Notifier{}
}

// OnChange registers a listener and returns its registration ID.
func (n *Notifier) OnChange(l Listener) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.listeners = append(n.listeners, registration{id: n.nextID, fn: l})
	return n.nextID
}

// OffChange removes a previously registered listener. Unknown IDs are a
// no-op.
func (n *Notifier) OffChange(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, reg := range n.listeners {
		if reg.id == id {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every listener synchronously, in registration
// order. Failures are collected per listener and returned; they never stop
// delivery to the remaining listeners.
func (n *Notifier) Emit(ev Event) []DeliveryError {
	n.mu.Lock()
	n.log = append(n.log, ev)
	if len(n.log) > maxLogSize {
		n.log = n.log[len(n.log)-maxLogSize:]
	}
	regs := make([]registration, len(n.listeners))
	copy(regs, n.listeners)
	n.mu.Unlock()

	var failures []DeliveryError
	for _, reg := range regs {
		if err := invoke(reg.fn, ev); err != nil {
			failures = append(failures, DeliveryError{ListenerID: reg.id, Err: err})
		}
	}
	return failures
}

// invoke calls one listener, converting a panic into an error.
func invoke(l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(ev)
}

// RecentFilter narrows Recent results. Zero values match everything.
type RecentFilter struct {
	EntityType string
	Type       ChangeType
}

// Recent returns up to limit logged events matching the filter, most
// recent first. limit <= 0 returns all matches.
func (n *Notifier) Recent(f RecentFilter, limit int) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []Event
	for i := len(n.log) - 1; i >= 0; i-- {
		ev := n.log[i]
		if f.EntityType != "" && ev.EntityType != f.EntityType {
			continue
		}
		if f.Type != "" && ev.Type != f.Type {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ClearLog discards the retained event log. Listeners stay registered.
func (n *Notifier) ClearLog() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = nil
}
