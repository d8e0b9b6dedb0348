// Package automation maps committed entity changes to named actions.
//
// A Registry binds to a change notifier; when an event matches a trigger,
// the trigger's actions run synchronously on the write path, in
// registration order. Action failures are isolated and logged; they
// never propagate back into the write that fired them. There is no file
// watching and no background scheduling here; anything periodic belongs
// to the caller.
package automation

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/chora/internal/notify"
)

// Action is a named reaction to an entity change.
type Action struct {
	Name        string
	Description string
	Handler     func(notify.Event) error
}

// Trigger matches events to action names. Zero-valued match fields match
// everything; Condition, when set, is the final gate.
type Trigger struct {
	Name       string
	On         []notify.ChangeType // empty: all change types
	EntityType string              // empty: all entity types
	ToStatus   string              // empty: any new status
	Condition  func(notify.Event) bool
	Actions    []string
}

func (t Trigger) matches(ev notify.Event) bool {
	if len(t.On) > 0 && !slices.Contains(t.On, ev.Type) {
		return false
	}
	if t.EntityType != "" && ev.EntityType != t.EntityType {
		return false
	}
	if t.ToStatus != "" && ev.NewStatus != t.ToStatus {
		return false
	}
	if t.Condition != nil && !t.Condition(ev) {
		return false
	}
	return true
}

// Registry holds actions and triggers and dispatches matching events.
type Registry struct {
	mu       sync.Mutex
	actions  map[string]Action
	triggers []Trigger
	notifier *notify.Notifier
	subID    int
}

// NewRegistry returns a Registry with the built-in "log" action
// registered.
func NewRegistry() *Registry {
	r := &Registry{actions: map[string]Action{}}
	r.actions["log"] = Action{
		Name:        "log",
		Description: "log the event",
		Handler: func(ev notify.Event) error {
			slog.Info("entity change",
				"change", ev.Type,
				"entity", ev.EntityID,
				"old_status", ev.OldStatus,
				"new_status", ev.NewStatus,
				"merge_origin", ev.MergeOrigin,
			)
			return nil
		},
	}
	return r
}

// RegisterAction adds an action. Duplicate names are an error.
func (r *Registry) RegisterAction(a Action) error {
	if a.Name == "" || a.Handler == nil {
		return fmt.Errorf("action requires a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.Name]; exists {
		return fmt.Errorf("action %q already registered", a.Name)
	}
	r.actions[a.Name] = a
	return nil
}

// AddTrigger adds a trigger. Every referenced action must already be
// registered.
func (r *Registry) AddTrigger(t Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range t.Actions {
		if _, ok := r.actions[name]; !ok {
			return fmt.Errorf("trigger %q references unknown action %q", t.Name, name)
		}
	}
	r.triggers = append(r.triggers, t)
	return nil
}

// Bind attaches the registry to a notifier. Rebinding moves the
// subscription.
func (r *Registry) Bind(n *notify.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notifier != nil {
		r.notifier.OffChange(r.subID)
	}
	r.notifier = n
	r.subID = n.OnChange(r.dispatch)
}

// Unbind detaches the registry from its notifier.
func (r *Registry) Unbind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notifier != nil {
		r.notifier.OffChange(r.subID)
		r.notifier = nil
	}
}

// dispatch runs every matching trigger's actions. Failures are logged and
// swallowed: the triggering write has already committed.
func (r *Registry) dispatch(ev notify.Event) error {
	r.mu.Lock()
	triggers := make([]Trigger, len(r.triggers))
	copy(triggers, r.triggers)
	actions := make(map[string]Action, len(r.actions))
	for k, v := range r.actions {
		actions[k] = v
	}
	r.mu.Unlock()

	for _, t := range triggers {
		if !t.matches(ev) {
			continue
		}
		for _, name := range t.Actions {
			a, ok := actions[name]
			if !ok {
				continue
			}
			if err := runAction(a, ev); err != nil {
				slog.Warn("automation action failed",
					"trigger", t.Name,
					"action", a.Name,
					"entity", ev.EntityID,
					"error", err,
				)
			}
		}
	}
	return nil
}

func runAction(a Action, ev notify.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return a.Handler(ev)
}
