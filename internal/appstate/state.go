// Package appstate holds the application-wide view state that the
// presentation layer reads and that services update through events.
package appstate

import (
	"sync"
	"time"

	"github.com/goalnest/goalnest/internal/model"
)

const (
	CategoryGoal          = "goal"
	CategoryCollaboration = "collaboration"
)

// Listener receives every published event, in publish order.
type Listener func(model.Event)

type State struct {
	mu            sync.RWMutex
	darkMode      bool
	lastAction    model.Action
	lastEvent     model.Event
	confirmations map[string]map[string]bool
	listeners     []subscription
	nextID        int
}

type subscription struct {
	id int
	fn Listener
}

// Snapshot is a copy of the state safe to serialize.
type Snapshot struct {
	DarkMode      bool                       `json:"darkMode"`
	LastAction    model.Action               `json:"lastAction"`
	LastEvent     model.Event                `json:"lastEvent"`
	Confirmations map[string]map[string]bool `json:"confirmations"`
}

func New() *State {
	return &State{
		lastAction: model.ActionNone,
		confirmations: map[string]map[string]bool{
			CategoryGoal: {
				"archive": true,
				"delete":  true,
			},
			CategoryCollaboration: {
				"archive":      true,
				"delete":       true,
				"colabRequest": true,
			},
		},
	}
}

func (s *State) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

func (s *State) SetDarkMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkMode = on
}

func (s *State) LastAction() model.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAction
}

// ConsumeLastAction returns the pending action and resets it to none, the
// way a list view acknowledges that it has refreshed.
func (s *State) ConsumeLastAction() model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := s.lastAction
	s.lastAction = model.ActionNone
	return action
}

// Confirmation reports whether the UI should ask before running action.
// Unknown pairs default to asking.
func (s *State) Confirmation(category, action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.confirmations[category][action]
	if !ok {
		return true
	}
	return show
}

func (s *State) SetConfirmation(category, action string, show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmations[category] == nil {
		s.confirmations[category] = make(map[string]bool)
	}
	s.confirmations[category][action] = show
}

// Publish records ev as the last action and notifies listeners synchronously.
// Listeners run outside the lock and may read the state.
func (s *State) Publish(ev model.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	s.mu.Lock()
	s.lastAction = ev.Action
	s.lastEvent = ev
	listeners := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		listeners = append(listeners, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *State) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	confirmations := make(map[string]map[string]bool, len(s.confirmations))
	for category, actions := range s.confirmations {
		copied := make(map[string]bool, len(actions))
		for action, show := range actions {
			copied[action] = show
		}
		confirmations[category] = copied
	}

	return Snapshot{
		DarkMode:      s.darkMode,
		LastAction:    s.lastAction,
		LastEvent:     s.lastEvent,
		Confirmations: confirmations,
	}
}
