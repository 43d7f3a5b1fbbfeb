package chat

import "slices"

// State is the controller's position in its load/send lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateSending State = "sending"
	StateError   State = "error"
)

// transitions lists the moves the controller makes on its own. Resets
// (ClearMessages, SwitchAgent, navigation) go to idle from any state and are
// not listed.
var transitions = map[State][]State{
	StateIdle:    {StateLoading, StateSending, StateLoaded, StateError},
	StateLoading: {StateLoaded, StateError, StateLoading},
	StateLoaded:  {StateLoading, StateSending, StateLoaded, StateError},
	StateSending: {StateLoaded, StateIdle, StateError, StateLoading},
	StateError:   {StateLoading, StateSending, StateLoaded, StateError},
}

// CanTransition reports whether the controller may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Busy reports whether an operation owning the message view is in flight.
func (s State) Busy() bool {
	return s == StateLoading || s == StateSending
}
