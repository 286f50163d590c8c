package status

import (
	"fmt"
	"slices"
	"sync"
)

// Status represents a session's connection lifecycle state.
type Status string

const (
	Idle         Status = "idle"
	Connecting   Status = "connecting"
	WaitingQR    Status = "waiting-qr"
	WaitingCode  Status = "waiting-code"
	Connected    Status = "connected"
	Reconnecting Status = "reconnecting"
	Disconnected Status = "disconnected"
	Error        Status = "error"
	LoggedOut    Status = "logged-out"
)

// validTransitions defines allowed status transitions. The protocol engine
// delivers events out of order relative to API calls, so the table is
// permissive where the underlying connection can legitimately jump states
// (e.g. a pairing session going straight to connected).
var validTransitions = map[Status][]Status{
	Idle:         {Connecting, Error},
	Connecting:   {WaitingQR, WaitingCode, Connected, Reconnecting, Disconnected, LoggedOut, Error, Connecting},
	WaitingQR:    {WaitingQR, WaitingCode, Connecting, Connected, Reconnecting, LoggedOut, Error},
	WaitingCode:  {WaitingQR, Connecting, Connected, Reconnecting, LoggedOut, Error},
	Connected:    {Connecting, Reconnecting, Disconnected, LoggedOut, Error},
	Reconnecting: {Connecting, Connected, LoggedOut, Error},
	Disconnected: {Connecting, Error},
	Error:        {Connecting, Error},
	LoggedOut:    {Connecting},
}

// Valid reports whether s is one of the known session statuses.
func Valid(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Machine tracks one session's status and enforces the transition table.
// One Machine exists per live connection handle.
type Machine struct {
	mu      sync.RWMutex
	current Status
}

// NewMachine creates a machine starting at the given status.
func NewMachine(initial Status) *Machine {
	return &Machine{current: initial}
}

// Current returns the current status.
func (m *Machine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new status. Moving to the current status
// is a no-op success, so redundant engine events don't surface as errors.
func (m *Machine) Transition(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	if !CanTransition(m.current, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	m.current = to
	return nil
}
