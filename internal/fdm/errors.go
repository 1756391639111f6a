package fdm

import "errors"

var (
	// ErrNoSystem is returned before the first successful LoadSystem.
	ErrNoSystem = errors.New("fdm: no system loaded")
	// ErrInvalidSystem is returned for empty or inconsistently sized systems.
	ErrInvalidSystem = errors.New("fdm: invalid system")
	// ErrRunning is returned when a system is loaded under a live loop.
	ErrRunning = errors.New("fdm: simulation loop is running")
	// ErrAlreadyStarted is returned by Start on a started or stopped system.
	ErrAlreadyStarted = errors.New("fdm: simulation already started")
	// ErrGateNotHeld is returned when the output grid is touched without
	// holding the gate while the loop runs.
	ErrGateNotHeld = errors.New("fdm: gate not held")
	// ErrInvalidEdit is returned for edits with a negative radius or a center
	// beyond device.MaxEditCoord.
	ErrInvalidEdit = errors.New("fdm: invalid edit")
)
