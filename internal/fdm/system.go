// Package fdm runs a double-buffered finite-difference heat simulation on a
// device executor while consumers suspend it to read or edit the live grid.
package fdm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"fdmheat/internal/device"
	"fdmheat/internal/field"
	"fdmheat/internal/metrics"
)

// State is the lifecycle of a System.
type State int

const (
	// Idle means the loop was never started.
	Idle State = iota
	// Running means the loop goroutine is cycling or parked at the gate.
	Running
	// Stopping means a stop was requested and the loop has not exited yet.
	Stopping
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a System.
type Options struct {
	Logger *zap.Logger

	// HaltOnDeviceError stops the loop on the first failed step. By default
	// failures are logged and the loop carries on.
	HaltOnDeviceError bool

	// StepInterval is the minimum wall time of one cycle. Zero runs flat out.
	StepInterval time.Duration
}

// System owns the double buffer and the loop that advances it.
type System struct {
	dev  device.Executor
	log  *zap.Logger
	opts Options
	gate *Gate

	stopFlag atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	// mu guards state, err and the grid handles in db.
	mu    sync.Mutex
	state State
	err   error
	db    doubleBuffer
}

// New creates an idle System that submits work to dev.
func New(dev device.Executor, opts Options) *System {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("fdm")
	return &System{
		dev:    dev,
		log:    log,
		opts:   opts,
		gate:   newGate(log.Named("gate")),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Gate returns the suspend/resume gate.
func (s *System) Gate() *Gate { return s.gate }

// NewOwner is shorthand for s.Gate().NewOwner(name).
func (s *System) NewOwner(name string) *Owner { return s.gate.NewOwner(name) }

// IsSuspended reports whether an owner holds the gate.
func (s *System) IsSuspended() bool { return s.gate.Suspended() }

// Iteration returns the number of completed cycles. Safe from any goroutine.
func (s *System) Iteration() uint64 { return s.db.iteration.Load() }

// Width returns the grid width, zero before the first load.
func (s *System) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.width
}

// Height returns the grid height, zero before the first load.
func (s *System) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.height
}

// State returns the lifecycle state.
func (s *System) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the device error that halted the loop, if any.
func (s *System) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the system reaches Stopped.
func (s *System) Done() <-chan struct{} { return s.done }

// Wait blocks until the system reaches Stopped.
func (s *System) Wait() { <-s.done }

// LoadSystem replaces both grids with f and resets the iteration counter.
func (s *System) LoadSystem(f *field.Field) error {
	if f == nil {
		return fmt.Errorf("%w: nil field", ErrInvalidSystem)
	}
	return s.LoadValues(f.Values, f.Width, f.Height)
}

// LoadValues replaces both grids with a width x height system. It is only
// valid before Start or after the loop stopped. On failure the previous
// grids are left untouched.
func (s *System) LoadValues(values []float32, width, height int) error {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return fmt.Errorf("%w: %d values for %dx%d", ErrInvalidSystem, len(values), width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running || s.state == Stopping {
		return ErrRunning
	}

	a, err := s.dev.Allocate(width, height)
	if err != nil {
		return fmt.Errorf("allocating grid A: %w", err)
	}
	b, err := s.dev.Allocate(width, height)
	if err != nil {
		s.dev.Release(a)
		return fmt.Errorf("allocating grid B: %w", err)
	}
	if err := s.dev.Upload(a, values); err != nil {
		s.dev.Release(b)
		s.dev.Release(a)
		return fmt.Errorf("uploading initial values: %w", err)
	}

	if s.db.loaded() {
		s.dev.Release(s.db.a)
		s.dev.Release(s.db.b)
	}
	s.db.a, s.db.b = a, b
	s.db.width, s.db.height = width, height
	s.db.iteration.Store(0)
	metrics.Iteration.Set(0)
	s.log.Info("system loaded", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Start launches the loop goroutine. Cancelling ctx has the same effect as
// Stop.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: system is %s", ErrAlreadyStarted, state)
	}
	if !s.db.loaded() {
		s.mu.Unlock()
		return ErrNoSystem
	}
	s.state = Running
	width, height := s.db.width, s.db.height
	s.mu.Unlock()

	s.log.Info("simulation started",
		zap.String("device", s.dev.Name()),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Bool("halt_on_device_error", s.opts.HaltOnDeviceError))
	go s.run()
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Stop()
			case <-s.done:
			}
		}()
	}
	return nil
}

// Stop asks the loop to exit after the step in flight. It never cancels a
// step, is idempotent and is safe from any goroutine. Stopping an idle
// system moves it straight to Stopped.
func (s *System) Stop() {
	s.stopFlag.Store(true)
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		close(s.done)
	case Running:
		s.state = Stopping
		s.log.Info("stop requested", zap.Uint64("iteration", s.Iteration()))
	}
	s.mu.Unlock()
	s.gate.close()
}

// guard reports whether the output grid may be touched by o. Callers hold mu.
func (s *System) guard(o *Owner, op string) error {
	if !s.db.loaded() {
		return ErrNoSystem
	}
	if s.state != Running && s.state != Stopping {
		return nil
	}
	if o != nil && o.gate == s.gate && o.Holds() {
		return nil
	}
	name := "<nil>"
	if o != nil {
		name = o.name
	}
	metrics.GateViolations.Inc()
	s.log.Error("output grid touched without holding the gate",
		zap.String("op", op),
		zap.String("owner", name))
	return fmt.Errorf("%s by %s: %w", op, name, ErrGateNotHeld)
}

// CurrentOutput returns the grid holding the latest generation. While the
// loop runs, o must hold the gate.
func (s *System) CurrentOutput(o *Owner) (device.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(o, "current output"); err != nil {
		return nil, err
	}
	return s.db.current(), nil
}

// ReadOutput copies the current output grid into dst. While the loop runs, o
// must hold the gate.
func (s *System) ReadOutput(o *Owner, dst []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(o, "read output"); err != nil {
		return err
	}
	if err := s.dev.Download(s.db.current(), dst); err != nil {
		return fmt.Errorf("reading output grid: %w", err)
	}
	return nil
}

// Release frees both grids. It is only valid before Start or after the loop
// stopped; afterwards the system behaves as if nothing was loaded.
func (s *System) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running || s.state == Stopping {
		return ErrRunning
	}
	if !s.db.loaded() {
		return nil
	}
	s.dev.Release(s.db.a)
	s.dev.Release(s.db.b)
	s.db.a, s.db.b = nil, nil
	s.db.width, s.db.height = 0, 0
	s.log.Debug("system released")
	return nil
}
