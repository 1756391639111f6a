package fdm

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fdmheat/internal/metrics"
)

// Gate arbitrates access to the current output grid between the simulation
// loop and suspending owners.
//
// An owner that suspends keeps the gate across calls until it resumes. The
// loop passes the gate at the top of every cycle and registers the cycle as
// in flight, so Suspend returns only when no step is running and the
// iteration counter is stable.
type Gate struct {
	log *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	holder  *Owner
	inCycle bool
	closed  bool
}

func newGate(log *zap.Logger) *Gate {
	g := &Gate{log: log}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// NewOwner returns a token that can suspend and resume the loop.
func (g *Gate) NewOwner(name string) *Owner {
	return &Owner{gate: g, id: uuid.New(), name: name}
}

// Suspended reports whether any owner holds the gate.
func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != nil
}

// enter blocks while the gate is held and marks a cycle in flight. It
// returns false once the gate is closed.
func (g *Gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.holder != nil && !g.closed {
		g.cond.Wait()
	}
	if g.closed {
		return false
	}
	g.inCycle = true
	return true
}

// leave ends the cycle started by enter.
func (g *Gate) leave() {
	g.mu.Lock()
	g.inCycle = false
	g.cond.Broadcast()
	g.mu.Unlock()
}

// close wakes a loop parked in enter and keeps it from starting new cycles.
// Owners can still suspend and resume afterwards.
func (g *Gate) close() {
	g.mu.Lock()
	g.closed = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Owner is the only identity allowed to release a suspension it created.
// Owners are safe for concurrent use, but one logical actor should own each.
type Owner struct {
	gate *Gate
	id   uuid.UUID
	name string
}

// ID returns the owner's unique identifier.
func (o *Owner) ID() uuid.UUID { return o.id }

// Name returns the label the owner was created with.
func (o *Owner) Name() string { return o.name }

// Holds reports whether o currently holds the gate.
func (o *Owner) Holds() bool {
	g := o.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder == o
}

// Suspend takes the gate. It is a no-op when o already holds it, waits while
// another owner holds it, and then waits for an in-flight cycle to finish.
func (o *Owner) Suspend() {
	g := o.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == o {
		return
	}
	for g.holder != nil {
		g.cond.Wait()
	}
	g.holder = o
	for g.inCycle {
		g.cond.Wait()
	}
	metrics.Suspended.Set(1)
	g.log.Debug("suspended", zap.String("owner", o.name), zap.Stringer("id", o.id))
}

// Resume releases the gate. It is a no-op unless o holds it.
func (o *Owner) Resume() {
	g := o.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != o {
		return
	}
	g.holder = nil
	g.cond.Broadcast()
	metrics.Suspended.Set(0)
	g.log.Debug("resumed", zap.String("owner", o.name), zap.Stringer("id", o.id))
}

// WithSuspended runs fn while holding the gate. If o already holds it the
// suspension is left in place, otherwise o suspends before fn and resumes
// after it.
func (o *Owner) WithSuspended(fn func() error) error {
	if o.Holds() {
		return fn()
	}
	o.Suspend()
	defer o.Resume()
	return fn()
}
