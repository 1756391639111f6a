package fdm

import (
	"go.uber.org/atomic"

	"fdmheat/internal/device"
)

// role names one of the two grids of a double buffer.
type role int

const (
	roleA role = iota
	roleB
)

func (r role) String() string {
	if r == roleA {
		return "A"
	}
	return "B"
}

// inputRole is the grid a step reads at iteration i.
func inputRole(i uint64) role {
	if i%2 == 0 {
		return roleA
	}
	return roleB
}

// outputRole is the grid a step writes at iteration i.
func outputRole(i uint64) role {
	if i%2 == 0 {
		return roleB
	}
	return roleA
}

// doubleBuffer holds the two grids and the iteration counter. The counter
// parity alone decides which grid is read and which is written.
type doubleBuffer struct {
	a, b      device.Buffer
	width     int
	height    int
	iteration atomic.Uint64
}

func (d *doubleBuffer) grid(r role) device.Buffer {
	if r == roleA {
		return d.a
	}
	return d.b
}

func (d *doubleBuffer) input(i uint64) device.Buffer  { return d.grid(inputRole(i)) }
func (d *doubleBuffer) output(i uint64) device.Buffer { return d.grid(outputRole(i)) }

// current is the grid holding generation i: the output of step i-1, which is
// also the input of step i. Before the first step it is the loaded grid A.
func (d *doubleBuffer) current() device.Buffer {
	return d.input(d.iteration.Load())
}

func (d *doubleBuffer) loaded() bool { return d.a != nil }
