// Package device defines the accelerator boundary used by the heat
// simulation together with its host (CPU) and OpenCL backends.
package device

import (
	"errors"
	"fmt"
)

// Default kernel parameters shared by every backend.
const (
	// DefaultDiffusivity is the FDM coefficient applied to the Laplacian.
	DefaultDiffusivity = 0.2
	// MaxDiffusivity is the stability limit of the explicit 5-point scheme.
	MaxDiffusivity = 0.25
)

// Size limits. They keep every disc distance well inside 64 bits and every
// clamped brush radius inside int32 for the OpenCL kernels.
const (
	// MaxGridSide is the largest width or height a grid may have.
	MaxGridSide = 1 << 20
	// MaxEditCoord bounds the absolute value of an edit center coordinate.
	MaxEditCoord = 1 << 20
)

var (
	// ErrClosed is returned by every operation on a closed executor.
	ErrClosed = errors.New("device: executor closed")
	// ErrReleased is returned when a buffer handle was already released.
	ErrReleased = errors.New("device: buffer released")
	// ErrForeignBuffer is returned when a handle belongs to another executor.
	ErrForeignBuffer = errors.New("device: buffer owned by another executor")
	// ErrSizeMismatch is returned when buffer or slice dimensions disagree.
	ErrSizeMismatch = errors.New("device: size mismatch")
	// ErrInvalidDiffusivity is returned for coefficients outside (0, MaxDiffusivity].
	ErrInvalidDiffusivity = errors.New("device: diffusivity outside (0, 0.25]")
	// ErrOutOfRange is returned for negative radii and edit centers beyond
	// MaxEditCoord.
	ErrOutOfRange = errors.New("device: edit center out of range")
)

// Buffer is an opaque handle to a device-resident float32 grid.
type Buffer interface {
	Width() int
	Height() int
}

// Executor accepts compute work and runs it on a single in-order stream.
//
// Submit methods only enqueue work. Validation problems are returned
// immediately; failures that happen while the work executes are reported by
// the next WaitAll. Neither kind of failure aborts the stream.
type Executor interface {
	// Name reports the backend and device name.
	Name() string

	// Allocate creates a zeroed grid.
	Allocate(width, height int) (Buffer, error)

	// Release frees a grid. Releasing twice is a no-op.
	Release(buf Buffer)

	// Upload copies values into dst and returns once the copy is complete.
	Upload(dst Buffer, values []float32) error

	// Download copies src into dst after all previously submitted work.
	Download(src Buffer, dst []float32) error

	// SubmitStep enqueues one stencil update from in to out.
	SubmitStep(in, out Buffer, width, height int) error

	// SubmitEdit enqueues a brush that writes value into every cell of out
	// within radius of (x, y).
	SubmitEdit(out Buffer, x, y, radius int, value float32) error

	// WaitAll blocks until all previously submitted work has completed.
	WaitAll() error

	// Close releases the executor and every buffer it still owns.
	Close()
}

// validDiffusivity reports whether k keeps the explicit scheme stable.
func validDiffusivity(k float32) bool {
	return k > 0 && k <= MaxDiffusivity
}

// validGrid reports whether a width x height grid can be allocated.
func validGrid(width, height int) bool {
	return width > 0 && height > 0 && width <= MaxGridSide && height <= MaxGridSide
}

// validEdit checks an edit center and radius. Any non-negative radius is
// accepted; backends clamp it to the grid.
func validEdit(x, y, radius int) error {
	if radius < 0 {
		return fmt.Errorf("%w: negative radius %d", ErrOutOfRange, radius)
	}
	if x < -MaxEditCoord || x > MaxEditCoord || y < -MaxEditCoord || y > MaxEditCoord {
		return fmt.Errorf("%w: center (%d, %d)", ErrOutOfRange, x, y)
	}
	return nil
}
