package fdm

import (
	"fmt"

	"go.uber.org/zap"

	"fdmheat/internal/device"
	"fdmheat/internal/metrics"
)

// Brush values written by hot and cold edits.
const (
	HotValue  float32 = 1
	ColdValue float32 = 0
)

// Edit writes Value into every cell within Radius of (X, Y). A radius larger
// than the grid covers all of it.
type Edit struct {
	X, Y   int
	Radius int
	Value  float32
}

// Brush returns a hot or cold edit centered on (x, y).
func Brush(x, y, radius int, hot bool) Edit {
	e := Edit{X: x, Y: y, Radius: radius, Value: ColdValue}
	if hot {
		e.Value = HotValue
	}
	return e
}

// ApplyEdit writes e into the current output grid and waits for the device to
// finish, so the next step reads the edited grid. While the loop runs, o must
// hold the gate. Device failures are returned and never stop the loop.
func (s *System) ApplyEdit(o *Owner, e Edit) error {
	if e.Radius < 0 {
		return fmt.Errorf("%w: radius %d", ErrInvalidEdit, e.Radius)
	}
	if !inEditRange(e.X) || !inEditRange(e.Y) {
		return fmt.Errorf("%w: center (%d, %d)", ErrInvalidEdit, e.X, e.Y)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(o, "apply edit"); err != nil {
		return err
	}
	out := s.db.current()
	if err := s.dev.SubmitEdit(out, e.X, e.Y, e.Radius, e.Value); err != nil {
		metrics.Edits.WithLabelValues("failed").Inc()
		return fmt.Errorf("submitting edit: %w", err)
	}
	if err := s.dev.WaitAll(); err != nil {
		metrics.Edits.WithLabelValues("failed").Inc()
		return fmt.Errorf("waiting for edit: %w", err)
	}
	metrics.Edits.WithLabelValues("applied").Inc()
	s.log.Debug("edit applied",
		zap.Int("x", e.X),
		zap.Int("y", e.Y),
		zap.Int("radius", e.Radius),
		zap.Float32("value", e.Value),
		zap.Uint64("iteration", s.Iteration()))
	return nil
}

// ApplyEditSuspended applies e under o's gate, suspending only if o does not
// already hold it.
func (s *System) ApplyEditSuspended(o *Owner, e Edit) error {
	return o.WithSuspended(func() error {
		return s.ApplyEdit(o, e)
	})
}

func inEditRange(v int) bool {
	return v >= -device.MaxEditCoord && v <= device.MaxEditCoord
}
