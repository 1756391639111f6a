package fdm

import (
	"time"

	"go.uber.org/zap"

	"fdmheat/internal/metrics"
)

// run is the loop goroutine. It is the only writer of the iteration counter
// and the only submitter of step work. The grid handles cannot change under
// it because LoadValues refuses to run while the loop is alive.
func (s *System) run() {
	defer s.finish()
	for {
		if !s.gate.enter() {
			return
		}
		if s.stopFlag.Load() {
			s.gate.leave()
			return
		}
		started := time.Now()
		err := s.cycle()
		s.gate.leave()
		if err != nil || s.stopFlag.Load() {
			return
		}
		if !s.throttle(started) {
			return
		}
	}
}

// cycle submits one step, waits for it and advances the counter. It returns
// an error only when the failure should halt the loop.
func (s *System) cycle() error {
	i := s.db.iteration.Load()
	in, out := s.db.input(i), s.db.output(i)

	started := time.Now()
	err := s.dev.SubmitStep(in, out, s.db.width, s.db.height)
	if err == nil {
		err = s.dev.WaitAll()
	}
	metrics.StepSeconds.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.StepFailures.Inc()
		if s.opts.HaltOnDeviceError {
			s.log.Error("step failed, halting", zap.Uint64("iteration", i), zap.Error(err))
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return err
		}
		s.log.Warn("step failed", zap.Uint64("iteration", i), zap.Error(err))
	}

	next := s.db.iteration.Inc()
	metrics.Steps.Inc()
	metrics.Iteration.Set(float64(next))
	return nil
}

// throttle sleeps out the rest of StepInterval. It returns false if a stop
// arrived while sleeping.
func (s *System) throttle(started time.Time) bool {
	wait := s.opts.StepInterval - time.Since(started)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	}
}

// finish moves the system to Stopped once the loop goroutine exits.
func (s *System) finish() {
	s.gate.close()
	s.log.Info("simulation stopped", zap.Uint64("iteration", s.Iteration()))
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	close(s.done)
}
