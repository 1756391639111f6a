package fdm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fdmheat/internal/device"
)

var errInjected = errors.New("injected device failure")

type stepRecord struct {
	in, out device.Buffer
}

// recordingExecutor wraps the host executor, records every step submission
// and can inject failures or hold steps until released.
type recordingExecutor struct {
	*device.CPU

	mu          sync.Mutex
	steps       []stepRecord
	failSteps   bool
	failAllocAt int
	allocs      int

	// When hold is set, each SubmitStep signals entered and blocks on hold.
	hold    chan struct{}
	entered chan struct{}
}

func newRecorder(t *testing.T) *recordingExecutor {
	t.Helper()
	cpu, err := device.NewCPU(device.CPUOptions{Workers: 2, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(cpu.Close)
	return &recordingExecutor{CPU: cpu, failAllocAt: -1}
}

func (r *recordingExecutor) Allocate(width, height int) (device.Buffer, error) {
	r.mu.Lock()
	n := r.allocs
	r.allocs++
	fail := r.failAllocAt == n
	r.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return r.CPU.Allocate(width, height)
}

func (r *recordingExecutor) SubmitStep(in, out device.Buffer, width, height int) error {
	r.mu.Lock()
	r.steps = append(r.steps, stepRecord{in: in, out: out})
	fail := r.failSteps
	hold, entered := r.hold, r.entered
	r.mu.Unlock()

	if hold != nil {
		entered <- struct{}{}
		<-hold
	}
	if fail {
		return errInjected
	}
	return r.CPU.SubmitStep(in, out, width, height)
}

func (r *recordingExecutor) setFailSteps(fail bool) {
	r.mu.Lock()
	r.failSteps = fail
	r.mu.Unlock()
}

func (r *recordingExecutor) failAllocation(n int) {
	r.mu.Lock()
	r.failAllocAt = r.allocs + n
	r.mu.Unlock()
}

func (r *recordingExecutor) holdSteps() (entered <-chan struct{}, release chan<- struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hold = make(chan struct{})
	r.entered = make(chan struct{}, 1024)
	return r.entered, r.hold
}

func (r *recordingExecutor) stepLog() []stepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stepRecord(nil), r.steps...)
}
