package fdm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdmheat/internal/device"
)

func TestReader_SkipsUnchangedIteration(t *testing.T) {
	sys := New(newRecorder(t), Options{})
	values := []float32{0, 0.25, 0.5, 1}
	require.NoError(t, sys.LoadValues(values, 2, 2))

	r := NewReader(sys, nil)
	assert.Equal(t, "reader", r.Owner().Name())

	dst := make([]float32, 4)
	snap, err := r.Read(dst)
	require.NoError(t, err)
	assert.True(t, snap.Updated)
	assert.Zero(t, snap.Iteration)
	assert.Equal(t, values, dst)

	snap, err = r.Read(dst)
	require.NoError(t, err)
	assert.False(t, snap.Updated)

	r.Invalidate()
	snap, err = r.Read(dst)
	require.NoError(t, err)
	assert.True(t, snap.Updated)
}

func TestReader_CopiesWhileSuspended(t *testing.T) {
	sys := New(newRecorder(t), Options{})
	require.NoError(t, sys.LoadValues(make([]float32, 9), 3, 3))

	ui := sys.NewOwner("ui")
	r := NewReader(sys, ui)
	dst := make([]float32, 9)
	_, err := r.Read(dst)
	require.NoError(t, err)

	ui.Suspend()
	defer ui.Resume()
	require.NoError(t, sys.ApplyEdit(ui, Brush(1, 1, 0, true)))

	// The iteration is unchanged, but edits may land while suspended.
	snap, err := r.Read(dst)
	require.NoError(t, err)
	assert.True(t, snap.Updated)
	assert.Equal(t, HotValue, dst[4])
	assert.True(t, ui.Holds(), "reading through the holder keeps the suspension")
}

func TestReader_ConsistentWhileRunning(t *testing.T) {
	sys := startSystem(t, newRecorder(t), Options{StepInterval: time.Millisecond}, 8, 8)
	r := NewReader(sys, nil)
	dst := make([]float32, 64)

	var last uint64
	for i := 0; i < 20; i++ {
		snap, err := r.Read(dst)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.Iteration, last)
		last = snap.Iteration
		time.Sleep(time.Millisecond)
	}
	assert.False(t, r.Owner().Holds())
	waitIteration(t, sys, last+1)

	snap, err := r.Read(dst)
	require.NoError(t, err)
	assert.True(t, snap.Updated)
	assert.Greater(t, snap.Iteration, last)
}

func TestReader_ParkedLoopReportsIteration(t *testing.T) {
	sys := startSystem(t, newRecorder(t), Options{StepInterval: time.Hour}, 4, 4)
	waitIteration(t, sys, 1)

	r := NewReader(sys, nil)
	snap, err := r.Read(make([]float32, 16))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Iteration)
}

func TestReader_ErrorLeavesReaderUnprimed(t *testing.T) {
	sys := New(newRecorder(t), Options{})
	require.NoError(t, sys.LoadValues(make([]float32, 4), 2, 2))
	r := NewReader(sys, nil)

	_, err := r.Read(make([]float32, 3))
	require.ErrorIs(t, err, device.ErrSizeMismatch)
	assert.False(t, r.Owner().Holds())

	snap, err := r.Read(make([]float32, 4))
	require.NoError(t, err)
	assert.True(t, snap.Updated)
}

func TestReader_NoSystem(t *testing.T) {
	sys := New(newRecorder(t), Options{})
	_, err := NewReader(sys, nil).Read(nil)
	assert.ErrorIs(t, err, ErrNoSystem)
}

func TestReader_AfterStop(t *testing.T) {
	sys := New(newRecorder(t), Options{})
	require.NoError(t, sys.LoadValues(make([]float32, 4), 2, 2))
	require.NoError(t, sys.Start(context.Background()))
	waitIteration(t, sys, 1)
	sys.Stop()
	sys.Wait()

	snap, err := NewReader(sys, nil).Read(make([]float32, 4))
	require.NoError(t, err)
	assert.Equal(t, sys.Iteration(), snap.Iteration)
}
