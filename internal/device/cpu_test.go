package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCPU(t *testing.T, workers int) *CPU {
	t.Helper()
	c, err := NewCPU(CPUOptions{Workers: workers, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func allocFilled(t *testing.T, c *CPU, w, h int, values []float32) Buffer {
	t.Helper()
	buf, err := c.Allocate(w, h)
	require.NoError(t, err)
	if values != nil {
		require.NoError(t, c.Upload(buf, values))
	}
	return buf
}

func download(t *testing.T, c *CPU, buf Buffer) []float32 {
	t.Helper()
	out := make([]float32, buf.Width()*buf.Height())
	require.NoError(t, c.Download(buf, out))
	return out
}

func TestNewCPU_Diffusivity(t *testing.T) {
	tests := []struct {
		name    string
		k       float32
		wantErr bool
	}{
		{name: "default", k: 0},
		{name: "stability limit", k: MaxDiffusivity},
		{name: "negative", k: -0.1, wantErr: true},
		{name: "unstable", k: 0.3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCPU(CPUOptions{Diffusivity: tt.k})
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDiffusivity)
				return
			}
			require.NoError(t, err)
			c.Close()
		})
	}
}

func TestCPU_StepHeatStencil(t *testing.T) {
	c := newTestCPU(t, 1)
	in := allocFilled(t, c, 3, 3, []float32{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	out := allocFilled(t, c, 3, 3, nil)

	require.NoError(t, c.SubmitStep(in, out, 3, 3))
	require.NoError(t, c.WaitAll())

	got := download(t, c, out)
	// Only the center is interior; borders keep their input.
	assert.InDelta(t, 1-4*DefaultDiffusivity, got[4], 1e-6)
	for i, v := range got {
		if i == 4 {
			continue
		}
		assert.Zero(t, v, "border cell %d", i)
	}
}

func TestCPU_StepDiffusesIntoNeighbours(t *testing.T) {
	c := newTestCPU(t, 1)
	values := make([]float32, 25)
	values[12] = 1
	in := allocFilled(t, c, 5, 5, values)
	out := allocFilled(t, c, 5, 5, nil)

	require.NoError(t, c.SubmitStep(in, out, 5, 5))
	require.NoError(t, c.WaitAll())

	got := download(t, c, out)
	for _, idx := range []int{7, 11, 13, 17} {
		assert.InDelta(t, DefaultDiffusivity, got[idx], 1e-6)
	}
	assert.InDelta(t, 1-4*DefaultDiffusivity, got[12], 1e-6)
	assert.Zero(t, got[6])
}

func TestCPU_ParallelBandsMatchSerial(t *testing.T) {
	const w, h = 17, 23
	values := make([]float32, w*h)
	for i := range values {
		values[i] = float32((i*37)%101) / 100
	}

	run := func(workers int) []float32 {
		c := newTestCPU(t, workers)
		a := allocFilled(t, c, w, h, values)
		b := allocFilled(t, c, w, h, nil)
		for i := 0; i < 10; i++ {
			in, out := a, b
			if i%2 == 1 {
				in, out = b, a
			}
			require.NoError(t, c.SubmitStep(in, out, w, h))
		}
		require.NoError(t, c.WaitAll())
		return download(t, c, a)
	}

	assert.Equal(t, run(1), run(4))
}

func TestCPU_EditDisc(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		radius int
		want   [][2]int
	}{
		{name: "single cell", x: 2, y: 2, radius: 0, want: [][2]int{{2, 2}}},
		{name: "radius one", x: 2, y: 2, radius: 1, want: [][2]int{{2, 1}, {1, 2}, {2, 2}, {3, 2}, {2, 3}}},
		{name: "clipped at corner", x: 0, y: 0, radius: 1, want: [][2]int{{0, 0}, {1, 0}, {0, 1}}},
		{name: "outside grid", x: -5, y: -5, radius: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCPU(t, 1)
			buf := allocFilled(t, c, 5, 5, nil)
			require.NoError(t, c.SubmitEdit(buf, tt.x, tt.y, tt.radius, 1))
			require.NoError(t, c.WaitAll())

			got := download(t, c, buf)
			want := make([]float32, 25)
			for _, p := range tt.want {
				want[p[1]*5+p[0]] = 1
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestCPU_InOrderExecution(t *testing.T) {
	c := newTestCPU(t, 2)
	a := allocFilled(t, c, 4, 4, nil)
	b := allocFilled(t, c, 4, 4, nil)

	// The edit lands in a before the step reads it, and the second edit
	// overwrites the step output afterwards.
	require.NoError(t, c.SubmitEdit(a, 1, 1, 0, 1))
	require.NoError(t, c.SubmitStep(a, b, 4, 4))
	require.NoError(t, c.SubmitEdit(b, 1, 1, 0, 0.5))
	require.NoError(t, c.WaitAll())

	got := download(t, c, b)
	assert.InDelta(t, 0.5, got[5], 1e-6)
	assert.InDelta(t, DefaultDiffusivity, got[6], 1e-6)
}

func TestCPU_SubmitValidation(t *testing.T) {
	c := newTestCPU(t, 1)
	other := newTestCPU(t, 1)
	a := allocFilled(t, c, 4, 4, nil)
	b := allocFilled(t, c, 4, 4, nil)
	small := allocFilled(t, c, 2, 2, nil)
	foreign := allocFilled(t, other, 4, 4, nil)

	assert.ErrorIs(t, c.SubmitStep(a, a, 4, 4), ErrSizeMismatch)
	assert.ErrorIs(t, c.SubmitStep(a, small, 4, 4), ErrSizeMismatch)
	assert.ErrorIs(t, c.SubmitStep(a, b, 3, 4), ErrSizeMismatch)
	assert.ErrorIs(t, c.SubmitStep(a, foreign, 4, 4), ErrForeignBuffer)
	assert.Error(t, c.SubmitEdit(a, 0, 0, -1, 1))
	assert.ErrorIs(t, c.Upload(a, make([]float32, 3)), ErrSizeMismatch)
	assert.ErrorIs(t, c.Download(a, make([]float32, 3)), ErrSizeMismatch)

	c.Release(b)
	c.Release(b)
	assert.ErrorIs(t, c.SubmitStep(a, b, 4, 4), ErrReleased)
}

func TestCPU_WaitAllReportsQueuedFailure(t *testing.T) {
	c := newTestCPU(t, 1)
	a := allocFilled(t, c, 4, 4, nil)
	b := allocFilled(t, c, 4, 4, nil)

	// Hold the stream so the release happens between submit and execute.
	gate := make(chan struct{})
	require.NoError(t, c.enqueue(command{run: func() error {
		<-gate
		return nil
	}}))
	require.NoError(t, c.SubmitStep(a, b, 4, 4))
	c.Release(b)
	close(gate)

	assert.ErrorIs(t, c.WaitAll(), ErrReleased)
	// The failure is reported once; the stream keeps running.
	assert.NoError(t, c.WaitAll())
}

func TestCPU_Close(t *testing.T) {
	c, err := NewCPU(CPUOptions{Workers: 1})
	require.NoError(t, err)
	buf, err := c.Allocate(2, 2)
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, err = c.Allocate(2, 2)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.WaitAll(), ErrClosed)
	assert.ErrorIs(t, c.Upload(buf, make([]float32, 4)), ErrReleased)
}

func TestAssignRowBands(t *testing.T) {
	tests := []struct {
		name    string
		height  int
		workers int
		want    []rowBand
	}{
		{name: "even split", height: 4, workers: 2, want: []rowBand{{0, 2}, {2, 4}}},
		{name: "remainder goes first", height: 5, workers: 2, want: []rowBand{{0, 3}, {3, 5}}},
		{name: "more workers than rows", height: 2, workers: 8, want: []rowBand{{0, 1}, {1, 2}}},
		{name: "zero workers", height: 3, workers: 0, want: []rowBand{{0, 3}}},
		{name: "empty", height: 0, workers: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assignRowBands(tt.height, tt.workers))
		})
	}
}

func TestApplyDisc_Counts(t *testing.T) {
	tests := []struct {
		radius int
		want   int
	}{
		{radius: 0, want: 1},
		{radius: 1, want: 5},
		{radius: 2, want: 13},
	}
	for _, tt := range tests {
		out := make([]float32, 11*11)
		assert.Equal(t, tt.want, applyDisc(out, 11, 11, 5, 5, tt.radius, 1), "radius %d", tt.radius)
	}
}

func TestApplyDisc_HugeRadiusCoversGrid(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		radius int
	}{
		{name: "inside", x: 2, y: 2, radius: 1 << 20},
		{name: "max int", x: 1, y: 3, radius: math.MaxInt},
		{name: "far center", x: -MaxEditCoord, y: MaxEditCoord, radius: math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, 4*4)
			assert.Equal(t, 16, applyDisc(out, 4, 4, tt.x, tt.y, tt.radius, 1))
			for i, v := range out {
				assert.Equal(t, float32(1), v, "cell %d", i)
			}
		})
	}
}

func TestApplyDisc_RadiusJustShortOfCorner(t *testing.T) {
	// From (0, 0) the far corner of a 4x4 grid is sqrt(18) away.
	out := make([]float32, 16)
	assert.Equal(t, 15, applyDisc(out, 4, 4, 0, 0, 4, 1))
	assert.Zero(t, out[15])
}

func TestCPU_EditHugeRadius(t *testing.T) {
	c := newTestCPU(t, 2)
	buf := allocFilled(t, c, 4, 4, nil)
	require.NoError(t, c.SubmitEdit(buf, 2, 2, 1<<40, 1))
	require.NoError(t, c.WaitAll())
	for i, v := range download(t, c, buf) {
		assert.Equal(t, float32(1), v, "cell %d", i)
	}
}

func TestCPU_EditRejectsOutOfRange(t *testing.T) {
	c := newTestCPU(t, 1)
	buf := allocFilled(t, c, 4, 4, nil)
	assert.ErrorIs(t, c.SubmitEdit(buf, 0, 0, -1, 1), ErrOutOfRange)
	assert.ErrorIs(t, c.SubmitEdit(buf, MaxEditCoord+1, 0, 1, 1), ErrOutOfRange)
	assert.ErrorIs(t, c.SubmitEdit(buf, 0, math.MinInt, 1, 1), ErrOutOfRange)
	require.NoError(t, c.WaitAll())

	_, err := c.Allocate(MaxGridSide+1, 1)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
