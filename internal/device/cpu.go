package device

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultQueueDepth bounds how many commands may be pending on the stream.
const defaultQueueDepth = 64

// CPUOptions configures the host executor.
type CPUOptions struct {
	// Workers is the number of goroutines sharing one step. Zero means GOMAXPROCS.
	Workers int
	// Diffusivity is the stencil coefficient. Zero means DefaultDiffusivity.
	Diffusivity float32
	// QueueDepth bounds pending commands. Zero means defaultQueueDepth.
	QueueDepth int
	Logger     *zap.Logger
}

// cpuBuffer is a host-memory grid owned by a CPU executor.
type cpuBuffer struct {
	owner    *CPU
	width    int
	height   int
	cells    []float32
	released atomic.Bool
}

func (b *cpuBuffer) Width() int  { return b.width }
func (b *cpuBuffer) Height() int { return b.height }

// command is one unit of work on the stream. Commands with a done channel
// report their own result; fences report the accumulated stream error.
type command struct {
	run   func() error
	done  chan error
	fence bool
}

// CPU is an Executor that runs kernels on the host. A single goroutine
// drains the command channel, so work executes strictly in submission order.
type CPU struct {
	log         *zap.Logger
	workers     int
	diffusivity float32

	// submitMu keeps Close from closing commands under a concurrent send.
	submitMu sync.RWMutex
	commands chan command
	closed   atomic.Bool
	stopped  chan struct{}

	mu       sync.Mutex
	buffers  map[*cpuBuffer]struct{}
	asyncErr error

	// Only touched by the stream goroutine.
	bands      []rowBand
	bandHeight int
}

// NewCPU starts a host executor.
func NewCPU(opts CPUOptions) (*CPU, error) {
	if opts.Diffusivity == 0 {
		opts.Diffusivity = DefaultDiffusivity
	}
	if !validDiffusivity(opts.Diffusivity) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidDiffusivity, opts.Diffusivity)
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &CPU{
		log:         opts.Logger.Named("cpu"),
		workers:     opts.Workers,
		diffusivity: opts.Diffusivity,
		commands:    make(chan command, opts.QueueDepth),
		stopped:     make(chan struct{}),
		buffers:     make(map[*cpuBuffer]struct{}),
	}
	go c.stream()
	c.log.Info("host executor started",
		zap.Int("workers", c.workers),
		zap.Float32("diffusivity", c.diffusivity))
	return c, nil
}

// Name reports the backend name.
func (c *CPU) Name() string {
	return fmt.Sprintf("cpu (%d workers)", c.workers)
}

// stream executes commands in order until the channel is closed.
func (c *CPU) stream() {
	defer close(c.stopped)
	for cmd := range c.commands {
		if cmd.fence {
			cmd.done <- c.takeAsyncErr()
			continue
		}
		err := cmd.run()
		if cmd.done != nil {
			cmd.done <- err
			continue
		}
		if err != nil {
			c.recordAsyncErr(err)
		}
	}
}

func (c *CPU) recordAsyncErr(err error) {
	c.mu.Lock()
	if c.asyncErr == nil {
		c.asyncErr = err
	}
	c.mu.Unlock()
	c.log.Warn("queued command failed", zap.Error(err))
}

func (c *CPU) takeAsyncErr() error {
	c.mu.Lock()
	err := c.asyncErr
	c.asyncErr = nil
	c.mu.Unlock()
	return err
}

// enqueue hands cmd to the stream goroutine.
func (c *CPU) enqueue(cmd command) error {
	c.submitMu.RLock()
	defer c.submitMu.RUnlock()
	if c.closed.Load() {
		return ErrClosed
	}
	c.commands <- cmd
	return nil
}

// do runs fn on the stream and waits for its result.
func (c *CPU) do(fn func() error) error {
	done := make(chan error, 1)
	if err := c.enqueue(command{run: fn, done: done}); err != nil {
		return err
	}
	return <-done
}

// Allocate creates a zeroed host grid.
func (c *CPU) Allocate(width, height int) (Buffer, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !validGrid(width, height) {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrSizeMismatch, width, height)
	}
	buf := &cpuBuffer{owner: c, width: width, height: height, cells: make([]float32, width*height)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffers == nil {
		return nil, ErrClosed
	}
	c.buffers[buf] = struct{}{}
	return buf, nil
}

// Release frees buf. Releasing twice or releasing nil is a no-op.
func (c *CPU) Release(buf Buffer) {
	b, ok := buf.(*cpuBuffer)
	if !ok || b == nil || b.owner != c {
		return
	}
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	if c.buffers != nil {
		delete(c.buffers, b)
	}
	c.mu.Unlock()
}

// own resolves buf to a live buffer of this executor.
func (c *CPU) own(buf Buffer) (*cpuBuffer, error) {
	b, ok := buf.(*cpuBuffer)
	if !ok || b == nil || b.owner != c {
		return nil, ErrForeignBuffer
	}
	if b.released.Load() {
		return nil, ErrReleased
	}
	return b, nil
}

// Upload copies values into dst.
func (c *CPU) Upload(dst Buffer, values []float32) error {
	b, err := c.own(dst)
	if err != nil {
		return fmt.Errorf("uploading grid: %w", err)
	}
	if len(values) != len(b.cells) {
		return fmt.Errorf("uploading grid: %w: %d values for %dx%d", ErrSizeMismatch, len(values), b.width, b.height)
	}
	return c.do(func() error {
		if b.released.Load() {
			return fmt.Errorf("uploading grid: %w", ErrReleased)
		}
		copy(b.cells, values)
		return nil
	})
}

// Download copies src into dst once earlier work has finished.
func (c *CPU) Download(src Buffer, dst []float32) error {
	b, err := c.own(src)
	if err != nil {
		return fmt.Errorf("downloading grid: %w", err)
	}
	if len(dst) != len(b.cells) {
		return fmt.Errorf("downloading grid: %w: %d slots for %dx%d", ErrSizeMismatch, len(dst), b.width, b.height)
	}
	return c.do(func() error {
		if b.released.Load() {
			return fmt.Errorf("downloading grid: %w", ErrReleased)
		}
		copy(dst, b.cells)
		return nil
	})
}

// SubmitStep enqueues one heat step from in to out.
func (c *CPU) SubmitStep(in, out Buffer, width, height int) error {
	src, err := c.own(in)
	if err != nil {
		return fmt.Errorf("submitting step input: %w", err)
	}
	dst, err := c.own(out)
	if err != nil {
		return fmt.Errorf("submitting step output: %w", err)
	}
	if src == dst {
		return fmt.Errorf("submitting step: %w: input and output are the same grid", ErrSizeMismatch)
	}
	if src.width != width || src.height != height || dst.width != width || dst.height != height {
		return fmt.Errorf("submitting step: %w: %dx%d grid against %dx%d and %dx%d buffers",
			ErrSizeMismatch, width, height, src.width, src.height, dst.width, dst.height)
	}
	return c.enqueue(command{run: func() error {
		if src.released.Load() || dst.released.Load() {
			return fmt.Errorf("running step: %w", ErrReleased)
		}
		return c.step(src, dst)
	}})
}

// step runs the stencil over row bands in parallel.
func (c *CPU) step(src, dst *cpuBuffer) error {
	if c.bandHeight != src.height || c.bands == nil {
		c.bands = assignRowBands(src.height, c.workers)
		c.bandHeight = src.height
	}
	if len(c.bands) == 1 {
		stepRows(src.cells, dst.cells, src.width, src.height, 0, src.height, c.diffusivity)
		return nil
	}
	var g errgroup.Group
	for _, band := range c.bands {
		band := band
		g.Go(func() error {
			stepRows(src.cells, dst.cells, src.width, src.height, band.start, band.end, c.diffusivity)
			return nil
		})
	}
	return g.Wait()
}

// SubmitEdit enqueues a disc brush on out.
func (c *CPU) SubmitEdit(out Buffer, x, y, radius int, value float32) error {
	dst, err := c.own(out)
	if err != nil {
		return fmt.Errorf("submitting edit: %w", err)
	}
	if err := validEdit(x, y, radius); err != nil {
		return fmt.Errorf("submitting edit: %w", err)
	}
	return c.enqueue(command{run: func() error {
		if dst.released.Load() {
			return fmt.Errorf("running edit: %w", ErrReleased)
		}
		applyDisc(dst.cells, dst.width, dst.height, x, y, radius, value)
		return nil
	}})
}

// WaitAll blocks until earlier work completes and returns the first error
// raised by queued work since the previous WaitAll.
func (c *CPU) WaitAll() error {
	done := make(chan error, 1)
	if err := c.enqueue(command{fence: true, done: done}); err != nil {
		return err
	}
	return <-done
}

// Close drains the stream and releases every buffer.
func (c *CPU) Close() {
	c.submitMu.Lock()
	if c.closed.Swap(true) {
		c.submitMu.Unlock()
		return
	}
	close(c.commands)
	c.submitMu.Unlock()
	<-c.stopped

	c.mu.Lock()
	for b := range c.buffers {
		b.released.Store(true)
	}
	c.buffers = nil
	c.mu.Unlock()
	c.log.Info("host executor closed")
}
