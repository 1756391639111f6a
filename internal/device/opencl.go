//go:build opencl

package device

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const heatKernelSource = `__kernel void fdm_heat(
    const int width,
    const int height,
    const float k,
    __global const float* in,
    __global float* out)
{
    int idx = get_global_id(0);
    int size = width * height;
    if (idx >= size) {
        return;
    }
    int x = idx % width;
    int y = idx / width;
    float center = in[idx];
    if (x <= 0 || x >= width - 1 || y <= 0 || y >= height - 1) {
        out[idx] = center;
        return;
    }
    float laplacian = in[idx - 1] + in[idx + 1] + in[idx - width] + in[idx + width] - 4.0f * center;
    out[idx] = center + k * laplacian;
}

__kernel void heat_brush(
    __global float* out,
    const int width,
    const int height,
    const int cx,
    const int cy,
    const int radius,
    const float value)
{
    int idx = get_global_id(0);
    if (idx >= width * height) {
        return;
    }
    long dx = (long)(idx % width) - cx;
    long dy = (long)(idx / width) - cy;
    long r = radius;
    if (radius < 0 || dx * dx + dy * dy <= r * r) {
        out[idx] = value;
    }
}`

// OpenCLOptions configures the OpenCL executor.
type OpenCLOptions struct {
	// Diffusivity is the stencil coefficient. Zero means DefaultDiffusivity.
	Diffusivity float32
	Logger      *zap.Logger
}

// clBuffer is a device grid allocated from an OpenCL context.
type clBuffer struct {
	owner    *OpenCL
	mem      *cl.MemObject
	width    int
	height   int
	released atomic.Bool
}

func (b *clBuffer) Width() int  { return b.width }
func (b *clBuffer) Height() int { return b.height }

// OpenCL is an Executor backed by one in-order OpenCL command queue.
type OpenCL struct {
	log         *zap.Logger
	diffusivity float32

	// mu serializes kernel argument binding with the enqueue that uses it.
	mu          sync.Mutex
	context     *cl.Context
	queue       *cl.CommandQueue
	program     *cl.Program
	stepKernel  *cl.Kernel
	brushKernel *cl.Kernel
	deviceName  string
	buffers     map[*clBuffer]struct{}
	closed      bool
}

// selectDevice returns the first GPU, falling back to the first CPU device.
func selectDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, errors.New("no suitable OpenCL devices found")
}

// NewOpenCL creates a context, queue and the heat kernels on the first
// usable device.
func NewOpenCL(opts OpenCLOptions) (*OpenCL, error) {
	if opts.Diffusivity == 0 {
		opts.Diffusivity = DefaultDiffusivity
	}
	if !validDiffusivity(opts.Diffusivity) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidDiffusivity, opts.Diffusivity)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	device, err := selectDevice()
	if err != nil {
		return nil, err
	}

	s := &OpenCL{
		log:         opts.Logger.Named("opencl"),
		diffusivity: opts.Diffusivity,
		deviceName:  device.Name(),
		buffers:     make(map[*clBuffer]struct{}),
	}
	s.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	s.queue, err = s.context.CreateCommandQueue(device, 0)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	s.program, err = s.context.CreateProgramWithSource([]string{heatKernelSource})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := s.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		s.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	s.stepKernel, err = s.program.CreateKernel("fdm_heat")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating step kernel: %w", err)
	}
	s.brushKernel, err = s.program.CreateKernel("heat_brush")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating brush kernel: %w", err)
	}
	if err := s.stepKernel.SetArgFloat32(2, s.diffusivity); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting diffusivity: %w", err)
	}
	s.log.Info("OpenCL executor ready", zap.String("device", s.deviceName))
	return s, nil
}

// Name reports the backend and device name.
func (s *OpenCL) Name() string {
	return "opencl (" + s.deviceName + ")"
}

// own resolves buf to a live buffer of this executor.
func (s *OpenCL) own(buf Buffer) (*clBuffer, error) {
	b, ok := buf.(*clBuffer)
	if !ok || b == nil || b.owner != s {
		return nil, ErrForeignBuffer
	}
	if b.released.Load() {
		return nil, ErrReleased
	}
	return b, nil
}

// Allocate creates a zeroed device grid.
func (s *OpenCL) Allocate(width, height int) (Buffer, error) {
	if !validGrid(width, height) {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrSizeMismatch, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	size := width * height
	mem, err := s.context.CreateEmptyBuffer(cl.MemReadWrite, size*int(unsafe.Sizeof(float32(0))))
	if err != nil {
		return nil, fmt.Errorf("allocating %dx%d grid: %w", width, height, err)
	}
	zeros := make([]float32, size)
	if _, err := s.queue.EnqueueWriteBufferFloat32(mem, true, 0, zeros, nil); err != nil {
		mem.Release()
		return nil, fmt.Errorf("clearing %dx%d grid: %w", width, height, err)
	}
	b := &clBuffer{owner: s, mem: mem, width: width, height: height}
	s.buffers[b] = struct{}{}
	return b, nil
}

// Release frees buf. Releasing twice is a no-op.
func (s *OpenCL) Release(buf Buffer) {
	b, ok := buf.(*clBuffer)
	if !ok || b == nil || b.owner != s {
		return
	}
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	delete(s.buffers, b)
	s.mu.Unlock()
	b.mem.Release()
}

// Upload copies values into dst with a blocking write.
func (s *OpenCL) Upload(dst Buffer, values []float32) error {
	b, err := s.own(dst)
	if err != nil {
		return fmt.Errorf("uploading grid: %w", err)
	}
	if len(values) != b.width*b.height {
		return fmt.Errorf("uploading grid: %w", ErrSizeMismatch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.queue.EnqueueWriteBufferFloat32(b.mem, true, 0, values, nil); err != nil {
		return fmt.Errorf("writing grid buffer: %w", err)
	}
	return nil
}

// Download copies src into dst with a blocking read, which the in-order
// queue places after all earlier work.
func (s *OpenCL) Download(src Buffer, dst []float32) error {
	b, err := s.own(src)
	if err != nil {
		return fmt.Errorf("downloading grid: %w", err)
	}
	if len(dst) != b.width*b.height {
		return fmt.Errorf("downloading grid: %w", ErrSizeMismatch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.queue.EnqueueReadBufferFloat32(b.mem, true, 0, dst, nil); err != nil {
		return fmt.Errorf("reading grid buffer: %w", err)
	}
	return nil
}

// SubmitStep enqueues the heat kernel from in to out.
func (s *OpenCL) SubmitStep(in, out Buffer, width, height int) error {
	src, err := s.own(in)
	if err != nil {
		return fmt.Errorf("submitting step input: %w", err)
	}
	dst, err := s.own(out)
	if err != nil {
		return fmt.Errorf("submitting step output: %w", err)
	}
	if src == dst || src.width != width || src.height != height || dst.width != width || dst.height != height {
		return fmt.Errorf("submitting step: %w", ErrSizeMismatch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.stepKernel.SetArgInt32(0, int32(width)); err != nil {
		return fmt.Errorf("setting step width: %w", err)
	}
	if err := s.stepKernel.SetArgInt32(1, int32(height)); err != nil {
		return fmt.Errorf("setting step height: %w", err)
	}
	if err := s.stepKernel.SetArgBuffer(3, src.mem); err != nil {
		return fmt.Errorf("binding step input: %w", err)
	}
	if err := s.stepKernel.SetArgBuffer(4, dst.mem); err != nil {
		return fmt.Errorf("binding step output: %w", err)
	}
	if _, err := s.queue.EnqueueNDRangeKernel(s.stepKernel, nil, []int{width * height}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing step kernel: %w", err)
	}
	return nil
}

// SubmitEdit enqueues the brush kernel on out.
func (s *OpenCL) SubmitEdit(out Buffer, x, y, radius int, value float32) error {
	dst, err := s.own(out)
	if err != nil {
		return fmt.Errorf("submitting edit: %w", err)
	}
	if err := validEdit(x, y, radius); err != nil {
		return fmt.Errorf("submitting edit: %w", err)
	}
	// A negative kernel radius fills the whole grid.
	r, full := clampRadius(dst.width, dst.height, x, y, radius)
	kernelRadius := int32(r)
	if full {
		kernelRadius = -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.brushKernel.SetArgs(
		dst.mem,
		int32(dst.width),
		int32(dst.height),
		int32(x),
		int32(y),
		kernelRadius,
		value,
	); err != nil {
		return fmt.Errorf("setting brush kernel arguments: %w", err)
	}
	if _, err := s.queue.EnqueueNDRangeKernel(s.brushKernel, nil, []int{dst.width * dst.height}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing brush kernel: %w", err)
	}
	return nil
}

// WaitAll blocks until the queue drains. Close cannot release the queue
// while it waits.
func (s *OpenCL) WaitAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.queue.Finish(); err != nil {
		return fmt.Errorf("finishing command queue: %w", err)
	}
	return nil
}

// Close releases buffers, kernels, program, queue and context.
func (s *OpenCL) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.queue != nil {
		_ = s.queue.Finish()
	}
	for b := range s.buffers {
		if b.released.CompareAndSwap(false, true) {
			b.mem.Release()
		}
	}
	s.buffers = nil
	if s.stepKernel != nil {
		s.stepKernel.Release()
		s.stepKernel = nil
	}
	if s.brushKernel != nil {
		s.brushKernel.Release()
		s.brushKernel = nil
	}
	if s.program != nil {
		s.program.Release()
		s.program = nil
	}
	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.context != nil {
		s.context.Release()
		s.context = nil
	}
}
