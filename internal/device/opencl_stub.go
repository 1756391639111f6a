//go:build !opencl

package device

import (
	"errors"

	"go.uber.org/zap"
)

var errOpenCLDisabled = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

// OpenCLOptions configures the OpenCL executor.
type OpenCLOptions struct {
	Diffusivity float32
	Logger      *zap.Logger
}

// OpenCL is unavailable in builds without the opencl tag.
type OpenCL struct{}

// NewOpenCL always fails in builds without the opencl tag.
func NewOpenCL(OpenCLOptions) (*OpenCL, error) {
	return nil, errOpenCLDisabled
}

func (s *OpenCL) Name() string                              { return "" }
func (s *OpenCL) Allocate(int, int) (Buffer, error)         { return nil, errOpenCLDisabled }
func (s *OpenCL) Release(Buffer)                            {}
func (s *OpenCL) Upload(Buffer, []float32) error            { return errOpenCLDisabled }
func (s *OpenCL) Download(Buffer, []float32) error          { return errOpenCLDisabled }
func (s *OpenCL) SubmitStep(Buffer, Buffer, int, int) error { return errOpenCLDisabled }
func (s *OpenCL) SubmitEdit(Buffer, int, int, int, float32) error {
	return errOpenCLDisabled
}
func (s *OpenCL) WaitAll() error { return errOpenCLDisabled }
func (s *OpenCL) Close()         {}
