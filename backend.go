package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fdmheat/internal/device"
	"fdmheat/internal/fdm"
	"fdmheat/internal/field"
	"fdmheat/internal/palette"
)

var errUnknownBackend = errors.New("unknown backend")

// newExecutor builds the device executor named by backend.
func newExecutor(backend string, workers int, diffusivity float32, log *zap.Logger) (device.Executor, error) {
	switch backend {
	case "cpu":
		cpu, err := device.NewCPU(device.CPUOptions{
			Workers:     workers,
			Diffusivity: diffusivity,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating cpu executor: %w", err)
		}
		return cpu, nil
	case "opencl":
		cl, err := device.NewOpenCL(device.OpenCLOptions{
			Diffusivity: diffusivity,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating opencl executor: %w", err)
		}
		log.Info("OpenCL executor enabled", zap.String("device", cl.Name()))
		return cl, nil
	default:
		return nil, fmt.Errorf("%w %q (want cpu or opencl)", errUnknownBackend, backend)
	}
}

// loadField reads the initial system from path, or makes a cold width x
// height grid when path is empty.
func loadField(path string, width, height int) (*field.Field, error) {
	if path == "" {
		return field.Blank(width, height)
	}
	return field.Load(path)
}

// loadPalette reads a palette image, falling back to the built-in ramp.
func loadPalette(path string) (palette.Palette, error) {
	if path == "" {
		return palette.Default(), nil
	}
	return palette.Load(path)
}

// newSystem loads f onto dev and starts its loop. Cancelling ctx stops it.
func newSystem(ctx context.Context, dev device.Executor, opts fdm.Options, f *field.Field) (*fdm.System, error) {
	sys := fdm.New(dev, opts)
	if err := sys.LoadSystem(f); err != nil {
		return nil, err
	}
	if err := sys.Start(ctx); err != nil {
		_ = sys.Release()
		return nil, err
	}
	return sys, nil
}

// stopSystem stops sys, waits for its loop and frees its grids.
func stopSystem(sys *fdm.System) {
	sys.Stop()
	sys.Wait()
	_ = sys.Release()
}

// serveMetrics exposes the Prometheus registry on addr in the background.
func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
}
