package main

import (
	"flag"

	"fdmheat/internal/device"
)

// Command-line flags for loading, the simulation backend, the window and the
// headless runner.
var (
	// inputFlag names an image whose red channel seeds the grid.
	inputFlag = flag.String("input", "", "image to load as the initial system (darker is hotter)")

	// paletteFlag names an image whose first row of pixels becomes the colormap.
	paletteFlag = flag.String("palette", "", "image whose first pixel row is used as the colormap")

	widthFlag  = flag.Int("width", defaultWidth, "grid width when no -input is given")
	heightFlag = flag.Int("height", defaultHeight, "grid height when no -input is given")

	// backendFlag selects the device executor.
	backendFlag = flag.String("backend", "cpu", "device backend: cpu or opencl")

	workersFlag     = flag.Int("workers", 0, "CPU backend worker count (0 = GOMAXPROCS)")
	diffusivityFlag = flag.Float64("diffusivity", device.DefaultDiffusivity, "FDM diffusion coefficient, in (0, 0.25]")

	brushRadiusFlag = flag.Int("brush-radius", defaultBrushRadius, "initial brush radius in cells")
	scaleFlag       = flag.Int("scale", defaultWindowScale, "window pixels per grid cell")
	fpsFlag         = flag.Int("fps", defaultTPS, "display and input rate")

	// stepIntervalFlag throttles the loop; zero runs it flat out.
	stepIntervalFlag = flag.Duration("step-interval", 0, "minimum wall time per simulation step")

	haltOnDeviceErrorFlag = flag.Bool("halt-on-device-error", false, "stop the loop on the first failed step")

	// headlessFlag runs -iterations steps without a window and writes -out.
	headlessFlag   = flag.Bool("headless", false, "run without a window and write a PNG snapshot")
	iterationsFlag = flag.Uint64("iterations", defaultIterations, "steps to run in headless mode")
	outFlag        = flag.String("out", defaultOutputPath, "PNG written by headless mode")

	metricsAddrFlag = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	cpuProfileFlag  = flag.String("cpuprofile", "", "write a CPU profile to this file")
	logJSONFlag     = flag.Bool("log-json", false, "log JSON instead of the console format")

	// debugFlag enables the FPS and simulation overlay.
	debugFlag = flag.Bool("debug", false, "show FPS and simulation overlay and log edits")
)
