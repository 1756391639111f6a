package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fdmheat/internal/fdm"
	"fdmheat/internal/field"
)

func main() {
	flag.Parse()
	log, err := newLogger(*logJSONFlag, *debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(log); err != nil {
		log.Error("fatal", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

// newLogger builds the console logger, or the JSON production logger when
// asJSON is set. Debug level is only enabled with debug.
func newLogger(asJSON, debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if asJSON {
		cfg = zap.NewProductionConfig()
	}
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func run(log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *cpuProfileFlag != "" {
		stopProfile, err := startCPUProfile(*cpuProfileFlag, log)
		if err != nil {
			return err
		}
		defer stopProfile()
	}
	if *metricsAddrFlag != "" {
		srv := serveMetrics(*metricsAddrFlag, log)
		defer shutdownMetrics(srv, log)
	}

	dev, err := newExecutor(*backendFlag, *workersFlag, float32(*diffusivityFlag), log)
	if err != nil {
		return err
	}
	defer dev.Close()

	pal, err := loadPalette(*paletteFlag)
	if err != nil {
		return err
	}
	load := func() (*field.Field, error) {
		return loadField(*inputFlag, *widthFlag, *heightFlag)
	}
	opts := fdm.Options{
		Logger:            log,
		HaltOnDeviceError: *haltOnDeviceErrorFlag,
		StepInterval:      *stepIntervalFlag,
	}

	if *headlessFlag {
		src, err := load()
		if err != nil {
			return err
		}
		sys, err := newSystem(ctx, dev, opts, src)
		if err != nil {
			return err
		}
		return runHeadless(ctx, sys, pal, *iterationsFlag, *outFlag, log)
	}

	g, err := newGame(ctx, dev, opts, load, pal, log)
	if err != nil {
		return err
	}
	defer g.close()

	ebiten.SetWindowSize(g.width*max(*scaleFlag, 1), g.height*max(*scaleFlag, 1))
	ebiten.SetWindowTitle(windowTitle)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(max(*fpsFlag, 1))
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
