package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"go.uber.org/zap"

	"fdmheat/internal/fdm"
	"fdmheat/internal/palette"
)

const headlessPoll = 5 * time.Millisecond

// runHeadless lets sys run until it completes iterations steps, then stops
// it and writes the colorized final grid to out. The loop may finish the
// step in flight, so the snapshot can be one iteration past the target.
func runHeadless(ctx context.Context, sys *fdm.System, pal palette.Palette, iterations uint64, out string, log *zap.Logger) error {
	started := time.Now()
	ticker := time.NewTicker(headlessPoll)
	defer ticker.Stop()
wait:
	for sys.Iteration() < iterations {
		select {
		case <-ctx.Done():
			log.Warn("interrupted", zap.Uint64("iteration", sys.Iteration()))
			break wait
		case <-sys.Done():
			break wait
		case <-ticker.C:
		}
	}
	sys.Stop()
	sys.Wait()
	defer sys.Release()
	if err := sys.Err(); err != nil {
		return fmt.Errorf("simulation halted: %w", err)
	}

	width, height := sys.Width(), sys.Height()
	values := make([]float32, width*height)
	if err := sys.ReadOutput(nil, values); err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	pal.Colorize(img.Pix, values)
	if err := writePNG(out, img); err != nil {
		return err
	}

	elapsed := time.Since(started)
	log.Info("snapshot written",
		zap.String("path", out),
		zap.Uint64("iteration", sys.Iteration()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("steps_per_second", float64(sys.Iteration())/elapsed.Seconds()))
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
