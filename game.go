package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fdmheat/internal/device"
	"fdmheat/internal/fdm"
	"fdmheat/internal/field"
	"fdmheat/internal/palette"
)

// Game displays a running heat system and turns input into edits.
type Game struct {
	ctx  context.Context
	log  *zap.Logger
	dev  device.Executor
	opts fdm.Options
	load func() (*field.Field, error)
	pal  palette.Palette

	sys    *fdm.System
	ui     *fdm.Owner
	reader *fdm.Reader

	width, height int
	values        []float32
	pixels        []byte
	dirty         bool

	brushRadius int

	lastOverlay     time.Time
	lastOverlayIter uint64
	stepsPerSecond  float64
	lastReadErr     time.Time
}

// newGame loads the first system and starts it.
func newGame(ctx context.Context, dev device.Executor, opts fdm.Options, load func() (*field.Field, error), pal palette.Palette, log *zap.Logger) (*Game, error) {
	g := &Game{
		ctx:         ctx,
		log:         log.Named("game"),
		dev:         dev,
		opts:        opts,
		load:        load,
		pal:         pal,
		brushRadius: clampCoord(*brushRadiusFlag, minBrushRadius, maxBrushRadius),
	}
	if err := g.reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// reload replaces the running system with a fresh one from the loader. A
// stopped system cannot be restarted, so each reload builds a new System.
// The new system is loaded before the old one stops; on failure the current
// system keeps running.
func (g *Game) reload() error {
	f, err := g.load()
	if err != nil {
		return fmt.Errorf("loading system: %w", err)
	}
	next := fdm.New(g.dev, g.opts)
	if err := next.LoadSystem(f); err != nil {
		return fmt.Errorf("loading system: %w", err)
	}
	if g.sys != nil {
		g.ui.Resume()
		stopSystem(g.sys)
	}
	if err := next.Start(g.ctx); err != nil {
		_ = next.Release()
		return fmt.Errorf("starting system: %w", err)
	}
	g.sys = next
	g.ui = next.NewOwner("ui")
	g.reader = fdm.NewReader(next, g.ui)
	if g.width != f.Width || g.height != f.Height {
		g.width, g.height = f.Width, f.Height
		g.values = make([]float32, f.Width*f.Height)
		g.pixels = make([]byte, f.Width*f.Height*4)
	}
	g.dirty = true
	g.lastOverlayIter = 0
	g.log.Info("system ready", zap.Int("width", f.Width), zap.Int("height", f.Height))
	return nil
}

// Update handles input. The simulation advances on its own goroutine.
func (g *Game) Update() error {
	if err := g.sys.Err(); err != nil {
		return fmt.Errorf("simulation halted: %w", err)
	}
	if g.ctx.Err() != nil {
		return errQuit
	}
	return g.handleControls()
}

// close stops the current system and frees its grids.
func (g *Game) close() {
	if g.sys != nil {
		g.ui.Resume()
		stopSystem(g.sys)
	}
}
