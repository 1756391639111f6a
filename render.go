package main

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"go.uber.org/zap"
)

var brushOutline = color.RGBA{255, 255, 255, 160}

// Draw renders the latest generation, the brush outline and the optional
// overlay. The grid is only copied and recolored when it changed.
func (g *Game) Draw(screen *ebiten.Image) {
	snap, err := g.reader.Read(g.values)
	switch {
	case err != nil:
		if time.Since(g.lastReadErr) > time.Second {
			g.log.Warn("reading output grid", zap.Error(err))
			g.lastReadErr = time.Now()
		}
	case snap.Updated || g.dirty:
		g.pal.Colorize(g.pixels, g.values)
		g.dirty = false
	}
	screen.WritePixels(g.pixels)

	cx, cy := ebiten.CursorPosition()
	if x, y, inside := screenToGrid(cx, cy, g.width, g.height); inside {
		g.drawBrush(screen, x, y)
	}

	if *debugFlag {
		g.drawOverlay(screen, snap.Iteration)
	}
}

// Layout reports the logical screen size used by Ebiten: one pixel per cell.
func (g *Game) Layout(_, _ int) (int, int) { return g.width, g.height }

// drawBrush marks the ring of cells at the edge of the brush disc.
func (g *Game) drawBrush(screen *ebiten.Image, cx, cy int) {
	r := g.brushRadius
	inner := (r - 1) * (r - 1)
	if r == 0 {
		inner = -1
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d := dx*dx + dy*dy
			if d > r*r || d <= inner {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= 0 && x < g.width && y >= 0 && y < g.height {
				screen.Set(x, y, brushOutline)
			}
		}
	}
}

// drawOverlay prints FPS and simulation progress.
func (g *Game) drawOverlay(screen *ebiten.Image, iter uint64) {
	now := time.Now()
	if elapsed := now.Sub(g.lastOverlay); elapsed >= overlayRefresh {
		if !g.lastOverlay.IsZero() && iter >= g.lastOverlayIter {
			g.stepsPerSecond = float64(iter-g.lastOverlayIter) / elapsed.Seconds()
		}
		g.lastOverlay = now
		g.lastOverlayIter = iter
	}
	state := "running"
	if g.sys.IsSuspended() {
		state = "suspended"
	}
	msg := fmt.Sprintf("FPS: %.1f\nIteration: %d (%s)\nSteps: %.0f/s\nBrush: %d\nDevice: %s",
		ebiten.ActualFPS(), iter, state, g.stepsPerSecond, g.brushRadius, g.dev.Name())
	ebitenutil.DebugPrint(screen, msg)
}
