package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"fdmheat/internal/fdm"
)

var errQuit = ebiten.Termination

// handleControls processes key and mouse input for one tick.
func (g *Game) handleControls() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return errQuit
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.toggleSuspend()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.reload(); err != nil {
			g.log.Warn("reload failed, keeping current system", zap.Error(err))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeftBracket) {
		g.adjustBrushRadius(-brushRadiusStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRightBracket) {
		g.adjustBrushRadius(brushRadiusStep)
	}
	g.handleBrush()
	return nil
}

// toggleSuspend pauses or resumes the loop. The UI owner keeps the gate
// across frames while paused.
func (g *Game) toggleSuspend() {
	if g.ui.Holds() {
		g.ui.Resume()
		g.log.Info("resumed", zap.Uint64("iteration", g.sys.Iteration()))
		return
	}
	g.ui.Suspend()
	g.log.Info("paused", zap.Uint64("iteration", g.sys.Iteration()))
}

// handleBrush paints cold with the left button and hot with the right one.
func (g *Game) handleBrush() {
	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	if !left && !right {
		return
	}
	cx, cy := ebiten.CursorPosition()
	x, y, inside := screenToGrid(cx, cy, g.width, g.height)
	if !inside {
		return
	}
	g.paint(fdm.Brush(x, y, g.brushRadius, right))
}

// paint applies e under the UI owner and marks the picture stale.
func (g *Game) paint(e fdm.Edit) {
	if err := g.sys.ApplyEditSuspended(g.ui, e); err != nil {
		g.log.Warn("edit failed", zap.Error(err))
		return
	}
	g.reader.Invalidate()
	g.dirty = true
}

// adjustBrushRadius clamps the brush radius delta within bounds.
func (g *Game) adjustBrushRadius(delta int) {
	g.brushRadius = clampCoord(g.brushRadius+delta, minBrushRadius, maxBrushRadius)
}
