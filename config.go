package main

import "time"

// Application defaults. Flags in flags.go override most of them.
const (
	defaultWidth         = 256
	defaultHeight        = 256
	defaultWindowScale   = 3
	defaultBrushRadius   = 4
	minBrushRadius       = 0
	maxBrushRadius       = 64
	brushRadiusStep      = 1
	defaultTPS           = 60
	defaultIterations    = 1000
	defaultOutputPath    = "heat.png"
	windowTitle          = "FDM Heat"
	overlayRefresh       = 250 * time.Millisecond
	metricsShutdownGrace = 2 * time.Second
)
