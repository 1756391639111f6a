package main

// clampCoord constrains v to lie within the inclusive [min, max] range.
func clampCoord(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// screenToGrid maps a logical screen position onto a grid cell. The screen is
// laid out one pixel per cell, so only clamping is needed.
func screenToGrid(x, y, width, height int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	inside := x >= 0 && x < width && y >= 0 && y < height
	return clampCoord(x, 0, width-1), clampCoord(y, 0, height-1), inside
}
