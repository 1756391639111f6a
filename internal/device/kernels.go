package device

// stepRows applies the heat stencil to rows [y0, y1) of out. Border cells
// keep their input value.
func stepRows(in, out []float32, width, height, y0, y1 int, k float32) {
	lastRow := height - 1
	lastCol := width - 1
	for y := y0; y < y1; y++ {
		base := y * width
		row := in[base : base+width]
		next := out[base : base+width]
		if y == 0 || y == lastRow || width < 3 {
			copy(next, row)
			continue
		}
		top := in[base-width : base]
		bottom := in[base+width : base+2*width]
		next[0] = row[0]
		next[lastCol] = row[lastCol]
		for x := 1; x < lastCol; x++ {
			c := row[x]
			lap := row[x-1] + row[x+1] + top[x] + bottom[x] - 4*c
			next[x] = c + k*lap
		}
	}
}

// discReach is a radius past which a disc centered at (cx, cy) covers
// every cell of a width x height grid.
func discReach(width, height, cx, cy int) int64 {
	return abs64(int64(cx)) + abs64(int64(cy)) + int64(width) + int64(height)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// clampRadius limits radius to discReach. A disc with the clamped radius
// covers the same cells of the grid. full reports that it covers all of them.
func clampRadius(width, height, cx, cy, radius int) (r int64, full bool) {
	reach := discReach(width, height, cx, cy)
	if int64(radius) >= reach {
		return reach, true
	}
	return int64(radius), false
}

// applyDisc writes value into every grid cell within radius of (cx, cy) and
// returns the number of cells written. Only the window clipped to the grid
// is visited.
func applyDisc(out []float32, width, height, cx, cy, radius int, value float32) int {
	r, full := clampRadius(width, height, cx, cy, radius)
	x0 := max(int64(cx)-r, 0)
	x1 := min(int64(cx)+r, int64(width-1))
	y0 := max(int64(cy)-r, 0)
	y1 := min(int64(cy)+r, int64(height-1))
	r2 := r * r
	written := 0
	for y := y0; y <= y1; y++ {
		dy := y - int64(cy)
		row := out[int(y)*width : int(y+1)*width]
		for x := x0; x <= x1; x++ {
			dx := x - int64(cx)
			if !full && dx*dx+dy*dy > r2 {
				continue
			}
			row[x] = value
			written++
		}
	}
	return written
}
