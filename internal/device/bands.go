package device

// rowBand is a half-open range of rows handled by one goroutine.
type rowBand struct{ start, end int }

// assignRowBands splits height rows into at most workers contiguous bands of
// near-equal size.
func assignRowBands(height, workers int) []rowBand {
	if workers < 1 {
		workers = 1
	}
	if workers > height {
		workers = height
	}
	if height <= 0 {
		return nil
	}
	bands := make([]rowBand, 0, workers)
	per := height / workers
	extra := height % workers
	start := 0
	for i := 0; i < workers; i++ {
		size := per
		if i < extra {
			size++
		}
		bands = append(bands, rowBand{start: start, end: start + size})
		start += size
	}
	return bands
}
