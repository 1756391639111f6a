// Package palette maps heat values to display colors.
package palette

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
)

// ErrEmpty is returned for palette images without pixels.
var ErrEmpty = errors.New("palette: no colors")

// Palette is an ordered color ramp; index 0 is cold, the last entry hot.
type Palette []color.RGBA

// Default returns a 256 step black, red, yellow, white ramp.
func Default() Palette {
	p := make(Palette, 256)
	for i := range p {
		v := i * 3
		r, g, b := clamp8(v), clamp8(v-255), clamp8(v-510)
		p[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// FromImage reads the first row of img as the ramp.
func FromImage(img image.Image) (Palette, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmpty
	}
	p := make(Palette, bounds.Dx())
	for x := range p {
		p[x] = color.RGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y)).(color.RGBA)
	}
	return p, nil
}

// Load decodes the palette image at path.
func Load(path string) (Palette, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening palette: %w", err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding palette %s: %w", path, err)
	}
	return FromImage(img)
}

// index maps v in [0, 1] to a ramp position, clamping out of range values.
func (p Palette) index(v float32) int {
	last := len(p) - 1
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return last
	}
	return int(v*float32(last) + 0.5)
}

// At returns the color for v.
func (p Palette) At(v float32) color.RGBA {
	if len(p) == 0 {
		return color.RGBA{}
	}
	return p[p.index(v)]
}

// Colorize writes one RGBA pixel per value into buf. When the palette is
// empty the buffer is cleared to transparent black.
func (p Palette) Colorize(buf []byte, values []float32) {
	if len(p) == 0 {
		for i := range values {
			base := i * 4
			buf[base+0] = 0
			buf[base+1] = 0
			buf[base+2] = 0
			buf[base+3] = 0
		}
		return
	}
	for i, v := range values {
		col := p[p.index(v)]
		base := i * 4
		buf[base+0] = col.R
		buf[base+1] = col.G
		buf[base+2] = col.B
		buf[base+3] = col.A
	}
}
