// Package field decodes initial heat systems from images.
package field

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned for images or fields without cells.
var ErrEmpty = errors.New("field: empty system")

// Field is a row-major scalar grid with values in [0, 1].
type Field struct {
	Width  int
	Height int
	Values []float32
}

// Blank returns a zeroed field.
func Blank(width, height int) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, width, height)
	}
	return &Field{Width: width, Height: height, Values: make([]float32, width*height)}, nil
}

// FromImage converts img into a field. Dark pixels are hot: each cell is
// (255 - red) / 255, using the straight (non-premultiplied) red channel.
func FromImage(img image.Image) (*Field, error) {
	bounds := img.Bounds()
	f, err := Blank(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < f.Height; y++ {
		row := f.Values[y*f.Width : (y+1)*f.Width]
		for x := range row {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			row[x] = float32(255-c.R) / 255
		}
	}
	return f, nil
}

// Load decodes the image at path into a field.
func Load(path string) (*Field, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening system image: %w", err)
	}
	defer file.Close()
	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding system image %s: %w", path, err)
	}
	f, err := FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("converting %s image %s: %w", format, path, err)
	}
	return f, nil
}

// At returns the value at (x, y).
func (f *Field) At(x, y int) float32 {
	return f.Values[y*f.Width+x]
}
