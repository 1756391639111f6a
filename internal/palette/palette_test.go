package palette

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRamp(t *testing.T) {
	p := Default()
	require.Len(t, p, 256)
	assert.Equal(t, color.RGBA{A: 255}, p[0])
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, p[255])
	assert.Equal(t, color.RGBA{R: 255, A: 255}, p[85])
}

func TestAt_Clamps(t *testing.T) {
	p := Palette{{R: 1}, {R: 2}, {R: 3}}
	tests := []struct {
		name string
		v    float32
		want uint8
	}{
		{name: "cold", v: 0, want: 1},
		{name: "below range", v: -3, want: 1},
		{name: "nan", v: float32(math.NaN()), want: 1},
		{name: "middle", v: 0.5, want: 2},
		{name: "hot", v: 1, want: 3},
		{name: "above range", v: 7, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.At(tt.v).R)
		})
	}
	assert.Equal(t, color.RGBA{}, Palette(nil).At(0.5))
}

func TestColorize(t *testing.T) {
	p := Palette{{R: 10, A: 255}, {G: 20, A: 255}}
	buf := make([]byte, 8)
	p.Colorize(buf, []float32{0, 1})
	assert.Equal(t, []byte{10, 0, 0, 255, 0, 20, 0, 255}, buf)

	Palette(nil).Colorize(buf, []float32{0, 1})
	assert.Equal(t, make([]byte, 8), buf)
}

func TestFromImage_FirstRow(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 1, A: 255})
	img.Set(1, 0, color.RGBA{R: 2, A: 255})
	img.Set(2, 0, color.RGBA{R: 3, A: 255})
	img.Set(0, 1, color.RGBA{R: 99, A: 255})

	p, err := FromImage(img)
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.Equal(t, uint8(3), p[2].R)

	_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrEmpty)
}
