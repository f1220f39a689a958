// Package render turns suspicion maps into images for an analyst.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/raster"
)

// Jet maps t in [0,1] onto a blue-cyan-yellow-red ramp. Values outside the
// range are clamped.
func Jet(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	ch := func(center float64) uint8 {
		v := 1.5 - math.Abs(4*t-center)
		v = math.Max(0, math.Min(1, v))
		return uint8(math.Round(v * 255))
	}
	return color.RGBA{R: ch(3), G: ch(2), B: ch(1), A: 255}
}

// Heatmap colours field over its own min..max range. A constant field renders
// as the middle of the ramp. When width is positive and differs from the
// field's width the image is rescaled bilinearly, keeping the aspect ratio.
func Heatmap(field *mat.Dense, width int) image.Image {
	rows, cols := field.Dims()
	vals := mat.DenseCopyOf(field).RawMatrix().Data
	lo, hi := floats.Min(vals), floats.Max(vals)

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t := 0.5
			if hi > lo {
				t = (field.At(y, x) - lo) / (hi - lo)
			}
			img.SetRGBA(x, y, Jet(t))
		}
	}
	return Scale(img, width)
}

// Scale resizes img to width pixels wide. Non-positive or equal widths return
// img unchanged.
func Scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width == b.Dx() {
		return img
	}
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Rect, img, b, draw.Over, nil)
	return dst
}

// Amplify stretches an ELA difference image so its largest value becomes 255.
// Error levels are usually a few units and invisible unscaled.
func Amplify(diff *raster.Image) *raster.Image {
	out := diff.Clone()
	hi := floats.Max(out.Pix)
	if hi <= 0 {
		return out
	}
	floats.Scale(255/hi, out.Pix)
	return out
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("png encode %s: %w", path, err)
	}
	return f.Close()
}
