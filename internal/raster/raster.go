// Package raster holds decoded images as typed numeric buffers.
//
// An Image carries its own shape (height, width, channels) and sample type so
// the forensic engines never have to guess whether a value is an 8-bit level
// or a normalized intensity.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// SampleType describes the numeric range of the samples in an Image.
type SampleType int

const (
	// Uint8 samples hold 8-bit levels in [0,255].
	Uint8 SampleType = iota
	// Unit samples hold normalized intensities in [0,1].
	Unit
)

func (s SampleType) String() string {
	switch s {
	case Uint8:
		return "uint8"
	case Unit:
		return "unit"
	default:
		return fmt.Sprintf("SampleType(%d)", int(s))
	}
}

// Image is a height x width x channels grid of samples stored interleaved in
// row-major order: Pix[(y*Width+x)*Channels+c].
type Image struct {
	Height   int
	Width    int
	Channels int
	Sample   SampleType
	Pix      []float64

	// Source is the path the image was decoded from, if any. Scratch and
	// output artifacts derive their names from it.
	Source string
}

// New allocates a zeroed image.
func New(height, width, channels int, sample SampleType) *Image {
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Sample:   sample,
		Pix:      make([]float64, height*width*channels),
	}
}

// At returns the sample at row y, column x, channel c.
func (m *Image) At(y, x, c int) float64 {
	return m.Pix[(y*m.Width+x)*m.Channels+c]
}

// Set stores v at row y, column x, channel c.
func (m *Image) Set(y, x, c int, v float64) {
	m.Pix[(y*m.Width+x)*m.Channels+c] = v
}

// SameShape reports whether o has the same height, width and channel count.
func (m *Image) SameShape(o *Image) bool {
	return m.Height == o.Height && m.Width == o.Width && m.Channels == o.Channels
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = make([]float64, len(m.Pix))
	copy(out.Pix, m.Pix)
	return &out
}

// Stem returns the base name of Source without its extension, or "image"
// when the image was not loaded from a file.
func (m *Image) Stem() string {
	if m.Source == "" {
		return "image"
	}
	base := filepath.Base(m.Source)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Channel copies one channel into a matrix.
func (m *Image) Channel(c int) *mat.Dense {
	out := mat.NewDense(m.Height, m.Width, nil)
	raw := out.RawMatrix()
	for y := 0; y < m.Height; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+m.Width]
		for x := range row {
			row[x] = m.At(y, x, c)
		}
	}
	return out
}

// Gray converts to a single-channel image using Rec.601 luma weights.
// A single-channel image is returned as a copy.
func (m *Image) Gray() *Image {
	if m.Channels == 1 {
		return m.Clone()
	}
	out := New(m.Height, m.Width, 1, m.Sample)
	out.Source = m.Source
	for i := 0; i < m.Height*m.Width; i++ {
		p := m.Pix[i*m.Channels : i*m.Channels+3]
		out.Pix[i] = 0.299*p[0] + 0.587*p[1] + 0.114*p[2]
	}
	return out
}

// Normalize returns the image with samples scaled to [0,1]. Unit images are
// returned as a copy.
func (m *Image) Normalize() *Image {
	out := m.Clone()
	if m.Sample == Unit {
		return out
	}
	for i := range out.Pix {
		out.Pix[i] /= 255.0
	}
	out.Sample = Unit
	return out
}

// Plane returns the only channel of a single-channel image as a matrix.
func (m *Image) Plane() (*mat.Dense, error) {
	if m.Channels != 1 {
		return nil, fmt.Errorf("raster: plane of %d-channel image", m.Channels)
	}
	return m.Channel(0), nil
}

// FromImage converts a decoded image. Grayscale sources become one channel,
// everything else three RGB channels on the 8-bit scale.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch src := img.(type) {
	case *image.Gray:
		out := New(h, w, 1, Uint8)
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = float64(row[x])
			}
		}
		return out
	case *image.Gray16:
		out := New(h, w, 1, Uint8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return out
	}

	out := New(h, w, 3, Uint8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 3
			out.Pix[i] = float64(c.R)
			out.Pix[i+1] = float64(c.G)
			out.Pix[i+2] = float64(c.B)
		}
	}
	return out
}

// ToImage converts back to an 8-bit image.Image, rounding and clamping
// samples. Unit images are rescaled to [0,255] first.
func (m *Image) ToImage() image.Image {
	scale := 1.0
	if m.Sample == Unit {
		scale = 255.0
	}
	rect := image.Rect(0, 0, m.Width, m.Height)
	if m.Channels == 1 {
		g := image.NewGray(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				g.Pix[g.PixOffset(x, y)] = clampU8(m.At(y, x, 0) * scale)
			}
		}
		return g
	}
	out := image.NewNRGBA(rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			off := out.PixOffset(x, y)
			out.Pix[off] = clampU8(m.At(y, x, 0) * scale)
			out.Pix[off+1] = clampU8(m.At(y, x, 1) * scale)
			out.Pix[off+2] = clampU8(m.At(y, x, 2) * scale)
			out.Pix[off+3] = 255
		}
	}
	return out
}

// Load decodes a JPEG file.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	img := FromImage(decoded)
	img.Source = path
	return img, nil
}

// clampU8 clamps a float64 to [0, 255] and converts to uint8.
func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
