package raster_test

import (
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YannKr/jpegforensics/internal/raster"
)

const epsilon = 1e-9

func TestFromImageGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 10)
	}
	img := raster.FromImage(g)
	if img.Channels != 1 || img.Height != 3 || img.Width != 4 {
		t.Fatalf("shape = %dx%dx%d, want 3x4x1", img.Height, img.Width, img.Channels)
	}
	if img.Sample != raster.Uint8 {
		t.Errorf("sample = %v, want uint8", img.Sample)
	}
	if got := img.At(2, 3, 0); got != 110 {
		t.Errorf("At(2,3) = %v, want 110", got)
	}
}

func TestFromImageRGB(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	img := raster.FromImage(src)
	if img.Channels != 3 {
		t.Fatalf("channels = %d, want 3", img.Channels)
	}
	for c, want := range []float64{200, 100, 50} {
		if got := img.At(0, 1, c); got != want {
			t.Errorf("channel %d = %v, want %v", c, got, want)
		}
	}
}

func TestGrayUsesLumaWeights(t *testing.T) {
	img := raster.New(1, 1, 3, raster.Uint8)
	img.Set(0, 0, 0, 255)
	gray := img.Gray()
	if gray.Channels != 1 {
		t.Fatalf("channels = %d, want 1", gray.Channels)
	}
	if d := math.Abs(gray.At(0, 0, 0) - 0.299*255); d > epsilon {
		t.Errorf("luma off by %e", d)
	}
}

func TestNormalize(t *testing.T) {
	img := raster.New(1, 2, 1, raster.Uint8)
	img.Pix[0], img.Pix[1] = 0, 255
	n := img.Normalize()
	if n.Sample != raster.Unit {
		t.Fatalf("sample = %v, want unit", n.Sample)
	}
	if n.Pix[0] != 0 || n.Pix[1] != 1 {
		t.Errorf("normalized = %v, want [0 1]", n.Pix)
	}
	if img.Pix[1] != 255 {
		t.Error("Normalize modified its receiver")
	}
}

func TestToImageRoundTrip(t *testing.T) {
	img := raster.New(2, 3, 3, raster.Uint8)
	for i := range img.Pix {
		img.Pix[i] = float64(i * 13 % 256)
	}
	back := raster.FromImage(img.ToImage())
	for i := range img.Pix {
		if back.Pix[i] != img.Pix[i] {
			t.Fatalf("pix[%d] = %v, want %v", i, back.Pix[i], img.Pix[i])
		}
	}
}

func TestToImageClamps(t *testing.T) {
	img := raster.New(1, 2, 1, raster.Uint8)
	img.Pix[0], img.Pix[1] = -12, 300
	g := img.ToImage().(*image.Gray)
	if g.Pix[0] != 0 || g.Pix[1] != 255 {
		t.Errorf("clamped = %v, want [0 255]", g.Pix)
	}
}

func TestLoadAndStem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holiday.photo.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 16, 8)), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := raster.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Height != 8 || img.Width != 16 || img.Channels != 1 {
		t.Errorf("shape = %dx%dx%d, want 8x16x1", img.Height, img.Width, img.Channels)
	}
	if got := img.Stem(); got != "holiday.photo" {
		t.Errorf("Stem = %q, want holiday.photo", got)
	}
}

func TestChannel(t *testing.T) {
	img := raster.New(2, 2, 3, raster.Uint8)
	img.Set(1, 0, 2, 7)
	m := img.Channel(2)
	if m.At(1, 0) != 7 {
		t.Errorf("Channel(2).At(1,0) = %v, want 7", m.At(1, 0))
	}
	if _, err := img.Plane(); err == nil {
		t.Error("Plane on 3-channel image: want error")
	}
}
