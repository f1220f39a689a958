package render_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/raster"
	"github.com/YannKr/jpegforensics/internal/render"
)

func TestJetEndpoints(t *testing.T) {
	tests := []struct {
		t    float64
		want color.RGBA
	}{
		{0, color.RGBA{0, 0, 128, 255}},
		{0.5, color.RGBA{128, 255, 128, 255}},
		{1, color.RGBA{128, 0, 0, 255}},
		{-3, color.RGBA{0, 0, 128, 255}},
	}
	for _, tt := range tests {
		if got := render.Jet(tt.t); got != tt.want {
			t.Errorf("Jet(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestHeatmapRange(t *testing.T) {
	field := mat.NewDense(2, 2, []float64{-1, 0, 0, 3})
	img := render.Heatmap(field, 0)
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds %v", b)
	}
	if got := color.RGBAModel.Convert(img.At(0, 0)); got != render.Jet(0) {
		t.Errorf("min pixel = %v, want %v", got, render.Jet(0))
	}
	if got := color.RGBAModel.Convert(img.At(1, 1)); got != render.Jet(1) {
		t.Errorf("max pixel = %v, want %v", got, render.Jet(1))
	}
}

func TestHeatmapConstant(t *testing.T) {
	img := render.Heatmap(mat.NewDense(3, 3, nil), 0)
	if got := color.RGBAModel.Convert(img.At(1, 1)); got != render.Jet(0.5) {
		t.Errorf("constant pixel = %v, want %v", got, render.Jet(0.5))
	}
}

func TestHeatmapScales(t *testing.T) {
	img := render.Heatmap(mat.NewDense(6, 8, nil), 64)
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds %v, want 64x48", b)
	}
}

func TestAmplify(t *testing.T) {
	diff := raster.New(1, 3, 1, raster.Uint8)
	copy(diff.Pix, []float64{0, 2, 4})
	out := render.Amplify(diff)
	if out.Pix[1] != 127.5 || out.Pix[2] != 255 {
		t.Errorf("amplified = %v", out.Pix)
	}
	if diff.Pix[2] != 4 {
		t.Error("Amplify modified its input")
	}
	zero := render.Amplify(raster.New(1, 1, 1, raster.Uint8))
	if zero.Pix[0] != 0 {
		t.Errorf("zero image amplified to %v", zero.Pix)
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	if err := render.WritePNG(path, render.Heatmap(mat.NewDense(4, 5, nil), 0)); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 5, 4) {
		t.Errorf("bounds %v", img.Bounds())
	}
}
