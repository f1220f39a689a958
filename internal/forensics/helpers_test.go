package forensics_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/raster"
)

// texture returns a gray image of uniform noise of amplitude amp around 128.
func texture(h, w int, seed int64, amp float64) *raster.Image {
	rng := rand.New(rand.NewSource(seed))
	img := raster.New(h, w, 1, raster.Uint8)
	for i := range img.Pix {
		img.Pix[i] = math.Round(128 + (rng.Float64()*2-1)*amp)
	}
	return img
}

func flat(h, w int, rgb [3]float64) *raster.Image {
	img := raster.New(h, w, 3, raster.Uint8)
	for i := 0; i < h*w; i++ {
		copy(img.Pix[i*3:i*3+3], rgb[:])
	}
	return img
}

// resave round-trips img through the Go encoder at quality q.
func resave(t *testing.T, img *raster.Image, q int) *raster.Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resave.jpg")
	if err := (codec.GoCodec{}).Encode(context.Background(), img, q, path); err != nil {
		t.Fatalf("encode q%d: %v", q, err)
	}
	out, err := (codec.GoCodec{}).Decode(path)
	if err != nil {
		t.Fatalf("decode q%d: %v", q, err)
	}
	return out
}

// paste copies the square [y0,y0+size) x [x0,x0+size) from src into dst.
func paste(dst, src *raster.Image, y0, x0, size int) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			for c := 0; c < dst.Channels; c++ {
				dst.Set(y, x, c, src.At(y, x, c))
			}
		}
	}
}

func regionMean(m *mat.Dense, r0, r1, c0, c1 int) float64 {
	return mat.Sum(m.Slice(r0, r1, c0, c1)) / float64((r1-r0)*(c1-c0))
}

func assertFinite(t *testing.T, m *mat.Dense) {
	t.Helper()
	r, c := m.Dims()
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			if v := m.At(y, x); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("(%d,%d) = %v", y, x, v)
			}
		}
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("leftover scratch artifact %s", e.Name())
	}
}

// failingCodec writes a partial file and then reports an encoder failure.
type failingCodec struct {
	paths []string
}

func (f *failingCodec) Name() string { return "failing" }

func (f *failingCodec) Encode(_ context.Context, _ *raster.Image, _ int, path string) error {
	f.paths = append(f.paths, path)
	if err := os.WriteFile(path, []byte("partial"), 0o600); err != nil {
		return err
	}
	return errors.New("encoder exploded")
}

func (f *failingCodec) Decode(path string) (*raster.Image, error) {
	return raster.Load(path)
}

// garbageCodec "succeeds" at encoding but writes bytes no decoder accepts.
type garbageCodec struct{}

func (garbageCodec) Name() string { return "garbage" }

func (garbageCodec) Encode(_ context.Context, _ *raster.Image, _ int, path string) error {
	return os.WriteFile(path, []byte("definitely not a jpeg"), 0o600)
}

func (garbageCodec) Decode(path string) (*raster.Image, error) {
	return raster.Load(path)
}

// countingCodec counts encodes on top of the Go codec.
type countingCodec struct {
	codec.GoCodec
	encodes int
}

func (c *countingCodec) Encode(ctx context.Context, img *raster.Image, q int, path string) error {
	c.encodes++
	return c.GoCodec.Encode(ctx, img, q, path)
}
