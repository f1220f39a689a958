package forensics_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/raster"
)

// editedComposite returns a photo-like background that went through one q75
// save, with a never-compressed high-energy patch pasted over
// [64,128) x [64,128).
func editedComposite(t *testing.T) *raster.Image {
	t.Helper()
	img := resave(t, texture(192, 192, 5, 8), 75)
	rng := rand.New(rand.NewSource(9))
	for y := 64; y < 128; y++ {
		for x := 64; x < 128; x++ {
			img.Set(y, x, 0, float64(rng.Intn(256)))
		}
	}
	img.Source = "/cases/edited.jpg"
	return img
}

func TestELAEditedRegionStandsOut(t *testing.T) {
	img := editedComposite(t)
	a := forensics.NewAnalyzer(nil, t.TempDir())
	for _, q := range []int{50, 70, 85, 95} {
		res, err := a.ELA(context.Background(), img, q, t.TempDir())
		if err != nil {
			t.Fatalf("ELA(q%d): %v", q, err)
		}
		mag := res.Magnitude()
		edited := regionMean(mag, 64, 128, 64, 128)
		untouched := regionMean(mag, 0, 48, 0, 192)
		if edited <= untouched {
			t.Errorf("q%d: edited %.3f <= untouched %.3f", q, edited, untouched)
		}
	}
}

func TestELAWritesArtifact(t *testing.T) {
	out := t.TempDir()
	scratch := t.TempDir()
	img := editedComposite(t)
	res, err := forensics.NewAnalyzer(nil, scratch).ELA(context.Background(), img, 90, out)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "edited_ela_q90.png"); res.ArtifactPath != want {
		t.Errorf("ArtifactPath = %s, want %s", res.ArtifactPath, want)
	}
	if _, err := os.Stat(res.ArtifactPath); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if !res.Diff.SameShape(img) || res.Diff.Sample != raster.Uint8 {
		t.Errorf("diff shape %dx%dx%d", res.Diff.Height, res.Diff.Width, res.Diff.Channels)
	}
	for i, v := range res.Diff.Pix {
		if v < 0 {
			t.Fatalf("pix[%d] = %v, want non-negative", i, v)
		}
	}
	assertEmptyDir(t, scratch)
}

func TestELARejectsQuality(t *testing.T) {
	out := t.TempDir()
	a := forensics.NewAnalyzer(nil, t.TempDir())
	if _, err := a.ELA(context.Background(), texture(16, 16, 1, 10), 0, out); err == nil {
		t.Fatal("want error for quality 0")
	}
	assertEmptyDir(t, out)
}
