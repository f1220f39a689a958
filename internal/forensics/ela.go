package forensics

import (
	"context"
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/raster"
)

// ELAResult is the outcome of one error level analysis.
type ELAResult struct {
	Quality int
	// Diff holds |original - resaved| per pixel and channel on the 8-bit scale.
	Diff *raster.Image
	// ArtifactPath is the retained PNG copy of Diff.
	ArtifactPath string
}

// Magnitude averages Diff over channels.
func (r *ELAResult) Magnitude() *mat.Dense {
	out := mat.NewDense(r.Diff.Height, r.Diff.Width, nil)
	n := float64(r.Diff.Channels)
	out.Apply(func(y, x int, _ float64) float64 {
		sum := 0.0
		for c := 0; c < r.Diff.Channels; c++ {
			sum += r.Diff.At(y, x, c)
		}
		return sum / n
	}, out)
	return out
}

// Map wraps Magnitude as a suspicion map.
func (r *ELAResult) Map() *Map {
	return &Map{
		Label:   fmt.Sprintf("ela_q%d", r.Quality),
		Quality: r.Quality,
		Data:    r.Magnitude(),
	}
}

// ELA re-saves img once at quality and returns the absolute difference. The
// difference image is also written to outDir as <stem>_ela_q<quality>.png.
func (a *Analyzer) ELA(ctx context.Context, img *raster.Image, quality int, outDir string) (*ELAResult, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	resaved, err := a.reencode(ctx, img, quality)
	if err != nil {
		return nil, err
	}

	orig := levels(img)
	diff := raster.New(img.Height, img.Width, img.Channels, raster.Uint8)
	diff.Source = img.Source
	for i := range diff.Pix {
		diff.Pix[i] = math.Abs(orig.Pix[i] - resaved.Pix[i])
	}

	if outDir == "" {
		outDir = "."
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s_ela_q%d.png", img.Stem(), quality))
	if err := writePNG(path, diff); err != nil {
		return nil, fmt.Errorf("write ela artifact: %w", err)
	}
	return &ELAResult{Quality: quality, Diff: diff, ArtifactPath: path}, nil
}

func writePNG(path string, img *raster.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img.ToImage()); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
