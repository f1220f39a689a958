package forensics

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/blockstat"
	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/raster"
)

const (
	DefaultBlockSize    = 17
	DefaultSweepStart   = 60
	DefaultSweepSteps   = 19
	DefaultSweepStep    = 2
	DefaultELAQuality   = 90
	DefaultNoiseWindow  = 3
	DefaultMedianWindow = 3
)

// SweepOptions configures GhostSweep. Zero fields take the defaults.
type SweepOptions struct {
	Start     int
	Steps     int
	Step      int
	BlockSize int
}

func (o SweepOptions) withDefaults() SweepOptions {
	if o.Start == 0 {
		o.Start = DefaultSweepStart
	}
	if o.Steps == 0 {
		o.Steps = DefaultSweepSteps
	}
	if o.Step == 0 {
		o.Step = DefaultSweepStep
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	return o
}

// Qualities returns the sweep's quality sequence, Start + i*Step for
// i in [0, Steps).
func (o SweepOptions) Qualities() []int {
	o = o.withDefaults()
	qs := make([]int, o.Steps)
	for i := range qs {
		qs[i] = o.Start + i*o.Step
	}
	return qs
}

// Progress describes the last finished stage of a long analysis.
type Progress struct {
	Stage string
	Done  int
	Total int
}

// ProgressFunc receives progress updates. It is called synchronously from
// the analysing goroutine.
type ProgressFunc func(Progress)

func checkQuality(q int) error {
	if !codec.ValidQuality(q) {
		return invalidParam("quality %d outside [%d,%d]", q, codec.MinQuality, codec.MaxQuality)
	}
	return nil
}

func checkWindow(name string, w int) error {
	if w < 1 || w%2 == 0 {
		return invalidParam("%s %d must be odd and positive", name, w)
	}
	return nil
}

// Ghost re-encodes img at quality and returns the box-filtered squared
// difference, averaged over channels, cropped by (blockSize-1)/2 and shifted
// by min/(max-min).
func (a *Analyzer) Ghost(ctx context.Context, img *raster.Image, quality, blockSize int) (*Map, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	if err := checkWindow("block size", blockSize); err != nil {
		return nil, err
	}
	offset := blockstat.Offset(blockSize)
	if img.Height <= 2*offset || img.Width <= 2*offset {
		return nil, invalidParam("%dx%d image too small for block size %d", img.Height, img.Width, blockSize)
	}

	resaved, err := a.reencode(ctx, img, quality)
	if err != nil {
		return nil, err
	}

	orig := levels(img)
	acc := mat.NewDense(img.Height, img.Width, nil)
	sq := mat.NewDense(img.Height, img.Width, nil)
	for c := 0; c < img.Channels; c++ {
		sq.Apply(func(y, x int, _ float64) float64 {
			d := orig.At(y, x, c) - resaved.At(y, x, c)
			return d * d
		}, sq)
		filtered, err := blockstat.BoxFilter(sq, blockSize)
		if err != nil {
			return nil, err
		}
		acc.Add(acc, filtered)
	}
	acc.Scale(1/float64(img.Channels), acc)

	diff, err := blockstat.Crop(acc, offset)
	if err != nil {
		return nil, err
	}
	normalizeGhost(diff)

	return &Map{
		Label:   fmt.Sprintf("ghost_q%d", quality),
		Quality: quality,
		Offset:  offset,
		Data:    diff,
	}, nil
}

// normalizeGhost subtracts min/(max-min) from every value. This is a scalar
// shift, not a min-max rescale. A constant field shifts by 0.
func normalizeGhost(diff *mat.Dense) {
	vals := values(diff)
	lo, hi := floats.Min(vals), floats.Max(vals)
	norm := 0.0
	if hi > lo {
		norm = lo / (hi - lo)
	}
	diff.Apply(func(_, _ int, v float64) float64 { return v - norm }, diff)
}

// GhostSweep runs Ghost at every quality of the sweep and returns the maps in
// sweep order. All qualities are checked before the first re-encode. The
// context is only consulted between layers.
func (a *Analyzer) GhostSweep(ctx context.Context, img *raster.Image, opts SweepOptions, progress ProgressFunc) ([]*Map, error) {
	opts = opts.withDefaults()
	if opts.Steps < 1 {
		return nil, invalidParam("sweep steps %d", opts.Steps)
	}
	qualities := opts.Qualities()
	for _, q := range qualities {
		if err := checkQuality(q); err != nil {
			return nil, fmt.Errorf("ghost sweep: %w", err)
		}
	}

	maps := make([]*Map, 0, len(qualities))
	for i, q := range qualities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := a.Ghost(ctx, img, q, opts.BlockSize)
		if err != nil {
			return nil, fmt.Errorf("ghost sweep at quality %d: %w", q, err)
		}
		maps = append(maps, m)
		slog.Debug("ghost layer done", "source", img.Source, "quality", q, "layer", i+1, "of", len(qualities))
		if progress != nil {
			progress(Progress{Stage: m.Label, Done: i + 1, Total: len(qualities)})
		}
	}
	return maps, nil
}

// levels returns img on the 8-bit sample scale.
func levels(img *raster.Image) *raster.Image {
	if img.Sample == raster.Uint8 {
		return img
	}
	out := img.Clone()
	for i := range out.Pix {
		out.Pix[i] *= 255
	}
	out.Sample = raster.Uint8
	return out
}
