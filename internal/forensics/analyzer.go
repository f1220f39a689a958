// Package forensics implements passive JPEG forensics: JPEG ghosts, error
// level analysis, wavelet noise inconsistency, median noise residue and CFA
// artifact analysis. Every algorithm produces an exploratory suspicion map;
// none of them issues a verdict.
package forensics

import (
	"context"
	"fmt"
	"strings"

	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/raster"
)

// Algorithm selects an analysis.
type Algorithm string

const (
	AlgoGhost       Algorithm = "ghost"
	AlgoGhostSweep  Algorithm = "ghost-sweep"
	AlgoNoise       Algorithm = "noise"
	AlgoMedianNoise Algorithm = "median-noise"
	AlgoELA         Algorithm = "ela"
	AlgoCFA         Algorithm = "cfa"
	AlgoAll         Algorithm = "all"
)

// Algorithms lists every selectable analysis in display order.
var Algorithms = []Algorithm{AlgoGhost, AlgoGhostSweep, AlgoNoise, AlgoMedianNoise, AlgoELA, AlgoCFA, AlgoAll}

// ParseAlgorithm maps a name to an Algorithm, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", invalidParam("unknown algorithm %q", s)
}

// Analyzer runs the re-encode based engines through a codec. The wavelet
// engines are plain functions and need no Analyzer.
type Analyzer struct {
	Codec codec.Codec
	// ScratchDir receives the temporary re-encode artifacts. Empty means the
	// system temp directory.
	ScratchDir string
}

// NewAnalyzer returns an Analyzer; a nil codec selects the pure-Go codec.
func NewAnalyzer(c codec.Codec, scratchDir string) *Analyzer {
	if c == nil {
		c = codec.GoCodec{}
	}
	return &Analyzer{Codec: c, ScratchDir: scratchDir}
}

// reencode writes img through a scratch artifact at quality and decodes it
// back. The artifact is removed before returning on every path.
func (a *Analyzer) reencode(ctx context.Context, img *raster.Image, quality int) (*raster.Image, error) {
	art, err := acquireScratch(a.ScratchDir, img.Stem(), quality)
	if err != nil {
		return nil, err
	}
	defer art.release()

	if err := a.Codec.Encode(ctx, img, quality, art.path); err != nil {
		return nil, &EncodeError{Quality: quality, Err: err}
	}
	out, err := a.Codec.Decode(art.path)
	if err != nil {
		return nil, &DecodeError{Path: art.path, Err: err}
	}
	if out.Height != img.Height || out.Width != img.Width {
		return nil, &DecodeError{
			Path: art.path,
			Err:  fmt.Errorf("decoded %dx%d, want %dx%d", out.Height, out.Width, img.Height, img.Width),
		}
	}
	return conform(out, img.Channels), nil
}

// conform matches the channel count of a decoded variant to the original.
// An encoder may store an all-gray RGB image as a one-component JPEG.
func conform(img *raster.Image, channels int) *raster.Image {
	switch {
	case img.Channels == channels:
		return img
	case channels == 1:
		return img.Gray()
	}
	out := raster.New(img.Height, img.Width, channels, img.Sample)
	out.Source = img.Source
	for i := 0; i < img.Height*img.Width; i++ {
		v := img.Pix[i*img.Channels]
		for c := 0; c < channels; c++ {
			out.Pix[i*channels+c] = v
		}
	}
	return out
}

// Request describes one analysis run.
type Request struct {
	Image     *raster.Image
	Algorithm Algorithm
	// Quality is the ghost or ELA quality. Ghost requires it; ELA defaults
	// to DefaultELAQuality.
	Quality int
	// BlockSize is the ghost block size or the noise window; 0 selects the
	// algorithm's default.
	BlockSize int
	Sweep     SweepOptions
	// OutDir receives the ELA artifact.
	OutDir   string
	Progress ProgressFunc
}

// Report collects the maps an analysis produced in production order.
type Report struct {
	Algorithm Algorithm
	Source    string
	Maps      []*Map
	ELA       *ELAResult
}

// Stages returns how many maps req will produce.
func (req Request) Stages() int {
	switch req.Algorithm {
	case AlgoGhostSweep:
		return req.Sweep.withDefaults().Steps
	case AlgoAll:
		return req.Sweep.withDefaults().Steps + 4
	default:
		return 1
	}
}

// Validate checks the parameters of req without touching the image, so a
// request can be rejected before it is queued.
func (req Request) Validate() error {
	algo, err := ParseAlgorithm(string(req.Algorithm))
	if err != nil {
		return err
	}
	if algo == AlgoGhost && req.Quality == 0 {
		return invalidParam("ghost needs an explicit quality")
	}
	if req.Quality != 0 {
		if err := checkQuality(req.Quality); err != nil {
			return err
		}
	}
	if req.BlockSize != 0 {
		if err := checkWindow("block size", req.BlockSize); err != nil {
			return err
		}
	}
	if algo == AlgoGhostSweep || algo == AlgoAll {
		opts := req.Sweep.withDefaults()
		if opts.Steps < 1 {
			return invalidParam("sweep steps %d", opts.Steps)
		}
		if err := checkWindow("block size", opts.BlockSize); err != nil {
			return err
		}
		for _, q := range opts.Qualities() {
			if err := checkQuality(q); err != nil {
				return fmt.Errorf("ghost sweep: %w", err)
			}
		}
	}
	return nil
}

// Run dispatches req to the selected engine or engines.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Image == nil {
		return nil, invalidParam("no image")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Algorithm, _ = ParseAlgorithm(string(req.Algorithm))
	rep := &Report{Algorithm: req.Algorithm, Source: req.Image.Source}
	total := req.Stages()
	done := 0
	report := func(stage string, n int) {
		if req.Progress != nil {
			req.Progress(Progress{Stage: stage, Done: done + n, Total: total})
		}
	}
	add := func(m *Map) {
		report(m.Label, 1)
		rep.Maps = append(rep.Maps, m)
		done++
	}
	sweep := func() error {
		opts := req.Sweep
		if opts.BlockSize == 0 {
			opts.BlockSize = req.BlockSize
		}
		maps, err := a.GhostSweep(ctx, req.Image, opts, func(p Progress) { report(p.Stage, p.Done) })
		if err != nil {
			return err
		}
		rep.Maps = append(rep.Maps, maps...)
		done += len(maps)
		return nil
	}

	switch req.Algorithm {
	case AlgoGhost:
		m, err := a.Ghost(ctx, req.Image, req.Quality, orDefault(req.BlockSize, DefaultBlockSize))
		if err != nil {
			return nil, err
		}
		add(m)
	case AlgoGhostSweep:
		if err := sweep(); err != nil {
			return nil, err
		}
	case AlgoNoise:
		m, err := NoiseInconsistency(req.Image, orDefault(req.BlockSize, DefaultNoiseWindow))
		if err != nil {
			return nil, err
		}
		add(m)
	case AlgoMedianNoise:
		m, err := MedianNoiseResidue(req.Image, orDefault(req.BlockSize, DefaultMedianWindow))
		if err != nil {
			return nil, err
		}
		add(m)
	case AlgoELA:
		res, err := a.ELA(ctx, req.Image, orDefault(req.Quality, DefaultELAQuality), req.OutDir)
		if err != nil {
			return nil, err
		}
		rep.ELA = res
		add(res.Map())
	case AlgoCFA:
		m, err := CFATampering(req.Image)
		if err != nil {
			return nil, err
		}
		add(m)
	case AlgoAll:
		if err := sweep(); err != nil {
			return nil, err
		}
		noise, err := NoiseInconsistency(req.Image, DefaultNoiseWindow)
		if err != nil {
			return nil, err
		}
		add(noise)
		residue, err := MedianNoiseResidue(req.Image, DefaultMedianWindow)
		if err != nil {
			return nil, err
		}
		add(residue)
		res, err := a.ELA(ctx, req.Image, DefaultELAQuality, req.OutDir)
		if err != nil {
			return nil, err
		}
		rep.ELA = res
		add(res.Map())
		cfa, err := CFATampering(req.Image)
		if err != nil {
			return nil, err
		}
		add(cfa)
	}
	return rep, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
