package forensics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/blockstat"
	"github.com/YannKr/jpegforensics/internal/raster"
	"github.com/YannKr/jpegforensics/internal/wavelet"
)

// StdFloor is the smallest local standard deviation used as a divisor when
// standardizing. Flat neighbourhoods therefore standardize to 0 instead of
// NaN or ±Inf.
const StdFloor = 1e-6

const (
	noiseLevel = 4
	cfaLevel   = 4
	cfaWindow  = 3
)

// WaveletActivity decomposes the normalized grayscale image to the given
// level, takes |H|+|V|+|D| of that level and standardizes it against its own
// window x window local mean and standard deviation. The result is cropped by
// (window-1)/2 and is at the resolution of the decomposed level.
func WaveletActivity(img *raster.Image, family wavelet.Family, level, window int) (*Map, error) {
	if err := checkWindow("window", window); err != nil {
		return nil, err
	}
	plane, err := img.Gray().Normalize().Plane()
	if err != nil {
		return nil, err
	}
	dec, err := wavelet.Decompose(plane, family, level)
	if err != nil {
		if errors.Is(err, wavelet.ErrLevel) || errors.Is(err, wavelet.ErrFamily) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		return nil, err
	}
	sub, err := dec.Detail(level)
	if err != nil {
		return nil, err
	}
	activity := sub.Activity()

	mean, variance, err := blockstat.LocalMeanVariance(activity, window)
	if err != nil {
		return nil, err
	}
	standardized := standardize(activity, mean, variance)

	offset := blockstat.Offset(window)
	out, err := blockstat.Crop(standardized, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return &Map{
		Label:  fmt.Sprintf("wavelet_%s_l%d_w%d", family, level, window),
		Offset: offset,
		Data:   out,
	}, nil
}

// standardize computes (x - mean) / max(sqrt(max(variance, 0)), StdFloor).
func standardize(x, mean, variance *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, _ float64) float64 {
		std := math.Sqrt(math.Max(variance.At(i, j), 0))
		if std < StdFloor {
			std = StdFloor
		}
		return (x.At(i, j) - mean.At(i, j)) / std
	}, out)
	return out
}

// NoiseInconsistency standardizes level-4 Haar detail activity over a
// window x window neighbourhood.
func NoiseInconsistency(img *raster.Image, window int) (*Map, error) {
	m, err := WaveletActivity(img, wavelet.Haar, noiseLevel, window)
	if err != nil {
		return nil, err
	}
	m.Label = "noise"
	return m, nil
}

// CFATampering is the wavelet activity test with its parameters fixed at
// Haar, level 4, window 3. Resampled or spliced regions break the local
// correlation left by demosaicing and stand out as high standardized activity.
func CFATampering(img *raster.Image) (*Map, error) {
	m, err := WaveletActivity(img, wavelet.Haar, cfaLevel, cfaWindow)
	if err != nil {
		return nil, err
	}
	m.Label = "cfa"
	return m, nil
}
