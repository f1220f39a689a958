package forensics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/blockstat"
	"github.com/YannKr/jpegforensics/internal/raster"
	"github.com/YannKr/jpegforensics/internal/wavelet"
)

// MedianNoiseResidue removes smooth structure with a blockSize median filter
// and returns the single-level db1 detail activity of what is left. The map
// is not standardized or cropped.
func MedianNoiseResidue(img *raster.Image, blockSize int) (*Map, error) {
	if err := checkWindow("block size", blockSize); err != nil {
		return nil, err
	}
	plane, err := img.Gray().Normalize().Plane()
	if err != nil {
		return nil, err
	}
	median, err := blockstat.MedianFilter(plane, blockSize)
	if err != nil {
		return nil, err
	}
	var residue mat.Dense
	residue.Sub(plane, median)

	dec, err := wavelet.Decompose(&residue, wavelet.DB1, 1)
	if err != nil {
		if errors.Is(err, wavelet.ErrLevel) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		return nil, err
	}
	return &Map{
		Label: "median_noise",
		Data:  dec.Details[0].Activity(),
	}, nil
}
