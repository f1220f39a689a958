// Package blockstat implements sliding-window statistics over scalar fields.
//
// Every filter here treats the field boundary the same way: the field is
// extended by half-sample symmetric reflection (d c b a | a b c d | d c b a),
// so a window centred on an edge pixel sees mirrored copies of its
// neighbours. Values near the border therefore mix in mirrored data and callers
// are expected to discard Offset(w) pixels on every side with Crop.
package blockstat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrWindow is returned for window sizes that are not odd and positive.
	ErrWindow = errors.New("blockstat: window size must be odd and positive")
	// ErrCrop is returned when a crop would leave nothing.
	ErrCrop = errors.New("blockstat: crop leaves an empty field")
)

// Offset is the border a window of size w contaminates: (w-1)/2.
func Offset(w int) int {
	return (w - 1) / 2
}

func checkWindow(w int) error {
	if w < 1 || w%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrWindow, w)
	}
	return nil
}

// reflect maps an out-of-range index onto [0,n) by half-sample symmetric
// reflection. Indices more than one period away wrap around.
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// padded returns the field extended by r on every side, flattened row-major
// with width cols+2r.
func padded(field *mat.Dense, r int) (data []float64, rows, cols int) {
	h, w := field.Dims()
	rows, cols = h+2*r, w+2*r
	data = make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		sy := reflect(y-r, h)
		for x := 0; x < cols; x++ {
			data[y*cols+x] = field.At(sy, reflect(x-r, w))
		}
	}
	return data, rows, cols
}

// integral builds a summed-area table with one extra leading row and column
// of zeros: sat[(y+1)*(cols+1)+(x+1)] = sum of data[0..y][0..x].
func integral(data []float64, rows, cols int, square bool) []float64 {
	stride := cols + 1
	sat := make([]float64, (rows+1)*stride)
	for y := 0; y < rows; y++ {
		rowSum := 0.0
		for x := 0; x < cols; x++ {
			v := data[y*cols+x]
			if square {
				v *= v
			}
			rowSum += v
			sat[(y+1)*stride+x+1] = sat[y*stride+x+1] + rowSum
		}
	}
	return sat
}

// windowMeans averages every w x w window of the padded data, producing a
// field of the original size.
func windowMeans(sat []float64, h, width, w, cols int) *mat.Dense {
	stride := cols + 1
	area := float64(w * w)
	out := mat.NewDense(h, width, nil)
	raw := out.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < width; x++ {
			y0, x0, y1, x1 := y, x, y+w, x+w
			sum := sat[y1*stride+x1] - sat[y0*stride+x1] - sat[y1*stride+x0] + sat[y0*stride+x0]
			raw.Data[y*raw.Stride+x] = sum / area
		}
	}
	return out
}

// BoxFilter replaces every value with the uniform average of the w x w window
// centred on it. The result has the same shape as field.
func BoxFilter(field *mat.Dense, w int) (*mat.Dense, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	h, width := field.Dims()
	data, rows, cols := padded(field, Offset(w))
	sat := integral(data, rows, cols, false)
	return windowMeans(sat, h, width, w, cols), nil
}

// LocalMeanVariance returns the w x w local mean and the local variance,
// computed as mean(x²) - mean(x)². The variance is not clamped: cancellation
// can leave tiny negative values in flat regions.
func LocalMeanVariance(field *mat.Dense, w int) (mean, variance *mat.Dense, err error) {
	if err := checkWindow(w); err != nil {
		return nil, nil, err
	}
	h, width := field.Dims()
	data, rows, cols := padded(field, Offset(w))
	mean = windowMeans(integral(data, rows, cols, false), h, width, w, cols)
	sq := windowMeans(integral(data, rows, cols, true), h, width, w, cols)

	variance = mat.NewDense(h, width, nil)
	variance.Apply(func(i, j int, v float64) float64 {
		m := mean.At(i, j)
		return sq.At(i, j) - m*m
	}, variance)
	return mean, variance, nil
}

// Crop removes offset rows and columns from every side and returns a copy
// that does not share storage with field.
func Crop(field *mat.Dense, offset int) (*mat.Dense, error) {
	if offset < 0 {
		return nil, fmt.Errorf("blockstat: negative crop offset %d", offset)
	}
	h, w := field.Dims()
	if h <= 2*offset || w <= 2*offset {
		return nil, fmt.Errorf("%w: %dx%d field, offset %d", ErrCrop, h, w, offset)
	}
	if offset == 0 {
		return mat.DenseCopyOf(field), nil
	}
	return mat.DenseCopyOf(field.Slice(offset, h-offset, offset, w-offset)), nil
}
