package blockstat

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// MedianFilter replaces every value with the median of the w x w window
// centred on it, using the same reflected boundary as BoxFilter.
func MedianFilter(field *mat.Dense, w int) (*mat.Dense, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	h, width := field.Dims()
	data, _, cols := padded(field, Offset(w))

	out := mat.NewDense(h, width, nil)
	raw := out.RawMatrix()
	window := make([]float64, w*w)
	mid := len(window) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < width; x++ {
			n := 0
			for dy := 0; dy < w; dy++ {
				row := data[(y+dy)*cols+x : (y+dy)*cols+x+w]
				n += copy(window[n:], row)
			}
			sort.Float64s(window)
			raw.Data[y*raw.Stride+x] = window[mid]
		}
	}
	return out, nil
}
