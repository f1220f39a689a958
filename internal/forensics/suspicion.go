package forensics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Map is a suspicion map: a scalar field for a human analyst to inspect.
type Map struct {
	// Label names the map, e.g. "ghost_q70" or "cfa". It is safe to use as a
	// file name.
	Label string
	// Quality is the re-encode quality the map was produced at, 0 if none.
	Quality int
	// Offset is the border removed from every side relative to the field the
	// map was computed on.
	Offset int
	Data   *mat.Dense
}

// Stats summarises the values of a map.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Stats summarises m.Data.
func (m *Map) Stats() Stats {
	return Summarize(m.Data)
}

// Summarize returns the range, mean and standard deviation of a field.
func Summarize(field *mat.Dense) Stats {
	vals := values(field)
	if len(vals) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if len(vals) < 2 {
		// The sample deviation of a single value is undefined.
		std = 0
	}
	return Stats{
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
		Mean:   mean,
		StdDev: std,
	}
}

// values returns the field's elements row-major. The backing array is shared
// when the matrix is contiguous.
func values(field *mat.Dense) []float64 {
	r, c := field.Dims()
	raw := field.RawMatrix()
	if raw.Stride == c {
		return raw.Data[:r*c]
	}
	return mat.DenseCopyOf(field).RawMatrix().Data
}
