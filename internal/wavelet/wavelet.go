// Package wavelet implements a periodized multi-level 2D Haar (Daubechies-1)
// Discrete Wavelet Transform over gonum matrices.
//
// The transform is orthonormal: a pair (a, b) maps to (a+b)/√2 and (a-b)/√2.
// Periodization keeps every level at ceil(n/2) samples along each axis; an odd
// length is extended by repeating its last sample, which the inverse discards.
package wavelet

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Family names a wavelet. Haar and DB1 are the same filter pair.
type Family string

const (
	Haar Family = "haar"
	DB1  Family = "db1"
)

var (
	// ErrFamily is returned for wavelet families this package does not implement.
	ErrFamily = errors.New("wavelet: unsupported family")
	// ErrLevel is returned when the requested depth does not fit the input.
	ErrLevel = errors.New("wavelet: invalid decomposition level")
)

func (f Family) check() error {
	switch f {
	case Haar, DB1:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrFamily, string(f))
}

// Subbands are the three detail coefficient arrays of one level.
//
// H holds horizontal detail (low-pass along x, high-pass along y), V vertical
// detail (high-pass along x, low-pass along y) and D diagonal detail.
type Subbands struct {
	H, V, D *mat.Dense
}

// Activity returns |H| + |V| + |D|.
func (s Subbands) Activity() *mat.Dense {
	r, c := s.H.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, _ float64) float64 {
		return math.Abs(s.H.At(i, j)) + math.Abs(s.V.At(i, j)) + math.Abs(s.D.At(i, j))
	}, out)
	return out
}

// Decomposition is the result of Decompose. Details[0] is level 1 (finest);
// Details[len-1] sits next to Approx (coarsest).
type Decomposition struct {
	Family  Family
	Approx  *mat.Dense
	Details []Subbands

	// shapes[k] is the input shape at level k+1, needed to undo odd-length
	// extension on reconstruction.
	shapes [][2]int
}

// Levels returns the decomposition depth.
func (d *Decomposition) Levels() int {
	return len(d.Details)
}

// Detail returns the subbands of the given level, counting from 1 (finest).
func (d *Decomposition) Detail(level int) (Subbands, error) {
	if level < 1 || level > len(d.Details) {
		return Subbands{}, fmt.Errorf("%w: level %d of %d", ErrLevel, level, len(d.Details))
	}
	return d.Details[level-1], nil
}

// MaxLevel is the deepest decomposition for which every level still has at
// least one full sample pair along both axes.
func MaxLevel(rows, cols int) int {
	n := rows
	if cols < n {
		n = cols
	}
	level := 0
	for n >= 2 {
		n /= 2
		level++
	}
	return level
}

// Decompose applies level successive single-level transforms, each to the
// previous level's approximation.
func Decompose(field *mat.Dense, family Family, level int) (*Decomposition, error) {
	if err := family.check(); err != nil {
		return nil, err
	}
	rows, cols := field.Dims()
	if level < 1 || level > MaxLevel(rows, cols) {
		return nil, fmt.Errorf("%w: level %d for %dx%d input", ErrLevel, level, rows, cols)
	}

	dec := &Decomposition{Family: family}
	current := field
	for k := 0; k < level; k++ {
		r, c := current.Dims()
		dec.shapes = append(dec.shapes, [2]int{r, c})
		ll, h, v, d := Forward2D(current)
		dec.Details = append(dec.Details, Subbands{H: h, V: v, D: d})
		current = ll
	}
	dec.Approx = current
	return dec, nil
}

// Reconstruct inverts Decompose.
func Reconstruct(dec *Decomposition) *mat.Dense {
	current := dec.Approx
	for k := len(dec.Details) - 1; k >= 0; k-- {
		s := dec.Details[k]
		shape := dec.shapes[k]
		current = Inverse2D(current, s.H, s.V, s.D, shape[0], shape[1])
	}
	return current
}

// forward1D transforms src into approximation and detail halves of length
// ceil(n/2). An odd trailing sample is paired with itself.
func forward1D(src []float64, lo, hi []float64) {
	n := len(src)
	for i := range lo {
		a := src[2*i]
		b := a
		if 2*i+1 < n {
			b = src[2*i+1]
		}
		lo[i] = (a + b) / math.Sqrt2
		hi[i] = (a - b) / math.Sqrt2
	}
}

// inverse1D rebuilds n samples from approximation and detail halves.
func inverse1D(lo, hi []float64, out []float64) {
	n := len(out)
	for i := range lo {
		out[2*i] = (lo[i] + hi[i]) / math.Sqrt2
		if 2*i+1 < n {
			out[2*i+1] = (lo[i] - hi[i]) / math.Sqrt2
		}
	}
}

func half(n int) int {
	return (n + 1) / 2
}

// Forward2D applies one level of the 2D transform: rows first, then columns
// of both row halves. Each output is ceil(h/2) x ceil(w/2).
func Forward2D(src *mat.Dense) (ll, h, v, d *mat.Dense) {
	rows, cols := src.Dims()
	hr, hc := half(rows), half(cols)

	// Step 1: transform every row into low (L) and high (H) halves along x.
	lowX := make([][]float64, rows)
	highX := make([][]float64, rows)
	row := make([]float64, cols)
	for y := 0; y < rows; y++ {
		mat.Row(row, y, src)
		lowX[y] = make([]float64, hc)
		highX[y] = make([]float64, hc)
		forward1D(row, lowX[y], highX[y])
	}

	// Step 2: transform every column of both halves along y.
	ll = mat.NewDense(hr, hc, nil)
	h = mat.NewDense(hr, hc, nil)
	v = mat.NewDense(hr, hc, nil)
	d = mat.NewDense(hr, hc, nil)
	col := make([]float64, rows)
	lo := make([]float64, hr)
	hi := make([]float64, hr)
	for x := 0; x < hc; x++ {
		for y := 0; y < rows; y++ {
			col[y] = lowX[y][x]
		}
		forward1D(col, lo, hi)
		ll.SetCol(x, lo)
		h.SetCol(x, hi)

		for y := 0; y < rows; y++ {
			col[y] = highX[y][x]
		}
		forward1D(col, lo, hi)
		v.SetCol(x, lo)
		d.SetCol(x, hi)
	}
	return ll, h, v, d
}

// Inverse2D reconstructs a rows x cols field from the four subbands produced
// by Forward2D.
func Inverse2D(ll, h, v, d *mat.Dense, rows, cols int) *mat.Dense {
	hr, hc := ll.Dims()

	// Step 1: inverse along y for both x halves.
	lowX := mat.NewDense(rows, hc, nil)
	highX := mat.NewDense(rows, hc, nil)
	lo := make([]float64, hr)
	hi := make([]float64, hr)
	col := make([]float64, rows)
	for x := 0; x < hc; x++ {
		mat.Col(lo, x, ll)
		mat.Col(hi, x, h)
		inverse1D(lo, hi, col)
		lowX.SetCol(x, col)

		mat.Col(lo, x, v)
		mat.Col(hi, x, d)
		inverse1D(lo, hi, col)
		highX.SetCol(x, col)
	}

	// Step 2: inverse along x for every row.
	out := mat.NewDense(rows, cols, nil)
	loRow := make([]float64, hc)
	hiRow := make([]float64, hc)
	row := make([]float64, cols)
	for y := 0; y < rows; y++ {
		mat.Row(loRow, y, lowX)
		mat.Row(hiRow, y, highX)
		inverse1D(loRow, hiRow, row)
		out.SetRow(y, row)
	}
	return out
}
