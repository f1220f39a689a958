// Package mapfile stores suspicion maps losslessly for later analysis.
//
// The format is a zstd stream of:
//
//	"JFM1" | rows uint32 LE | cols uint32 LE | rows*cols float32 LE, row-major
package mapfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

// Ext is the conventional file extension.
const Ext = ".f32.zst"

// ContentType is served for archives over HTTP.
const ContentType = "application/zstd"

const (
	magic = "JFM1"
	// maxCells bounds the allocation a corrupt header can request.
	maxCells = 1 << 28
)

// ErrFormat is returned for streams that are not map archives.
var ErrFormat = errors.New("mapfile: not a map archive")

// Write encodes field to w.
func Write(w io.Writer, field *mat.Dense) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)
	rows, cols := field.Dims()

	var hdr [12]byte
	copy(hdr[:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(rows))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(cols))
	if _, err := bw.Write(hdr[:]); err != nil {
		enc.Close()
		return err
	}

	var cell [4]byte
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			binary.LittleEndian.PutUint32(cell[:], math.Float32bits(float32(field.At(y, x))))
			if _, err := bw.Write(cell[:]); err != nil {
				enc.Close()
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes an archive written by Write.
func Read(r io.Reader) (*mat.Dense, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var hdr [12]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if string(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, hdr[:4])
	}
	rows := int(binary.LittleEndian.Uint32(hdr[4:]))
	cols := int(binary.LittleEndian.Uint32(hdr[8:]))
	if rows == 0 || cols == 0 || rows*cols > maxCells {
		return nil, fmt.Errorf("%w: implausible shape %dx%d", ErrFormat, rows, cols)
	}

	data := make([]float64, rows*cols)
	var cell [4]byte
	for i := range data {
		if _, err := io.ReadFull(br, cell[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated at cell %d: %v", ErrFormat, i, err)
		}
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(cell[:])))
	}
	return mat.NewDense(rows, cols, data), nil
}

// WriteFile writes field to path.
func WriteFile(path string, field *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, field); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads an archive from path.
func ReadFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
