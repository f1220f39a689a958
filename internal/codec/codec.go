// Package codec encodes and decodes JPEG files at a requested quality.
//
// Two implementations are provided: the pure-Go encoder from image/jpeg and
// an ImageMagick subprocess. Both honour the same 1..100 quality scale.
package codec

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/YannKr/jpegforensics/internal/raster"
)

const (
	MinQuality = 1
	MaxQuality = 100
)

// ErrQuality is returned for a quality outside [MinQuality, MaxQuality].
var ErrQuality = errors.New("codec: quality out of range")

// ValidQuality reports whether q is an accepted JPEG quality.
func ValidQuality(q int) bool {
	return q >= MinQuality && q <= MaxQuality
}

// Codec writes an image as JPEG and reads JPEG files back.
type Codec interface {
	// Encode writes img to path at the given quality.
	Encode(ctx context.Context, img *raster.Image, quality int, path string) error
	// Decode reads a JPEG file.
	Decode(path string) (*raster.Image, error)
	Name() string
}

// New returns the codec registered under name: "go" (default) or "magick".
func New(name, magickPath string) (Codec, error) {
	switch name {
	case "", "go":
		return GoCodec{}, nil
	case "magick":
		return NewMagick(magickPath), nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// GoCodec uses the standard library encoder.
type GoCodec struct{}

func (GoCodec) Name() string { return "go" }

func (GoCodec) Encode(ctx context.Context, img *raster.Image, quality int, path string) error {
	if !ValidQuality(quality) {
		return fmt.Errorf("%w: %d", ErrQuality, quality)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return f.Close()
}

func (GoCodec) Decode(path string) (*raster.Image, error) {
	return raster.Load(path)
}
