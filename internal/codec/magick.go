package codec

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os/exec"
	"strconv"

	"github.com/YannKr/jpegforensics/internal/raster"
)

// MagickCodec shells out to ImageMagick for encoding. The image is streamed
// to the subprocess as PNG on stdin so no intermediate file is needed.
// Decoding is done in-process.
type MagickCodec struct {
	Path string
}

// NewMagick returns a codec running the given binary, "magick" if empty.
func NewMagick(path string) MagickCodec {
	if path == "" {
		path = "magick"
	}
	return MagickCodec{Path: path}
}

func (m MagickCodec) Name() string { return "magick" }

func (m MagickCodec) Encode(ctx context.Context, img *raster.Image, quality int, path string) error {
	if !ValidQuality(quality) {
		return fmt.Errorf("%w: %d", ErrQuality, quality)
	}
	var in bytes.Buffer
	if err := png.Encode(&in, img.ToImage()); err != nil {
		return fmt.Errorf("png stage: %w", err)
	}

	cmd := exec.CommandContext(ctx, m.Path,
		"png:-",
		"-quality", strconv.Itoa(quality),
		"jpg:"+path,
	)
	cmd.Stdin = &in

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("imagemagick encode: %w\noutput: %s", err, string(output))
	}
	return nil
}

func (m MagickCodec) Decode(path string) (*raster.Image, error) {
	return raster.Load(path)
}

// Available reports whether the binary can be found on PATH.
func (m MagickCodec) Available() bool {
	_, err := exec.LookPath(m.Path)
	return err == nil
}
