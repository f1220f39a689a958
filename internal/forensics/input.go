package forensics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YannKr/jpegforensics/internal/raster"
)

// ValidateInput accepts only existing regular files with a .jpg or .jpeg
// extension, case-insensitively.
func ValidateInput(path string) error {
	if path == "" {
		return &InvalidInputError{Path: path, Reason: "no input file given"}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" {
		return &InvalidInputError{Path: path, Reason: "not a .jpg or .jpeg file"}
	}
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &InvalidInputError{Path: path, Reason: "file does not exist"}
		}
		return &InvalidInputError{Path: path, Reason: "cannot stat file", Err: err}
	}
	if !st.Mode().IsRegular() {
		return &InvalidInputError{Path: path, Reason: "not a regular file"}
	}
	return nil
}

// LoadImage validates and decodes an input file. An undecodable file is an
// invalid input, not a DecodeError: nothing has been analysed yet.
func LoadImage(path string) (*raster.Image, error) {
	if err := ValidateInput(path); err != nil {
		return nil, err
	}
	img, err := raster.Load(path)
	if err != nil {
		return nil, &InvalidInputError{Path: path, Reason: "not a decodable JPEG", Err: err}
	}
	return img, nil
}
