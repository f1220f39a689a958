package forensics_test

import (
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/YannKr/jpegforensics/internal/forensics"
)

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 16, 16)), nil); err != nil {
		t.Fatal(err)
	}
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "photo.jpg")
	upper := filepath.Join(dir, "PHOTO.JPEG")
	png := filepath.Join(dir, "photo.png")
	folder := filepath.Join(dir, "folder.jpg")
	writeJPEG(t, good)
	writeJPEG(t, upper)
	writeJPEG(t, png)
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		ok   bool
	}{
		{good, true},
		{upper, true},
		{png, false},
		{folder, false},
		{filepath.Join(dir, "missing.jpg"), false},
		{"", false},
	}
	for _, tt := range tests {
		err := forensics.ValidateInput(tt.path)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.path, err)
		}
		if !tt.ok {
			var inv *forensics.InvalidInputError
			if !errors.As(err, &inv) {
				t.Errorf("%s: err = %v, want *InvalidInputError", tt.path, err)
			}
		}
	}
}

func TestLoadImageRejectsUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.jpg")
	if err := os.WriteFile(path, []byte("GIF89a"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := forensics.LoadImage(path)
	var inv *forensics.InvalidInputError
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want *InvalidInputError", err)
	}
	if inv.Err == nil {
		t.Error("decode cause not wrapped")
	}
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.jpeg")
	writeJPEG(t, path)
	img, err := forensics.LoadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Height != 16 || img.Width != 16 || img.Source != path {
		t.Errorf("loaded %dx%d from %q", img.Height, img.Width, img.Source)
	}
}
