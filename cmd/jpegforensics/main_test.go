package main

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/forensics"
)

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), uint8((x + y) * 2), 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 88}); err != nil {
		t.Fatal(err)
	}
}

func TestRunWritesMaps(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scene.jpg")
	writeJPEG(t, input)
	out := filepath.Join(dir, "out")

	code := run(context.Background(), options{
		file:      input,
		algorithm: "ghost-sweep",
		sweep:     forensics.SweepOptions{Start: 70, Steps: 2, Step: 10, BlockSize: 5},
		outDir:    out,
		codec:     "go",
		raw:       true,
	})
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	for _, name := range []string{
		"scene_ghost_q70_map.png", "scene_ghost_q80_map.png",
		"scene_ghost_q70.f32.zst", "scene_ghost_q80.f32.zst",
	} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s", name)
		}
	}
}

func TestRunKeepsELAArtifact(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scene.jpg")
	writeJPEG(t, input)
	out := filepath.Join(dir, "out")

	code := run(context.Background(), options{
		file:      input,
		algorithm: "ela",
		quality:   50,
		outDir:    out,
		codec:     "go",
	})
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if _, err := os.Stat(filepath.Join(out, "scene_ela_q50_map.png")); err != nil {
		t.Errorf("missing rendered map: %v", err)
	}

	img, err := forensics.LoadImage(input)
	if err != nil {
		t.Fatal(err)
	}
	want, err := forensics.NewAnalyzer(codec.GoCodec{}, "").ELA(context.Background(), img, 50, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(out, "scene_ela_q50.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := got.Bounds(); b.Dx() != want.Diff.Width || b.Dy() != want.Diff.Height {
		t.Fatalf("artifact %dx%d, want %dx%d", b.Dx(), b.Dy(), want.Diff.Width, want.Diff.Height)
	}
	for y := 0; y < want.Diff.Height; y++ {
		for x := 0; x < want.Diff.Width; x++ {
			px := color.NRGBAModel.Convert(got.At(x, y)).(color.NRGBA)
			for c, v := range []uint8{px.R, px.G, px.B} {
				if w := math.Round(want.Diff.At(y, x, c)); float64(v) != w {
					t.Fatalf("(%d,%d,%d) = %d, want %v", x, y, c, v, w)
				}
			}
		}
	}
}

func TestRunSkipsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	os.WriteFile(input, []byte("hello"), 0o644)
	if code := run(context.Background(), options{file: input, algorithm: "ela", outDir: dir, codec: "go"}); code != 0 {
		t.Errorf("exit code %d, want 0 for a skipped input", code)
	}
}

func TestRunRejectsBadParameters(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scene.jpg")
	writeJPEG(t, input)
	code := run(context.Background(), options{file: input, algorithm: "ghost", outDir: dir, codec: "go"})
	if code != 2 {
		t.Errorf("ghost without quality: exit code %d, want 2", code)
	}
	code = run(context.Background(), options{file: input, algorithm: "ela", outDir: dir, codec: "gimp"})
	if code != 2 {
		t.Errorf("unknown codec: exit code %d, want 2", code)
	}
}
