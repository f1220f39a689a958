package forensics_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/wavelet"
)

func TestWaveletActivityDeterministic(t *testing.T) {
	img := texture(128, 96, 21, 50)
	first, err := forensics.NoiseInconsistency(img, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := forensics.NoiseInconsistency(img, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(first.Data, second.Data) {
		t.Error("two runs differ")
	}
}

func TestWaveletActivityShape(t *testing.T) {
	// 128x96 at level 4 is 8x6; window 3 crops one cell per side.
	m, err := forensics.WaveletActivity(texture(128, 96, 2, 50), wavelet.Haar, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Data.Dims(); r != 6 || c != 4 {
		t.Errorf("dims %dx%d, want 6x4", r, c)
	}
	if m.Offset != 1 {
		t.Errorf("Offset = %d, want 1", m.Offset)
	}
	assertFinite(t, m.Data)
}

func TestCFAUsesFixedParameters(t *testing.T) {
	img := texture(128, 128, 4, 50)
	cfa, err := forensics.CFATampering(img)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := forensics.WaveletActivity(img, wavelet.Haar, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(cfa.Data, ref.Data) {
		t.Error("CFA map differs from Haar level 4 window 3")
	}
	if cfa.Label != "cfa" {
		t.Errorf("Label = %q", cfa.Label)
	}
}

func TestFlatImageStandardizesToZero(t *testing.T) {
	img := flat(64, 64, [3]float64{90, 90, 90})
	for name, run := range map[string]func() (*forensics.Map, error){
		"noise": func() (*forensics.Map, error) { return forensics.NoiseInconsistency(img, 3) },
		"cfa":   func() (*forensics.Map, error) { return forensics.CFATampering(img) },
	} {
		m, err := run()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		assertFinite(t, m.Data)
		if s := m.Stats(); s.Min != 0 || s.Max != 0 {
			t.Errorf("%s: range [%v,%v], want all zero", name, s.Min, s.Max)
		}
	}
}

func TestWaveletActivityRejectsParameters(t *testing.T) {
	img := texture(32, 32, 1, 20)
	cases := []struct {
		name   string
		family wavelet.Family
		level  int
		window int
	}{
		{"even window", wavelet.Haar, 1, 2},
		{"level too deep", wavelet.Haar, 6, 3},
		{"unknown family", "coif1", 1, 3},
		{"nothing left after crop", wavelet.Haar, 4, 3},
	}
	for _, tc := range cases {
		_, err := forensics.WaveletActivity(img, tc.family, tc.level, tc.window)
		if !errors.Is(err, forensics.ErrInvalidParameter) {
			t.Errorf("%s: err = %v, want ErrInvalidParameter", tc.name, err)
		}
	}
}

func TestMedianNoiseResidue(t *testing.T) {
	m, err := forensics.MedianNoiseResidue(texture(64, 50, 8, 60), 3)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Data.Dims(); r != 32 || c != 25 {
		t.Errorf("dims %dx%d, want 32x25", r, c)
	}
	if m.Offset != 0 {
		t.Errorf("Offset = %d, want 0", m.Offset)
	}
	if s := m.Stats(); s.Max <= 0 || s.Min < 0 {
		t.Errorf("stats %+v, want positive activity", s)
	}

	flatMap, err := forensics.MedianNoiseResidue(flat(16, 16, [3]float64{40, 40, 40}), 3)
	if err != nil {
		t.Fatal(err)
	}
	if s := flatMap.Stats(); s.Max != 0 {
		t.Errorf("flat residue max = %v, want 0", s.Max)
	}
}

func TestSingleCellMapStatsAreFinite(t *testing.T) {
	// 48x48 at level 4 leaves a 3x3 activity map, cropped to 1x1.
	m, err := forensics.CFATampering(texture(48, 48, 9, 40))
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Data.Dims(); r != 1 || c != 1 {
		t.Fatalf("map %dx%d, want 1x1", r, c)
	}
	st := m.Stats()
	for name, v := range map[string]float64{"min": st.Min, "max": st.Max, "mean": st.Mean, "std": st.StdDev} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v", name, v)
		}
	}
	if st.StdDev != 0 {
		t.Errorf("std = %v, want 0", st.StdDev)
	}
	if _, err := json.Marshal(st); err != nil {
		t.Errorf("marshal stats: %v", err)
	}
}
