package diskstat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YannKr/jpegforensics/internal/diskstat"
)

func TestPctFreeAndBlocked(t *testing.T) {
	s := diskstat.Stats{TotalBytes: 1000, FreeBytes: 15}
	if got := s.PctFree(); got != 1.5 {
		t.Errorf("PctFree = %v, want 1.5", got)
	}
	if !s.Blocked(2) {
		t.Error("1.5% free should block at a 2% threshold")
	}
	if s.Blocked(1) {
		t.Error("1.5% free should not block at a 1% threshold")
	}
	if (diskstat.Stats{}).Blocked(50) {
		t.Error("an empty snapshot blocked")
	}
}

func TestCacheCategorizesDataDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"uploads/a1/photo.jpg":       100,
		"analyses/a1/ghost_q70.png":  40,
		"scratch/photo_q70_ab12.jpg": 7,
		"db/jpegforensics.db":        3,
	}
	for name, size := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	c := diskstat.New(dir, 0)
	c.Refresh()
	s := c.Get()
	if s.UploadsBytes != 100 || s.AnalysesBytes != 40 || s.ScratchBytes != 7 || s.AppBytes != 150 {
		t.Errorf("stats = %+v", s)
	}
	if s.TotalBytes == 0 || s.CapturedAt.IsZero() {
		t.Errorf("filesystem totals missing: %+v", s)
	}
}
