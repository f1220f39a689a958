package forensics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ScratchPattern matches the names of re-encode scratch artifacts; the
// cleanup sweeper uses it to find files abandoned by a crashed process.
const ScratchPattern = "*_q*_*.jpg"

// scratch is a re-encode artifact on disk. It must be released on every exit
// path once acquired.
type scratch struct {
	path string
}

// acquireScratch creates an empty, uniquely named file in dir named after the
// input stem and the quality: <stem>_q<quality>_<id>.jpg.
func acquireScratch(dir, stem string, quality int) (*scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	id := uuid.NewString()[:8]
	path := filepath.Join(dir, fmt.Sprintf("%s_q%d_%s.jpg", stem, quality, id))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create scratch artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("create scratch artifact: %w", err)
	}
	return &scratch{path: path}, nil
}

func (s *scratch) release() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("scratch artifact not removed", "path", s.path, "error", err)
	}
}
