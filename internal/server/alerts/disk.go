package alerts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/filex"
)

// DiskSnapshots keeps alert frames on the local filesystem under the same
// yyyy/mm/dd layout as S3Snapshots. The returned link is a file:// URL.
type DiskSnapshots struct {
	dir string
	now func() time.Time
}

func NewDiskSnapshots(dir string) (*DiskSnapshots, error) {
	abs, err := filex.EnsureSubDir(dir)
	if err != nil {
		return nil, err
	}
	return &DiskSnapshots{dir: abs, now: time.Now}, nil
}

func (s *DiskSnapshots) Store(_ context.Context, id string, image []byte) (string, string, error) {
	d := s.now().UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s.jpg", d.Year(), int(d.Month()), d.Day(), id)
	path := filepath.Join(s.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return "", "", fmt.Errorf("mkdir: %w", err)
	}
	if err := filex.WriteFileAtomic(path, image, 0o640); err != nil {
		return "", "", err
	}
	return key, "file://" + filepath.ToSlash(path), nil
}
