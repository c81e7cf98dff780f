package hosting

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Staged writes each object to a temp file, checks it is non-empty before
// and after the round trip, and hands the bytes read back from disk to the
// wrapped strategy. The temp file is removed on every return path.
type Staged struct {
	next Uploader
	dir  string
}

// NewStaged wraps next. An empty dir uses os.TempDir.
func NewStaged(next Uploader, dir string) *Staged {
	return &Staged{next: next, dir: dir}
}

func (s *Staged) Strategy() string { return s.next.Strategy() }

func (s *Staged) Upload(ctx context.Context, obj Object) (string, error) {
	if len(obj.Data) == 0 {
		return "", ErrEmptyObject
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o700); err != nil {
			return "", fmt.Errorf("staging dir: %w", err)
		}
	}
	f, err := os.CreateTemp(s.dir, "imagequery-*-"+safeBaseName(obj.Name))
	if err != nil {
		return "", fmt.Errorf("staging create: %w", err)
	}
	name := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(name)
	}()

	if _, err := f.Write(obj.Data); err != nil {
		return "", fmt.Errorf("staging write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("staging sync: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("staging stat: %w", err)
	}
	if st.Size() == 0 {
		return "", fmt.Errorf("staging: %w", ErrEmptyObject)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("staging seek: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("staging read: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("staging read back: %w", ErrEmptyObject)
	}
	obj.Data = data
	return s.next.Upload(ctx, obj)
}

var _ Uploader = (*Staged)(nil)
