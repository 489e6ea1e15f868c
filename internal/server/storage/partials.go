package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrPartialNotFound = errors.New("partial upload not found")

// Partials spools the bytes of unfinished resumable uploads on local disk,
// one file per session. Object stores without append support only ever see
// the finished object.
type Partials struct {
	dir string
}

func NewPartials(dir string) *Partials {
	return &Partials{dir: dir}
}

func (p *Partials) EnsureDir() error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory %s: %w", p.dir, err)
	}
	return nil
}

func (p *Partials) Create(id string) error {
	f, err := os.OpenFile(p.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create partial upload %s: %w", id, err)
	}
	return f.Close()
}

// Append writes at most limit bytes from r at offset. Bytes past offset left
// by an earlier interrupted write are discarded first. The count of bytes
// written is returned even when the copy fails part way.
func (p *Partials) Append(id string, offset int64, r io.Reader, limit int64) (int64, error) {
	f, err := os.OpenFile(p.path(id), os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrPartialNotFound
		}
		return 0, fmt.Errorf("failed to open partial upload %s: %w", id, err)
	}
	defer f.Close()

	if err := f.Truncate(offset); err != nil {
		return 0, fmt.Errorf("failed to truncate partial upload %s: %w", id, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek partial upload %s: %w", id, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit))
	if serr := f.Sync(); err == nil {
		err = serr
	}
	return n, err
}

func (p *Partials) Open(id string) (*os.File, error) {
	f, err := os.Open(p.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPartialNotFound
		}
		return nil, fmt.Errorf("failed to open partial upload %s: %w", id, err)
	}
	return f, nil
}

func (p *Partials) Size(id string) (int64, error) {
	st, err := os.Stat(p.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrPartialNotFound
		}
		return 0, err
	}
	return st.Size(), nil
}

// Remove deletes a partial upload. Missing files are not an error.
func (p *Partials) Remove(id string) error {
	if err := os.Remove(p.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete partial upload %s: %w", id, err)
	}
	return nil
}

func (p *Partials) path(id string) string {
	return filepath.Join(p.dir, filepath.Base(id)+".part")
}
