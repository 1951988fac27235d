package save

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".json"

// FileRepo keeps one JSON file per slot under a data directory. Writes go
// to a temp file first and are renamed into place.
type FileRepo struct {
	mu  sync.RWMutex
	dir string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &FileRepo{dir: dataDir}, nil
}

func (r *FileRepo) path(slot string) string {
	return filepath.Join(r.dir, slot+fileExt)
}

func (r *FileRepo) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, err := os.ReadFile(r.path(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
		}
		return nil, err
	}
	return b, nil
}

func (r *FileRepo) Save(ctx context.Context, slot string, body []byte) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.dir, slot+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), r.path(slot)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (r *FileRepo) List(ctx context.Context) ([]SlotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	out := make([]SlotInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		slot := strings.TrimSuffix(name, fileExt)
		if checkSlot(slot) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		body, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			continue
		}
		out = append(out, SlotInfo{
			Slot:      slot,
			Version:   peekVersion(body),
			Size:      len(body),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (r *FileRepo) Delete(ctx context.Context, slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(slot)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, slot)
		}
		return err
	}
	return nil
}
