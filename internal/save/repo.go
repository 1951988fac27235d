package save

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"idlerealm/internal/config"
)

var (
	ErrNotFound    = errors.New("save slot not found")
	ErrInvalidSlot = errors.New("invalid save slot name")
)

// Repository stores encoded save documents by slot name.
type Repository interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, body []byte) error
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error
}

type SlotInfo struct {
	Slot      string    `json:"slot"`
	Version   string    `json:"version"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func checkSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

// Open builds the repository selected by cfg. The returned func releases
// it.
func Open(cfg config.Save) (Repository, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		r, err := NewFileRepo(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		r, err := OpenSQLite(filepath.Join(cfg.DataDir, "saves.db"))
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown save backend %q", cfg.Backend)
}
