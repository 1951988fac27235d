// Package ops archives save slots so they can move between hosts and
// storage backends.
package ops

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"idlerealm/internal/save"
)

const slotExt = ".json"

// BackupSlots writes every slot in repo to a tar.gz at archivePath and
// returns the number of slots archived.
func BackupSlots(ctx context.Context, repo save.Repository, archivePath string) (int, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if repo == nil || archivePath == "" || archivePath == "." {
		return 0, fmt.Errorf("repo and archivePath are required")
	}
	slots, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, s := range slots {
		body, err := repo.Load(ctx, s.Slot)
		if err != nil {
			return 0, fmt.Errorf("load %s: %w", s.Slot, err)
		}
		modTime := s.UpdatedAt
		if modTime.IsZero() {
			modTime = time.Now()
		}
		hdr := &tar.Header{
			Name:     s.Slot + slotExt,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
			ModTime:  modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return 0, err
		}
		if _, err := tw.Write(body); err != nil {
			return 0, err
		}
	}

	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	return len(slots), f.Close()
}

// RestoreSlots loads every slot in the archive into repo, overwriting
// existing slots of the same name.
func RestoreSlots(ctx context.Context, archivePath string, repo save.Repository) (int, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if repo == nil || archivePath == "" || archivePath == "." {
		return 0, fmt.Errorf("archivePath and repo are required")
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	n := 0
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		slot, err := slotFromEntry(hdr.Name)
		if err != nil {
			return n, err
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return n, err
		}
		if err := repo.Save(ctx, slot, body); err != nil {
			return n, fmt.Errorf("restore %s: %w", slot, err)
		}
		n++
	}
	return n, nil
}

func slotFromEntry(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, `\`) || path.Clean(name) != name {
		return "", fmt.Errorf("invalid archive entry path: %q", name)
	}
	if !strings.HasSuffix(name, slotExt) {
		return "", fmt.Errorf("archive entry is not a save slot: %q", name)
	}
	return strings.TrimSuffix(name, slotExt), nil
}

// Digest hashes every slot name and body in repo, in slot order.
func Digest(ctx context.Context, repo save.Repository) (string, error) {
	slots, err := repo.List(ctx)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, s := range slots {
		body, err := repo.Load(ctx, s.Slot)
		if err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, s.Slot)
		_, _ = io.WriteString(h, "\n")
		_, _ = h.Write(body)
		_, _ = io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
