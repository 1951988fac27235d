package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS saves (
	slot       TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteRepo stores slots as rows of a single table.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create saves table: %w", err)
	}
	return &SQLiteRepo{db: db, now: time.Now}, nil
}

func (r *SQLiteRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepo) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	var body []byte
	err := r.db.QueryRowContext(ctx, `SELECT body FROM saves WHERE slot = ?`, slot).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return body, nil
}

func (r *SQLiteRepo) Save(ctx context.Context, slot string, body []byte) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saves (slot, version, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			version = excluded.version,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		slot, peekVersion(body), body, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save slot: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot, version, length(body), updated_at FROM saves ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var (
			info    SlotInfo
			updated int64
		)
		if err := rows.Scan(&info.Slot, &info.Version, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Delete(ctx context.Context, slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	return nil
}
