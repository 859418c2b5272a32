package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dexscope/internal/dex"
)

// IndexedClass is one class row from the index.
type IndexedClass struct {
	Name        string
	AccessFlags uint32
	Superclass  string
}

// Checksum renders a dex content hash the way the index stores it.
func Checksum(f *dex.File) string {
	return fmt.Sprintf("%016x", f.Hash())
}

// SaveFile records a dex file's class table under its content hash,
// replacing any previous rows for the same hash. Idempotent for
// identical content.
func (s *Store) SaveFile(ctx context.Context, f *dex.File, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save dex index: %w", err)
	}
	defer tx.Rollback()

	checksum := Checksum(f)
	names := f.ClassNames()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dex_files (checksum, path, class_count, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET path = excluded.path, indexed_at = excluded.indexed_at
	`, checksum, path, len(names), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save dex index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE dex_checksum = ?`, checksum); err != nil {
		return fmt.Errorf("save dex index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO classes (dex_checksum, ord, name, access_flags, superclass)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save dex index: %w", err)
	}
	defer stmt.Close()

	for ord, name := range names {
		var access uint32
		var super string
		if c, ok, cerr := f.Class(name); cerr == nil && ok {
			access = c.AccessFlags
			super = c.SuperName
		}
		if _, err := stmt.ExecContext(ctx, checksum, ord, name, access, super); err != nil {
			return fmt.Errorf("save dex index: class %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// LookupFile returns the indexed class table for a dex content hash,
// in class_defs order. The boolean is false for unindexed hashes.
func (s *Store) LookupFile(ctx context.Context, checksum string) ([]IndexedClass, bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT class_count FROM dex_files WHERE checksum = ?`, checksum).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup dex index: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, access_flags, superclass
		FROM classes WHERE dex_checksum = ? ORDER BY ord
	`, checksum)
	if err != nil {
		return nil, false, fmt.Errorf("lookup dex index: %w", err)
	}
	defer rows.Close()

	out := make([]IndexedClass, 0, count)
	for rows.Next() {
		var c IndexedClass
		if err := rows.Scan(&c.Name, &c.AccessFlags, &c.Superclass); err != nil {
			return nil, false, fmt.Errorf("lookup dex index: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("lookup dex index: %w", err)
	}
	return out, true, nil
}
