package roster

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("roster store: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("roster store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS waiters (
			id       INTEGER PRIMARY KEY,
			name     TEXT NOT NULL,
			shift    TEXT NOT NULL DEFAULT '',
			saved_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS waiter_attendances (
			waiter_id INTEGER NOT NULL REFERENCES waiters(id),
			category  TEXT NOT NULL,
			position  INTEGER NOT NULL,
			order_id  INTEGER NOT NULL,
			status    TEXT NOT NULL,
			payload   TEXT NOT NULL,
			PRIMARY KEY (waiter_id, category, position)
		);

		CREATE INDEX IF NOT EXISTS idx_attendances_order ON waiter_attendances(order_id);
	`)
	if err != nil {
		return fmt.Errorf("roster store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveRoster(ctx context.Context, waiters []protocol.WaiterRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("roster store: save: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, w := range waiters {
		rows, err := flatten(w)
		if err != nil {
			return fmt.Errorf("roster store: save: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO waiters (id, name, shift, saved_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, shift=excluded.shift, saved_at=excluded.saved_at
		`, w.ID, w.Name, string(w.Shift), now)
		if err != nil {
			return fmt.Errorf("roster store: save waiter %d: %w", w.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM waiter_attendances WHERE waiter_id = ?`, w.ID); err != nil {
			return fmt.Errorf("roster store: clear waiter %d: %w", w.ID, err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO waiter_attendances (waiter_id, category, position, order_id, status, payload)
				VALUES (?, ?, ?, ?, ?, ?)
			`, w.ID, r.category, r.position, r.orderID, r.status, string(r.payload))
			if err != nil {
				return fmt.Errorf("roster store: save waiter %d attendance: %w", w.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("roster store: save: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRoster(ctx context.Context) ([]protocol.WaiterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, shift FROM waiters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roster store: load: %w", err)
	}
	defer rows.Close()

	var out []protocol.WaiterRecord
	index := make(map[int]int)
	for rows.Next() {
		var id int
		var name, shift string
		if err := rows.Scan(&id, &name, &shift); err != nil {
			return nil, fmt.Errorf("roster store: load scan: %w", err)
		}
		index[id] = len(out)
		out = append(out, emptyRecord(id, name, protocol.Shift(shift)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roster store: load: %w", err)
	}

	arows, err := s.db.QueryContext(ctx, `
		SELECT waiter_id, category, payload FROM waiter_attendances
		ORDER BY waiter_id, category, position
	`)
	if err != nil {
		return nil, fmt.Errorf("roster store: load attendances: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var waiterID int
		var category, payload string
		if err := arows.Scan(&waiterID, &category, &payload); err != nil {
			return nil, fmt.Errorf("roster store: load attendances scan: %w", err)
		}
		i, ok := index[waiterID]
		if !ok {
			continue
		}
		if err := attach(&out[i], category, []byte(payload)); err != nil {
			return nil, fmt.Errorf("roster store: %w", err)
		}
	}
	return out, arows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
