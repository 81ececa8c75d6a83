package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, verifies the connection and runs migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("roster store: parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("roster store: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("roster store: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS waiters (
			id       BIGINT PRIMARY KEY,
			name     TEXT NOT NULL,
			shift    TEXT NOT NULL DEFAULT '',
			saved_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS waiter_attendances (
			waiter_id BIGINT NOT NULL REFERENCES waiters(id) ON DELETE CASCADE,
			category  TEXT NOT NULL,
			position  INT NOT NULL,
			order_id  BIGINT NOT NULL,
			status    TEXT NOT NULL,
			payload   JSONB NOT NULL,
			PRIMARY KEY (waiter_id, category, position)
		);

		CREATE INDEX IF NOT EXISTS idx_attendances_order ON waiter_attendances(order_id);
	`)
	if err != nil {
		return fmt.Errorf("roster store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRoster(ctx context.Context, waiters []protocol.WaiterRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("roster store: save: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, w := range waiters {
		rows, err := flatten(w)
		if err != nil {
			return fmt.Errorf("roster store: save: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO waiters (id, name, shift, saved_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, shift = EXCLUDED.shift, saved_at = EXCLUDED.saved_at
		`, w.ID, w.Name, string(w.Shift), now)
		if err != nil {
			return fmt.Errorf("roster store: save waiter %d: %w", w.ID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM waiter_attendances WHERE waiter_id = $1`, w.ID); err != nil {
			return fmt.Errorf("roster store: clear waiter %d: %w", w.ID, err)
		}

		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(`
				INSERT INTO waiter_attendances (waiter_id, category, position, order_id, status, payload)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, w.ID, r.category, r.position, r.orderID, r.status, string(r.payload))
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("roster store: save waiter %d attendances: %w", w.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("roster store: save: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadRoster(ctx context.Context) ([]protocol.WaiterRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, shift FROM waiters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roster store: load: %w", err)
	}
	var out []protocol.WaiterRecord
	index := make(map[int]int)
	for rows.Next() {
		var id int64
		var name, shift string
		if err := rows.Scan(&id, &name, &shift); err != nil {
			rows.Close()
			return nil, fmt.Errorf("roster store: load scan: %w", err)
		}
		index[int(id)] = len(out)
		out = append(out, emptyRecord(int(id), name, protocol.Shift(shift)))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roster store: load: %w", err)
	}

	arows, err := s.pool.Query(ctx, `
		SELECT waiter_id, category, payload::text FROM waiter_attendances
		ORDER BY waiter_id, category, position
	`)
	if err != nil {
		return nil, fmt.Errorf("roster store: load attendances: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var waiterID int64
		var category, payload string
		if err := arows.Scan(&waiterID, &category, &payload); err != nil {
			return nil, fmt.Errorf("roster store: load attendances scan: %w", err)
		}
		i, ok := index[int(waiterID)]
		if !ok {
			continue
		}
		if err := attach(&out[i], category, []byte(payload)); err != nil {
			return nil, fmt.Errorf("roster store: %w", err)
		}
	}
	return out, arows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
