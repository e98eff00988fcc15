package contentstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arclight-oj/judge/internal/ids"
)

// PostgresNameTable persists the DepId↔name side table in a single
// dep_names table, scoped by problem_id. Grounded on nova's
// internal/store/postgres.go (pgxpool, ensureSchema-on-connect, $N
// placeholders, ON CONFLICT upserts).
type PostgresNameTable struct {
	pool *pgxpool.Pool
}

// NewPostgresNameTable opens a pooled connection and ensures the backing
// table exists.
func NewPostgresNameTable(ctx context.Context, dsn string) (*PostgresNameTable, error) {
	if dsn == "" {
		return nil, fmt.Errorf("content store: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("content store: create postgres pool: %w", err)
	}
	t := &PostgresNameTable{pool: pool}
	if err := t.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return t, nil
}

func (t *PostgresNameTable) Close() error {
	if t.pool != nil {
		t.pool.Close()
	}
	return nil
}

func (t *PostgresNameTable) ensureSchema(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dep_names (
			dep_id TEXT PRIMARY KEY,
			problem_id TEXT NOT NULL,
			name TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("content store: ensure schema: %w", err)
	}
	_, err = t.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_dep_names_problem_id ON dep_names(problem_id)`)
	if err != nil {
		return fmt.Errorf("content store: ensure schema: %w", err)
	}
	return nil
}

func (t *PostgresNameTable) InsertMany(ctx context.Context, problemID string, entries map[ids.DepId]string) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return &InternalError{Op: "insert_many", Cause: err}
	}
	defer tx.Rollback(ctx)

	for depID, name := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO dep_names (dep_id, problem_id, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (dep_id) DO UPDATE SET problem_id = EXCLUDED.problem_id, name = EXCLUDED.name
		`, depID.String(), problemID, name)
		if err != nil {
			return &InternalError{Op: "insert_many", Cause: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &InternalError{Op: "insert_many", Cause: err}
	}
	return nil
}

func (t *PostgresNameTable) GetMany(ctx context.Context, depIDs []ids.DepId) (map[ids.DepId]string, error) {
	out := make(map[ids.DepId]string, len(depIDs))
	if len(depIDs) == 0 {
		return out, nil
	}
	raw := make([]string, len(depIDs))
	for i, id := range depIDs {
		raw[i] = id.String()
	}

	rows, err := t.pool.Query(ctx, `SELECT dep_id, name FROM dep_names WHERE dep_id = ANY($1)`, raw)
	if err != nil {
		return nil, &InternalError{Op: "get_many", Cause: err}
	}
	defer rows.Close()

	for rows.Next() {
		var depIDStr, name string
		if err := rows.Scan(&depIDStr, &name); err != nil {
			return nil, &InternalError{Op: "get_many", Cause: err}
		}
		depID, err := ids.ParseDepId(depIDStr)
		if err != nil {
			return nil, &InternalError{Op: "get_many", Cause: err}
		}
		out[depID] = name
	}
	if err := rows.Err(); err != nil {
		return nil, &InternalError{Op: "get_many", Cause: err}
	}
	return out, nil
}

func (t *PostgresNameTable) RemoveMany(ctx context.Context, problemID string) error {
	_, err := t.pool.Exec(ctx, `DELETE FROM dep_names WHERE problem_id = $1`, problemID)
	if err != nil {
		return &InternalError{Op: "remove_many", Cause: err}
	}
	return nil
}

// PostgresResourceRefTable persists ResourceId refcounts and
// last-update timestamps for the sweeper, following the same
// pgxpool/ensureSchema-on-connect/$N-placeholder conventions as
// PostgresNameTable.
type PostgresResourceRefTable struct {
	pool *pgxpool.Pool
}

// NewPostgresResourceRefTable opens a pooled connection and ensures the
// backing table exists.
func NewPostgresResourceRefTable(ctx context.Context, dsn string) (*PostgresResourceRefTable, error) {
	if dsn == "" {
		return nil, fmt.Errorf("content store: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("content store: create postgres pool: %w", err)
	}
	t := &PostgresResourceRefTable{pool: pool}
	if err := t.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return t, nil
}

func (t *PostgresResourceRefTable) Close() error {
	if t.pool != nil {
		t.pool.Close()
	}
	return nil
}

func (t *PostgresResourceRefTable) ensureSchema(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS resource_refs (
			resource_id TEXT PRIMARY KEY,
			ref_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("content store: ensure schema: %w", err)
	}
	_, err = t.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_resource_refs_idle ON resource_refs(ref_count, updated_at)`)
	if err != nil {
		return fmt.Errorf("content store: ensure schema: %w", err)
	}
	return nil
}

func (t *PostgresResourceRefTable) IncrRef(ctx context.Context, id ids.ResourceId) error {
	_, err := t.pool.Exec(ctx, `
		INSERT INTO resource_refs (resource_id, ref_count, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (resource_id) DO UPDATE SET ref_count = resource_refs.ref_count + 1, updated_at = now()
	`, id.String())
	if err != nil {
		return &InternalError{Op: "incr_ref", Cause: err}
	}
	return nil
}

func (t *PostgresResourceRefTable) DecrRef(ctx context.Context, id ids.ResourceId) error {
	_, err := t.pool.Exec(ctx, `
		INSERT INTO resource_refs (resource_id, ref_count, updated_at)
		VALUES ($1, 0, now())
		ON CONFLICT (resource_id) DO UPDATE SET
			ref_count = GREATEST(resource_refs.ref_count - 1, 0), updated_at = now()
	`, id.String())
	if err != nil {
		return &InternalError{Op: "decr_ref", Cause: err}
	}
	return nil
}

func (t *PostgresResourceRefTable) ListIdle(ctx context.Context, olderThan time.Time, limit int) ([]ids.ResourceId, error) {
	rows, err := t.pool.Query(ctx, `
		SELECT resource_id FROM resource_refs
		WHERE ref_count = 0 AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, &InternalError{Op: "list_idle", Cause: err}
	}
	defer rows.Close()

	var out []ids.ResourceId
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &InternalError{Op: "list_idle", Cause: err}
		}
		id, err := ids.ParseResourceId(raw)
		if err != nil {
			return nil, &InternalError{Op: "list_idle", Cause: err}
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &InternalError{Op: "list_idle", Cause: err}
	}
	return out, nil
}

func (t *PostgresResourceRefTable) Touch(ctx context.Context, id ids.ResourceId) error {
	_, err := t.pool.Exec(ctx, `UPDATE resource_refs SET updated_at = now() WHERE resource_id = $1`, id.String())
	if err != nil {
		return &InternalError{Op: "touch", Cause: err}
	}
	return nil
}

func (t *PostgresResourceRefTable) Delete(ctx context.Context, id ids.ResourceId) error {
	_, err := t.pool.Exec(ctx, `DELETE FROM resource_refs WHERE resource_id = $1`, id.String())
	if err != nil {
		return &InternalError{Op: "delete", Cause: err}
	}
	return nil
}

func (t *PostgresNameTable) GetManyByProblemID(ctx context.Context, problemID string) (map[ids.DepId]string, error) {
	rows, err := t.pool.Query(ctx, `SELECT dep_id, name FROM dep_names WHERE problem_id = $1`, problemID)
	if err != nil {
		return nil, &InternalError{Op: "get_many_by_problem_id", Cause: err}
	}
	defer rows.Close()

	out := make(map[ids.DepId]string)
	for rows.Next() {
		var depIDStr, name string
		if err := rows.Scan(&depIDStr, &name); err != nil {
			return nil, &InternalError{Op: "get_many_by_problem_id", Cause: err}
		}
		depID, err := ids.ParseDepId(depIDStr)
		if err != nil {
			return nil, &InternalError{Op: "get_many_by_problem_id", Cause: err}
		}
		out[depID] = name
	}
	if err := rows.Err(); err != nil {
		return nil, &InternalError{Op: "get_many_by_problem_id", Cause: err}
	}
	return out, nil
}
