package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arclight-oj/judge/internal/domain"
)

// SubmissionStore is the persistence contract the submission-flow glue needs:
// creating a pending row at submission time and later writing its
// judged aggregate plus per-testcase results.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s domain.Submission) error
	UpdateSubmissionResult(ctx context.Context, s domain.Submission) error
	InsertTestcaseResults(ctx context.Context, results []domain.TestcaseResult) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
}

// InMemorySubmissionStore is a mutex-guarded map implementation, the
// default for tests.
type InMemorySubmissionStore struct {
	mu          sync.Mutex
	submissions map[string]domain.Submission
	testcases   map[string][]domain.TestcaseResult
}

// NewInMemorySubmissionStore returns an empty InMemorySubmissionStore.
func NewInMemorySubmissionStore() *InMemorySubmissionStore {
	return &InMemorySubmissionStore{
		submissions: make(map[string]domain.Submission),
		testcases:   make(map[string][]domain.TestcaseResult),
	}
}

func (s *InMemorySubmissionStore) CreateSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
	return nil
}

func (s *InMemorySubmissionStore) UpdateSubmissionResult(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; !ok {
		return fmt.Errorf("submission %s not found", sub.ID)
	}
	s.submissions[sub.ID] = sub
	return nil
}

func (s *InMemorySubmissionStore) InsertTestcaseResults(_ context.Context, results []domain.TestcaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.testcases[r.SubmissionID] = append(s.testcases[r.SubmissionID], r)
	}
	return nil
}

func (s *InMemorySubmissionStore) GetSubmission(_ context.Context, id string) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("submission %s not found", id)
	}
	return sub, nil
}

// PostgresSubmissionStore persists submissions and per-testcase results,
// following the same pgxpool/ensureSchema-on-connect conventions as
// contentstore.PostgresNameTable.
type PostgresSubmissionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionStore opens a pooled connection and ensures the
// backing tables exist.
func NewPostgresSubmissionStore(ctx context.Context, dsn string) (*PostgresSubmissionStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("submission store: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("submission store: create postgres pool: %w", err)
	}
	s := &PostgresSubmissionStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSubmissionStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresSubmissionStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			problem_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			language TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory_kib DOUBLE PRECISION NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_problem_id ON submissions(problem_id)`,
		`CREATE TABLE IF NOT EXISTS testcase_results (
			submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
			testcase_name TEXT NOT NULL,
			status TEXT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory_kib DOUBLE PRECISION NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (submission_id, testcase_name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("submission store: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresSubmissionStore) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, problem_id, user_id, language, source, status, score, time_ms, memory_kib, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sub.ID, sub.ProblemID, sub.UserID, sub.Language, sub.Source, string(sub.Status), sub.Score, sub.TimeMs, sub.MemoryKiB, sub.Message, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("submission store: create submission: %w", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) UpdateSubmissionResult(ctx context.Context, sub domain.Submission) error {
	var finishedAt *time.Time
	if !sub.FinishedAt.IsZero() {
		finishedAt = &sub.FinishedAt
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, score = $3, time_ms = $4, memory_kib = $5, message = $6, finished_at = $7
		WHERE id = $1
	`, sub.ID, string(sub.Status), sub.Score, sub.TimeMs, sub.MemoryKiB, sub.Message, finishedAt)
	if err != nil {
		return fmt.Errorf("submission store: update submission: %w", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) InsertTestcaseResults(ctx context.Context, results []domain.TestcaseResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("submission store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		_, err := tx.Exec(ctx, `
			INSERT INTO testcase_results (submission_id, testcase_name, status, score, time_ms, memory_kib, message)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (submission_id, testcase_name) DO UPDATE SET
				status = EXCLUDED.status, score = EXCLUDED.score,
				time_ms = EXCLUDED.time_ms, memory_kib = EXCLUDED.memory_kib, message = EXCLUDED.message
		`, r.SubmissionID, r.TestcaseName, string(r.Status), r.Score, r.TimeMs, r.MemoryKiB, r.Message)
		if err != nil {
			return fmt.Errorf("submission store: insert testcase result: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresSubmissionStore) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var sub domain.Submission
	var status string
	var finishedAt *time.Time
	row := s.pool.QueryRow(ctx, `
		SELECT id, problem_id, user_id, language, source, status, score, time_ms, memory_kib, message, created_at, finished_at
		FROM submissions WHERE id = $1
	`, id)
	if err := row.Scan(&sub.ID, &sub.ProblemID, &sub.UserID, &sub.Language, &sub.Source, &status, &sub.Score, &sub.TimeMs, &sub.MemoryKiB, &sub.Message, &sub.CreatedAt, &finishedAt); err != nil {
		return domain.Submission{}, fmt.Errorf("submission store: get submission: %w", err)
	}
	sub.Status = domain.SubmissionStatus(status)
	if finishedAt != nil {
		sub.FinishedAt = *finishedAt
	}
	return sub, nil
}
