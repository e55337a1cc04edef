// Package jobstore persists newsletter jobs. The planner only relies on the
// Store contract: read a job (full partials map included), find the next job
// needing processing, and two atomic writes — one scoped to a single
// partials key, one for whole-job finalization. The SQLite implementation
// keeps jobs as JSON blobs and uses immediate transactions as the sole
// concurrency primitive for the read-check-write guard.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newsdesk/internal/core"
)

// ErrNotFound is returned when no job matches the lookup.
var ErrNotFound = errors.New("job not found")

// Store is the job persistence contract consumed by the planner.
type Store interface {
	CreateJob(ctx context.Context, job *core.Job) error
	GetJob(ctx context.Context, id string) (*core.Job, error)
	// NextProcessableJob returns the oldest job still in news-ready state
	// (fully unprocessed or partially processed), or ErrNotFound.
	NextProcessableJob(ctx context.Context) (*core.Job, error)
	// PutPartial merge-writes partials[key] = rec. Existence and force are
	// re-checked inside the transaction: when the key already exists and
	// force is false the stored record is returned with wrote=false and no
	// write occurs. When overall is non-nil and no overall entry exists yet
	// it is written in the same transaction.
	PutPartial(ctx context.Context, jobID, key string, rec core.TopicPartial, overall *core.TopicPartial, force bool) (core.TopicPartial, bool, error)
	// FinalizeJob atomically stores the plan and moves the job to
	// ready-to-send.
	FinalizeJob(ctx context.Context, jobID string, plan core.FinalPlan) error
	SetStatus(ctx context.Context, jobID string, status core.JobStatus) error
	Close() error
}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the job database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsdesk.db")
	// _txlock=immediate takes the write lock at BEGIN, so the in-transaction
	// existence re-check in PutPartial cannot race another writer.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		topics     TEXT NOT NULL,
		partials   TEXT NOT NULL,
		stats      TEXT,
		plan       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job row.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *core.Job) error {
	topics, err := json.Marshal(job.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	partials := job.Partials
	if partials == nil {
		partials = map[string]core.TopicPartial{}
	}
	partialsJSON, err := json.Marshal(partials)
	if err != nil {
		return fmt.Errorf("failed to marshal partials: %w", err)
	}
	statsJSON, err := marshalNullable(job.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	planJSON, err := marshalNullable(job.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, created_at, updated_at, topics, partials, stats, plan)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.CreatedAt, job.UpdatedAt,
		string(topics), string(partialsJSON), statsJSON, planJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob reads one job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*core.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, created_at, updated_at, topics, partials, stats, plan
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// NextProcessableJob returns the oldest news-ready job.
func (s *SQLiteStore) NextProcessableJob(ctx context.Context) (*core.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, created_at, updated_at, topics, partials, stats, plan
		FROM jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1`,
		string(core.StatusNewsReady))
	return scanJob(row)
}

// PutPartial implements the transactional merge-write described on the
// Store interface.
func (s *SQLiteStore) PutPartial(ctx context.Context, jobID, key string, rec core.TopicPartial, overall *core.TopicPartial, force bool) (core.TopicPartial, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var partialsJSON string
	err = tx.QueryRowContext(ctx, `SELECT partials FROM jobs WHERE id = ?`, jobID).Scan(&partialsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TopicPartial{}, false, ErrNotFound
	}
	if err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to read partials: %w", err)
	}

	partials := map[string]core.TopicPartial{}
	if err := json.Unmarshal([]byte(partialsJSON), &partials); err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to unmarshal partials: %w", err)
	}

	// Lost-race outcome: another invocation stored this section between the
	// caller's idempotence check and this transaction.
	if existing, ok := partials[key]; ok && !force {
		return existing, false, nil
	}

	partials[key] = rec
	if overall != nil {
		if _, ok := partials[core.OverallKey]; !ok {
			partials[core.OverallKey] = *overall
		}
	}

	updated, err := json.Marshal(partials)
	if err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to marshal partials: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET partials = ?, updated_at = ? WHERE id = ?`,
		string(updated), time.Now().UTC(), jobID); err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to write partials: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.TopicPartial{}, false, fmt.Errorf("failed to commit partials: %w", err)
	}
	return rec, true, nil
}

// FinalizeJob stores the finalized plan and flips status to ready-to-send in
// one statement.
func (s *SQLiteStore) FinalizeJob(ctx context.Context, jobID string, plan core.FinalPlan) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET plan = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(planJSON), string(core.StatusReadyToSend), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	return checkAffected(res)
}

// SetStatus updates a job's lifecycle status.
func (s *SQLiteStore) SetStatus(ctx context.Context, jobID string, status core.JobStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row *sql.Row) (*core.Job, error) {
	var job core.Job
	var status, topicsJSON, partialsJSON string
	var statsJSON, planJSON sql.NullString

	err := row.Scan(&job.ID, &status, &job.CreatedAt, &job.UpdatedAt,
		&topicsJSON, &partialsJSON, &statsJSON, &planJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Status = core.JobStatus(status)
	if err := json.Unmarshal([]byte(topicsJSON), &job.Topics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
	}
	if err := json.Unmarshal([]byte(partialsJSON), &job.Partials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal partials: %w", err)
	}
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &job.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	if planJSON.Valid && planJSON.String != "" {
		if err := json.Unmarshal([]byte(planJSON.String), &job.Plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
	}
	return &job, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	switch t := v.(type) {
	case *core.PreprocessStats:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *core.FinalPlan:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
