// Package jobpostgres implements the job store on postgres
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/imagemill/imagemill/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, job *model.Job) error {
	query := `INSERT INTO jobs (job_uid, owner_id, source_id, ops, status, created_at, finished_at, input_key, output_key)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	err := p.DB.QueryRowContext(ctx, query, job.ID, job.OwnerID, job.SourceID, job.Ops, job.Status, job.CreatedAt, job.FinishedAt, job.InputKey, job.OutputKey).Err()
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return model.ErrJobConflict
	}
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT job_uid, owner_id, source_id, ops, status, created_at, finished_at, input_key, output_key
	FROM jobs
	WHERE job_uid = $1`
	var job model.Job

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&job.ID,
		&job.OwnerID,
		&job.SourceID,
		&job.Ops,
		&job.Status,
		&job.CreatedAt,
		&job.FinishedAt,
		&job.InputKey,
		&job.OutputKey)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	return &job, nil
}

// List returns one owner-scoped page, most recent first. Total is the full
// owner-scoped count, not the page length.
func (p PostgresRepo) List(ctx context.Context, ownerID string, page, limit int) ([]model.Job, int, error) {
	var total int
	countQuery := `SELECT count(*) FROM jobs WHERE owner_id = $1`
	if err := p.DB.QueryRowContext(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT job_uid, owner_id, source_id, ops, status, created_at, finished_at, input_key, output_key
	FROM jobs
	WHERE owner_id = $1
	ORDER BY created_at DESC
	LIMIT $2
	OFFSET $3`

	offset := (page - 1) * limit

	rows, err := p.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	jobs, err := scanJobs(rows, limit)
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// ListAll is the administrative unscoped listing, capped by limit.
func (p PostgresRepo) ListAll(ctx context.Context, limit int) ([]model.Job, int, error) {
	var total int
	if err := p.DB.QueryRowContext(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT job_uid, owner_id, source_id, ops, status, created_at, finished_at, input_key, output_key
	FROM jobs
	ORDER BY created_at DESC
	LIMIT $1`

	rows, err := p.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, 0, err
	}

	jobs, err := scanJobs(rows, limit)
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// SetStatus patches the status unconditionally. A missing id is a silent
// no-op: this keeps the last-write-wins patch semantics of the store.
func (p PostgresRepo) SetStatus(ctx context.Context, id string, status model.Status) error {
	query := `UPDATE jobs SET status = $1 WHERE job_uid = $2`
	_, err := p.DB.ExecContext(ctx, query, status, id)
	return err
}

// Transition applies the status change only if the current status is one of
// `from`. Returns false when the guard didn't match, so two concurrent
// triggers can't both win.
func (p PostgresRepo) Transition(ctx context.Context, id string, to model.Status, from ...model.Status) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one expected prior status")
	}

	query := `UPDATE jobs SET status = $1 WHERE job_uid = $2 AND status = ANY($3)`
	res, err := p.DB.ExecContext(ctx, query, to, id, statusArray(from))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Finish writes the terminal status and finishedAt. Only a row still in
// `processing` is touched, so a duplicate queue delivery finishing the same
// job twice is a no-op.
func (p PostgresRepo) Finish(ctx context.Context, id string, to model.Status, finishedAt time.Time) error {
	query := `UPDATE jobs SET status = $1, finished_at = $2 WHERE job_uid = $3 AND status = $4`
	_, err := p.DB.ExecContext(ctx, query, to, finishedAt, id, model.StatusProcessing)
	return err
}

func scanJobs(rows *sql.Rows, capHint int) ([]model.Job, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	jobs := make([]model.Job, 0, capHint)
	for rows.Next() {
		var job model.Job
		if err := rows.Scan(&job.ID,
			&job.OwnerID,
			&job.SourceID,
			&job.Ops,
			&job.Status,
			&job.CreatedAt,
			&job.FinishedAt,
			&job.InputKey,
			&job.OutputKey); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return jobs, nil
}

// statusArray renders a postgres text[] literal for ANY(...) guards.
func statusArray(statuses []model.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, string(s))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
