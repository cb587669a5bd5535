package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ouestoffice/catalog/internal/catalog"
	"github.com/ouestoffice/catalog/internal/importer"
)

// CreateJob inserts the audit record for a new upload.
func (p *Postgres) CreateJob(ctx context.Context, job *catalog.ImportJob) error {
	_, err := p.db().Exec(ctx, `
		INSERT INTO import_jobs (id, supplier, filename, kind, mode, total_rows, ok_rows, error_rows, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, string(job.Supplier), job.Filename, string(job.Kind), string(job.Mode),
		job.TotalRows, job.OkRows, job.ErrorRows, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob returns the job or nil when the id is unknown.
func (p *Postgres) GetJob(ctx context.Context, id string) (*catalog.ImportJob, error) {
	var job catalog.ImportJob
	err := p.db().QueryRow(ctx, `
		SELECT id, supplier, filename, kind, mode, total_rows, ok_rows, error_rows, status, created_at, rolled_back_at
		FROM import_jobs WHERE id = $1`, id,
	).Scan(
		&job.ID, &job.Supplier, &job.Filename, &job.Kind, &job.Mode,
		&job.TotalRows, &job.OkRows, &job.ErrorRows, &job.Status, &job.CreatedAt, &job.RolledBackAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first, capped at limit.
func (p *Postgres) ListJobs(ctx context.Context, limit int) ([]catalog.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db().Query(ctx, `
		SELECT id, supplier, filename, kind, mode, total_rows, ok_rows, error_rows, status, created_at, rolled_back_at
		FROM import_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var jobs []catalog.ImportJob
	for rows.Next() {
		var job catalog.ImportJob
		if err := rows.Scan(
			&job.ID, &job.Supplier, &job.Filename, &job.Kind, &job.Mode,
			&job.TotalRows, &job.OkRows, &job.ErrorRows, &job.Status, &job.CreatedAt, &job.RolledBackAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob saves the job's mutable fields.
func (p *Postgres) UpdateJob(ctx context.Context, job *catalog.ImportJob) error {
	tag, err := p.db().Exec(ctx, `
		UPDATE import_jobs
		SET total_rows = $2, ok_rows = $3, error_rows = $4, status = $5, rolled_back_at = $6
		WHERE id = $1`,
		job.ID, job.TotalRows, job.OkRows, job.ErrorRows, string(job.Status), job.RolledBackAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return importer.ErrJobNotFound
	}
	return nil
}

// InsertRows persists one staging chunk. All rows land or none do.
func (p *Postgres) InsertRows(ctx context.Context, jobRows []catalog.ImportJobRow) error {
	if len(jobRows) == 0 {
		return nil
	}
	return p.WithTx(ctx, func(s importer.Store) error {
		tx := s.(*Postgres)
		batch := &pgx.Batch{}
		for i := range jobRows {
			row := &jobRows[i]
			raw, err := toJSON(row.RawData)
			if err != nil {
				return err
			}
			mapped, err := toJSON(row.MappedData)
			if err != nil {
				return err
			}
			msgs, err := toJSON(row.ErrorMessages)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO import_job_rows (job_id, row_index, raw_data, mapped_data, status, error_messages, product_id, previous_snapshot)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				row.JobID, row.RowIndex, raw, mapped, string(row.Status), msgs, row.ProductID, nil,
			)
		}
		results := tx.db().(pgx.Tx).SendBatch(ctx, batch)
		defer results.Close()
		for range jobRows {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("insert row: %w", err)
			}
		}
		return results.Close()
	})
}

// JobRows returns every row of a job in row_index order.
func (p *Postgres) JobRows(ctx context.Context, jobID string) ([]catalog.ImportJobRow, error) {
	rows, err := p.db().Query(ctx, `
		SELECT job_id, row_index, raw_data, mapped_data, status, error_messages, product_id, previous_snapshot
		FROM import_job_rows WHERE job_id = $1 ORDER BY row_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer rows.Close()

	var out []catalog.ImportJobRow
	for rows.Next() {
		row, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

func scanJobRow(rows pgx.Rows) (*catalog.ImportJobRow, error) {
	var row catalog.ImportJobRow
	var raw, mapped, msgs, snapshot []byte
	if err := rows.Scan(
		&row.JobID, &row.RowIndex, &raw, &mapped, &row.Status, &msgs, &row.ProductID, &snapshot,
	); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	if err := fromJSON(raw, &row.RawData); err != nil {
		return nil, err
	}
	if err := fromJSON(mapped, &row.MappedData); err != nil {
		return nil, err
	}
	if err := fromJSON(msgs, &row.ErrorMessages); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		row.PreviousSnapshot = &catalog.RowSnapshot{}
		if err := fromJSON(snapshot, row.PreviousSnapshot); err != nil {
			return nil, err
		}
	}
	return &row, nil
}

// UpdateRow saves a row's outcome: status, messages, matched product and
// pre-apply snapshot.
func (p *Postgres) UpdateRow(ctx context.Context, row *catalog.ImportJobRow) error {
	msgs, err := toJSON(row.ErrorMessages)
	if err != nil {
		return err
	}
	var snapshot []byte
	if row.PreviousSnapshot != nil {
		snapshot, err = toJSON(row.PreviousSnapshot)
		if err != nil {
			return err
		}
	}
	tag, err := p.db().Exec(ctx, `
		UPDATE import_job_rows
		SET status = $3, error_messages = $4, product_id = $5, previous_snapshot = $6
		WHERE job_id = $1 AND row_index = $2`,
		row.JobID, row.RowIndex, string(row.Status), msgs, row.ProductID, snapshot,
	)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %s/%d not found", row.JobID, row.RowIndex)
	}
	return nil
}
