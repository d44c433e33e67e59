package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/remoteprint/remoteprint/internal/model"
)

// ErrPrintJobNotFound is returned when no job matches the account and ID.
var ErrPrintJobNotFound = errors.New("print job not found")

const printJobColumns = `id, account_id, printer_id, computer_id, status, file_storage_path, title, created_at`

// PrintJobFilter narrows a job listing.
type PrintJobFilter struct {
	AccountID string
	Status    model.JobStatus // empty means any
	Limit     int
}

// CreatePrintJob inserts a new job row.
func (r *Repository) CreatePrintJob(ctx context.Context, job *model.PrintJob) error {
	query := `
		INSERT INTO print_jobs (` + printJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.AccountID,
		job.PrinterID,
		job.ComputerID,
		string(job.Status),
		job.FileStoragePath,
		job.Title,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create print job: %w", err)
	}

	return nil
}

// GetPrintJob retrieves a job owned by accountID.
func (r *Repository) GetPrintJob(ctx context.Context, accountID, id string) (*model.PrintJob, error) {
	query := `
		SELECT ` + printJobColumns + `
		FROM print_jobs
		WHERE id = $1 AND account_id = $2
	`

	job, err := scanPrintJob(r.pool.QueryRow(ctx, query, id, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrintJobNotFound
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}

	return job, nil
}

// ListPrintJobs returns an account's jobs, newest first.
func (r *Repository) ListPrintJobs(ctx context.Context, filter PrintJobFilter) ([]*model.PrintJob, error) {
	query := `
		SELECT ` + printJobColumns + `
		FROM print_jobs
		WHERE account_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, filter.AccountID, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating print jobs: %w", err)
	}

	return jobs, nil
}

// CountPrintJobsByStatus groups an account's jobs by status.
// Statuses with no jobs are absent from the map.
func (r *Repository) CountPrintJobsByStatus(ctx context.Context, accountID string) (map[model.JobStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM print_jobs
		WHERE account_id = $1
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count print jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[model.JobStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job counts: %w", err)
	}

	return counts, nil
}

func scanPrintJob(row pgx.Row) (*model.PrintJob, error) {
	var job model.PrintJob
	var status string

	err := row.Scan(
		&job.ID,
		&job.AccountID,
		&job.PrinterID,
		&job.ComputerID,
		&status,
		&job.FileStoragePath,
		&job.Title,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	return &job, nil
}
