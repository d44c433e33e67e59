package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/remoteprint/remoteprint/internal/model"
)

// ErrComputerNotFound is returned when no computer matches the account and ID.
var ErrComputerNotFound = errors.New("computer not found")

const computerColumns = `id, account_id, computer_name, status, last_seen, created_at`

// CreateComputer registers a computer for an account.
func (r *Repository) CreateComputer(ctx context.Context, computer *model.Computer) error {
	query := `
		INSERT INTO computers (` + computerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		computer.ID,
		computer.AccountID,
		computer.Name,
		string(computer.Status),
		computer.LastSeen,
		computer.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to create computer: %w", err)
	}

	return nil
}

// ListComputersByAccount returns an account's computers, newest first.
func (r *Repository) ListComputersByAccount(ctx context.Context, accountID string) ([]*model.Computer, error) {
	query := `
		SELECT ` + computerColumns + `
		FROM computers
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list computers: %w", err)
	}
	defer rows.Close()

	var computers []*model.Computer
	for rows.Next() {
		computer, err := scanComputer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan computer: %w", err)
		}
		computers = append(computers, computer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating computers: %w", err)
	}

	return computers, nil
}

// CountComputersByAccount returns how many computers an account has registered.
func (r *Repository) CountComputersByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM computers WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count computers: %w", err)
	}
	return count, nil
}

// DeleteComputer removes a computer owned by accountID.
func (r *Repository) DeleteComputer(ctx context.Context, accountID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM computers WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete computer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrComputerNotFound
	}

	return nil
}

func scanComputer(row pgx.Row) (*model.Computer, error) {
	var computer model.Computer
	var status string

	err := row.Scan(
		&computer.ID,
		&computer.AccountID,
		&computer.Name,
		&status,
		&computer.LastSeen,
		&computer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	computer.Status = model.ComputerStatus(status)
	return &computer, nil
}
