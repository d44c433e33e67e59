package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/remoteprint/remoteprint/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("email already exists")
)

const accountColumns = `id, email, company_name, billing_customer_id, plan_id, max_prints,
	max_computers, monthly_print_count, billing_cycle_start, created_at`

// CreateAccount inserts a new account into the database.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.CompanyName,
		account.BillingCustomerID,
		string(account.Plan.PlanID),
		account.Plan.MaxPrints,
		account.Plan.MaxComputers,
		account.Plan.MonthlyPrintCount,
		account.Plan.BillingCycleStart,
		account.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account and its plan state.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	return account, nil
}

// ListAccounts returns every account ordered by creation time.
func (r *Repository) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateCompanyName sets the display name of an account.
func (r *Repository) UpdateCompanyName(ctx context.Context, id, companyName string) (*model.Account, error) {
	query := `
		UPDATE accounts
		SET company_name = $2
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id, companyName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update company name: %w", err)
	}

	return account, nil
}

// IncrementPrintCount adds one to the monthly counter in a single statement
// and returns the new value. The read-modify-write happens inside Postgres.
func (r *Repository) IncrementPrintCount(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET monthly_print_count = monthly_print_count + 1
		WHERE id = $1
		RETURNING monthly_print_count
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to increment print count: %w", err)
	}

	return count, nil
}

// ResetPrintCount zeroes the monthly counter and starts a new billing cycle.
func (r *Repository) ResetPrintCount(ctx context.Context, id string, cycleStart time.Time) error {
	query := `
		UPDATE accounts
		SET monthly_print_count = 0, billing_cycle_start = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, cycleStart)
	if err != nil {
		return fmt.Errorf("failed to reset print count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	var planID string

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.CompanyName,
		&account.BillingCustomerID,
		&planID,
		&account.Plan.MaxPrints,
		&account.Plan.MaxComputers,
		&account.Plan.MonthlyPrintCount,
		&account.Plan.BillingCycleStart,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Plan.PlanID = model.PlanID(planID)
	return &account, nil
}
