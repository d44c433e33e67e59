package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 424242

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// Migrations lists the schema migrations in apply order.
var Migrations = []string{
	"000001_accounts",
	"000002_computers",
	"000003_print_jobs",
	"000004_api_keys",
}

// ResetSchema rolls every migration back in reverse order and applies them again.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(Migrations) - 1; i >= 0; i-- {
		if err := ApplyMigration(ctx, pool, Migrations[i], "down"); err != nil {
			return err
		}
	}
	for _, name := range Migrations {
		if err := ApplyMigration(ctx, pool, name, "up"); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration executes migrations/{name}.{direction}.sql.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, name, direction string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	path := filepath.Join(root, "migrations", name+"."+direction+".sql")
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s %s migration: %w", name, direction, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s %s migration: %w", name, direction, err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestAccount creates a free-plan account with a unique email.
func NewTestAccount(t testing.TB) *model.Account {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := UniqueID("acct")
	return &model.Account{
		ID:          id,
		Email:       id + "@example.com",
		CompanyName: "Test Company",
		Plan:        model.NewPlanState(model.PlanFree, now),
		CreatedAt:   now,
	}
}

// NewTestAccountWithUsage creates an account on plan with the counter preset.
func NewTestAccountWithUsage(t testing.TB, plan model.PlanID, count int) *model.Account {
	t.Helper()
	account := NewTestAccount(t)
	account.Plan = model.NewPlanState(plan, account.CreatedAt)
	account.Plan.MonthlyPrintCount = count
	return account
}

// NewTestAPIKey creates a key record for raw owned by accountID.
func NewTestAPIKey(t testing.TB, accountID, raw string) *model.APIKey {
	t.Helper()
	return &model.APIKey{
		ID:        UniqueID("key"),
		AccountID: accountID,
		Name:      "Test Key",
		KeyHash:   auth.HashAPIKey(raw),
		KeyPrefix: auth.KeyPrefix(raw),
		Scopes:    append([]string(nil), model.DefaultScopes...),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestComputer creates an offline computer owned by accountID.
func NewTestComputer(t testing.TB, accountID, name string) *model.Computer {
	t.Helper()
	return &model.Computer{
		ID:        UniqueID("pc"),
		AccountID: accountID,
		Name:      name,
		Status:    model.ComputerOffline,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestPrintJob creates a pending job owned by accountID.
func NewTestPrintJob(t testing.TB, accountID string) *model.PrintJob {
	t.Helper()
	id := UniqueID("job")
	return &model.PrintJob{
		ID:              id,
		AccountID:       accountID,
		PrinterID:       "printer-1",
		Status:          model.JobPending,
		FileStoragePath: "print_jobs/" + accountID + "/" + id + ".pdf",
		Title:           "Test Document",
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

// UniqueID returns prefix plus a ULID, unique across parallel tests.
func UniqueID(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String())
}
