package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ai-estimate-backend/internal/models"
)

// DatabaseClient talks to the project's Postgres directly. It owns the
// profile, usage, estimate and operation tables.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientFromDB wraps an existing pool.
func NewDatabaseClientFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Profiles

// CreateProfile stores the onboarding answers and makes sure a usage row exists.
func (d *DatabaseClient) CreateProfile(ctx context.Context, uid, name, role string) (*models.Profile, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	profile := models.Profile{UID: uid}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO profiles (uid, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING name, role, created_at
	`, uid, name, role).Scan(&profile.Name, &profile.Role, &profile.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage (uid) VALUES ($1)
		ON CONFLICT (uid) DO NOTHING
	`, uid); err != nil {
		return nil, fmt.Errorf("failed to initialise usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit profile: %w", err)
	}
	return &profile, nil
}

func (d *DatabaseClient) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	profile := models.Profile{UID: uid}
	err := d.db.QueryRowContext(ctx, `
		SELECT name, role, created_at
		FROM profiles
		WHERE uid = $1
	`, uid).Scan(&profile.Name, &profile.Role, &profile.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile merges the non-nil fields into the profile.
func (d *DatabaseClient) UpdateProfile(ctx context.Context, uid string, name, role *string) (*models.Profile, error) {
	profile := models.Profile{UID: uid}
	err := d.db.QueryRowContext(ctx, `
		UPDATE profiles
		SET name = COALESCE($2, name), role = COALESCE($3, role)
		WHERE uid = $1
		RETURNING name, role, created_at
	`, uid, name, role).Scan(&profile.Name, &profile.Role, &profile.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &profile, nil
}

// DeleteProfile removes everything stored under the user. Operations go with
// their estimates through the cascade.
func (d *DatabaseClient) DeleteProfile(ctx context.Context, uid string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM estimates WHERE uid = $1`,
		`DELETE FROM usage WHERE uid = $1`,
		`DELETE FROM profiles WHERE uid = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, uid); err != nil {
			return fmt.Errorf("failed to delete profile data: %w", err)
		}
	}
	return tx.Commit()
}

// Usage

const usageColumns = `uid, count, paid, status, subscription_id, auto_renew, current_period_end, stripe_customer_id, updated_at`

func scanUsage(row interface{ Scan(...any) error }) (*models.UsageRecord, error) {
	var (
		u              models.UsageRecord
		subscriptionID sql.NullString
		periodEnd      sql.NullTime
		customerID     sql.NullString
	)
	if err := row.Scan(&u.UID, &u.Count, &u.Paid, &u.Status, &subscriptionID, &u.AutoRenew, &periodEnd, &customerID, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.SubscriptionID = stringPtr(subscriptionID)
	u.StripeCustomerID = stringPtr(customerID)
	if periodEnd.Valid {
		t := periodEnd.Time
		u.CurrentPeriodEnd = &t
	}
	return &u, nil
}

// GetUsage returns a zero record for users that never submitted or subscribed.
func (d *DatabaseClient) GetUsage(ctx context.Context, uid string) (*models.UsageRecord, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+usageColumns+` FROM usage WHERE uid = $1`, uid)
	usage, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UsageRecord{UID: uid}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return usage, nil
}

// ApplySubscriptionPatch merges the subscription fields into the usage row.
// Count is never written here and auto_renew only when the patch carries it.
func (d *DatabaseClient) ApplySubscriptionPatch(ctx context.Context, patch models.SubscriptionPatch) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO usage (uid, paid, status, subscription_id, current_period_end, updated_at, auto_renew)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, FALSE))
		ON CONFLICT (uid) DO UPDATE SET
			paid = EXCLUDED.paid,
			status = EXCLUDED.status,
			subscription_id = EXCLUDED.subscription_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at,
			auto_renew = COALESCE($7, usage.auto_renew)
	`, patch.UID, patch.Paid, patch.Status, patch.SubscriptionID, patch.CurrentPeriodEnd, patch.UpdatedAt, patch.AutoRenew)
	if err != nil {
		return fmt.Errorf("failed to apply subscription patch: %w", err)
	}
	return nil
}

func (d *DatabaseClient) SetAutoRenew(ctx context.Context, uid string, autoRenew bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO usage (uid, auto_renew) VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE SET auto_renew = EXCLUDED.auto_renew, updated_at = NOW()
	`, uid, autoRenew)
	if err != nil {
		return fmt.Errorf("failed to set auto renew: %w", err)
	}
	return nil
}

// GetStripeCustomerID returns "" when no customer has been linked yet.
func (d *DatabaseClient) GetStripeCustomerID(ctx context.Context, uid string) (string, error) {
	var customerID sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT stripe_customer_id FROM usage WHERE uid = $1`, uid).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get stripe customer: %w", err)
	}
	return customerID.String, nil
}

func (d *DatabaseClient) SetStripeCustomerID(ctx context.Context, uid, customerID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO usage (uid, stripe_customer_id) VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE SET stripe_customer_id = EXCLUDED.stripe_customer_id
	`, uid, customerID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

// ListLapsedSubscriptions finds paid users whose billing period ended before the cutoff.
func (d *DatabaseClient) ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.UsageRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+usageColumns+`
		FROM usage
		WHERE paid AND subscription_id IS NOT NULL AND current_period_end < $1
		ORDER BY current_period_end
	`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		usage, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		records = append(records, *usage)
	}
	return records, rows.Err()
}

// Estimates

// CreateEstimate upserts the estimate header. A bootstrap operation may
// already have created a bare row for the same execution id.
func (d *DatabaseClient) CreateEstimate(ctx context.Context, e *models.Estimate) error {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO estimates (uid, execution_id, project_name, notes, shared_link)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uid, execution_id) DO UPDATE SET
			project_name = EXCLUDED.project_name,
			notes = EXCLUDED.notes,
			shared_link = COALESCE(EXCLUDED.shared_link, estimates.shared_link)
		RETURNING created_at, is_finished
	`, e.UID, e.ExecutionID, e.ProjectName, e.Notes, e.SharedLink).Scan(&e.CreatedAt, &e.IsFinished)
	if err != nil {
		return fmt.Errorf("failed to create estimate: %w", err)
	}
	return nil
}

const estimateColumns = `uid, execution_id, project_name, notes, shared_link, is_finished, charged, refunded, created_at`

func scanEstimate(row interface{ Scan(...any) error }) (*models.Estimate, error) {
	var (
		e    models.Estimate
		link sql.NullString
	)
	if err := row.Scan(&e.UID, &e.ExecutionID, &e.ProjectName, &e.Notes, &link, &e.IsFinished, &e.Charged, &e.Refunded, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.SharedLink = stringPtr(link)
	return &e, nil
}

func (d *DatabaseClient) GetEstimate(ctx context.Context, uid, executionID string) (*models.Estimate, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+estimateColumns+`
		FROM estimates
		WHERE uid = $1 AND execution_id = $2
	`, uid, executionID)
	e, err := scanEstimate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return e, nil
}

// ListFinishedEstimates returns the history view, newest first.
func (d *DatabaseClient) ListFinishedEstimates(ctx context.Context, uid string) ([]models.Estimate, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+estimateColumns+`
		FROM estimates
		WHERE uid = $1 AND is_finished
		ORDER BY created_at DESC, execution_id DESC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	estimates := []models.Estimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, *e)
	}
	return estimates, rows.Err()
}

// FinishEstimate marks the estimate finished. An empty link keeps the stored one.
func (d *DatabaseClient) FinishEstimate(ctx context.Context, uid, executionID, sharedLink string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE estimates
		SET is_finished = TRUE, shared_link = COALESCE(NULLIF($3, ''), shared_link)
		WHERE uid = $1 AND execution_id = $2
	`, uid, executionID, sharedLink)
	if err != nil {
		return fmt.Errorf("failed to finish estimate: %w", err)
	}
	return nil
}

// ChargeEstimate consumes one usage unit for the estimate. It charges at most
// once and never after the estimate was refunded. The usage row is locked for
// the duration so concurrent charges and refunds serialise.
func (d *DatabaseClient) ChargeEstimate(ctx context.Context, uid, executionID string) (int, bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO usage (uid) VALUES ($1) ON CONFLICT (uid) DO NOTHING`, uid); err != nil {
		return 0, false, fmt.Errorf("failed to initialise usage: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count FROM usage WHERE uid = $1 FOR UPDATE`, uid).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to lock usage: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE estimates SET charged = TRUE
		WHERE uid = $1 AND execution_id = $2 AND NOT charged AND NOT refunded
	`, uid, executionID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to mark estimate charged: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return count, false, tx.Commit()
	}

	if err := tx.QueryRowContext(ctx, `
		UPDATE usage SET count = count + 1, updated_at = NOW()
		WHERE uid = $1
		RETURNING count
	`, uid).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to increment usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit charge: %w", err)
	}
	return count, true, nil
}

// RefundEstimate returns the usage unit of a failed estimate. The estimate is
// marked refunded even if it was not charged yet, so a later charge is skipped.
// The counter is decremented only for charged estimates and never below zero.
func (d *DatabaseClient) RefundEstimate(ctx context.Context, uid, executionID string) (int, bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO usage (uid) VALUES ($1) ON CONFLICT (uid) DO NOTHING`, uid); err != nil {
		return 0, false, fmt.Errorf("failed to initialise usage: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count FROM usage WHERE uid = $1 FOR UPDATE`, uid).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to lock usage: %w", err)
	}

	var charged bool
	err = tx.QueryRowContext(ctx, `
		UPDATE estimates SET refunded = TRUE
		WHERE uid = $1 AND execution_id = $2 AND NOT refunded
		RETURNING charged
	`, uid, executionID).Scan(&charged)
	if errors.Is(err, sql.ErrNoRows) {
		return count, false, tx.Commit()
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to mark estimate refunded: %w", err)
	}
	if !charged {
		return count, false, tx.Commit()
	}

	if err := tx.QueryRowContext(ctx, `
		UPDATE usage SET count = GREATEST(count - 1, 0), updated_at = NOW()
		WHERE uid = $1
		RETURNING count
	`, uid).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to decrement usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit refund: %w", err)
	}
	return count, true, nil
}

// Operations

// AppendOperation adds a progress entry, creating the estimate row on first
// write. Keys increase in append order.
func (d *DatabaseClient) AppendOperation(ctx context.Context, uid, executionID string, op models.Operation) (*models.Operation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO estimates (uid, execution_id) VALUES ($1, $2)
		ON CONFLICT (uid, execution_id) DO NOTHING
	`, uid, executionID); err != nil {
		return nil, fmt.Errorf("failed to ensure estimate: %w", err)
	}

	out := op
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO operations (uid, execution_id, step, status, progress)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING key::text, created_at
	`, uid, executionID, op.Step, string(op.Status), op.Progress).Scan(&out.Key, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append operation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit operation: %w", err)
	}
	return &out, nil
}

func (d *DatabaseClient) ListOperations(ctx context.Context, uid, executionID string) ([]models.Operation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT key::text, step, status, progress, created_at
		FROM operations
		WHERE uid = $1 AND execution_id = $2
		ORDER BY key
	`, uid, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []models.Operation{}
	for rows.Next() {
		var (
			op     models.Operation
			status string
		)
		if err := rows.Scan(&op.Key, &op.Step, &status, &op.Progress, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Status = models.OperationStatus(status)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LatestOperation returns the entry with the highest key.
func (d *DatabaseClient) LatestOperation(ctx context.Context, uid, executionID string) (*models.Operation, error) {
	var (
		op     models.Operation
		status string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT key::text, step, status, progress, created_at
		FROM operations
		WHERE uid = $1 AND execution_id = $2
		ORDER BY key DESC
		LIMIT 1
	`, uid, executionID).Scan(&op.Key, &op.Step, &status, &op.Progress, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest operation: %w", err)
	}
	op.Status = models.OperationStatus(status)
	return &op, nil
}

// WriteDebug is the write probe behind /debug-write.
func (d *DatabaseClient) WriteDebug(ctx context.Context, key string, val int) (int, error) {
	var wrote int
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO debug_writes (key, val) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET val = EXCLUDED.val, written_at = NOW()
		RETURNING val
	`, key, val).Scan(&wrote)
	if err != nil {
		return 0, fmt.Errorf("failed to write debug value: %w", err)
	}
	return wrote, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
