package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

const processColumns = `id, status, customer_id, reason, input, results, created_at, updated_at, expires_at`

var terminalStatuses = []string{
	string(models.StatusCompleted),
	string(models.StatusIDVerificationFailed),
	string(models.StatusBiometricVerificationFailed),
	string(models.StatusFinancialVerificationFailed),
	string(models.StatusAMLScreeningFailed),
	string(models.StatusManualReview),
	string(models.StatusAccountCreationFailed),
}

// PostgresStore persists processes and customers. Every write is a single
// statement, so it is atomic to concurrent readers without explicit transactions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.OnboardingProcess) error {
	input, err := json.Marshal(p.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	results, err := json.Marshal(p.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO onboarding_processes (`+processColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(p.ID), string(p.Status), nullableCustomer(p.CustomerID), p.Reason,
		string(input), string(results), p.CreatedAt, p.UpdatedAt, p.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("process %s: %w", p.ID, sentinel.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+processColumns+` FROM onboarding_processes WHERE id = $1`, uuid.UUID(id))
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process %s: %w", id, sentinel.ErrNotFound)
	}
	return p, err
}

// ApplyStageResult is one conditional UPDATE keyed on (id, expected status).
// When it matches nothing, a follow-up read classifies why.
func (s *PostgresStore) ApplyStageResult(ctx context.Context, id domain.ProcessID, u models.StageUpdate, expected models.Status) (*models.OnboardingProcess, error) {
	if err := checkTransition(id, u, expected); err != nil {
		return nil, err
	}
	result, err := json.Marshal(u.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal stage result: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE onboarding_processes
		SET status      = $3,
		    results     = results || jsonb_build_object($4::text, $5::jsonb),
		    customer_id = COALESCE(customer_id, $6),
		    reason      = CASE WHEN $7 THEN $8 ELSE reason END,
		    updated_at  = $9
		WHERE id = $1 AND status = $2 AND expires_at > $9
		RETURNING `+processColumns,
		uuid.UUID(id), string(expected), string(u.NextStatus),
		string(u.Result.Stage), string(result), nullableCustomer(u.CustomerID),
		u.NextStatus.IsFailure(), u.Reason, u.At,
	)
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyMiss(ctx, id, expected, u.At)
	}
	return p, err
}

func (s *PostgresStore) classifyMiss(ctx context.Context, id domain.ProcessID, expected models.Status, at time.Time) error {
	var (
		status    string
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, expires_at FROM onboarding_processes WHERE id = $1`, uuid.UUID(id),
	).Scan(&status, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("process %s: %w", id, sentinel.ErrNotFound)
	case err != nil:
		return fmt.Errorf("read process status: %w", err)
	case models.Status(status) != expected:
		return fmt.Errorf("process %s is %s, expected %s: %w", id, status, expected, sentinel.ErrConflict)
	case !at.Before(expiresAt):
		return fmt.Errorf("process %s: %w", id, sentinel.ErrExpired)
	default:
		// lost a race between the update and this read
		return fmt.Errorf("process %s: %w", id, sentinel.ErrConflict)
	}
}

func (s *PostgresStore) ListActive(ctx context.Context, now time.Time, limit int) ([]domain.ProcessID, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM onboarding_processes
		WHERE NOT (status = ANY($1)) AND expires_at > $2
		ORDER BY created_at ASC
		LIMIT $3`, pq.Array(terminalStatuses), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list active processes: %w", err)
	}
	defer rows.Close()
	var ids []domain.ProcessID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan process id: %w", err)
		}
		ids = append(ids, domain.ProcessID(id))
	}
	return ids, rows.Err()
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) ([]domain.ProcessID, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM onboarding_processes WHERE expires_at <= $1 RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("purge expired processes: %w", err)
	}
	defer rows.Close()
	var ids []domain.ProcessID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan purged id: %w", err)
		}
		ids = append(ids, domain.ProcessID(id))
	}
	return ids, rows.Err()
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *models.CustomerProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, full_name, date_of_birth, address, email, phone, nationality, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(c.ID), c.FullName, c.DateOfBirth, c.Address, c.Email, c.Phone, c.Nationality, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer %s: %w", c.ID, sentinel.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

const customerColumns = `id, full_name, date_of_birth, address, email, phone, nationality, created_at, updated_at`

func (s *PostgresStore) GetCustomer(ctx context.Context, id domain.CustomerID) (*models.CustomerProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, uuid.UUID(id))
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", id, sentinel.ErrNotFound)
	}
	return c, err
}

// EnrichCustomer only fills an empty nationality or re-applies the same one.
func (s *PostgresStore) EnrichCustomer(ctx context.Context, id domain.CustomerID, e models.Enrichment, now time.Time) (*models.CustomerProfile, error) {
	if e.Nationality == "" {
		return s.GetCustomer(ctx, id)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET nationality = $2,
		    updated_at  = CASE WHEN nationality = $2 THEN updated_at ELSE $3 END
		WHERE id = $1 AND (nationality = '' OR nationality = $2)
		RETURNING `+customerColumns,
		uuid.UUID(id), e.Nationality, now,
	)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetCustomer(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("customer %s nationality already set: %w", id, sentinel.ErrConflict)
	}
	return c, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProcess(row scanner) (*models.OnboardingProcess, error) {
	var (
		p          models.OnboardingProcess
		id         uuid.UUID
		status     string
		customerID *uuid.UUID
		input      []byte
		results    []byte
	)
	if err := row.Scan(&id, &status, &customerID, &p.Reason, &input, &results, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan process: %w", err)
	}
	p.ID = domain.ProcessID(id)
	p.Status = models.Status(status)
	if customerID != nil {
		cid := domain.CustomerID(*customerID)
		p.CustomerID = &cid
	}
	if err := json.Unmarshal(input, &p.Input); err != nil {
		return nil, fmt.Errorf("decode process input: %w", err)
	}
	p.Results = map[models.Stage]models.StageResult{}
	if err := json.Unmarshal(results, &p.Results); err != nil {
		return nil, fmt.Errorf("decode process results: %w", err)
	}
	return &p, nil
}

func scanCustomer(row scanner) (*models.CustomerProfile, error) {
	var (
		c  models.CustomerProfile
		id uuid.UUID
	)
	if err := row.Scan(&id, &c.FullName, &c.DateOfBirth, &c.Address, &c.Email, &c.Phone, &c.Nationality, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.ID = domain.CustomerID(id)
	return &c, nil
}

func nullableCustomer(id *domain.CustomerID) *uuid.UUID {
	if id == nil {
		return nil
	}
	u := uuid.UUID(*id)
	return &u
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
