package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"onboard/internal/consent/models"
	"onboard/pkg/domain"
)

const Schema = `
CREATE TABLE IF NOT EXISTS consents (
	process_id UUID NOT NULL,
	purpose    TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS consents_process_idx ON consents (process_id, purpose);
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r models.ConsentRecord) error {
	var expires *time.Time
	if !r.ExpiresAt.IsZero() {
		expires = &r.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consents (process_id, purpose, granted_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(r.ProcessID), r.Purpose.String(), r.GrantedAt, expires, r.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByProcess(ctx context.Context, processID domain.ProcessID) ([]models.ConsentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT purpose, granted_at, expires_at, revoked_at
		FROM consents WHERE process_id = $1
		ORDER BY granted_at ASC`, uuid.UUID(processID))
	if err != nil {
		return nil, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()

	var out []models.ConsentRecord
	for rows.Next() {
		var (
			r       = models.ConsentRecord{ProcessID: processID}
			purpose string
			expires sql.NullTime
			revoked sql.NullTime
		)
		if err := rows.Scan(&purpose, &r.GrantedAt, &expires, &revoked); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		r.Purpose = domain.ConsentPurpose(purpose)
		if expires.Valid {
			r.ExpiresAt = expires.Time
		}
		if revoked.Valid {
			at := revoked.Time
			r.RevokedAt = &at
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Revoke(ctx context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose, revokedAt time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE consents SET revoked_at = $3
		WHERE process_id = $1 AND purpose = $2 AND revoked_at IS NULL`,
		uuid.UUID(processID), purpose.String(), revokedAt)
	if err != nil {
		return 0, fmt.Errorf("revoke consent: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
