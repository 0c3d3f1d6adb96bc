package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
)

// Schema creates the audit_events table. Applied by the migrate command.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	process_id  UUID NOT NULL,
	customer_id UUID,
	action      TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT '',
	from_status TEXT NOT NULL DEFAULT '',
	to_status   TEXT NOT NULL DEFAULT '',
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	provider_id TEXT NOT NULL DEFAULT '',
	simulated   BOOLEAN NOT NULL DEFAULT FALSE,
	request_id  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_process_idx ON audit_events (process_id, timestamp);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. The category is always derived from the action so
// the eventCategories table stays the source of truth.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var customerID *uuid.UUID
	if !event.CustomerID.IsNil() {
		cid := uuid.UUID(event.CustomerID)
		customerID = &cid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, process_id, customer_id, action, stage,
			from_status, to_status, decision, reason, provider_id, simulated, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.New(),
		string(audit.AuditEvent(event.Action).Category()),
		event.Timestamp,
		uuid.UUID(event.ProcessID),
		customerID,
		event.Action,
		event.Stage,
		event.FromStatus,
		event.ToStatus,
		event.Decision,
		event.Reason,
		event.ProviderID,
		event.Simulated,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByProcess(ctx context.Context, processID domain.ProcessID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, timestamp, process_id, customer_id, action, stage,
		       from_status, to_status, decision, reason, provider_id, simulated, request_id
		FROM audit_events
		WHERE process_id = $1
		ORDER BY timestamp ASC`, uuid.UUID(processID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			category   string
			processID  uuid.UUID
			customerID *uuid.UUID
		)
		if err := rows.Scan(
			&category,
			&event.Timestamp,
			&processID,
			&customerID,
			&event.Action,
			&event.Stage,
			&event.FromStatus,
			&event.ToStatus,
			&event.Decision,
			&event.Reason,
			&event.ProviderID,
			&event.Simulated,
			&event.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.ProcessID = domain.ProcessID(processID)
		if customerID != nil {
			event.CustomerID = domain.CustomerID(*customerID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
