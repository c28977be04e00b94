package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/ledger/accounts"
)

// EventType represents the type of audit event
type EventType string

const (
	EventAccountCreated EventType = "account_created"
	EventAccountDeleted EventType = "account_deleted"
)

// AuditEvent represents an audit log entry in the database. The table is
// created by the schema migrations.
type AuditEvent struct {
	ID        string  `db:"id" json:"id"`
	EventType string  `db:"event_type" json:"event_type"`
	Timestamp int64   `db:"timestamp" json:"timestamp"`
	AccountID *int64  `db:"account_id" json:"account_id"`
	Detail    *string `db:"detail" json:"detail"`
}

// Logger records account mutations so the ledger keeps a history even after
// an account row is deleted.
type Logger struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLogger(db *sqlx.DB) *Logger {
	return &Logger{
		db:  db,
		now: time.Now,
	}
}

// insertEvent is a helper method to insert an audit event into the database
func (l *Logger) insertEvent(ctx context.Context, event *AuditEvent) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, timestamp, account_id, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID,
		event.EventType,
		event.Timestamp,
		event.AccountID,
		event.Detail,
	)
	return err
}

func (l *Logger) newEvent(eventType EventType, accountID int64, detail *string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		EventType: string(eventType),
		Timestamp: l.now().UTC().Unix(),
		AccountID: &accountID,
		Detail:    detail,
	}
}

// LogAccountCreated records the name of a newly created account.
func (l *Logger) LogAccountCreated(ctx context.Context, account *accounts.Account) error {
	detail := account.Name
	return l.insertEvent(ctx, l.newEvent(EventAccountCreated, account.ID, &detail))
}

// LogAccountDeleted records the removal of an account.
func (l *Logger) LogAccountDeleted(ctx context.Context, id int64) error {
	return l.insertEvent(ctx, l.newEvent(EventAccountDeleted, id, nil))
}

// GetEventsByAccountID retrieves audit events for a specific account, most
// recent first.
func (l *Logger) GetEventsByAccountID(ctx context.Context, accountID int64, limit int) ([]AuditEvent, error) {
	events := []AuditEvent{}
	err := l.db.SelectContext(ctx, &events,
		"SELECT * FROM audit_events WHERE account_id = $1 ORDER BY timestamp DESC, rowid DESC LIMIT $2",
		accountID, limit)
	return events, err
}

// GetEventsByType retrieves audit events of a specific type
func (l *Logger) GetEventsByType(ctx context.Context, eventType EventType, limit int) ([]AuditEvent, error) {
	events := []AuditEvent{}
	err := l.db.SelectContext(ctx, &events,
		"SELECT * FROM audit_events WHERE event_type = $1 ORDER BY timestamp DESC, rowid DESC LIMIT $2",
		string(eventType), limit)
	return events, err
}

// GetRecentEvents retrieves the most recent audit events
func (l *Logger) GetRecentEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	events := []AuditEvent{}
	err := l.db.SelectContext(ctx, &events,
		"SELECT * FROM audit_events ORDER BY timestamp DESC, rowid DESC LIMIT $1",
		limit)
	return events, err
}

// DeleteOldEvents deletes audit events older than the specified duration
func (l *Logger) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := l.now().UTC().Add(-olderThan).Unix()
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
