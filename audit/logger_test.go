package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/ledger/accounts"
	"github.com/tomyedwab/ledger/database"
)

// setupTestDB creates a migrated temporary ledger database
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Path: filepath.Join(t.TempDir(), "test_audit.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.GetDB()
}

func TestLogAccountCreated(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	ctx := context.Background()

	err := logger.LogAccountCreated(ctx, &accounts.Account{ID: 12, Name: "Checking"})
	require.NoError(t, err)

	var event AuditEvent
	require.NoError(t, db.Get(&event, "SELECT * FROM audit_events WHERE event_type = $1", string(EventAccountCreated)))

	assert.NotEmpty(t, event.ID)
	require.NotNil(t, event.AccountID)
	assert.Equal(t, int64(12), *event.AccountID)
	require.NotNil(t, event.Detail)
	assert.Equal(t, "Checking", *event.Detail)
	assert.NotZero(t, event.Timestamp)
}

func TestLogAccountDeleted(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)

	require.NoError(t, logger.LogAccountDeleted(context.Background(), 3))

	var event AuditEvent
	require.NoError(t, db.Get(&event, "SELECT * FROM audit_events WHERE event_type = $1", string(EventAccountDeleted)))
	require.NotNil(t, event.AccountID)
	assert.Equal(t, int64(3), *event.AccountID)
	assert.Nil(t, event.Detail)
}

func TestGetEventsByAccountID(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	ctx := context.Background()

	require.NoError(t, logger.LogAccountCreated(ctx, &accounts.Account{ID: 100, Name: "A"}))
	require.NoError(t, logger.LogAccountDeleted(ctx, 100))
	require.NoError(t, logger.LogAccountCreated(ctx, &accounts.Account{ID: 999, Name: "B"}))

	events, err := logger.GetEventsByAccountID(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		require.NotNil(t, event.AccountID)
		assert.Equal(t, int64(100), *event.AccountID)
	}
	assert.Equal(t, string(EventAccountDeleted), events[0].EventType, "most recent first")

	none, err := logger.GetEventsByAccountID(ctx, 5, 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetEventsByType(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	ctx := context.Background()

	require.NoError(t, logger.LogAccountCreated(ctx, &accounts.Account{ID: 1, Name: "A"}))
	require.NoError(t, logger.LogAccountCreated(ctx, &accounts.Account{ID: 2, Name: "B"}))
	require.NoError(t, logger.LogAccountDeleted(ctx, 1))

	events, err := logger.GetEventsByType(ctx, EventAccountCreated, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, string(EventAccountCreated), event.EventType)
	}
}

func TestGetRecentEvents(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		logger.now = func() time.Time { return at }
		require.NoError(t, logger.LogAccountDeleted(ctx, int64(i)))
	}

	events, err := logger.GetRecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.GreaterOrEqual(t, events[0].Timestamp, events[1].Timestamp)
	assert.Equal(t, int64(2), *events[0].AccountID)
}

func TestDeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	ctx := context.Background()

	now := time.Now()
	logger.now = func() time.Time { return now.Add(-2 * time.Hour) }
	require.NoError(t, logger.LogAccountDeleted(ctx, 1))
	require.NoError(t, logger.LogAccountDeleted(ctx, 2))
	logger.now = func() time.Time { return now }
	require.NoError(t, logger.LogAccountDeleted(ctx, 3))

	deleted, err := logger.DeleteOldEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	events, err := logger.GetRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), *events[0].AccountID)
}

func TestLoggerSatisfiesRecorder(t *testing.T) {
	var _ accounts.Recorder = NewLogger(setupTestDB(t))
}
