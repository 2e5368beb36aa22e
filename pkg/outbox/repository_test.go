package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/enums"
)

const outboxDDL = `
CREATE TABLE outbox_events (
	id TEXT PRIMARY KEY,
	occurred_at DATETIME NOT NULL,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME,
	published_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
);`

func newTestOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(outboxDDL).Error)
	return conn
}

func seedEvent(t *testing.T, conn *gorm.DB, event models.OutboxEvent) models.OutboxEvent {
	t.Helper()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = json.RawMessage(`{}`)
	}
	if event.EventType == "" {
		event.EventType = enums.EventTransfer
	}
	if event.AggregateType == "" {
		event.AggregateType = enums.AggregateLicense
	}
	if event.AggregateID == "" {
		event.AggregateID = "1"
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestInsertRequiresTransaction(t *testing.T) {
	repo := NewRepository(newTestOutboxDB(t))

	err := repo.Insert(nil, models.OutboxEvent{})
	require.Error(t, err)
}

func TestMarkFailedIncrementsAttemptCount(t *testing.T) {
	conn := newTestOutboxDB(t)
	repo := NewRepository(conn)
	event := seedEvent(t, conn, models.OutboxEvent{})

	require.NoError(t, repo.MarkFailedTx(conn, event.ID, assert.AnError))
	require.NoError(t, repo.MarkFailedTx(conn, event.ID, assert.AnError))

	var row models.OutboxEvent
	require.NoError(t, conn.Where("id = ?", event.ID).First(&row).Error)
	assert.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
}

func TestMarkTerminalPinsAttemptCount(t *testing.T) {
	conn := newTestOutboxDB(t)
	repo := NewRepository(conn)
	event := seedEvent(t, conn, models.OutboxEvent{AttemptCount: 3})

	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, assert.AnError, 10))

	var row models.OutboxEvent
	require.NoError(t, conn.Where("id = ?", event.ID).First(&row).Error)
	assert.Equal(t, 10, row.AttemptCount)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := newTestOutboxDB(t)
	repo := NewRepository(conn)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	published := seedEvent(t, conn, models.OutboxEvent{PublishedAt: &old, CreatedAt: old})
	terminal := seedEvent(t, conn, models.OutboxEvent{AttemptCount: 10, CreatedAt: old})
	pending := seedEvent(t, conn, models.OutboxEvent{CreatedAt: old})
	fresh := seedEvent(t, conn, models.OutboxEvent{PublishedAt: &recent, CreatedAt: recent})

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	deleted, err := repo.DeletePublishedBefore(conn, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	ids := map[uuid.UUID]bool{}
	for _, row := range remaining {
		ids[row.ID] = true
	}
	assert.False(t, ids[published.ID])
	assert.False(t, ids[terminal.ID])
	assert.True(t, ids[pending.ID])
	assert.True(t, ids[fresh.ID])
}
