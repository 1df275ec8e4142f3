package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOrphanStoreRecordAdoptsExistingRow(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewGormOrphanStore(db)
	existingID := uuid.New()
	firstSeen := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO "orphaned_files" .* ON CONFLICT \("file_ref"\) DO UPDATE SET .* RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attempts", "created_at"}).
			AddRow(existingID.String(), 3, firstSeen))

	orphan := &models.OrphanedFile{Bucket: "kyc-documents", FileRef: "a.pdf", LastError: "still broken"}
	require.NoError(t, s.Record(context.Background(), orphan))

	assert.Equal(t, existingID, orphan.ID)
	assert.Equal(t, 3, orphan.Attempts)
	assert.Equal(t, firstSeen, orphan.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrphanStoreMarkAttemptMissing(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewGormOrphanStore(db)

	mock.ExpectExec(`UPDATE "orphaned_files" SET .*attempts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.MarkAttempt(context.Background(), uuid.New(), "timeout"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
