package store

import (
	"context"
	"testing"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(userID uuid.UUID, docType models.DocumentType, status models.DocumentStatus, submitted time.Time) *models.KYCDocument {
	return &models.KYCDocument{
		UserID:       userID,
		DocumentType: docType,
		Status:       status,
		SubmittedAt:  submitted,
	}
}

func TestMemoryDocumentStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	userID := uuid.New()

	created, err := s.Create(ctx, newDoc(userID, models.DocumentTypeNationalID, models.DocumentStatusPending, time.Now()))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	number := "A123"
	updated, err := s.Update(ctx, created.ID, Fields{
		"document_number": &number,
		"status":          models.DocumentStatusVerified,
		"verified_by":     userID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DocumentNumber)
	assert.Equal(t, "A123", *updated.DocumentNumber)
	assert.Equal(t, models.DocumentStatusVerified, updated.Status)
	require.NotNil(t, updated.VerifiedBy)
	assert.Equal(t, userID, *updated.VerifiedBy)

	updated, err = s.Update(ctx, created.ID, Fields{"document_number": nil})
	require.NoError(t, err)
	assert.Nil(t, updated.DocumentNumber)

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)
}

func TestMemoryDocumentStoreRejectsBadUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	created, err := s.Create(ctx, newDoc(uuid.New(), models.DocumentTypeNationalID, models.DocumentStatusPending, time.Now()))
	require.NoError(t, err)

	_, err = s.Update(ctx, created.ID, Fields{"user_id": uuid.New()})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = s.Update(ctx, created.ID, Fields{"is_primary": "yes"})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = s.Update(ctx, created.ID, Fields{})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = s.Update(ctx, uuid.New(), Fields{"notes": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDocumentStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	alice := uuid.New()
	bob := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []models.DocumentStatus{
		models.DocumentStatusPending,
		models.DocumentStatusVerified,
		models.DocumentStatusRejected,
	} {
		_, err := s.Create(ctx, newDoc(alice, models.DocumentTypeNationalID, status, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, newDoc(bob, models.DocumentTypeProofOfAddress, models.DocumentStatusPending, base.Add(10*time.Hour)))
	require.NoError(t, err)

	result, err := s.List(ctx, ListQuery{
		Filters: []Filter{Eq("user_id", alice)},
		Sort:    Sort{Field: "submitted_at", Desc: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	require.Len(t, result.Items, 3)
	assert.Equal(t, models.DocumentStatusRejected, result.Items[0].Status)
	assert.Equal(t, models.DocumentStatusPending, result.Items[2].Status)

	result, err = s.List(ctx, ListQuery{
		Filters: []Filter{Ne("status", models.DocumentStatusVerified)},
		Sort:    Sort{Field: "submitted_at"},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, models.DocumentStatusRejected, result.Items[0].Status)
	assert.Equal(t, bob, result.Items[1].UserID)

	result, err = s.List(ctx, ListQuery{Filters: []Filter{Eq("verified_at", nil)}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Total)

	result, err = s.List(ctx, ListQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, int64(4), result.Total)

	_, err = s.List(ctx, ListQuery{Filters: []Filter{Eq("password", "x")}})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.List(ctx, ListQuery{Sort: Sort{Field: "notes"}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMemoryAccountStoreSuspension(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAccountStore()
	id := uuid.New()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	reason := "fraud review"
	account, err := s.SetSuspension(ctx, id, true, &reason)
	require.NoError(t, err)
	assert.True(t, account.IsSuspended)
	require.NotNil(t, account.SuspendedAt)
	assert.Equal(t, &reason, account.SuspensionReason)

	account, err = s.SetSuspension(ctx, id, false, nil)
	require.NoError(t, err)
	assert.False(t, account.IsSuspended)
	assert.Nil(t, account.SuspendedAt)
	assert.Nil(t, account.SuspensionReason)
}

func TestMemoryHistoryStoreNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistoryStore()
	docID := uuid.New()
	base := time.Now()

	require.NoError(t, s.Record(ctx, &models.KYCDocumentHistory{DocumentID: docID, NewStatus: models.DocumentStatusRejected, CreatedAt: base}))
	require.NoError(t, s.Record(ctx, &models.KYCDocumentHistory{DocumentID: docID, NewStatus: models.DocumentStatusVerified, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, &models.KYCDocumentHistory{DocumentID: uuid.New(), NewStatus: models.DocumentStatusVerified}))

	history, err := s.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.DocumentStatusVerified, history[0].NewStatus)
}

func TestMemoryOrphanStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrphanStore()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	orphan := &models.OrphanedFile{Bucket: "kyc-documents", FileRef: "a.pdf", LastError: "boom"}
	require.NoError(t, s.Record(ctx, orphan))
	firstID := orphan.ID

	// Recording the same file again updates the existing row
	again := &models.OrphanedFile{Bucket: "kyc-documents", FileRef: "a.pdf", LastError: "still broken"}
	require.NoError(t, s.Record(ctx, again))
	assert.Equal(t, firstID, again.ID)

	stale, err := s.ListStale(ctx, clock, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = s.ListStale(ctx, clock.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "still broken", stale[0].LastError)

	clock = clock.Add(time.Hour)
	require.NoError(t, s.MarkAttempt(ctx, firstID, "timeout"))
	got, err := s.Get(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, clock, got.UpdatedAt)

	require.NoError(t, s.Remove(ctx, firstID))
	assert.ErrorIs(t, s.Remove(ctx, firstID), ErrNotFound)
	assert.ErrorIs(t, s.MarkAttempt(ctx, firstID, "x"), ErrNotFound)
}
