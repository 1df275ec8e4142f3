package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormHistoryStore writes document decision history to PostgreSQL
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore creates a new gorm-backed history store
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

func (s *GormHistoryStore) Record(ctx context.Context, entry *models.KYCDocumentHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("error creating history: %w", err)
	}
	return nil
}

func (s *GormHistoryStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.KYCDocumentHistory, error) {
	history := []models.KYCDocumentHistory{}
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("error finding history: %w", err)
	}
	return history, nil
}

// MemoryHistoryStore keeps document history in process memory
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries []models.KYCDocumentHistory
}

// NewMemoryHistoryStore creates an empty in-memory history store
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Record(ctx context.Context, entry *models.KYCDocumentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryHistoryStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.KYCDocumentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []models.KYCDocumentHistory{}
	for _, entry := range s.entries {
		if entry.DocumentID == documentID {
			history = append(history, entry)
		}
	}
	// Stable keeps insertion order for entries sharing a timestamp, newest appended last.
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	return history, nil
}
