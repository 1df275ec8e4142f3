package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrphanStore tracks orphaned files in PostgreSQL
type GormOrphanStore struct {
	db *gorm.DB
}

// NewGormOrphanStore creates a new gorm-backed orphan store
func NewGormOrphanStore(db *gorm.DB) *GormOrphanStore {
	return &GormOrphanStore{db: db}
}

// Record stores an orphan. Recording the same file reference twice keeps the
// first row and refreshes its last error; orphan then carries that row's ID.
func (s *GormOrphanStore) Record(ctx context.Context, orphan *models.OrphanedFile) error {
	if orphan.ID == uuid.Nil {
		orphan.ID = uuid.New()
	}
	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_error", "updated_at"}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "attempts"}, {Name: "created_at"}}},
	).Create(orphan).Error
	if err != nil {
		return fmt.Errorf("error recording orphaned file: %w", err)
	}
	return nil
}

func (s *GormOrphanStore) Get(ctx context.Context, id uuid.UUID) (*models.OrphanedFile, error) {
	var orphan models.OrphanedFile
	if err := s.db.WithContext(ctx).First(&orphan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding orphaned file: %w", err)
	}
	return &orphan, nil
}

func (s *GormOrphanStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]models.OrphanedFile, error) {
	orphans := []models.OrphanedFile{}
	q := s.db.WithContext(ctx).Where("updated_at < ?", updatedBefore).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orphans).Error; err != nil {
		return nil, fmt.Errorf("error listing orphaned files: %w", err)
	}
	return orphans, nil
}

func (s *GormOrphanStore) MarkAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	result := s.db.WithContext(ctx).Model(&models.OrphanedFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastError,
	})
	if result.Error != nil {
		return fmt.Errorf("error updating orphaned file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormOrphanStore) Remove(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OrphanedFile{})
	if result.Error != nil {
		return fmt.Errorf("error removing orphaned file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryOrphanStore tracks orphaned files in process memory
type MemoryOrphanStore struct {
	mu      sync.Mutex
	orphans map[uuid.UUID]models.OrphanedFile
	now     func() time.Time
}

// NewMemoryOrphanStore creates an empty in-memory orphan store
func NewMemoryOrphanStore() *MemoryOrphanStore {
	return &MemoryOrphanStore{
		orphans: make(map[uuid.UUID]models.OrphanedFile),
		now:     time.Now,
	}
}

func (s *MemoryOrphanStore) Record(ctx context.Context, orphan *models.OrphanedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.orphans {
		if existing.FileRef == orphan.FileRef {
			existing.LastError = orphan.LastError
			existing.UpdatedAt = now
			s.orphans[id] = existing
			*orphan = existing
			return nil
		}
	}

	if orphan.ID == uuid.Nil {
		orphan.ID = uuid.New()
	}
	orphan.CreatedAt = now
	orphan.UpdatedAt = now
	s.orphans[orphan.ID] = *orphan
	return nil
}

func (s *MemoryOrphanStore) Get(ctx context.Context, id uuid.UUID) (*models.OrphanedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphan, ok := s.orphans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &orphan, nil
}

func (s *MemoryOrphanStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]models.OrphanedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphans := []models.OrphanedFile{}
	for _, orphan := range s.orphans {
		if orphan.UpdatedAt.Before(updatedBefore) {
			orphans = append(orphans, orphan)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].UpdatedAt.Before(orphans[j].UpdatedAt)
	})
	if limit > 0 && len(orphans) > limit {
		orphans = orphans[:limit]
	}
	return orphans, nil
}

func (s *MemoryOrphanStore) MarkAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphan, ok := s.orphans[id]
	if !ok {
		return ErrNotFound
	}
	orphan.Attempts++
	orphan.LastError = lastError
	orphan.UpdatedAt = s.now()
	s.orphans[id] = orphan
	return nil
}

func (s *MemoryOrphanStore) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orphans[id]; !ok {
		return ErrNotFound
	}
	delete(s.orphans, id)
	return nil
}
