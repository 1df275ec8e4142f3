package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAccountStore reads and updates accounts in PostgreSQL
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore creates a new gorm-backed account store
func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: db}
}

func (s *GormAccountStore) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding account: %w", err)
	}
	return &account, nil
}

// SetSuspension sets or clears the suspension flag. Accounts are owned by the
// identity provider, so a missing row is created on first suspension.
func (s *GormAccountStore) SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, reason *string) (*models.Account, error) {
	account := models.Account{
		Base:        models.Base{ID: id},
		AccountType: models.AccountTypeAgent,
		IsSuspended: suspended,
	}
	if suspended {
		now := time.Now()
		account.SuspendedAt = &now
		account.SuspensionReason = reason
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_suspended", "suspended_at", "suspension_reason", "updated_at"}),
	}).Create(&account).Error
	if err != nil {
		return nil, fmt.Errorf("error updating account suspension: %w", err)
	}

	return s.Get(ctx, id)
}

// MemoryAccountStore keeps accounts in process memory
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
}

// NewMemoryAccountStore creates an empty in-memory account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[uuid.UUID]models.Account)}
}

func (s *MemoryAccountStore) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (s *MemoryAccountStore) SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, reason *string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	account, ok := s.accounts[id]
	if !ok {
		account = models.Account{
			Base:        models.Base{ID: id, CreatedAt: now},
			AccountType: models.AccountTypeAgent,
		}
	}
	account.IsSuspended = suspended
	account.UpdatedAt = now
	if suspended {
		account.SuspendedAt = &now
		account.SuspensionReason = reason
	} else {
		account.SuspendedAt = nil
		account.SuspensionReason = nil
	}
	s.accounts[id] = account

	return &account, nil
}
