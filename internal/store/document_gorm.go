package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentStore stores KYC documents in PostgreSQL through gorm
type GormDocumentStore struct {
	db *gorm.DB
}

// NewGormDocumentStore creates a new gorm-backed document store
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

// Create inserts a new document record
func (s *GormDocumentStore) Create(ctx context.Context, doc *models.KYCDocument) (*models.KYCDocument, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("error creating document: %w", err)
	}
	return doc, nil
}

// Get loads a single document by ID
func (s *GormDocumentStore) Get(ctx context.Context, id uuid.UUID) (*models.KYCDocument, error) {
	var doc models.KYCDocument
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding document: %w", err)
	}
	return &doc, nil
}

// List returns the documents matching query together with the total match count
func (s *GormDocumentStore) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	filters := func(db *gorm.DB) *gorm.DB {
		for _, f := range query.Filters {
			value := filterValue(f.Value)
			switch {
			case value == nil && f.Op == OpEq:
				db = db.Where(fmt.Sprintf("%s IS NULL", f.Field))
			case value == nil && f.Op == OpNe:
				db = db.Where(fmt.Sprintf("%s IS NOT NULL", f.Field))
			default:
				db = db.Where(fmt.Sprintf("%s %s ?", f.Field, sqlOperators[f.Op]), value)
			}
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.KYCDocument{}).Scopes(filters).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("error counting documents: %w", err)
	}

	q := s.db.WithContext(ctx).Scopes(filters)
	if query.Sort.Field != "" {
		direction := "ASC"
		if query.Sort.Desc {
			direction = "DESC"
		}
		q = q.Order(fmt.Sprintf("%s %s", query.Sort.Field, direction))
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if query.Offset > 0 {
		q = q.Offset(query.Offset)
	}

	items := []models.KYCDocument{}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}

	return &ListResult{Items: items, Total: total}, nil
}

// Update applies a partial update and returns the stored record
func (s *GormDocumentStore) Update(ctx context.Context, id uuid.UUID, fields Fields) (*models.KYCDocument, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		updates[name] = filterValue(value)
	}

	result := s.db.WithContext(ctx).Model(&models.KYCDocument{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("error updating document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes a document record
func (s *GormDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.KYCDocument{})
	if result.Error != nil {
		return fmt.Errorf("error deleting document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
