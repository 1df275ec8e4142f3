package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryDocumentStore keeps documents in process memory
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]models.KYCDocument
	now  func() time.Time
}

// NewMemoryDocumentStore creates an empty in-memory document store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[uuid.UUID]models.KYCDocument),
		now:  time.Now,
	}
}

func (s *MemoryDocumentStore) Create(ctx context.Context, doc *models.KYCDocument) (*models.KYCDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if _, exists := s.docs[doc.ID]; exists {
		return nil, fmt.Errorf("error creating document: duplicate id %s", doc.ID)
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.docs[doc.ID] = *doc

	stored := *doc
	return &stored, nil
}

func (s *MemoryDocumentStore) Get(ctx context.Context, id uuid.UUID) (*models.KYCDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryDocumentStore) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	items := make([]models.KYCDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		if documentMatches(&doc, query.Filters) {
			items = append(items, doc)
		}
	}
	s.mu.RUnlock()

	if query.Sort.Field != "" {
		sort.SliceStable(items, func(i, j int) bool {
			c, _ := compare(
				normalize(documentField(&items[i], query.Sort.Field)),
				normalize(documentField(&items[j], query.Sort.Field)),
			)
			if query.Sort.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := int64(len(items))
	if query.Offset >= len(items) {
		items = items[:0]
	} else {
		items = items[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(items) {
		items = items[:query.Limit]
	}

	return &ListResult{Items: items, Total: total}, nil
}

func (s *MemoryDocumentStore) Update(ctx context.Context, id uuid.UUID, fields Fields) (*models.KYCDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	for name, value := range fields {
		if err := applyField(&doc, name, value); err != nil {
			return nil, err
		}
	}
	doc.UpdatedAt = s.now()
	s.docs[id] = doc

	return &doc, nil
}

func (s *MemoryDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func documentMatches(doc *models.KYCDocument, filters []Filter) bool {
	for _, f := range filters {
		if !matches(documentField(doc, f.Field), f) {
			return false
		}
	}
	return true
}

// applyField writes one column of a partial update onto doc
func applyField(doc *models.KYCDocument, name string, value interface{}) error {
	value = filterValue(value)
	switch name {
	case "document_number":
		return setString(&doc.DocumentNumber, name, value)
	case "file_reference":
		return setString(&doc.FileReference, name, value)
	case "notes":
		return setString(&doc.Notes, name, value)
	case "rejection_reason":
		return setString(&doc.RejectionReason, name, value)
	case "expiry_date":
		return setTime(&doc.ExpiryDate, name, value)
	case "verified_at":
		return setTime(&doc.VerifiedAt, name, value)
	case "verified_by":
		if value == nil {
			doc.VerifiedBy = nil
			return nil
		}
		id, ok := value.(uuid.UUID)
		if !ok {
			return fmt.Errorf("%w: %s expects a uuid", ErrInvalidField, name)
		}
		doc.VerifiedBy = &id
	case "is_primary":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s expects a bool", ErrInvalidField, name)
		}
		doc.IsPrimary = b
	case "status":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string", ErrInvalidField, name)
		}
		doc.Status = models.DocumentStatus(s)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

func setString(dst **string, name string, value interface{}) error {
	if value == nil {
		*dst = nil
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s expects a string", ErrInvalidField, name)
	}
	*dst = &s
	return nil
}

func setTime(dst **time.Time, name string, value interface{}) error {
	if value == nil {
		*dst = nil
		return nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return fmt.Errorf("%w: %s expects a time", ErrInvalidField, name)
	}
	*dst = &t
	return nil
}
