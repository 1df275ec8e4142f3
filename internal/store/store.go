// Package store is the persistence boundary for KYC documents and the
// records that surround them. Each store has a gorm-backed implementation
// for PostgreSQL and an in-memory one used in tests and local runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInvalidQuery is returned for filters or sorts on unknown fields
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidField is returned when an update names a field that cannot be written
	ErrInvalidField = errors.New("invalid update field")
)

// FilterOp is a comparison operator usable in list filters
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNe  FilterOp = "ne"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
)

// Filter restricts a list query to records whose Field compares to Value
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Eq builds an equality filter
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Ne builds an inequality filter
func Ne(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpNe, Value: value}
}

// Sort orders a list query by a single field
type Sort struct {
	Field string
	Desc  bool
}

// ListQuery describes a filtered, sorted, paginated list request.
// A zero Limit means no limit.
type ListQuery struct {
	Filters []Filter
	Sort    Sort
	Limit   int
	Offset  int
}

// ListResult holds one page of documents and the total number of matches
type ListResult struct {
	Items []models.KYCDocument
	Total int64
}

// Fields is a partial update keyed by column name. A nil value clears the column.
type Fields map[string]interface{}

// DocumentStore is CRUD access to KYC document records
type DocumentStore interface {
	Create(ctx context.Context, doc *models.KYCDocument) (*models.KYCDocument, error)
	Get(ctx context.Context, id uuid.UUID) (*models.KYCDocument, error)
	List(ctx context.Context, query ListQuery) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, fields Fields) (*models.KYCDocument, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountStore reads accounts and maintains their suspension flag
type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetSuspension(ctx context.Context, id uuid.UUID, suspended bool, reason *string) (*models.Account, error)
}

// HistoryStore keeps the audit trail of document decisions
type HistoryStore interface {
	Record(ctx context.Context, entry *models.KYCDocumentHistory) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.KYCDocumentHistory, error)
}

// OrphanStore tracks files left behind by failed deletions
type OrphanStore interface {
	Record(ctx context.Context, orphan *models.OrphanedFile) error
	Get(ctx context.Context, id uuid.UUID) (*models.OrphanedFile, error)
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]models.OrphanedFile, error)
	MarkAttempt(ctx context.Context, id uuid.UUID, lastError string) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// documentColumns are the fields that may be filtered and sorted on
var documentColumns = map[string]bool{
	"id":             true,
	"user_id":        true,
	"document_type":  true,
	"file_reference": true,
	"status":         true,
	"submitted_at":   true,
	"verified_at":    true,
	"expiry_date":    true,
	"is_primary":     true,
	"created_at":     true,
}

// writableColumns are the fields Update accepts
var writableColumns = map[string]bool{
	"document_number":  true,
	"file_reference":   true,
	"expiry_date":      true,
	"notes":            true,
	"is_primary":       true,
	"status":           true,
	"verified_at":      true,
	"verified_by":      true,
	"rejection_reason": true,
}

func validateQuery(query ListQuery) error {
	for _, f := range query.Filters {
		if !documentColumns[f.Field] {
			return fmt.Errorf("%w: unknown filter field %q", ErrInvalidQuery, f.Field)
		}
		if _, ok := sqlOperators[f.Op]; !ok {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
	}
	if query.Sort.Field != "" && !documentColumns[query.Sort.Field] {
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, query.Sort.Field)
	}
	if query.Limit < 0 || query.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	}
	return nil
}

func validateFields(fields Fields) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty update", ErrInvalidField)
	}
	for name := range fields {
		if !writableColumns[name] {
			return fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	return nil
}

var sqlOperators = map[FilterOp]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}
