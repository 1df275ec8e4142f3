package store

import (
	"strings"
	"time"

	"github.com/estatehub/backend/internal/models"
	"github.com/google/uuid"
)

// filterValue unwraps pointers and named string types into plain driver values
func filterValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case models.DocumentStatus:
		return string(t)
	case models.DocumentType:
		return string(t)
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case *uuid.UUID:
		if t == nil {
			return nil
		}
		return *t
	case *bool:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

// normalize reduces a value to string, time.Time or bool so the memory
// stores can evaluate filters the way the database would.
func normalize(v interface{}) interface{} {
	value := filterValue(v)
	if id, ok := value.(uuid.UUID); ok {
		return id.String()
	}
	return value
}

// compare returns -1, 0 or 1 and false when the values cannot be ordered
func compare(a, b interface{}) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func matches(field interface{}, f Filter) bool {
	left := normalize(field)
	right := normalize(f.Value)

	if left == nil || right == nil {
		switch f.Op {
		case OpEq:
			return left == nil && right == nil
		case OpNe:
			return (left == nil) != (right == nil)
		default:
			return false
		}
	}

	c, ok := compare(left, right)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

// documentField returns the value of a filterable column of doc
func documentField(doc *models.KYCDocument, name string) interface{} {
	switch name {
	case "id":
		return doc.ID
	case "user_id":
		return doc.UserID
	case "document_type":
		return doc.DocumentType
	case "file_reference":
		return doc.FileReference
	case "status":
		return doc.Status
	case "submitted_at":
		return doc.SubmittedAt
	case "verified_at":
		return doc.VerifiedAt
	case "expiry_date":
		return doc.ExpiryDate
	case "is_primary":
		return doc.IsPrimary
	case "created_at":
		return doc.CreatedAt
	}
	return nil
}
