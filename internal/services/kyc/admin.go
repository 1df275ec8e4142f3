package kyc

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/store"
	"github.com/google/uuid"
)

// VerifyDocument marks a document verified by adminID. Any document may be
// verified regardless of its current status; concurrent decisions are last
// write wins.
func (s *Service) VerifyDocument(ctx context.Context, documentID, adminID uuid.UUID) (*models.KYCDocument, error) {
	previous, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	updated, err := s.updateFields(ctx, documentID, store.Fields{
		"status":           models.DocumentStatusVerified,
		"verified_at":      s.now().UTC(),
		"verified_by":      adminID,
		"rejection_reason": nil,
	})
	if err != nil {
		return nil, err
	}

	s.recordDecision(ctx, previous.Status, updated, adminID, "Verified")
	metrics.Decisions.WithLabelValues(string(models.DocumentStatusVerified)).Inc()
	return updated, nil
}

// RejectDocument marks a document rejected by adminID. The reason is shown
// to the user verbatim and must not be blank.
func (s *Service) RejectDocument(ctx context.Context, documentID, adminID uuid.UUID, reason string) (*models.KYCDocument, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	previous, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	updated, err := s.updateFields(ctx, documentID, store.Fields{
		"status":           models.DocumentStatusRejected,
		"verified_at":      s.now().UTC(),
		"verified_by":      adminID,
		"rejection_reason": reason,
	})
	if err != nil {
		return nil, err
	}

	s.recordDecision(ctx, previous.Status, updated, adminID, fmt.Sprintf("Rejected: %s", reason))
	metrics.Decisions.WithLabelValues(string(models.DocumentStatusRejected)).Inc()
	return updated, nil
}

func (s *Service) recordDecision(ctx context.Context, previous models.DocumentStatus, doc *models.KYCDocument, adminID uuid.UUID, notes string) {
	if s.history == nil {
		return
	}
	entry := &models.KYCDocumentHistory{
		DocumentID:     doc.ID,
		PreviousStatus: previous,
		NewStatus:      doc.Status,
		ChangedBy:      adminID,
		Notes:          &notes,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.history.Record(ctx, entry); err != nil {
		log.Printf("Failed to create document history record for %s: %v", doc.ID, err)
	}
}

// DocumentHistory returns the decisions taken on a document, newest first
func (s *Service) DocumentHistory(ctx context.Context, documentID uuid.UUID) ([]models.KYCDocumentHistory, error) {
	return s.history.ListByDocument(ctx, documentID)
}

// ListOptions filters the admin document listing
type ListOptions struct {
	Status       models.DocumentStatus
	DocumentType models.DocumentType
	UserID       *uuid.UUID
	Page         int
	PageSize     int
}

// ListDocuments returns a page of documents across users, newest first
func (s *Service) ListDocuments(ctx context.Context, opts ListOptions) (*store.ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := store.ListQuery{
		Sort:   store.Sort{Field: "submitted_at", Desc: true},
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if opts.Status != "" {
		query.Filters = append(query.Filters, store.Eq("status", opts.Status))
	}
	if opts.DocumentType != "" {
		query.Filters = append(query.Filters, store.Eq("document_type", opts.DocumentType))
	}
	if opts.UserID != nil {
		query.Filters = append(query.Filters, store.Eq("user_id", *opts.UserID))
	}

	return s.documents.List(ctx, query)
}

// SuspendAccount sets the account-level suspension flag
func (s *Service) SuspendAccount(ctx context.Context, userID uuid.UUID, reason string) (*models.Account, error) {
	var r *string
	if strings.TrimSpace(reason) != "" {
		r = &reason
	}
	account, err := s.accounts.SetSuspension(ctx, userID, true, r)
	if err != nil {
		return nil, err
	}
	log.Printf("Account %s suspended", userID)
	return account, nil
}

// ReinstateAccount clears the account-level suspension flag
func (s *Service) ReinstateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.SetSuspension(ctx, userID, false, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("Account %s reinstated", userID)
	return account, nil
}
