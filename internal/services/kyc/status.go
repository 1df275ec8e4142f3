package kyc

import (
	"context"
	"errors"
	"sort"

	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/store"
	"github.com/google/uuid"
)

// StatusSummary is the verification state derived from a user's documents.
// It is computed on every query and never stored.
type StatusSummary struct {
	Status            models.VerificationStatus `json:"status"`
	TotalDocuments    int                       `json:"total_documents"`
	PendingCount      int                       `json:"pending_count"`
	VerifiedCount     int                       `json:"verified_count"`
	RejectedCount     int                       `json:"rejected_count"`
	IsFullyVerified   bool                      `json:"is_fully_verified"`
	RequiredDocuments []models.DocumentType     `json:"required_documents"`
	MissingDocuments  []models.DocumentType     `json:"missing_documents"`
	VerifiedTypes     []models.DocumentType     `json:"verified_types"`
	HasRejected       bool                      `json:"has_rejected"`
	HasPending        bool                      `json:"has_pending"`
}

// Summarize reduces a document set to its verification summary.
//
// The overall status is decided in this order: no documents is
// not_submitted; every required type verified is verified; only rejections
// is rejected; any pending document is pending; any rejection is rejected;
// anything else is still pending.
func Summarize(docs []models.KYCDocument) StatusSummary {
	required := models.RequiredDocumentTypes()

	var pending, verified, rejected int
	submitted := make(map[models.DocumentType]bool)
	verifiedTypes := make(map[models.DocumentType]bool)

	for _, doc := range docs {
		submitted[doc.DocumentType] = true
		switch doc.Status {
		case models.DocumentStatusPending:
			pending++
		case models.DocumentStatusVerified:
			verified++
			verifiedTypes[doc.DocumentType] = true
		case models.DocumentStatusRejected:
			rejected++
		}
	}

	missing := []models.DocumentType{}
	fullyVerified := true
	for _, t := range required {
		if !submitted[t] {
			missing = append(missing, t)
		}
		if !verifiedTypes[t] {
			fullyVerified = false
		}
	}

	verifiedList := make([]models.DocumentType, 0, len(verifiedTypes))
	for t := range verifiedTypes {
		verifiedList = append(verifiedList, t)
	}
	sort.Slice(verifiedList, func(i, j int) bool { return verifiedList[i] < verifiedList[j] })

	summary := StatusSummary{
		TotalDocuments:    len(docs),
		PendingCount:      pending,
		VerifiedCount:     verified,
		RejectedCount:     rejected,
		IsFullyVerified:   fullyVerified,
		RequiredDocuments: required,
		MissingDocuments:  missing,
		VerifiedTypes:     verifiedList,
		HasRejected:       rejected > 0,
		HasPending:        pending > 0,
	}

	switch {
	case len(docs) == 0:
		summary.Status = models.VerificationStatusNotSubmitted
	case fullyVerified:
		summary.Status = models.VerificationStatusVerified
	case rejected > 0 && pending == 0 && verified == 0:
		summary.Status = models.VerificationStatusRejected
	case pending > 0:
		summary.Status = models.VerificationStatusPending
	case rejected > 0:
		summary.Status = models.VerificationStatusRejected
	default:
		summary.Status = models.VerificationStatusPending
	}

	return summary
}

// GetVerificationStatus fetches the user's documents and summarizes them
func (s *Service) GetVerificationStatus(ctx context.Context, userID uuid.UUID) (*StatusSummary, error) {
	docs, err := s.GetDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(docs)
	metrics.StatusQueries.WithLabelValues(string(summary.Status)).Inc()
	return &summary, nil
}

// Action is something the owner of the documents may do next
type Action string

const (
	ActionUpload   Action = "upload"
	ActionResubmit Action = "resubmit"
	ActionDelete   Action = "delete"
)

// AccountVerificationState combines the document summary with the
// account-level suspension flag.
type AccountVerificationState struct {
	StatusSummary
	EffectiveStatus  models.VerificationStatus `json:"effective_status"`
	IsSuspended      bool                      `json:"is_suspended"`
	SuspensionReason *string                   `json:"suspension_reason,omitempty"`
	AllowedActions   []Action                  `json:"allowed_actions"`
}

// GetAccountVerificationState returns the summary with suspension applied on
// top. A user without an account row is treated as not suspended.
func (s *Service) GetAccountVerificationState(ctx context.Context, userID uuid.UUID) (*AccountVerificationState, error) {
	summary, err := s.GetVerificationStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := &AccountVerificationState{
		StatusSummary:   *summary,
		EffectiveStatus: summary.Status,
	}

	account, err := s.accounts.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	case account.IsSuspended:
		state.IsSuspended = true
		state.SuspensionReason = account.SuspensionReason
		state.EffectiveStatus = models.VerificationStatusSuspended
	}

	state.AllowedActions = allowedActions(state)
	return state, nil
}

// IsSuspended reports the account-level suspension flag of userID
func (s *Service) IsSuspended(ctx context.Context, userID uuid.UUID) (bool, error) {
	account, err := s.accounts.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return account.IsSuspended, nil
}

func allowedActions(state *AccountVerificationState) []Action {
	actions := []Action{}
	if state.IsSuspended {
		return actions
	}
	if state.Status != models.VerificationStatusVerified {
		actions = append(actions, ActionUpload)
	}
	if state.HasRejected {
		actions = append(actions, ActionResubmit)
	}
	if state.PendingCount+state.RejectedCount > 0 {
		actions = append(actions, ActionDelete)
	}
	return actions
}
