package kyc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrReasonRequired is returned when a document is rejected without a reason
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrEmptyUpdate is returned when an update carries no fields
	ErrEmptyUpdate = errors.New("no fields to update")
)

// CleanupScheduler schedules a retried deletion of a file left behind when
// its document was removed.
type CleanupScheduler interface {
	ScheduleFileCleanup(ctx context.Context, orphan *models.OrphanedFile) error
}

// Dependencies are the collaborators of the KYC service
type Dependencies struct {
	Documents store.DocumentStore
	Accounts  store.AccountStore
	History   store.HistoryStore
	Orphans   store.OrphanStore
	Files     filestore.FileStore
	Cleanup   CleanupScheduler
	// Bucket is the file store bucket that holds KYC evidence
	Bucket string
}

// Service handles KYC document operations and verification status
type Service struct {
	documents store.DocumentStore
	accounts  store.AccountStore
	history   store.HistoryStore
	orphans   store.OrphanStore
	files     filestore.FileStore
	cleanup   CleanupScheduler
	bucket    string
	now       func() time.Time
}

// NewService creates a new KYC service
func NewService(deps Dependencies) *Service {
	bucket := deps.Bucket
	if bucket == "" {
		bucket = "kyc-documents"
	}
	return &Service{
		documents: deps.Documents,
		accounts:  deps.Accounts,
		history:   deps.History,
		orphans:   deps.Orphans,
		files:     deps.Files,
		cleanup:   deps.Cleanup,
		bucket:    bucket,
		now:       time.Now,
	}
}

// Bucket returns the file store bucket used for evidence files
func (s *Service) Bucket() string {
	return s.bucket
}

// CreateDocumentOptions are the optional fields of a new document
type CreateDocumentOptions struct {
	DocumentNumber *string
	FileReference  *string
	ExpiryDate     *time.Time
	Notes          *string
	IsPrimary      bool
}

// CreateDocument records a new pending document for userID. The document
// type is stored as given.
func (s *Service) CreateDocument(ctx context.Context, userID uuid.UUID, documentType models.DocumentType, opts CreateDocumentOptions) (*models.KYCDocument, error) {
	doc := &models.KYCDocument{
		ID:             uuid.New(),
		UserID:         userID,
		DocumentType:   documentType,
		DocumentNumber: opts.DocumentNumber,
		FileReference:  opts.FileReference,
		Status:         models.DocumentStatusPending,
		SubmittedAt:    s.now().UTC(),
		ExpiryDate:     opts.ExpiryDate,
		Notes:          opts.Notes,
		IsPrimary:      opts.IsPrimary,
	}

	created, err := s.documents.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	metrics.DocumentsSubmitted.WithLabelValues(string(documentType)).Inc()
	return created, nil
}

// GetDocumentsByUser returns every document of userID, newest first
func (s *Service) GetDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]models.KYCDocument, error) {
	result, err := s.documents.List(ctx, store.ListQuery{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Sort:    store.Sort{Field: "submitted_at", Desc: true},
	})
	if err != nil {
		return nil, err
	}
	if result.Items == nil {
		return []models.KYCDocument{}, nil
	}
	return result.Items, nil
}

// GetDocument returns a single document or store.ErrNotFound
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*models.KYCDocument, error) {
	return s.documents.Get(ctx, id)
}

// GetDocumentByFileReference returns the document whose evidence file is ref,
// or store.ErrNotFound
func (s *Service) GetDocumentByFileReference(ctx context.Context, ref string) (*models.KYCDocument, error) {
	result, err := s.documents.List(ctx, store.ListQuery{
		Filters: []store.Filter{store.Eq("file_reference", ref)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, store.ErrNotFound
	}
	return &result.Items[0], nil
}

// DocumentUpdate holds the user-editable fields of a document. Nil fields are
// left untouched; an empty DocumentNumber or Notes clears the value.
type DocumentUpdate struct {
	DocumentNumber  *string
	FileReference   *string
	ExpiryDate      *time.Time
	ClearExpiryDate bool
	Notes           *string
	IsPrimary       *bool
}

// UpdateDocument applies plain field edits. Review fields are only written by
// VerifyDocument and RejectDocument.
func (s *Service) UpdateDocument(ctx context.Context, id uuid.UUID, update DocumentUpdate) (*models.KYCDocument, error) {
	fields := store.Fields{}
	if update.DocumentNumber != nil {
		fields["document_number"] = emptyToNil(*update.DocumentNumber)
	}
	if update.FileReference != nil {
		fields["file_reference"] = emptyToNil(*update.FileReference)
	}
	if update.ClearExpiryDate {
		fields["expiry_date"] = nil
	} else if update.ExpiryDate != nil {
		fields["expiry_date"] = *update.ExpiryDate
	}
	if update.Notes != nil {
		fields["notes"] = emptyToNil(*update.Notes)
	}
	if update.IsPrimary != nil {
		fields["is_primary"] = *update.IsPrimary
	}
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}

	return s.updateFields(ctx, id, fields)
}

func (s *Service) updateFields(ctx context.Context, id uuid.UUID, fields store.Fields) (*models.KYCDocument, error) {
	return s.documents.Update(ctx, id, fields)
}

// DeleteDocument removes the document record only. Its file, if any, is left
// in the file store; see DeleteDocumentAndFile.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.documents.Delete(ctx, id)
}

// DeleteResult reports the outcome of DeleteDocumentAndFile
type DeleteResult struct {
	DocumentID          uuid.UUID `json:"document_id"`
	FileDeleted         bool      `json:"file_deleted"`
	FileCleanupDeferred bool      `json:"file_cleanup_deferred"`
}

// DeleteDocumentAndFile deletes a document's file and then the record. When
// the file cannot be deleted the record is still removed and the file is
// handed to the cleanup scheduler, so the call succeeds with
// FileCleanupDeferred set.
func (s *Service) DeleteDocumentAndFile(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{DocumentID: id}
	var fileErr error
	hasFile := doc.FileReference != nil && *doc.FileReference != ""
	if hasFile {
		fileErr = s.files.Delete(ctx, s.bucket, *doc.FileReference)
		result.FileDeleted = fileErr == nil
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("error deleting document %s: %w", id, err)
	}

	if hasFile && fileErr != nil {
		log.Printf("Deferring cleanup of file %s for document %s: %v", *doc.FileReference, id, fileErr)
		s.deferFileCleanup(ctx, doc, fileErr)
		result.FileCleanupDeferred = true
	}

	return result, nil
}

func (s *Service) deferFileCleanup(ctx context.Context, doc *models.KYCDocument, fileErr error) {
	orphan := &models.OrphanedFile{
		Bucket:     s.bucket,
		FileRef:    *doc.FileReference,
		DocumentID: doc.ID,
		LastError:  fileErr.Error(),
	}
	if s.orphans != nil {
		if err := s.orphans.Record(ctx, orphan); err != nil {
			log.Printf("Failed to record orphaned file %s: %v", orphan.FileRef, err)
			return
		}
	}
	if s.cleanup != nil {
		if err := s.cleanup.ScheduleFileCleanup(ctx, orphan); err != nil {
			// The orphan sweeper picks the row up later.
			log.Printf("Failed to schedule cleanup of file %s: %v", orphan.FileRef, err)
		}
	}
}

// UploadFile stores evidence in the KYC bucket and returns its reference
func (s *Service) UploadFile(ctx context.Context, filename string, r io.Reader) (*filestore.FileInfo, error) {
	return s.files.Upload(ctx, s.bucket, filename, r)
}

// DeleteFile removes evidence from the KYC bucket
func (s *Service) DeleteFile(ctx context.Context, ref string) error {
	return s.files.Delete(ctx, s.bucket, ref)
}

// GetFilePreviewURL builds the inline-view URL of a file reference
func (s *Service) GetFilePreviewURL(ref string) string {
	return s.files.PreviewURL(s.bucket, ref)
}

// GetFileDownloadURL builds the download URL of a file reference
func (s *Service) GetFileDownloadURL(ref string) string {
	return s.files.DownloadURL(s.bucket, ref)
}

func emptyToNil(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
