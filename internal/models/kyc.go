package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the review status of a single KYC document
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// VerificationStatus is the overall lifecycle status shown for a user
type VerificationStatus string

const (
	VerificationStatusNotSubmitted VerificationStatus = "not_submitted"
	VerificationStatusPending      VerificationStatus = "pending"
	VerificationStatusVerified     VerificationStatus = "verified"
	VerificationStatusRejected     VerificationStatus = "rejected"
	VerificationStatusSuspended    VerificationStatus = "suspended"
)

// KYCDocument represents one piece of identity or credential evidence submitted by a user
type KYCDocument struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	DocumentType    DocumentType   `gorm:"type:varchar(50);not null" json:"document_type"`
	DocumentNumber  *string        `gorm:"type:varchar(100)" json:"document_number,omitempty"`
	FileReference   *string        `gorm:"type:varchar(255)" json:"file_reference,omitempty"`
	Status          DocumentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SubmittedAt     time.Time      `gorm:"not null" json:"submitted_at"`
	VerifiedAt      *time.Time     `json:"verified_at,omitempty"`
	VerifiedBy      *uuid.UUID     `gorm:"type:uuid" json:"verified_by,omitempty"`
	RejectionReason *string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	ExpiryDate      *time.Time     `json:"expiry_date,omitempty"`
	Notes           *string        `gorm:"type:text" json:"notes,omitempty"`
	IsPrimary       bool           `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName pins the table name used by migrations
func (KYCDocument) TableName() string {
	return "kyc_documents"
}

// KYCDocumentHistory tracks admin decisions taken on a document
type KYCDocumentHistory struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	PreviousStatus DocumentStatus `gorm:"type:varchar(20);not null" json:"previous_status"`
	NewStatus      DocumentStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	ChangedBy      uuid.UUID      `gorm:"type:uuid" json:"changed_by"`
	Notes          *string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (KYCDocumentHistory) TableName() string {
	return "kyc_document_histories"
}

// OrphanedFile is a stored file whose owning document is gone but whose
// deletion has not succeeded yet.
type OrphanedFile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Bucket     string    `gorm:"type:varchar(100);not null" json:"bucket"`
	FileRef    string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"file_ref"`
	DocumentID uuid.UUID `gorm:"type:uuid" json:"document_id"`
	Attempts   int       `gorm:"not null;default:0" json:"attempts"`
	LastError  string    `gorm:"type:text" json:"last_error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OrphanedFile) TableName() string {
	return "orphaned_files"
}
