package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/estatehub/backend/internal/middleware"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// allowedEvidenceTypes are the content types accepted for evidence uploads
var allowedEvidenceTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
}

// KYCHandler handles the document owner's KYC requests
type KYCHandler struct {
	kycService     *kyc.Service
	maxUploadBytes int64
}

// NewKYCHandler creates a new KYC handler
func NewKYCHandler(kycService *kyc.Service, maxUploadMB int) *KYCHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &KYCHandler{
		kycService:     kycService,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// DocumentResponse is a document with its file URLs
type DocumentResponse struct {
	models.KYCDocument
	PreviewURL  string `json:"preview_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func (h *KYCHandler) documentResponse(doc models.KYCDocument) DocumentResponse {
	resp := DocumentResponse{KYCDocument: doc}
	if doc.FileReference != nil && *doc.FileReference != "" {
		resp.PreviewURL = h.kycService.GetFilePreviewURL(*doc.FileReference)
		resp.DownloadURL = h.kycService.GetFileDownloadURL(*doc.FileReference)
	}
	return resp
}

// GetCatalog returns the document type catalog and the required set
func (h *KYCHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"document_types":     models.DocumentCatalog(),
		"required_documents": models.RequiredDocumentTypes(),
	})
}

// GetStatus returns the caller's verification state
func (h *KYCHandler) GetStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	state, err := h.kycService.GetAccountVerificationState(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch KYC status")
		return
	}

	c.JSON(http.StatusOK, state)
}

// ListDocuments returns the caller's documents, newest first
func (h *KYCHandler) ListDocuments(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	docs, err := h.kycService.GetDocumentsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch documents")
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, h.documentResponse(doc))
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

// UploadDocument stores an evidence file and records a pending document
func (h *KYCHandler) UploadDocument(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	ctx := c.Request.Context()

	suspended, err := h.kycService.IsSuspended(ctx, userID)
	if err != nil {
		respondError(c, err, "Failed to check account status")
		return
	}
	if suspended {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is suspended"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse form data"})
		return
	}

	docType := models.DocumentType(c.PostForm("document_type"))
	if !docType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document type"})
		return
	}

	opts := kyc.CreateDocumentOptions{
		DocumentNumber: optionalForm(c, "document_number"),
		Notes:          optionalForm(c, "notes"),
	}
	if raw := strings.TrimSpace(c.PostForm("expiry_date")); raw != "" {
		expiry, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiry_date must be YYYY-MM-DD"})
			return
		}
		opts.ExpiryDate = &expiry
	}
	if raw := c.PostForm("is_primary"); raw != "" {
		primary, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_primary must be a boolean"})
			return
		}
		opts.IsPrimary = primary
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if !mimetype.EqualsAny(mime.String(), allowedEvidenceTypes...) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported file type " + mime.String()})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	info, err := h.kycService.UploadFile(ctx, header.Filename, file)
	if err != nil {
		respondError(c, err, "Failed to store file")
		return
	}
	opts.FileReference = &info.Ref

	doc, err := h.kycService.CreateDocument(ctx, userID, docType, opts)
	if err != nil {
		if delErr := h.kycService.DeleteFile(ctx, info.Ref); delErr != nil {
			log.Printf("Failed to remove file %s after document creation failed: %v", info.Ref, delErr)
		}
		respondError(c, err, "Failed to create document")
		return
	}

	c.JSON(http.StatusCreated, h.documentResponse(*doc))
}

// GetDocument returns one of the caller's documents
func (h *KYCHandler) GetDocument(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.documentResponse(*doc))
}

type updateDocumentRequest struct {
	DocumentNumber *string `json:"document_number"`
	ExpiryDate     *string `json:"expiry_date"`
	Notes          *string `json:"notes"`
	IsPrimary      *bool   `json:"is_primary"`
}

// UpdateDocument edits the descriptive fields of one of the caller's documents
func (h *KYCHandler) UpdateDocument(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := kyc.DocumentUpdate{
		DocumentNumber: req.DocumentNumber,
		Notes:          req.Notes,
		IsPrimary:      req.IsPrimary,
	}
	if req.ExpiryDate != nil {
		if strings.TrimSpace(*req.ExpiryDate) == "" {
			update.ClearExpiryDate = true
		} else {
			expiry, err := time.Parse(dateLayout, *req.ExpiryDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "expiry_date must be YYYY-MM-DD"})
				return
			}
			update.ExpiryDate = &expiry
		}
	}

	updated, err := h.kycService.UpdateDocument(c.Request.Context(), doc.ID, update)
	if err != nil {
		respondError(c, err, "Failed to update document")
		return
	}

	c.JSON(http.StatusOK, h.documentResponse(*updated))
}

// DeleteDocument removes one of the caller's documents and its file.
// Verified documents cannot be withdrawn by their owner.
func (h *KYCHandler) DeleteDocument(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	if doc.Status == models.DocumentStatusVerified {
		c.JSON(http.StatusConflict, gin.H{"error": "Verified documents cannot be deleted"})
		return
	}

	result, err := h.kycService.DeleteDocumentAndFile(c.Request.Context(), doc.ID)
	if err != nil {
		respondError(c, err, "Failed to delete document")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ownedDocument loads the :id document and checks it belongs to the caller.
// Documents of other users are reported as not found.
func (h *KYCHandler) ownedDocument(c *gin.Context) (*models.KYCDocument, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return nil, false
	}

	doc, err := h.kycService.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch document")
		return nil, false
	}
	if doc.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return nil, false
	}
	return doc, true
}

func optionalForm(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.PostForm(key))
	if value == "" {
		return nil
	}
	return &value
}
