package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/middleware"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// FileHandler serves stored evidence files. Admins can read any file; other
// users only the files of their own documents.
type FileHandler struct {
	files      filestore.FileStore
	kycService *kyc.Service
}

// NewFileHandler creates a new file handler
func NewFileHandler(files filestore.FileStore, kycService *kyc.Service) *FileHandler {
	return &FileHandler{files: files, kycService: kycService}
}

// Preview streams a file for inline display
func (h *FileHandler) Preview(c *gin.Context) {
	h.serve(c, "inline")
}

// Download streams a file as an attachment
func (h *FileHandler) Download(c *gin.Context) {
	h.serve(c, "attachment")
}

func (h *FileHandler) serve(c *gin.Context, disposition string) {
	bucket := c.Param("bucket")
	ref := c.Param("ref")
	if !h.canRead(c, bucket, ref) {
		return
	}

	rc, info, err := h.files.Open(c.Request.Context(), bucket, ref)
	if err != nil {
		respondError(c, err, "Failed to open file")
		return
	}
	defer rc.Close()

	// Sniff the content type from the first bytes, then replay them
	head := make([]byte, 3072)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		respondError(c, err, "Failed to read file")
		return
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, ref))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size, contentType, io.MultiReader(bytes.NewReader(head), rc), nil)
}

// canRead answers 404 unless the caller is an admin or owns the document the
// file belongs to.
func (h *FileHandler) canRead(c *gin.Context, bucket, ref string) bool {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	if c.GetBool(middleware.ContextIsAdmin) {
		return true
	}

	if bucket != h.kycService.Bucket() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return false
	}
	doc, err := h.kycService.GetDocumentByFileReference(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err, "Failed to open file")
		return false
	}
	if doc.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return false
	}
	return true
}
