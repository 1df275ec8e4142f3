package handlers

import (
	"math"
	"net/http"

	"github.com/estatehub/backend/internal/middleware"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KYCAdminHandler handles admin review of KYC documents and accounts
type KYCAdminHandler struct {
	kycService *kyc.Service
}

// NewKYCAdminHandler creates a new admin KYC handler
func NewKYCAdminHandler(kycService *kyc.Service) *KYCAdminHandler {
	return &KYCAdminHandler{kycService: kycService}
}

// ListDocuments lists documents across users with optional filters
func (h *KYCAdminHandler) ListDocuments(c *gin.Context) {
	page, pageSize := pagination(c)

	opts := kyc.ListOptions{
		Status:       models.DocumentStatus(c.Query("status")),
		DocumentType: models.DocumentType(c.Query("document_type")),
		Page:         page,
		PageSize:     pageSize,
	}
	switch opts.Status {
	case "", models.DocumentStatusPending, models.DocumentStatusVerified, models.DocumentStatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		opts.UserID = &userID
	}

	result, err := h.kycService.ListDocuments(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err, "Failed to list documents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": result.Items,
		"pagination": gin.H{
			"total":       result.Total,
			"page":        page,
			"page_size":   pageSize,
			"total_pages": int(math.Ceil(float64(result.Total) / float64(pageSize))),
		},
	})
}

// GetUserStatus returns the verification state of any user
func (h *KYCAdminHandler) GetUserStatus(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	state, err := h.kycService.GetAccountVerificationState(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch KYC status")
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetDocumentHistory returns the decisions taken on a document
func (h *KYCAdminHandler) GetDocumentHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.kycService.DocumentHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch document history")
		return
	}
	if history == nil {
		history = []models.KYCDocumentHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// VerifyDocument marks a document verified by the calling admin
func (h *KYCAdminHandler) VerifyDocument(c *gin.Context) {
	adminID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.kycService.VerifyDocument(c.Request.Context(), id, adminID)
	if err != nil {
		respondError(c, err, "Failed to verify document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectDocument marks a document rejected with the given reason
func (h *KYCAdminHandler) RejectDocument(c *gin.Context) {
	adminID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	doc, err := h.kycService.RejectDocument(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		respondError(c, err, "Failed to reject document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

// SuspendAccount suspends a user account
func (h *KYCAdminHandler) SuspendAccount(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	var req suspendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	account, err := h.kycService.SuspendAccount(c.Request.Context(), userID, req.Reason)
	if err != nil {
		respondError(c, err, "Failed to suspend account")
		return
	}
	c.JSON(http.StatusOK, account)
}

// ReinstateAccount lifts a suspension
func (h *KYCAdminHandler) ReinstateAccount(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	account, err := h.kycService.ReinstateAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to reinstate account")
		return
	}
	c.JSON(http.StatusOK, account)
}
