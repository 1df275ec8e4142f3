package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/estatehub/backend/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps service errors to HTTP responses. Unknown errors are
// logged and answered with a generic message.
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, filestore.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, kyc.ErrReasonRequired),
		errors.Is(err, kyc.ErrEmptyUpdate),
		errors.Is(err, store.ErrInvalidQuery),
		errors.Is(err, store.ErrInvalidField),
		errors.Is(err, filestore.ErrInvalidRef):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and page_size query parameters
func pagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := 20

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil && ps > 0 && ps <= 100 {
		pageSize = ps
	}
	return page, pageSize
}
