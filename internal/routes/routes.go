package routes

import (
	"github.com/estatehub/backend/internal/handlers"
	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/middleware"
	"github.com/estatehub/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	KYC    *handlers.KYCHandler
	Admin  *handlers.KYCAdminHandler
	Files  *handlers.FileHandler
	Queue  *handlers.QueueHandler
	Health *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router *gin.Engine, h Handlers, issuer *utils.TokenIssuer) {
	router.GET("/healthz", h.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	RegisterKYCRoutes(router, h.KYC, issuer)
	RegisterAdminRoutes(router, h.Admin, h.Queue, issuer)
	RegisterFileRoutes(router, h.Files, issuer)
}

// RegisterKYCRoutes registers the document owner's KYC routes
func RegisterKYCRoutes(router *gin.Engine, kycHandler *handlers.KYCHandler, issuer *utils.TokenIssuer) {
	router.GET("/api/kyc/catalog", kycHandler.GetCatalog)

	kycGroup := router.Group("/api/kyc")
	kycGroup.Use(middleware.AuthMiddleware(issuer))
	{
		kycGroup.GET("/status", kycHandler.GetStatus)
		kycGroup.GET("/documents", kycHandler.ListDocuments)
		kycGroup.POST("/documents", kycHandler.UploadDocument)
		kycGroup.GET("/documents/:id", kycHandler.GetDocument)
		kycGroup.PATCH("/documents/:id", kycHandler.UpdateDocument)
		kycGroup.DELETE("/documents/:id", kycHandler.DeleteDocument)
	}
}

// RegisterAdminRoutes registers admin review routes
func RegisterAdminRoutes(router *gin.Engine, adminHandler *handlers.KYCAdminHandler, queueHandler *handlers.QueueHandler, issuer *utils.TokenIssuer) {
	adminGroup := router.Group("/api/admin/kyc")
	adminGroup.Use(middleware.AuthMiddleware(issuer), middleware.AdminMiddleware())
	{
		adminGroup.GET("/documents", adminHandler.ListDocuments)
		adminGroup.GET("/documents/:id/history", adminHandler.GetDocumentHistory)
		adminGroup.POST("/documents/:id/verify", adminHandler.VerifyDocument)
		adminGroup.POST("/documents/:id/reject", adminHandler.RejectDocument)

		adminGroup.GET("/users/:user_id/status", adminHandler.GetUserStatus)
		adminGroup.POST("/users/:user_id/suspend", adminHandler.SuspendAccount)
		adminGroup.POST("/users/:user_id/reinstate", adminHandler.ReinstateAccount)

		adminGroup.GET("/queue/stats", queueHandler.GetStats)
	}
}

// RegisterFileRoutes registers evidence file serving routes
func RegisterFileRoutes(router *gin.Engine, fileHandler *handlers.FileHandler, issuer *utils.TokenIssuer) {
	fileGroup := router.Group("/api/files")
	fileGroup.Use(middleware.AuthMiddleware(issuer))
	{
		fileGroup.GET("/:bucket/:ref/preview", fileHandler.Preview)
		fileGroup.GET("/:bucket/:ref/download", fileHandler.Download)
	}
}
