package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/mert/schoolhub/internal/app/controllers"
	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	importController *controllers.ImportController,
	identityController *controllers.IdentityController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authController.Login)
		auth.POST("/refresh", authController.Refresh)
	}

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.POST("/auth/change-password", authController.ChangePassword)

		// Import routes are admin only: uploading rosters provisions
		// accounts and the audit trail carries personal data.
		imports := authenticated.Group("/imports")
		imports.Use(authMiddleware.RoleRequired(models.RoleAdmin))
		{
			imports.POST("", importController.UploadRoster)
			imports.GET("", importController.ListUploads)
			imports.GET("/:id", importController.GetUpload)
		}

		admin := authenticated.Group("/identities")
		admin.Use(authMiddleware.RoleRequired(models.RoleAdmin))
		{
			admin.GET("/:id", identityController.GetIdentity)
			admin.POST("/:id/reset-password", authController.ResetPassword)
		}
	}
}
