// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/app/services"
	"github.com/mert/schoolhub/internal/middleware"
	"github.com/rs/zerolog"
)

// AuthController handles authentication related operations
type AuthController struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService *services.AuthService, logger zerolog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

// Login authenticates a credential and returns a token pair
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid login request payload")
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	loginResponse, err := c.authService.Login(ctx.Request.Context(), req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: loginResponse,
	})
}

// Refresh redeems a refresh token for a new token pair
func (c *AuthController) Refresh(ctx *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid refresh request payload")
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	loginResponse, err := c.authService.Refresh(ctx.Request.Context(), req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: loginResponse,
	})
}

// ChangePassword replaces the caller's password after verifying the current one
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	identityID, ok := identityIDFromContext(ctx)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid change password payload")
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.authService.ChangePassword(ctx.Request.Context(), identityID, req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: dto.SuccessResponse{Message: "Password changed successfully"},
	})
}

// ResetPassword issues a fresh generated default password for an identity of
// the caller's school. Admin only.
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	schoolID, ok := schoolIDFromContext(ctx)
	if !ok {
		return
	}

	identityID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid identity ID")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	password, err := c.authService.ResetPassword(ctx.Request.Context(), schoolID, identityID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("identityID", identityID).Msg("Password reset by administrator")

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: dto.ResetPasswordResponse{
			IdentityID:      identityID,
			DefaultPassword: password,
		},
	})
}

// identityIDFromContext reads the authenticated identity ID set by JWTAuth
func identityIDFromContext(ctx *gin.Context) (int64, bool) {
	value, exists := ctx.Get(middleware.ContextIdentityID)
	if !exists {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return 0, false
	}

	identityID, ok := value.(int64)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(errorDetail))
		return 0, false
	}

	return identityID, true
}

// schoolIDFromContext reads the authenticated school ID set by JWTAuth
func schoolIDFromContext(ctx *gin.Context) (int64, bool) {
	value, exists := ctx.Get(middleware.ContextSchoolID)
	if !exists {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return 0, false
	}

	schoolID, ok := value.(int64)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(errorDetail))
		return 0, false
	}

	return schoolID, true
}
