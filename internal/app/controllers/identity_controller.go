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

// IdentityController serves identity profile lookups
type IdentityController struct {
	identityService *services.IdentityService
	logger          zerolog.Logger
}

// NewIdentityController creates a new IdentityController
func NewIdentityController(identityService *services.IdentityService, logger zerolog.Logger) *IdentityController {
	return &IdentityController{
		identityService: identityService,
		logger:          logger,
	}
}

// GetIdentity returns one identity of the caller's school together with its
// username and role record
func (c *IdentityController) GetIdentity(ctx *gin.Context) {
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

	profile, err := c.identityService.GetProfile(ctx.Request.Context(), schoolID, identityID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: profile,
	})
}
