package controllers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/app/services"
	"github.com/mert/schoolhub/internal/middleware"
	"github.com/mert/schoolhub/internal/pkg/filestorage"
	"github.com/rs/zerolog"
)

// maxRosterFileSize caps uploads at 16 MiB; roster files are small
const maxRosterFileSize = 16 << 20

// ImportController handles roster upload and audit listing endpoints
type ImportController struct {
	importService *services.ImportService
	archive       filestorage.RosterArchive
	logger        zerolog.Logger
}

// NewImportController creates a new ImportController
func NewImportController(importService *services.ImportService, archive filestorage.RosterArchive, logger zerolog.Logger) *ImportController {
	return &ImportController{
		importService: importService,
		archive:       archive,
		logger:        logger,
	}
}

type uploadRosterForm struct {
	ImportType string `form:"import_type" binding:"required,importtype"`
}

// UploadRoster accepts a multipart roster file and runs the import batch
// synchronously, returning the batch report
func (c *ImportController) UploadRoster(ctx *gin.Context) {
	schoolID, ok := schoolIDFromContext(ctx)
	if !ok {
		return
	}

	var form uploadRosterForm
	if err := ctx.ShouldBind(&form); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid roster upload form")
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid import type")
		errorDetail = errorDetail.WithDetails("import_type must be one of: students, teachers, staff")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Roster file is required")
		errorDetail = errorDetail.WithField("file")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}
	if fileHeader.Size > maxRosterFileSize {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Roster file too large")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.logger.Error().Err(err).Str("fileName", fileHeader.Filename).Msg("Failed to open uploaded roster")
		middleware.HandleAPIError(ctx, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.logger.Error().Err(err).Str("fileName", fileHeader.Filename).Msg("Failed to read uploaded roster")
		middleware.HandleAPIError(ctx, err)
		return
	}

	report, err := c.importService.RunImportBatch(ctx.Request.Context(), schoolID,
		models.ImportType(form.ImportType), fileHeader.Filename, data)

	// Archive whatever was uploaded, good or bad, so failed batches can be
	// inspected afterwards. Archival problems never affect the response.
	if report != nil && c.archive != nil {
		if _, archiveErr := c.archive.ArchiveRoster(schoolID, report.UploadID, fileHeader.Filename, data); archiveErr != nil {
			c.logger.Warn().Err(archiveErr).Int64("uploadID", report.UploadID).Msg("Failed to archive roster file")
		}
	}

	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: report,
	})
}

// ListUploads returns the school's upload audits, newest first
func (c *ImportController) ListUploads(ctx *gin.Context) {
	schoolID, ok := schoolIDFromContext(ctx)
	if !ok {
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid limit parameter")
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}
		limit = parsed
	}

	audits, err := c.importService.ListUploads(ctx.Request.Context(), schoolID, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	responses := make([]*dto.UploadAuditResponse, 0, len(audits))
	for _, audit := range audits {
		responses = append(responses, dto.NewUploadAuditResponse(audit))
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: responses,
	})
}

// GetUpload returns a single upload audit scoped to the caller's school
func (c *ImportController) GetUpload(ctx *gin.Context) {
	schoolID, ok := schoolIDFromContext(ctx)
	if !ok {
		return
	}

	uploadID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid upload ID")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	audit, err := c.importService.GetUpload(ctx.Request.Context(), schoolID, uploadID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data: dto.NewUploadAuditResponse(audit),
	})
}
