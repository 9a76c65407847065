package analysis

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medbot-api/internal/handler"
	"github.com/jwalitptl/medbot-api/internal/model"
	analysisService "github.com/jwalitptl/medbot-api/internal/service/analysis"
	recordService "github.com/jwalitptl/medbot-api/internal/service/record"
	apperrors "github.com/jwalitptl/medbot-api/pkg/errors"
	"github.com/jwalitptl/medbot-api/pkg/httputil"
)

const (
	fieldECGImage     = "ecgImage"
	fieldPrescription = "file"
)

type Handler struct {
	service analysisService.AnalysisService
}

func NewHandler(service analysisService.AnalysisService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	ecg := r.Group("/ecg")
	{
		ecg.POST("/upload", h.UploadECG)
		ecg.POST("/analyze", h.AnalyzeECG)
	}
	r.POST("/prescriptions/ocr", h.ProcessPrescription)

	// Paths used by the existing web client.
	r.POST("/upload-ecg", h.UploadECG)
	r.POST("/ecg-analysis", h.AnalyzeECG)
	r.POST("/prescription-ocr", h.ProcessPrescription)
}

func (h *Handler) UploadECG(c *gin.Context) {
	upload, ok := h.saveUpload(c, fieldECGImage)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, upload)
}

func (h *Handler) AnalyzeECG(c *gin.Context) {
	var req model.AnalyzeRequest
	if !handler.BindJSON(c, &req, "Image path is required") {
		return
	}

	rec, err := h.service.AnalyzeECG(c.Request.Context(), req.ImagePath)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err, "ECG analysis failed"))
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) ProcessPrescription(c *gin.Context) {
	upload, ok := h.saveUpload(c, fieldPrescription)
	if !ok {
		return
	}

	result, err := h.service.ProcessPrescription(c.Request.Context(), upload.ImagePath)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err, "Failed to process prescription image"))
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) saveUpload(c *gin.Context, field string) (*model.UploadResponse, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("No file uploaded", err))
		return nil, false
	}

	upload, err := h.service.SaveUpload(field, fh)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err, "File upload failed"))
		return nil, false
	}
	return upload, true
}

// toAppError maps analysis failures to HTTP errors. fallback is the message
// of anything unexpected.
func toAppError(err error, fallback string) error {
	switch {
	case errors.Is(err, analysisService.ErrAnalyzerUnavailable):
		return apperrors.Unavailable("ECG analysis service not available. Please ensure Python dependencies are installed.", err)
	case errors.Is(err, analysisService.ErrNotImage):
		return apperrors.BadRequest("Only image files are allowed!", err)
	case errors.Is(err, analysisService.ErrTooLarge):
		return apperrors.TooLarge("File too large", err)
	case errors.Is(err, analysisService.ErrInvalidPath):
		return apperrors.BadRequest("Invalid image path", err)
	case errors.Is(err, analysisService.ErrBadOutput):
		return &apperrors.AppError{Code: apperrors.ErrInternal, Message: "Failed to parse analysis result", Err: err}
	case errors.Is(err, recordService.ErrInvalidRecord):
		return &apperrors.AppError{Code: apperrors.ErrInternal, Message: "Analyzer returned an invalid record", Err: err}
	default:
		return &apperrors.AppError{Code: apperrors.ErrInternal, Message: fallback, Err: err}
	}
}
