package record

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medbot-api/internal/handler"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
	recordService "github.com/jwalitptl/medbot-api/internal/service/record"
	apperrors "github.com/jwalitptl/medbot-api/pkg/errors"
	"github.com/jwalitptl/medbot-api/pkg/httputil"
)

type Handler struct {
	service recordService.RecordService
}

func NewHandler(service recordService.RecordService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/records")
	{
		records.GET("", h.ListRecords)
		records.POST("", h.StoreRecord)
		records.GET("/latest", h.GetLatest)
		records.GET("/context", h.GetContext)
		records.GET("/analytics", h.GetAnalytics)
		records.GET("/files/:fileName", h.GetByFileName)
	}

	// Paths used by the existing web client.
	r.GET("/ecg-latest", h.GetLatest)
	r.GET("/ecg-data-for-gemini", h.GetContext)
	r.POST("/store-ecg-data", h.StoreRecord)
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	if records == nil {
		records = []model.HealthRecord{}
	}
	httputil.RespondWithSuccess(c, records)
}

func (h *Handler) StoreRecord(c *gin.Context) {
	var rec model.HealthRecord
	if !handler.BindJSON(c, &rec, "Invalid ECG data format") {
		return
	}

	if err := h.service.Store(c.Request.Context(), rec); err != nil {
		if errors.Is(err, recordService.ErrInvalidRecord) {
			httputil.RespondWithError(c, apperrors.BadRequest("Invalid ECG data format", err))
			return
		}
		httputil.RespondWithError(c, &apperrors.AppError{
			Code:    apperrors.ErrInternal,
			Message: "Failed to store ECG data",
			Err:     err,
		})
		return
	}
	httputil.RespondWithSuccess(c, handler.NewSuccessResponse("ECG data stored successfully"))
}

func (h *Handler) GetLatest(c *gin.Context) {
	rec, err := h.service.Latest(c.Request.Context())
	if err != nil {
		respondLookupError(c, err, "No ECG analysis found")
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) GetByFileName(c *gin.Context) {
	rec, err := h.service.Find(c.Request.Context(), c.Param("fileName"))
	if err != nil {
		respondLookupError(c, err, "No ECG analysis found for this file")
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) GetContext(c *gin.Context) {
	out, err := h.service.Context(c.Request.Context(), c.Query("q"))
	if err != nil {
		httputil.RespondWithError(c, &apperrors.AppError{
			Code:    apperrors.ErrInternal,
			Message: "Failed to provide ECG data",
			Err:     err,
		})
		return
	}
	httputil.RespondWithSuccess(c, out)
}

func (h *Handler) GetAnalytics(c *gin.Context) {
	report, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, report)
}

func respondLookupError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, repository.ErrNotFound) {
		httputil.RespondWithError(c, &apperrors.AppError{
			Code:    apperrors.ErrNotFound,
			Message: notFound,
			Err:     err,
		})
		return
	}
	httputil.RespondWithError(c, apperrors.Internal(err))
}
