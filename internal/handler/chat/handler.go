package chat

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medbot-api/internal/handler"
	"github.com/jwalitptl/medbot-api/internal/llm"
	"github.com/jwalitptl/medbot-api/internal/matcher"
	"github.com/jwalitptl/medbot-api/internal/model"
	chatService "github.com/jwalitptl/medbot-api/internal/service/chat"
	apperrors "github.com/jwalitptl/medbot-api/pkg/errors"
	"github.com/jwalitptl/medbot-api/pkg/httputil"
)

const defaultMatchK = 3

type Handler struct {
	service chatService.ChatService
	matcher *matcher.Matcher
}

func NewHandler(service chatService.ChatService, m *matcher.Matcher) *Handler {
	return &Handler{service: service, matcher: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.POST("/gemini", h.Chat)
	r.POST("/match", h.Match)
	r.GET("/catalog", h.Catalog)
}

func (h *Handler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if !handler.BindJSON(c, &req, "Message is required") {
		return
	}

	resp, err := h.service.Reply(c.Request.Context(), handler.SessionID(c, req.SessionID), req.Message)
	if err != nil {
		httputil.RespondWithError(c, toAppError(err))
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

type matchResponse struct {
	Query   string                   `json:"query"`
	Results []model.SimilarityResult `json:"results"`
}

func (h *Handler) Match(c *gin.Context) {
	var req model.MatchRequest
	if !handler.BindJSON(c, &req, "Invalid match request") {
		return
	}
	if req.K == 0 {
		req.K = defaultMatchK
	}

	results := h.matcher.TopK(req.Query, req.K)
	if results == nil {
		results = []model.SimilarityResult{}
	}
	httputil.RespondWithSuccess(c, matchResponse{Query: req.Query, Results: results})
}

type catalogResponse struct {
	Entries []model.CatalogEntry `json:"entries"`
	Total   int                  `json:"total"`
}

func (h *Handler) Catalog(c *gin.Context) {
	entries := h.matcher.Catalog()
	if entries == nil {
		entries = []model.CatalogEntry{}
	}
	httputil.RespondWithSuccess(c, catalogResponse{Entries: entries, Total: len(entries)})
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return apperrors.BadRequest("Message is required", err)
	case errors.Is(err, chatService.ErrSuperseded):
		return apperrors.Conflict("Reply superseded by a newer message", err)
	case errors.Is(err, llm.ErrUnavailable):
		return apperrors.Unavailable("AI service is unavailable. Please try again.", err)
	case errors.Is(err, llm.ErrServiceError):
		return apperrors.Upstream("AI service returned an error. Please try again.", err)
	default:
		return &apperrors.AppError{
			Code:    apperrors.ErrInternal,
			Message: "Failed to get response from AI. Please try again.",
			Err:     err,
		}
	}
}
