package recipient

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/middleware"
	"github.com/openon-app/capsule-api/internal/model"
	recipientService "github.com/openon-app/capsule-api/internal/service/recipient"
	apperrors "github.com/openon-app/capsule-api/pkg/errors"
	"github.com/openon-app/capsule-api/pkg/httputil"
)

type Handler struct {
	service *recipientService.Service
}

func NewHandler(service *recipientService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	recipients := r.Group("/recipients")
	{
		recipients.POST("", h.CreateRecipient)
		recipients.GET("", h.ListRecipients)
		recipients.POST("/:id/link", h.LinkRecipient)
	}
}

func (h *Handler) CreateRecipient(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	var req model.CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	recipient, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, recipient)
}

func (h *Handler) ListRecipients(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	recipients, err := h.service.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, recipients)
}

// LinkRecipient attaches the calling account to a recipient entry. The
// entry must carry the caller's verified email; linking someone else's
// entry is rejected.
func (h *Handler) LinkRecipient(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid recipient ID", err))
		return
	}

	recipient, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !strings.EqualFold(recipient.Email, middleware.UserEmail(c)) {
		httputil.RespondWithError(c, apperrors.Forbidden("recipient email does not match your account", nil))
		return
	}

	if err := h.service.Link(c.Request.Context(), id, userID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, nil)
}
