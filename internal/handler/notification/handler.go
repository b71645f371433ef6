package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openon-app/capsule-api/internal/middleware"
	notificationService "github.com/openon-app/capsule-api/internal/service/notification"
	apperrors "github.com/openon-app/capsule-api/pkg/errors"
	"github.com/openon-app/capsule-api/pkg/httputil"
)

const defaultListLimit = 50

type Handler struct {
	service *notificationService.Service
}

func NewHandler(service *notificationService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
	}
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid limit", err))
			return
		}
		limit = parsed
	}

	notifications, err := h.service.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, notifications)
}
