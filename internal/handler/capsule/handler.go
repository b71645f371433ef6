package capsule

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/middleware"
	"github.com/openon-app/capsule-api/internal/model"
	capsuleService "github.com/openon-app/capsule-api/internal/service/capsule"
	apperrors "github.com/openon-app/capsule-api/pkg/errors"
	"github.com/openon-app/capsule-api/pkg/httputil"
)

type Handler struct {
	service *capsuleService.Service
}

func NewHandler(service *capsuleService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	capsules := r.Group("/capsules")
	{
		capsules.POST("", h.CreateCapsule)
		capsules.GET("/sent", h.ListSent)
		capsules.GET("/inbox", h.ListInbox)
		capsules.GET("/:id", h.GetCapsule)
		capsules.PATCH("/:id", h.UpdateCapsule)
		capsules.DELETE("/:id", h.DeleteCapsule)
		capsules.POST("/:id/open", h.OpenCapsule)
	}
}

// capsuleView is the wire shape of a capsule. The sender sees the raw
// record; the recipient's view withholds the body until the letter is
// opened and the sender's identity while it is anonymous.
type capsuleView struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    *uuid.UUID `json:"sender_id,omitempty"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Title       string     `json:"title"`
	Body        *string    `json:"body,omitempty"`

	IsAnonymous              bool   `json:"is_anonymous"`
	IsDisappearing           bool   `json:"is_disappearing"`
	DisappearingAfterSeconds *int64 `json:"disappearing_after_seconds,omitempty"`

	Status    model.CapsuleStatus `json:"status"`
	UnlocksAt time.Time           `json:"unlocks_at"`
	OpenedAt  *time.Time          `json:"opened_at,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	DeleteAt  *time.Time          `json:"delete_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

func renderCapsule(c *model.Capsule, isSender bool) *capsuleView {
	v := &capsuleView{
		ID:                       c.ID,
		RecipientID:              c.RecipientID,
		Title:                    c.Title,
		IsAnonymous:              c.IsAnonymous,
		IsDisappearing:           c.IsDisappearing,
		DisappearingAfterSeconds: c.DisappearingAfterSeconds,
		Status:                   c.Status,
		UnlocksAt:                c.UnlocksAt,
		OpenedAt:                 c.OpenedAt,
		ExpiresAt:                c.ExpiresAt,
		DeleteAt:                 c.EffectiveDeleteAt(),
		CreatedAt:                c.CreatedAt,
	}

	if isSender || !c.IsAnonymous {
		senderID := c.SenderID
		v.SenderID = &senderID
	}
	if isSender || c.Status == model.CapsuleStatusOpened {
		body := c.Body
		v.Body = &body
	}
	return v
}

func renderCapsules(capsules []*model.Capsule, isSender bool) []*capsuleView {
	views := make([]*capsuleView, 0, len(capsules))
	for _, c := range capsules {
		views = append(views, renderCapsule(c, isSender))
	}
	return views
}

func (h *Handler) CreateCapsule(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	var req model.CreateCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(bindingErrorMessage(err), err))
		return
	}

	capsule, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, renderCapsule(capsule, true))
}

func (h *Handler) GetCapsule(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid capsule ID", err))
		return
	}

	capsule, isSender, err := h.service.GetForUser(c.Request.Context(), id, userID, middleware.UserEmail(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, renderCapsule(capsule, isSender))
}

func (h *Handler) UpdateCapsule(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid capsule ID", err))
		return
	}

	var req model.UpdateCapsuleContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(bindingErrorMessage(err), err))
		return
	}

	capsule, err := h.service.UpdateContent(c.Request.Context(), id, userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, renderCapsule(capsule, true))
}

func (h *Handler) DeleteCapsule(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid capsule ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, nil)
}

func (h *Handler) OpenCapsule(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid capsule ID", err))
		return
	}

	capsule, err := h.service.Open(c.Request.Context(), id, userID, middleware.UserEmail(c))
	if err != nil {
		// A lost open race still returns the opened capsule, so the
		// client can show it alongside the conflict message.
		if errors.Is(err, capsuleService.ErrAlreadyOpened) && capsule != nil {
			httputil.RespondWithErrorData(c, err, renderCapsule(capsule, false))
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, renderCapsule(capsule, false))
}

func (h *Handler) ListSent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	capsules, err := h.service.ListSent(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, renderCapsules(capsules, true))
}

func (h *Handler) ListInbox(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	capsules, err := h.service.ListInbox(c.Request.Context(), userID, middleware.UserEmail(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, renderCapsules(capsules, false))
}

// bindingErrorMessage flattens validator errors into a single line
// without leaking struct internals.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field: " + verrs[0].Field()
	}
	return "invalid request body"
}
