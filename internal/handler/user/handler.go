package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/handler"
	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/service/user"
	apperrors "github.com/jwalitptl/patient-intake/pkg/errors"
	"github.com/jwalitptl/patient-intake/pkg/httputil"
)

type Handler struct {
	service user.UserServicer
}

func NewHandler(service user.UserServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("/:id", h.GetUser)
	}
}

// CreateUser answers 201 for a new account and 200 when the email was
// already registered.
func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	resp, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	httputil.RespondWithStatus(c, status, resp)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid user ID", err))
		return
	}

	u, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			httputil.RespondWithError(c, apperrors.NotFound("user", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, u)
}
