package reference

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/httputil"
)

// Handler serves the option lists the registration form is built from.
type Handler struct {
	data *model.ReferenceData
}

func NewHandler() *Handler {
	return &Handler{data: model.NewReferenceData()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reference", h.GetReference)
}

func (h *Handler) GetReference(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	httputil.RespondWithSuccess(c, h.data)
}
