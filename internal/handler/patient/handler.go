package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/internal/handler"
	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/service/patient"
	"github.com/jwalitptl/capd-api/pkg/httputil"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("/user/:userID", h.GetByUser)
		patients.GET("/status/:userID", h.GetStatus)
		patients.PUT("/status/:userID", h.UpdateStatus)
	}
}

func (h *Handler) GetByUser(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.GetByUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) GetStatus(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": status})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdatePatientStatusRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), userID, req.Status); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Patient status updated", gin.H{"status": req.Status})
}
