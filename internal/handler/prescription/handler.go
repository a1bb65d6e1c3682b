package prescription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/internal/handler"
	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/service/prescription"
	"github.com/jwalitptl/capd-api/pkg/httputil"
)

type Handler struct {
	service prescription.PrescriptionService
}

func NewHandler(service prescription.PrescriptionService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.GET("/latest/:patientID", h.LatestByPatient)
		prescriptions.GET("/user/:userID", h.LatestByUser)
		prescriptions.GET("/:patientID", h.ListByPatient)
	}

	medicines := r.Group("/prescription-medicines")
	{
		medicines.GET("/patient/:patientID", h.MedicinesByPatient)
		medicines.GET("/latest/:patientID", h.LatestMedicines)
	}
}

func (h *Handler) LatestByPatient(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.LatestByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) LatestByUser(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.LatestByUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ListByPatient(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var q model.PrescriptionListQuery
	if err := handler.BindQuery(c, &q); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	prescriptions, err := h.service.ListByPatient(c.Request.Context(), patientID, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, prescriptions)
}

func (h *Handler) MedicinesByPatient(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var q model.MedicineListQuery
	if err := handler.BindQuery(c, &q); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	medicines, err := h.service.MedicinesByPatient(c.Request.Context(), patientID, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, medicines)
}

func (h *Handler) LatestMedicines(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	latest, err := h.service.LatestMedicines(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, latest)
}
