package iot

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/service/iot"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/httputil"
	"github.com/jwalitptl/capd-api/pkg/validator"
)

// Handler serves the scale firmware. Device validation failures are 422, not
// the 400 used by the clinical routes.
type Handler struct {
	service iot.IoTService
}

func NewHandler(service iot.IoTService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the device routes; mw runs before each of them.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	devices := r.Group("/iot", mw...)
	{
		devices.GET("/health", h.Health)
		devices.GET("/status", h.GetActivity)
		devices.POST("/status", h.SetActivity)
		devices.GET("/weight", h.GetWeight)
		devices.POST("/weight", h.ReportWeight)
		devices.GET("/device-status", h.GetDeviceStatus)
		devices.POST("/device-status", h.SetDeviceStatus)
		devices.POST("/connect", h.Connect)
		devices.GET("/reminders", h.Reminders)
		devices.POST("/drainage-complete", h.DrainageComplete)
	}
}

func (h *Handler) Health(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"status": "healthy"})
}

func (h *Handler) GetActivity(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"status": h.service.Activity()})
}

func (h *Handler) SetActivity(c *gin.Context) {
	var req model.DeviceActivityRequest
	if !bind(c, &req) {
		return
	}
	if err := h.service.SetActivity(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": h.service.Activity()})
}

func (h *Handler) GetWeight(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.LatestWeight())
}

func (h *Handler) ReportWeight(c *gin.Context) {
	var req model.ScaleWeightRequest
	if !bind(c, &req) {
		return
	}
	report, err := h.service.ReportScaleWeight(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}

func (h *Handler) GetDeviceStatus(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.DeviceStatus())
}

func (h *Handler) SetDeviceStatus(c *gin.Context) {
	var req model.DeviceStatusRequest
	if !bind(c, &req) {
		return
	}
	if err := h.service.SetDeviceStatus(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, h.service.DeviceStatus())
}

func (h *Handler) Connect(c *gin.Context) {
	var req model.ConnectDeviceRequest
	if !bind(c, &req) {
		return
	}
	if err := h.service.Connect(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Device connected", h.service.DeviceStatus())
}

func (h *Handler) Reminders(c *gin.Context) {
	reminders, err := h.service.Reminders(c.Query("device_id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"reminders": reminders})
}

func (h *Handler) DrainageComplete(c *gin.Context) {
	var req model.DrainageCompleteRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.service.ReportDrainageComplete(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Drainage completion recorded", res)
}

func bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, apperrors.NewUnprocessable("invalid request", validator.FieldErrors(err)))
		return false
	}
	return true
}
