package treatment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/internal/handler"
	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/service/analysis"
	"github.com/jwalitptl/capd-api/internal/service/treatment"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/httputil"
)

type Handler struct {
	service  treatment.TreatmentService
	analysis analysis.AnalysisService
}

func NewHandler(service treatment.TreatmentService, analysis analysis.AnalysisService) *Handler {
	return &Handler{
		service:  service,
		analysis: analysis,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	treatments := r.Group("/treatments")
	{
		treatments.POST("", h.CreateTreatment)
		treatments.POST("/solution-in", h.StartFillSession)
		treatments.PUT("/complete-solution-in/:inId", h.CompleteFillSession)
		treatments.GET("/active-solution-in/:patientID", h.GetActiveFillSession)
		treatments.PUT("/update-in-started", h.UpdateFillStarted)
		treatments.PUT("/update-in-finished", h.UpdateFillFinished)
		treatments.PUT("/attach-drain/:treatmentID", h.AttachDrain)

		treatments.GET("/today/:userID", h.TodayProgress)
		treatments.GET("/history/:userID", h.History)
		treatments.GET("/balance-analysis/:patientID", h.BalanceAnalysis)
		treatments.GET("/fluid-balance-analysis/:userID", h.FluidBalanceAnalysis)
		treatments.GET("/monthly-stats/:userID", h.MonthlyBagStats)
		treatments.GET("/balance/:userID", h.MonthlyBalanceStats)
	}

	// older clients finish a whole exchange in one call
	r.POST("/treatment/finish", h.FinishTreatment)

	insolution := r.Group("/insolution")
	{
		insolution.POST("", h.CreateFillSession)
		insolution.GET("/latest/:patientID", h.LatestFillSession)
		insolution.GET("/:inID", h.GetFillSession)
	}

	r.POST("/outsolution", h.RecordDrainSession)
}

func (h *Handler) StartFillSession(c *gin.Context) {
	var req model.StartFillSessionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.StartFillSession(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Solution-In started", res)
}

func (h *Handler) CompleteFillSession(c *gin.Context) {
	inID, err := handler.ParamID(c, "inId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CompleteFillSessionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.CompleteFillSession(c.Request.Context(), inID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Solution-In completed", res)
}

func (h *Handler) GetActiveFillSession(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	active, err := h.service.GetActiveFillSession(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"active_session": active})
}

func (h *Handler) CreateFillSession(c *gin.Context) {
	var req model.CreateFillSessionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	session, err := h.service.CreateFillSession(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "", session)
}

func (h *Handler) GetFillSession(c *gin.Context) {
	inID, err := handler.ParamID(c, "inID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	session, err := h.service.GetFillSession(c.Request.Context(), inID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if session == nil {
		httputil.RespondWithError(c, apperrors.NewNotFound("fill session", nil))
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) LatestFillSession(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	session, err := h.service.LatestFillSession(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) UpdateFillStarted(c *gin.Context) {
	var req model.UpdateFillStartedRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.UpdateFillStarted(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Fill start time updated", nil)
}

func (h *Handler) UpdateFillFinished(c *gin.Context) {
	var req model.UpdateFillFinishedRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.UpdateFillFinished(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Fill finish time updated", nil)
}

func (h *Handler) RecordDrainSession(c *gin.Context) {
	var req model.RecordDrainSessionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.RecordDrainSession(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Solution-Out recorded", res)
}

func (h *Handler) CreateTreatment(c *gin.Context) {
	var req model.CreateTreatmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.CreateTreatment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Treatment saved", res)
}

func (h *Handler) FinishTreatment(c *gin.Context) {
	var req model.FinishTreatmentRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.FinishTreatment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Treatment finished", res)
}

func (h *Handler) AttachDrain(c *gin.Context) {
	treatmentID, err := handler.ParamID(c, "treatmentID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.AttachDrainRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.AttachDrain(c.Request.Context(), treatmentID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Treatment completed", res)
}

func (h *Handler) TodayProgress(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	progress, err := h.service.TodayProgress(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, progress)
}

func (h *Handler) History(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	history, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

func (h *Handler) BalanceAnalysis(c *gin.Context) {
	patientID, err := handler.ParamID(c, "patientID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rows, err := h.analysis.BalanceAnalysis(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rows)
}

func (h *Handler) FluidBalanceAnalysis(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	report, err := h.analysis.FluidBalanceAnalysis(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}

func (h *Handler) MonthlyBagStats(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	stats, err := h.analysis.MonthlyBagStats(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) MonthlyBalanceStats(c *gin.Context) {
	userID, err := handler.ParamID(c, "userID")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	report, err := h.analysis.MonthlyBalanceStats(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}
