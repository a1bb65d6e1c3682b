// Package treatment runs the fill, drain and treatment lifecycle. Every
// multi-step write happens in one store transaction together with its outbox
// events.
package treatment

import (
	"context"
	"time"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/service/analysis"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/metrics"
	"github.com/jwalitptl/capd-api/pkg/storage"
)

type TreatmentService interface {
	StartFillSession(ctx context.Context, req *model.StartFillSessionRequest) (*StartResult, error)
	CompleteFillSession(ctx context.Context, inID int64, req *model.CompleteFillSessionRequest) (*CompleteResult, error)
	CreateFillSession(ctx context.Context, req *model.CreateFillSessionRequest) (*model.FillSession, error)
	GetFillSession(ctx context.Context, inID int64) (*model.FillSession, error)
	LatestFillSession(ctx context.Context, patientID int64) (*model.FillSession, error)
	UpdateFillStarted(ctx context.Context, req *model.UpdateFillStartedRequest) error
	UpdateFillFinished(ctx context.Context, req *model.UpdateFillFinishedRequest) error

	RecordDrainSession(ctx context.Context, req *model.RecordDrainSessionRequest) (*DrainResult, error)
	CreateTreatment(ctx context.Context, req *model.CreateTreatmentRequest) (*TreatmentResult, error)
	FinishTreatment(ctx context.Context, req *model.FinishTreatmentRequest) (*TreatmentResult, error)
	AttachDrain(ctx context.Context, treatmentID int64, req *model.AttachDrainRequest) (*TreatmentResult, error)

	GetActiveFillSession(ctx context.Context, patientID int64) (*model.ActiveFillSession, error)
	TodayProgress(ctx context.Context, userID int64) (*Progress, error)
	History(ctx context.Context, userID int64) ([]*HistoryDay, error)
}

type StartResult struct {
	TreatmentID     int64 `json:"treatment_id"`
	InID            int64 `json:"in_id"`
	NeedsCompletion bool  `json:"needs_completion"`
}

type CompleteResult struct {
	InID        int64     `json:"in_id"`
	VolumeIn    float64   `json:"volume_in"`
	CompletedAt time.Time `json:"completed_at"`
}

type DrainResult struct {
	OutID         int64              `json:"out_id"`
	ExitSiteImage *string            `json:"exit_site_image,omitempty"`
	ColorAnalysis analysis.ColorRisk `json:"color_analysis"`
}

type TreatmentResult struct {
	TreatmentID       int64                 `json:"treatment_id"`
	OutID             *int64                `json:"out_id,omitempty"`
	Status            model.TreatmentStatus `json:"treatment_status"`
	CalculatedBalance float64               `json:"calculated_balance"`
	Remark            string                `json:"remark"`
	Formula           string                `json:"formula"`
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type HistoryDay struct {
	Date         string            `json:"date"`
	TotalBalance float64           `json:"total_balance"`
	Sessions     []*HistorySession `json:"sessions"`
}

type HistorySession struct {
	No               int                   `json:"no"`
	TreatmentID      int64                 `json:"treatment_id"`
	Balance          float64               `json:"balance"`
	SerialNo         string                `json:"serial_no"`
	TimeStartedIn    *string               `json:"time_started_in"`
	TimeCompletedIn  *string               `json:"time_completed_in"`
	VolumeIn         *float64              `json:"volume_in"`
	Dialysate        *string               `json:"dialysate"`
	TimeStartedOut   *string               `json:"time_started_out"`
	TimeCompletedOut *string               `json:"time_completed_out"`
	VolumeOut        *float64              `json:"volume_out"`
	Color            *string               `json:"color"`
	Notes            *string               `json:"notes"`
	Status           model.TreatmentStatus `json:"status"`
	Remarks          string                `json:"remarks"`
}

type Service struct {
	store       repository.Store
	images      storage.ObjectStore
	imagePrefix string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewService wires the treatment service. images may be nil, in which case
// exit-site images are stored verbatim.
func NewService(store repository.Store, images storage.ObjectStore, imagePrefix string, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:       store,
		images:      images,
		imagePrefix: imagePrefix,
		logger:      log,
		metrics:     m,
		now:         time.Now,
	}
}
