package patient

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	hospital := "HN-0042"
	store.AddPatient(&model.Patient{ID: 7, UserID: 70, HospitalNumber: &hospital})
	return NewService(store.Patients(), logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})), store
}

func TestGetByUser(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.GetByUser(context.Background(), 70)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "HN-0042", *p.HospitalNumber)

	_, err = svc.GetByUser(context.Background(), 71)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, model.SituationAtHome, status)

	require.NoError(t, svc.UpdateStatus(ctx, 70, model.SituationInEmergency))
	status, err = svc.GetStatus(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, model.SituationInEmergency, status)

	err = svc.UpdateStatus(ctx, 70, "Hospitalised")
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
	status, err = svc.GetStatus(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, model.SituationInEmergency, status)

	err = svc.UpdateStatus(ctx, 71, model.SituationAtHome)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.GetStatus(ctx, 71)
	assert.True(t, apperrors.IsNotFound(err))
}
