// Package service holds helpers shared by the domain services.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/repository"
	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
)

// StoreError translates a repository failure: a missing row becomes NotFound
// for resource, AppErrors pass through and anything else is an internal error.
func StoreError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.Wrap(err)
}

// Emit appends a domain event to the outbox of the current transaction.
func Emit(ctx context.Context, tx repository.Store, eventType string, payload interface{}, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return tx.Outbox().Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   body,
		CreatedAt: at,
	})
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
