package service

import (
	"context"
	"errors"
	"time"

	"cheesecave/internal/models"
)

var ErrApplianceOffline = errors.New("appliance is not running")

type MonitoringService struct {
	app Appliance
}

func NewMonitoringService(app Appliance) *MonitoringService {
	return &MonitoringService{app: app}
}

// GetState returns the current device snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	if s.app == nil {
		return models.Snapshot{}, ErrApplianceOffline
	}
	snap := s.app.Snapshot()
	snap.TakenAt = toUTC(snap.TakenAt)
	return snap, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
