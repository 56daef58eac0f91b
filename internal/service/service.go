package service

import (
	"context"

	"cheesecave/internal/models"
	"cheesecave/internal/repository"
	"cheesecave/internal/state"
)

// Appliance is the part of the controller the remote surface talks to.
type Appliance interface {
	Snapshot() models.Snapshot
	Press(b models.Button) state.Transition
}

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes the live device snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (models.Snapshot, error)
}

// EventLog exposes the appliance history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Panel presses menu buttons on behalf of a remote operator.
type Panel interface {
	Press(ctx context.Context, button string) (PressResult, error)
}

type Service struct {
	Monitoring
	EventLog
	Panel
	Authorization
}

// NewService wires the repositories and the running appliance into the
// services the HTTP layer consumes. events is shared with the controller,
// which records into it.
func NewService(repos *repository.Repository, app Appliance, events *EventLogService, auth AuthConfig) *Service {
	return &Service{
		Monitoring:    NewMonitoringService(app),
		EventLog:      events,
		Panel:         NewPanelService(app),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
