package service

import (
	"context"
	"time"

	"printer_monitor/internal/models"
	"printer_monitor/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes the live state of the polled printers.
type Monitoring interface {
	GetState(ctx context.Context, deviceID string) (models.DeviceState, error)
	ListStates(ctx context.Context) ([]models.DeviceState, error)
}

// Control accepts external commands. Switch requests are acknowledged and
// reverted; the printer itself is never commanded.
type Control interface {
	SetSwitch(ctx context.Context, deviceID string, on bool) error
	Reset(ctx context.Context, deviceID string) error
}

// History exposes the rolling activity history.
type History interface {
	List(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error)
}

type Service struct {
	Monitoring
	Control
	History
	Authorization
}

// AuthOptions configures operator tokens.
type AuthOptions struct {
	SigningKey string
	TokenTTL   time.Duration
}

// NewService wires the registry and repositories into the API-facing services.
func NewService(devices DeviceSource, repos *repository.Repository, auth AuthOptions) *Service {
	return &Service{
		Monitoring:    NewMonitoringService(devices),
		Control:       NewControlService(devices),
		History:       NewHistoryService(repos.History),
		Authorization: NewAuthService(repos.Auth, auth.SigningKey, auth.TokenTTL),
	}
}
