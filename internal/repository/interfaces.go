package repository

import (
	"context"

	"nasmon/internal/models"
)

// AlertStore persists the live alert set, one row per alert keyed by
// UUID. ReplaceAll rewrites the table wholesale; the engine calls it
// hourly, on shutdown and after one-shot deletes.
type AlertStore interface {
	LoadAll(ctx context.Context) ([]models.Alert, error)
	ReplaceAll(ctx context.Context, alerts []models.Alert) error
	Insert(ctx context.Context, alert models.Alert) error
}

// ServiceStore persists configured alert services.
type ServiceStore interface {
	List(ctx context.Context) ([]models.AlertService, error)
	Get(ctx context.Context, id int64) (*models.AlertService, error)
	Create(ctx context.Context, svc models.AlertService) (models.AlertService, error)
	Update(ctx context.Context, svc models.AlertService) error
	Delete(ctx context.Context, id int64) error
}

// ClassConfigStore persists per-class level/policy/proactive overrides.
type ClassConfigStore interface {
	All(ctx context.Context) (map[string]models.ClassConfig, error)
	Upsert(ctx context.Context, cfg models.ClassConfig) error
}

// HealthChecker defines health check operations
type HealthChecker interface {
	CheckHealth() error
}
