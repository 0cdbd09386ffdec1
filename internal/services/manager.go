package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"nasmon/internal/models"
	"nasmon/internal/repository"
)

// ConfiguredService pairs a persisted service row with its built sender.
type ConfiguredService struct {
	Config models.AlertService
	sender Sender
}

func (c ConfiguredService) Send(alerts, gone, added []models.AlertView) error {
	return c.sender.Send(alerts, gone, added)
}

// Manager owns the service factory registry and the configured channel
// instances built from the persistence store.
type Manager struct {
	store     repository.ServiceStore
	deps      Deps
	factories map[string]*Factory

	mu       sync.Mutex
	services map[int64]ConfiguredService
}

func NewManager(store repository.ServiceStore, deps Deps) *Manager {
	m := &Manager{
		store:     store,
		deps:      deps,
		factories: make(map[string]*Factory),
		services:  make(map[int64]ConfiguredService),
	}
	// Built-in channel types.
	for _, f := range []*Factory{slackFactory(), webhookFactory(), emailFactory()} {
		m.factories[f.Type] = f
	}
	return m
}

// RegisterFactory adds an external channel type; duplicates are a hard
// error at load.
func (m *Manager) RegisterFactory(f *Factory) error {
	if _, exists := m.factories[f.Type]; exists {
		return fmt.Errorf("alert service type %q registered twice", f.Type)
	}
	m.factories[f.Type] = f
	return nil
}

// Load reads all persisted services and rebuilds senders. Rows with
// unknown types are dropped; unknown attributes are stripped.
func (m *Manager) Load(ctx context.Context) error {
	rows, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	built := make(map[int64]ConfiguredService)
	for _, row := range rows {
		factory, ok := m.factories[row.Type]
		if !ok {
			m.deps.Log.Warnf("Dropping alert service %q: unknown type %q", row.Name, row.Type)
			continue
		}

		clean, err := factory.ValidateAttributes(row.Attributes)
		if err != nil {
			m.deps.Log.Warnf("Dropping alert service %q: %v", row.Name, err)
			continue
		}
		row.Attributes = clean

		sender, err := factory.Build(row, m.deps)
		if err != nil {
			m.deps.Log.Warnf("Could not build alert service %q: %v", row.Name, err)
			continue
		}

		built[row.ID] = ConfiguredService{Config: row, sender: sender}
	}

	m.mu.Lock()
	m.services = built
	m.mu.Unlock()

	return nil
}

// Enabled snapshots the enabled channels for one dispatch pass.
func (m *Manager) Enabled() []ConfiguredService {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ConfiguredService
	for _, svc := range m.services {
		if svc.Config.Enabled {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.ID < out[j].Config.ID })
	return out
}

// List returns the persisted service rows.
func (m *Manager) List(ctx context.Context) ([]models.AlertService, error) {
	return m.store.List(ctx)
}

func (m *Manager) validate(svc *models.AlertService) (*Factory, error) {
	factory, ok := m.factories[svc.Type]
	if !ok {
		return nil, models.NewValidationError("type", "unknown service type %q", svc.Type)
	}
	if svc.Name == "" {
		return nil, models.NewValidationError("name", "must not be empty")
	}

	clean, err := factory.ValidateAttributes(svc.Attributes)
	if err != nil {
		return nil, err
	}
	svc.Attributes = clean

	return factory, nil
}

// Create validates, persists, and instantiates a new service.
func (m *Manager) Create(ctx context.Context, svc models.AlertService) (models.AlertService, error) {
	factory, err := m.validate(&svc)
	if err != nil {
		return svc, err
	}

	sender, err := factory.Build(svc, m.deps)
	if err != nil {
		return svc, err
	}

	created, err := m.store.Create(ctx, svc)
	if err != nil {
		return svc, err
	}

	m.mu.Lock()
	m.services[created.ID] = ConfiguredService{Config: created, sender: sender}
	m.mu.Unlock()

	return created, nil
}

func (m *Manager) Update(ctx context.Context, svc models.AlertService) error {
	factory, err := m.validate(&svc)
	if err != nil {
		return err
	}

	sender, err := factory.Build(svc, m.deps)
	if err != nil {
		return err
	}

	if err := m.store.Update(ctx, svc); err != nil {
		return err
	}

	m.mu.Lock()
	m.services[svc.ID] = ConfiguredService{Config: svc, sender: sender}
	m.mu.Unlock()

	return nil
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.services, id)
	m.mu.Unlock()

	return nil
}

// Test builds a throwaway sender from an unsaved config and pushes one
// test alert through it.
func (m *Manager) Test(svc models.AlertService, alert models.AlertView) error {
	factory, err := m.validate(&svc)
	if err != nil {
		return err
	}

	sender, err := factory.Build(svc, m.deps)
	if err != nil {
		return err
	}

	return sender.Send([]models.AlertView{alert}, nil, []models.AlertView{alert})
}
