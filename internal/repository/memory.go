package repository

import (
	"context"
	"fmt"
	"sync"

	"nasmon/internal/models"
)

// MemoryAlertStore is an in-memory AlertStore used in tests and on
// nodes that must not touch the database (HA BACKUP).
type MemoryAlertStore struct {
	mu     sync.Mutex
	alerts []models.Alert

	ReplaceCalls int
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{}
}

func (s *MemoryAlertStore) LoadAll(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

func (s *MemoryAlertStore) ReplaceAll(ctx context.Context, alerts []models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make([]models.Alert, len(alerts))
	copy(s.alerts, alerts)
	s.ReplaceCalls++
	return nil
}

func (s *MemoryAlertStore) Insert(ctx context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// MemoryServiceStore is an in-memory ServiceStore for tests.
type MemoryServiceStore struct {
	mu       sync.Mutex
	nextID   int64
	services map[int64]models.AlertService
}

func NewMemoryServiceStore() *MemoryServiceStore {
	return &MemoryServiceStore{nextID: 1, services: make(map[int64]models.AlertService)}
}

func (s *MemoryServiceStore) List(ctx context.Context) ([]models.AlertService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AlertService, 0, len(s.services))
	for id := int64(1); id < s.nextID; id++ {
		if svc, ok := s.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *MemoryServiceStore) Get(ctx context.Context, id int64) (*models.AlertService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("alert service %d not found", id)
	}
	return &svc, nil
}

func (s *MemoryServiceStore) Create(ctx context.Context, svc models.AlertService) (models.AlertService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = s.nextID
	s.nextID++
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *MemoryServiceStore) Update(ctx context.Context, svc models.AlertService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; !ok {
		return fmt.Errorf("alert service %d not found", svc.ID)
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *MemoryServiceStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return fmt.Errorf("alert service %d not found", id)
	}
	delete(s.services, id)
	return nil
}

// MemoryClassConfigStore is an in-memory ClassConfigStore for tests.
type MemoryClassConfigStore struct {
	mu      sync.Mutex
	configs map[string]models.ClassConfig
}

func NewMemoryClassConfigStore() *MemoryClassConfigStore {
	return &MemoryClassConfigStore{configs: make(map[string]models.ClassConfig)}
}

func (s *MemoryClassConfigStore) All(ctx context.Context) (map[string]models.ClassConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.ClassConfig, len(s.configs))
	for k, v := range s.configs {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryClassConfigStore) Upsert(ctx context.Context, cfg models.ClassConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Class] = cfg
	return nil
}
