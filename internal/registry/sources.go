package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"nasmon/internal/models"
	"nasmon/internal/schedule"
)

// ErrSourceUnavailable is returned by a source check to say "skip me this
// tick without touching my prior alerts". It does not produce a
// synthetic failure alert.
var ErrSourceUnavailable = errors.New("alert source unavailable")

// Source is a named scheduled check emitting zero or more raw alerts.
type Source struct {
	Name     string
	Products []string
	Schedule schedule.Schedule

	// FailoverRelated sources are suppressed during the boot-quiescence
	// window after a failover.
	FailoverRelated bool

	// RunOnBackupNode sources are additionally executed on the HA peer
	// when the peer is a healthy BACKUP of the same version.
	RunOnBackupNode bool

	// RequireStablePeer sources do not run until the peer has been up
	// longer than the boot-quiescence window.
	RequireStablePeer bool

	Check func(ctx context.Context) ([]models.Alert, error)
}

// SourceRegistry is the process-wide catalog of alert sources.
type SourceRegistry struct {
	sources map[string]*Source
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]*Source)}
}

func (r *SourceRegistry) Register(s *Source) error {
	if s.Name == "" {
		return fmt.Errorf("alert source has no name")
	}
	if _, exists := r.sources[s.Name]; exists {
		return fmt.Errorf("alert source %q registered twice", s.Name)
	}
	if s.Check == nil || s.Schedule == nil {
		return fmt.Errorf("alert source %q must define check and schedule", s.Name)
	}
	r.sources[s.Name] = s
	return nil
}

func (r *SourceRegistry) MustRegister(s *Source) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

func (r *SourceRegistry) Get(name string) (*Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

func (r *SourceRegistry) All() []*Source {
	out := make([]*Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
