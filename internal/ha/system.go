package ha

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// System states and HA roles.
const (
	StateReady    = "READY"
	StateBooting  = "BOOTING"
	StateShutdown = "SHUTTING_DOWN"

	StatusMaster = "MASTER"
	StatusBackup = "BACKUP"
	StatusSingle = "SINGLE"
)

// System reports the local controller's state to the engine gate and to
// the peer RPC handlers.
type System interface {
	State() string
	HAStatus() string
	FailoverInProgress() bool
	Version() string
	Uptime() (time.Duration, error)
}

// LocalSystem is the live implementation. State transitions are pushed
// in by the boot and failover subsystems.
type LocalSystem struct {
	mu       sync.RWMutex
	version  string
	state    string
	status   string
	failover bool
}

func NewLocalSystem(version string, licensed bool) *LocalSystem {
	status := StatusSingle
	if licensed {
		status = StatusMaster
	}
	return &LocalSystem{
		version: version,
		state:   StateBooting,
		status:  status,
	}
}

func (s *LocalSystem) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *LocalSystem) HAStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *LocalSystem) FailoverInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failover
}

func (s *LocalSystem) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *LocalSystem) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *LocalSystem) SetHAStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *LocalSystem) SetFailover(inProgress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failover = inProgress
}

func (s *LocalSystem) Uptime() (time.Duration, error) {
	seconds, err := host.Uptime()
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
