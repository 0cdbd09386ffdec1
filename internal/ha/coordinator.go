package ha

import (
	"context"
	"sync"
	"time"

	"nasmon/internal/clock"
	"nasmon/internal/models"

	"github.com/sirupsen/logrus"
)

// BootQuiescence is how long a controller must be up before failover
// related checks and stable-peer sources are allowed again.
const BootQuiescence = 900 * time.Second

// TickContext is the HA picture the coordinator computes once per engine
// tick. All per-source decisions read from it.
type TickContext struct {
	ThisNode  string
	OtherNode string

	// CanRunOnPeer holds when the peer confirmed, within the RPC
	// timeout: same version, state READY, status BACKUP.
	CanRunOnPeer bool

	// StablePeer holds when the peer uptime exceeds BootQuiescence.
	StablePeer bool

	// FailoverAlertsBlocked suppresses failover_related sources.
	FailoverAlertsBlocked bool
}

// Coordinator owns node identity and all peer interaction.
type Coordinator struct {
	licensed bool
	node     string
	peer     PeerClient
	system   System
	clk      clock.Clock
	log      *logrus.Logger

	mu                       sync.Mutex
	blockFailoverAlertsUntil time.Time
}

func NewCoordinator(licensed bool, node string, peer PeerClient, system System, clk clock.Clock, log *logrus.Logger) *Coordinator {
	if node != models.NodeB {
		node = models.NodeA
	}
	return &Coordinator{
		licensed: licensed,
		node:     node,
		peer:     peer,
		system:   system,
		clk:      clk,
		log:      log,
	}
}

func (c *Coordinator) Licensed() bool {
	return c.licensed
}

func (c *Coordinator) ThisNode() string {
	if !c.licensed {
		return models.NodeA
	}
	return c.node
}

func (c *Coordinator) OtherNode() string {
	if c.ThisNode() == models.NodeA {
		return models.NodeB
	}
	return models.NodeA
}

// BlockFailoverAlerts starts the sticky boot-quiescence window. The
// failover subsystem calls this right before it makes noise.
func (c *Coordinator) BlockFailoverAlerts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockFailoverAlertsUntil = c.clk.Now().Add(BootQuiescence)
	c.log.WithFields(logrus.Fields{"until": c.blockFailoverAlertsUntil}).
		Info("Failover-related alert sources blocked")
}

func (c *Coordinator) failoverAlertsBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clk.Now().Before(c.blockFailoverAlertsUntil)
}

// Context computes the per-tick HA picture. Any peer RPC failure or
// mismatch disables peer checks for this tick only.
func (c *Coordinator) Context(ctx context.Context) TickContext {
	tc := TickContext{
		ThisNode:              c.ThisNode(),
		OtherNode:             c.OtherNode(),
		FailoverAlertsBlocked: c.failoverAlertsBlocked(),
	}

	if !c.licensed || c.peer == nil {
		return tc
	}

	version, err := c.peer.Version(ctx)
	if err != nil || version != c.system.Version() {
		if err != nil {
			c.log.Debugf("Peer version check failed: %v", err)
		}
		return tc
	}

	state, err := c.peer.State(ctx)
	if err != nil || state != StateReady {
		return tc
	}

	status, err := c.peer.Status(ctx)
	if err != nil || status != StatusBackup {
		return tc
	}

	tc.CanRunOnPeer = true

	uptime, err := c.peer.Uptime(ctx)
	if err == nil && uptime > BootQuiescence {
		tc.StablePeer = true
	}

	return tc
}

// RunSourceOnPeer runs one source on the peer and tags the results with
// the peer's node id. Transport failures come back as ErrPeerUnavailable.
func (c *Coordinator) RunSourceOnPeer(ctx context.Context, name string) ([]models.Alert, error) {
	alerts, err := c.peer.RunSource(ctx, name)
	if err != nil {
		return nil, err
	}

	node := c.OtherNode()
	for i := range alerts {
		alerts[i].Node = node
	}
	return alerts, nil
}
