package ha

import (
	"context"
	"errors"
	"testing"
	"time"

	"nasmon/internal/clock"
	"nasmon/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPeer struct {
	version string
	state   string
	status  string
	uptime  time.Duration
	err     error

	alerts []models.Alert
	runErr error
}

func (p *stubPeer) Version(ctx context.Context) (string, error) { return p.version, p.err }
func (p *stubPeer) State(ctx context.Context) (string, error)   { return p.state, p.err }
func (p *stubPeer) Status(ctx context.Context) (string, error)  { return p.status, p.err }
func (p *stubPeer) Uptime(ctx context.Context) (time.Duration, error) {
	return p.uptime, p.err
}
func (p *stubPeer) RunSource(ctx context.Context, name string) ([]models.Alert, error) {
	return p.alerts, p.runErr
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestCoordinator(peer PeerClient, clk clock.Clock) (*Coordinator, *LocalSystem) {
	system := NewLocalSystem("1.0", true)
	system.SetState(StateReady)
	return NewCoordinator(true, models.NodeA, peer, system, clk, quietLog()), system
}

func TestContextWithHealthyPeer(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	peer := &stubPeer{version: "1.0", state: StateReady, status: StatusBackup, uptime: 2 * BootQuiescence}
	c, _ := newTestCoordinator(peer, clk)

	tc := c.Context(context.Background())
	assert.Equal(t, models.NodeA, tc.ThisNode)
	assert.Equal(t, models.NodeB, tc.OtherNode)
	assert.True(t, tc.CanRunOnPeer)
	assert.True(t, tc.StablePeer)
	assert.False(t, tc.FailoverAlertsBlocked)
}

func TestContextDisablesPeerOnMismatch(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())

	cases := map[string]*stubPeer{
		"version skew":  {version: "2.0", state: StateReady, status: StatusBackup, uptime: 2 * BootQuiescence},
		"peer booting":  {version: "1.0", state: StateBooting, status: StatusBackup, uptime: 2 * BootQuiescence},
		"peer not back": {version: "1.0", state: StateReady, status: StatusMaster, uptime: 2 * BootQuiescence},
		"rpc failing":   {err: errors.New("connection refused")},
	}

	for name, peer := range cases {
		c, _ := newTestCoordinator(peer, clk)
		tc := c.Context(context.Background())
		assert.False(t, tc.CanRunOnPeer, name)
		assert.False(t, tc.StablePeer, name)
	}
}

func TestContextFreshlyBootedPeerIsNotStable(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	peer := &stubPeer{version: "1.0", state: StateReady, status: StatusBackup, uptime: BootQuiescence / 2}
	c, _ := newTestCoordinator(peer, clk)

	tc := c.Context(context.Background())
	assert.True(t, tc.CanRunOnPeer)
	assert.False(t, tc.StablePeer)
}

func TestUnlicensedCoordinatorIsAlwaysNodeA(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	system := NewLocalSystem("1.0", false)
	c := NewCoordinator(false, models.NodeB, nil, system, clk, quietLog())

	assert.Equal(t, models.NodeA, c.ThisNode())
	tc := c.Context(context.Background())
	assert.False(t, tc.CanRunOnPeer)
}

func TestBlockFailoverAlertsWindow(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	c, _ := newTestCoordinator(&stubPeer{err: errors.New("down")}, clk)

	assert.False(t, c.Context(context.Background()).FailoverAlertsBlocked)

	c.BlockFailoverAlerts()
	assert.True(t, c.Context(context.Background()).FailoverAlertsBlocked)

	clk.Advance(BootQuiescence - time.Second)
	assert.True(t, c.Context(context.Background()).FailoverAlertsBlocked)

	clk.Advance(2 * time.Second)
	assert.False(t, c.Context(context.Background()).FailoverAlertsBlocked)
}

func TestRunSourceOnPeerTagsNode(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	peer := &stubPeer{alerts: []models.Alert{{Class: "VolumeUsage", Key: "/vol1", Node: models.NodeA}}}
	c, _ := newTestCoordinator(peer, clk)

	alerts, err := c.RunSourceOnPeer(context.Background(), "volume_usage")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.NodeB, alerts[0].Node)

	peer.runErr = ErrPeerUnavailable
	_, err = c.RunSourceOnPeer(context.Background(), "volume_usage")
	assert.ErrorIs(t, err, ErrPeerUnavailable)
}
