package ha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"nasmon/internal/models"
)

// ErrPeerUnavailable classifies transport-level peer failures (network
// errors, peer alert checker not up, peer overloaded). These are
// absorbed into an empty peer result; any other RPC error is a real
// failure on the peer.
var ErrPeerUnavailable = errors.New("peer unavailable")

// PeerClient is the RPC port to the other controller's alertd.
type PeerClient interface {
	Version(ctx context.Context) (string, error)
	State(ctx context.Context) (string, error)
	Status(ctx context.Context) (string, error)
	Uptime(ctx context.Context) (time.Duration, error)
	RunSource(ctx context.Context, name string) ([]models.Alert, error)
}

// HTTPPeerClient calls the peer over its admin HTTP API with a short
// connect timeout so a dead peer never stalls a tick.
type HTTPPeerClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPeerClient(baseURL string) *HTTPPeerClient {
	return &HTTPPeerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *HTTPPeerClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPPeerClient) post(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPPeerClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
		}
		// url.Error wrapping dial failures and the like
		return fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: peer returned %s", ErrPeerUnavailable, resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("peer RPC failed: %s: %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPPeerClient) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/api/v1/peer/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *HTTPPeerClient) State(ctx context.Context) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := c.get(ctx, "/api/v1/peer/state", &out); err != nil {
		return "", err
	}
	return out.State, nil
}

func (c *HTTPPeerClient) Status(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/v1/peer/status", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPPeerClient) Uptime(ctx context.Context) (time.Duration, error) {
	var out struct {
		UptimeSeconds int64 `json:"uptime_seconds"`
	}
	if err := c.get(ctx, "/api/v1/peer/uptime", &out); err != nil {
		return 0, err
	}
	return time.Duration(out.UptimeSeconds) * time.Second, nil
}

func (c *HTTPPeerClient) RunSource(ctx context.Context, name string) ([]models.Alert, error) {
	var out struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := c.post(ctx, "/api/v1/peer/run_source/"+name, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}
