package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fixed fields for automatic support cases.
const (
	Category    = "Hardware"
	Criticality = "Loss of Functionality"
	Environment = "Production"

	contactName  = "Automatic Alert"
	contactEmail = "auto-support@nasmon.local"
)

// Ticket is one automatic support case.
type Ticket struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	Category     string `json:"category"`
	Criticality  string `json:"criticality"`
	Environment  string `json:"environment"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	Serial       string `json:"serial"`
}

// New builds a ticket with the fixed field set for a serial number.
func New(serial, body string) Ticket {
	return Ticket{
		Title:        fmt.Sprintf("Automatic alert (%s)", serial),
		Body:         body,
		Category:     Category,
		Criticality:  Criticality,
		Environment:  Environment,
		ContactName:  contactName,
		ContactEmail: contactEmail,
		Serial:       serial,
	}
}

// Client opens support cases.
type Client interface {
	Open(ctx context.Context, t Ticket) error
}

// HTTPClient posts tickets to the configured support endpoint.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Open(ctx context.Context, t Ticket) error {
	jsonData, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("could not marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("could not create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected response from support endpoint: %s: %s", resp.Status, string(body))
	}

	return nil
}

// MemoryClient records tickets in memory; used in tests. Err, when set,
// makes every Open fail.
type MemoryClient struct {
	mu      sync.Mutex
	Tickets []Ticket
	Err     error
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

func (c *MemoryClient) Open(ctx context.Context, t Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Tickets = append(c.Tickets, t)
	return nil
}

// HTMLToText flattens simple HTML into plain text: block and break tags
// become newlines, all other tags are dropped.
func HTMLToText(in string) string {
	var out strings.Builder
	inTag := false
	var tag strings.Builder

	for _, r := range in {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			fields := strings.Fields(tag.String())
			if len(fields) == 0 {
				continue
			}
			switch strings.ToLower(strings.TrimSuffix(fields[0], "/")) {
			case "br", "p", "/p", "div", "/div", "li", "/li", "tr", "/tr":
				out.WriteByte('\n')
			}
		case inTag:
			tag.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}

	// collapse runs of blank lines left behind by nested block tags
	lines := strings.Split(out.String(), "\n")
	var kept []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, trimmed)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
