package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nasmon/internal/models"
)

// WebhookSender POSTs the alert delta as JSON to a configured URL.
type WebhookSender struct {
	url        string
	authHeader string
	client     *http.Client
	breaker    *CircuitBreaker
}

func webhookFactory() *Factory {
	return &Factory{
		Type: "webhook",
		Attributes: map[string]AttrSpec{
			"url":         {Required: true},
			"auth_header": {Required: false},
		},
		Build: func(svc models.AlertService, deps Deps) (Sender, error) {
			return &WebhookSender{
				url:        stringAttr(svc.Attributes, "url"),
				authHeader: stringAttr(svc.Attributes, "auth_header"),
				client:     &http.Client{Timeout: 10 * time.Second},
				breaker:    NewCircuitBreaker("webhook:"+svc.Name, deps.Log),
			}, nil
		},
	}
}

func (s *WebhookSender) Send(alerts, gone, added []models.AlertView) error {
	payload := map[string]interface{}{
		"alerts": alerts,
		"gone":   gone,
		"new":    added,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal webhook payload: %w", err)
	}

	return s.breaker.Execute(func() error {
		req, err := http.NewRequest("POST", s.url, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("could not create HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.authHeader != "" {
			req.Header.Set("Authorization", s.authHeader)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("could not send webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("unexpected webhook response: %s: %s", resp.Status, string(body))
		}

		return nil
	})
}
