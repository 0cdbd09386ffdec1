package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nasmon/internal/mail"
	"nasmon/internal/models"
	"nasmon/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps() Deps {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return Deps{Mailer: mail.NewMemoryMailer(), Log: log}
}

func testView(formatted string) models.AlertView {
	return models.AlertView{
		ID:        "0b0b0b0b-0000-0000-0000-000000000001",
		Node:      "Controller A",
		Class:     "VolumeUsage",
		Title:     "Volume space usage",
		Level:     "WARNING",
		Formatted: formatted,
		Datetime:  time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}
}

func TestValidateAttributes(t *testing.T) {
	f := webhookFactory()

	clean, err := f.ValidateAttributes(map[string]interface{}{
		"url":     "http://example.com/hook",
		"made_up": "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"url": "http://example.com/hook"}, clean)

	_, err = f.ValidateAttributes(map[string]interface{}{"auth_header": "Bearer x"})
	verr, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "attributes.url", verr.Field)
}

func TestManagerCreateValidates(t *testing.T) {
	m := NewManager(repository.NewMemoryServiceStore(), testDeps())
	ctx := context.Background()

	_, err := m.Create(ctx, models.AlertService{Name: "x", Type: "carrier_pigeon"})
	_, ok := models.AsValidationError(err)
	assert.True(t, ok)

	_, err = m.Create(ctx, models.AlertService{Type: "webhook",
		Attributes: map[string]interface{}{"url": "http://example.com"}})
	verr, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "name", verr.Field)

	created, err := m.Create(ctx, models.AlertService{
		Name: "hook", Type: "webhook", Enabled: true,
		Attributes: map[string]interface{}{"url": "http://example.com"},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	enabled := m.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "hook", enabled[0].Config.Name)
}

func TestManagerLoadDropsBrokenRows(t *testing.T) {
	store := repository.NewMemoryServiceStore()
	ctx := context.Background()

	// Rows written directly to the store, as by an older release.
	_, err := store.Create(ctx, models.AlertService{Name: "ok", Type: "webhook", Enabled: true,
		Attributes: map[string]interface{}{"url": "http://example.com", "legacy_field": "x"}})
	require.NoError(t, err)
	_, err = store.Create(ctx, models.AlertService{Name: "gone type", Type: "pager", Enabled: true})
	require.NoError(t, err)
	_, err = store.Create(ctx, models.AlertService{Name: "broken", Type: "webhook", Enabled: true})
	require.NoError(t, err)

	m := NewManager(store, testDeps())
	require.NoError(t, m.Load(ctx))

	enabled := m.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "ok", enabled[0].Config.Name)
	_, hasLegacy := enabled[0].Config.Attributes["legacy_field"]
	assert.False(t, hasLegacy, "unknown attributes are stripped")
}

func TestManagerRegisterFactoryRejectsDuplicates(t *testing.T) {
	m := NewManager(repository.NewMemoryServiceStore(), testDeps())

	assert.Error(t, m.RegisterFactory(&Factory{Type: "webhook"}))
	assert.NoError(t, m.RegisterFactory(&Factory{Type: "sms"}))
}

func TestWebhookSender(t *testing.T) {
	var payload map[string][]models.AlertView
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(200)
	}))
	defer srv.Close()

	f := webhookFactory()
	sender, err := f.Build(models.AlertService{
		Name: "hook",
		Attributes: map[string]interface{}{
			"url":         srv.URL,
			"auth_header": "Bearer token",
		},
	}, testDeps())
	require.NoError(t, err)

	view := testView("Volume /vol1 usage is 85.0%")
	require.NoError(t, sender.Send([]models.AlertView{view}, nil, []models.AlertView{view}))

	assert.Equal(t, "Bearer token", auth)
	require.Len(t, payload["new"], 1)
	assert.Equal(t, view.ID, payload["new"][0].ID)
	assert.Len(t, payload["alerts"], 1)
	assert.Empty(t, payload["gone"])
}

func TestEmailSenderUsesMailer(t *testing.T) {
	deps := testDeps()
	mailer := deps.Mailer.(*mail.MemoryMailer)

	f := emailFactory()
	sender, err := f.Build(models.AlertService{
		Name:       "mail",
		Attributes: map[string]interface{}{"to": "ops@example.com"},
	}, deps)
	require.NoError(t, err)

	view := testView("Volume /vol1 usage is 85.0%")
	require.NoError(t, sender.Send([]models.AlertView{view}, nil, []models.AlertView{view}))

	require.Len(t, mailer.Messages, 1)
	msg := mailer.Messages[0]
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "1 new")
	assert.Contains(t, msg.Body, "New alerts:")
	assert.Contains(t, msg.Body, "/vol1")
}

func TestFormatDigest(t *testing.T) {
	view := testView("Volume /vol1 usage is 85.0%")
	out := formatDigest([]models.AlertView{view}, []models.AlertView{view}, nil)

	assert.Contains(t, out, "Cleared alerts:")
	assert.NotContains(t, out, "New alerts:")
	assert.Contains(t, out, "[WARNING] Volume space usage (Controller A)")
	assert.Contains(t, out, "Current alerts: 1")
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cb := NewCircuitBreaker("test", log)

	boom := func() error { return assert.AnError }
	for i := 0; i < breakerFailureThreshold; i++ {
		assert.ErrorIs(t, cb.Execute(boom), assert.AnError)
	}

	// Breaker is open now: calls are rejected without running fn.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	require.Error(t, err)
	assert.False(t, ran)
	assert.Contains(t, err.Error(), "circuit breaker open")
}
