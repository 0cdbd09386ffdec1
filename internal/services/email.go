package services

import (
	"fmt"

	"nasmon/internal/mail"
	"nasmon/internal/models"
)

// EmailSender mails the alert digest to a configured address.
type EmailSender struct {
	to     string
	mailer mail.Mailer
}

func emailFactory() *Factory {
	return &Factory{
		Type: "email",
		Attributes: map[string]AttrSpec{
			"to": {Required: true},
		},
		Build: func(svc models.AlertService, deps Deps) (Sender, error) {
			return &EmailSender{
				to:     stringAttr(svc.Attributes, "to"),
				mailer: deps.Mailer,
			}, nil
		},
	}
}

func (s *EmailSender) Send(alerts, gone, added []models.AlertView) error {
	subject := fmt.Sprintf("Storage alerts: %d new, %d cleared", len(added), len(gone))

	return s.mailer.Send(models.MailMessage{
		To:      []string{s.to},
		Subject: subject,
		Body:    formatDigest(alerts, gone, added),
	})
}
