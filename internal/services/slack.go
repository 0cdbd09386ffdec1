package services

import (
	"fmt"

	"nasmon/internal/config"
	"nasmon/internal/models"

	"github.com/slack-go/slack"
)

// SlackSender posts alert digests to one Slack channel.
type SlackSender struct {
	client  *slack.Client
	channel string
	breaker *CircuitBreaker
}

func slackFactory() *Factory {
	return &Factory{
		Type: "slack",
		Attributes: map[string]AttrSpec{
			"channel": {Required: true},
			"token":   {Required: false}, // falls back to SLACK_BOT_TOKEN
		},
		Build: func(svc models.AlertService, deps Deps) (Sender, error) {
			token := stringAttr(svc.Attributes, "token")
			if token == "" {
				token = config.GetSlackToken()
			}
			if token == "" {
				return nil, models.NewValidationError("attributes.token", "no slack token configured")
			}

			return &SlackSender{
				client:  slack.New(token),
				channel: stringAttr(svc.Attributes, "channel"),
				breaker: NewCircuitBreaker("slack:"+svc.Name, deps.Log),
			}, nil
		},
	}
}

func (s *SlackSender) Send(alerts, gone, added []models.AlertView) error {
	message := fmt.Sprintf("🚨 *Storage alerts changed*\n```%s```", formatDigest(alerts, gone, added))

	return s.breaker.Execute(func() error {
		_, _, err := s.client.PostMessage(s.channel, slack.MsgOptionText(message, false))
		if err != nil {
			return fmt.Errorf("could not send message to %s: %w", s.channel, err)
		}
		return nil
	})
}
