package services

import (
	"fmt"
	"strings"

	"nasmon/internal/mail"
	"nasmon/internal/models"

	"github.com/sirupsen/logrus"
)

// Sender is a delivery channel instance. Send receives the full visible
// alert set plus the (gone, new) delta of one policy tick.
type Sender interface {
	Send(alerts, gone, added []models.AlertView) error
}

// Deps are the collaborators handed to factories when building senders.
type Deps struct {
	Mailer mail.Mailer
	Log    *logrus.Logger
}

// AttrSpec describes one attribute a service type accepts.
type AttrSpec struct {
	Required bool
}

// Factory builds senders for one service type tag.
type Factory struct {
	Type       string
	Attributes map[string]AttrSpec
	Build      func(svc models.AlertService, deps Deps) (Sender, error)
}

// ValidateAttributes checks required keys and strips unknown ones, so
// rows written by older releases keep loading after schema changes.
func (f *Factory) ValidateAttributes(attrs map[string]interface{}) (map[string]interface{}, error) {
	clean := make(map[string]interface{})
	for key, value := range attrs {
		if _, known := f.Attributes[key]; known {
			clean[key] = value
		}
	}
	for key, spec := range f.Attributes {
		if !spec.Required {
			continue
		}
		if value, ok := clean[key]; !ok || value == "" || value == nil {
			return nil, models.NewValidationError("attributes."+key, "required for service type %q", f.Type)
		}
	}
	return clean, nil
}

func stringAttr(attrs map[string]interface{}, key string) string {
	if value, ok := attrs[key].(string); ok {
		return value
	}
	return ""
}

// formatDigest renders the shared plaintext digest used by the email and
// slack channels.
func formatDigest(alerts, gone, added []models.AlertView) string {
	var b strings.Builder

	if len(added) > 0 {
		b.WriteString("New alerts:\n")
		for _, a := range added {
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", a.Level, a.Title, a.Node, a.Formatted)
		}
	}
	if len(gone) > 0 {
		b.WriteString("Cleared alerts:\n")
		for _, a := range gone {
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", a.Level, a.Title, a.Node, a.Formatted)
		}
	}
	fmt.Fprintf(&b, "Current alerts: %d\n", len(alerts))

	return b.String()
}
