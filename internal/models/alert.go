package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of an alert class.
type Level int

const (
	LevelInfo Level = iota
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[Level]string{
	LevelInfo:     "INFO",
	LevelNotice:   "NOTICE",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func ParseLevel(name string) (Level, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown alert level %q", name)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// Policy names, in delivery-frequency order.
const (
	PolicyImmediately = "IMMEDIATELY"
	PolicyHourly      = "HOURLY"
	PolicyDaily       = "DAILY"
	PolicyNever       = "NEVER"
)

var PolicyNames = []string{PolicyImmediately, PolicyHourly, PolicyDaily, PolicyNever}

func ValidPolicy(name string) bool {
	for _, p := range PolicyNames {
		if p == name {
			return true
		}
	}
	return false
}

// Product tags.
const (
	ProductCore       = "CORE"
	ProductEnterprise = "ENTERPRISE"
)

func HasProduct(products []string, product string) bool {
	for _, p := range products {
		if p == product {
			return true
		}
	}
	return false
}

// Node identifiers for the two controllers.
const (
	NodeA = "A"
	NodeB = "B"
)

func NodeLabel(node string) string {
	switch node {
	case NodeA:
		return "Controller A"
	case NodeB:
		return "Controller B"
	default:
		return node
	}
}

// MailMessage is an immediate email payload attached to an alert.
// It is handed to the mailer verbatim when the alert is first dispatched.
type MailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Alert is one observation of an operator-visible condition. Identity is
// the (Node, Source, Class, Key) tuple; UUID is assigned on first
// observation and stable afterwards.
type Alert struct {
	UUID           uuid.UUID              `json:"uuid"`
	Node           string                 `json:"node"`
	Source         string                 `json:"source"` // empty for one-shot alerts
	Class          string                 `json:"klass"`
	Key            string                 `json:"key"`
	Args           map[string]interface{} `json:"args"`
	Datetime       time.Time              `json:"datetime"`
	LastOccurrence time.Time              `json:"last_occurrence"`
	Dismissed      bool                   `json:"dismissed"`
	Text           string                 `json:"text"`
	Mail           *MailMessage           `json:"mail,omitempty"`
}

// Identity collapses the identity tuple into a single comparable key.
func (a *Alert) Identity() string {
	return a.Node + "\x00" + a.Source + "\x00" + a.Class + "\x00" + a.Key
}

// FlapKey identifies an alert for intra-tick flap coalescing: the same
// (class, key) seen as both gone and new within one dispatch pass.
func (a *Alert) FlapKey() string {
	return a.Class + "\x00" + a.Key
}

// DefaultKey derives a stable key from the args payload. encoding/json
// sorts map keys, so equal args always hash equal.
func DefaultKey(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", args))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FormatText renders a class text template against args. Placeholders
// are written as {name}; unknown placeholders are left as-is.
func FormatText(tmpl string, args map[string]interface{}) string {
	out := tmpl
	for key, value := range args {
		out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return out
}

// AlertView is the serialized form returned by the admin API and carried
// on alert.list events.
type AlertView struct {
	ID             string                 `json:"id"`
	Node           string                 `json:"node"`
	Class          string                 `json:"klass"`
	Title          string                 `json:"title"`
	Level          string                 `json:"level"`
	Formatted      string                 `json:"formatted"`
	Args           map[string]interface{} `json:"args"`
	Datetime       time.Time              `json:"datetime"`
	LastOccurrence time.Time              `json:"last_occurrence"`
	Dismissed      bool                   `json:"dismissed"`
	OneShot        bool                   `json:"one_shot"`
}
