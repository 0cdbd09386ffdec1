package models

// AlertService is a configured delivery channel: an instance of a
// service factory type with validated attributes and a level threshold.
type AlertService struct {
	ID         int64                  `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
	Enabled    bool                   `json:"enabled"`
	Level      Level                  `json:"level"`
}

// ClassConfig is the per-class persisted override of level, policy and
// proactive support. Zero values mean "no override".
type ClassConfig struct {
	Class            string `json:"klass"`
	Level            *Level `json:"level,omitempty"`
	Policy           string `json:"policy,omitempty"`
	ProactiveSupport *bool  `json:"proactive_support,omitempty"`
}
