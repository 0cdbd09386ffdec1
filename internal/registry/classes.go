package registry

import (
	"fmt"
	"sort"
	"time"

	"nasmon/internal/models"
)

// OneShot is the optional imperative lifecycle of an alert class. A class
// with a non-nil OneShot can be created and deleted through the one-shot
// API instead of being produced by a scheduled source.
type OneShot struct {
	// DeletedAutomatically=false means a user dismissal deletes the alert
	// outright instead of flagging it.
	DeletedAutomatically bool

	// ExpiresAfter > 0 makes the engine garbage-collect alerts whose
	// last occurrence is older than the duration.
	ExpiresAfter time.Duration

	// Create builds the alert for oneshot_create. A nil alert is a no-op.
	Create func(args map[string]interface{}) (*models.Alert, error)

	// Delete picks which of the class's live alerts survive a
	// oneshot_delete call. It returns the alerts to keep.
	Delete func(related []models.Alert, query map[string]interface{}) []models.Alert

	// Load, when set, lets the class mutate or coalesce its rows during
	// bootstrap rehydration. It returns the alerts to keep live.
	Load func(existing []models.Alert) []models.Alert
}

// AlertClass is the static description of a kind of alert.
type AlertClass struct {
	Name     string
	Category string
	Level    models.Level
	Products []string
	Title    string
	Text     string // template rendered against alert args, {name} placeholders

	ProactiveSupport           bool
	ProactiveSupportNotifyGone bool
	ExcludeFromList            bool

	OneShot *OneShot

	// Dismiss, when set, lets the class decide a whole group's fate when
	// one of its alerts is dismissed. It returns the alerts to keep.
	Dismiss func(related []models.Alert, target models.Alert) []models.Alert
}

func (c *AlertClass) IsOneShot() bool {
	return c.OneShot != nil
}

// Format renders the class text template for an args payload.
func (c *AlertClass) Format(args map[string]interface{}) string {
	return models.FormatText(c.Text, args)
}

// ClassRegistry is the process-wide catalog of alert classes.
type ClassRegistry struct {
	classes map[string]*AlertClass
}

func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[string]*AlertClass)}
}

func (r *ClassRegistry) Register(c *AlertClass) error {
	if c.Name == "" {
		return fmt.Errorf("alert class has no name")
	}
	if _, exists := r.classes[c.Name]; exists {
		return fmt.Errorf("alert class %q registered twice", c.Name)
	}
	if c.IsOneShot() && (c.OneShot.Create == nil || c.OneShot.Delete == nil) {
		return fmt.Errorf("one-shot alert class %q must define create and delete", c.Name)
	}
	r.classes[c.Name] = c
	return nil
}

func (r *ClassRegistry) MustRegister(c *AlertClass) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

func (r *ClassRegistry) Get(name string) (*AlertClass, bool) {
	c, ok := r.classes[name]
	return c, ok
}

func (r *ClassRegistry) All() []*AlertClass {
	out := make([]*AlertClass, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClassView and CategoryView are the list_categories serialization.
type ClassView struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Level string `json:"level"`
}

type CategoryView struct {
	Category string      `json:"category"`
	Classes  []ClassView `json:"classes"`
}

// Categories lists the catalog grouped by category for one product,
// hiding classes that are excluded from listing.
func (r *ClassRegistry) Categories(product string) []CategoryView {
	grouped := make(map[string][]ClassView)
	for _, c := range r.All() {
		if c.ExcludeFromList || !models.HasProduct(c.Products, product) {
			continue
		}
		grouped[c.Category] = append(grouped[c.Category], ClassView{
			Name:  c.Name,
			Title: c.Title,
			Level: c.Level.String(),
		})
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]CategoryView, 0, len(names))
	for _, name := range names {
		out = append(out, CategoryView{Category: name, Classes: grouped[name]})
	}
	return out
}
