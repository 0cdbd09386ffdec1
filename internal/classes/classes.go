package classes

import (
	"fmt"
	"time"

	"nasmon/internal/models"
	"nasmon/internal/registry"
)

// Built-in class names.
const (
	Test                        = "Test"
	SourceRunFailed             = "AlertSourceRunFailed"
	SourceRunFailedOnBackupNode = "AlertSourceRunFailedOnBackupNode"
	AutomaticAlertFailed        = "AutomaticAlertFailed"
	VolumeUsage                 = "VolumeUsage"
	VolumeUsageCritical         = "VolumeUsageCritical"
	SwapUsage                   = "SwapUsage"
	CloudSyncTaskFailed         = "CloudSyncTaskFailed"
)

var allProducts = []string{models.ProductCore, models.ProductEnterprise}

// Register installs the built-in catalog. Duplicate names are a hard
// error at load.
func Register(r *registry.ClassRegistry) error {
	builtin := []*registry.AlertClass{
		{
			Name:     Test,
			Category: "System",
			Level:    models.LevelInfo,
			Products: allProducts,
			Title:    "Test alert",
			Text:     "Test alert issued at {datetime}",
		},
		{
			Name:            SourceRunFailed,
			Category:        "System",
			Level:           models.LevelCritical,
			Products:        allProducts,
			Title:           "Alert check failed",
			Text:            "Alert source {source} failed: {error}",
			ExcludeFromList: true,
		},
		{
			Name:            SourceRunFailedOnBackupNode,
			Category:        "System",
			Level:           models.LevelCritical,
			Products:        []string{models.ProductEnterprise},
			Title:           "Alert check failed on standby controller",
			Text:            "Alert source {source} failed on the standby controller: {error}",
			ExcludeFromList: true,
		},
		{
			Name:     AutomaticAlertFailed,
			Category: "Support",
			Level:    models.LevelWarning,
			Products: []string{models.ProductEnterprise},
			Title:    "Failed to open automatic support case",
			Text:     "Creating an automatic support case failed: {error}. Original message: {message}",
			OneShot:  simpleOneShot(nil, false, 0),
		},
		{
			Name:     VolumeUsage,
			Category: "Storage",
			Level:    models.LevelWarning,
			Products: allProducts,
			Title:    "Volume space usage",
			Text:     "Volume {volume} usage is {used_percent}%",
		},
		{
			Name:     VolumeUsageCritical,
			Category: "Storage",
			Level:    models.LevelCritical,
			Products: allProducts,
			Title:    "Volume almost full",
			Text:     "Volume {volume} usage is {used_percent}%",

			ProactiveSupport:           true,
			ProactiveSupportNotifyGone: true,
		},
		{
			Name:     SwapUsage,
			Category: "System",
			Level:    models.LevelWarning,
			Products: allProducts,
			Title:    "Swap space usage",
			Text:     "Swap usage is {used_percent}%",
		},
		{
			Name:     CloudSyncTaskFailed,
			Category: "Tasks",
			Level:    models.LevelError,
			Products: allProducts,
			Title:    "Cloud sync task failed",
			Text:     "Cloud sync task {task_id} failed",
			OneShot:  simpleOneShot([]string{"task_id"}, true, 24*time.Hour),
		},
	}

	for _, c := range builtin {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// simpleOneShot builds the common one-shot lifecycle: the key is derived
// from keyFields (or the whole args payload when nil), and delete keeps
// every alert whose args do not match the query.
func simpleOneShot(keyFields []string, deletedAutomatically bool, expiresAfter time.Duration) *registry.OneShot {
	return &registry.OneShot{
		DeletedAutomatically: deletedAutomatically,
		ExpiresAfter:         expiresAfter,
		Create: func(args map[string]interface{}) (*models.Alert, error) {
			key := ""
			if len(keyFields) > 0 {
				for _, field := range keyFields {
					value, ok := args[field]
					if !ok {
						return nil, models.NewValidationError("args."+field, "required")
					}
					key += fmt.Sprintf("%v\x00", value)
				}
			} else {
				key = models.DefaultKey(args)
			}
			return &models.Alert{Key: key, Args: args}, nil
		},
		Delete: func(related []models.Alert, query map[string]interface{}) []models.Alert {
			var kept []models.Alert
			for _, alert := range related {
				if !argsMatch(alert.Args, query) {
					kept = append(kept, alert)
				}
			}
			return kept
		},
	}
}

// argsMatch reports whether every query field equals the corresponding
// args field. Values are compared through their string rendering so JSON
// number decoding does not matter. An empty query matches everything.
func argsMatch(args, query map[string]interface{}) bool {
	for key, want := range query {
		got, ok := args[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
