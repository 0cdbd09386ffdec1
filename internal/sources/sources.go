// Package sources holds the built-in scheduled alert sources. Each one
// samples local system state through gopsutil and reports threshold
// breaches as alerts.
package sources

import (
	"context"
	"fmt"

	"nasmon/internal/classes"
	"nasmon/internal/config"
	"nasmon/internal/models"
	"nasmon/internal/registry"
	"nasmon/internal/schedule"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage thresholds, in percent.
const (
	volumeWarning  = 80.0
	volumeCritical = 95.0
	swapCritical   = 90.0
)

// Register installs the built-in sources.
func Register(r *registry.SourceRegistry, cfg config.ChecksConfig) error {
	all := []*registry.Source{
		{
			Name:            "volume_usage",
			Products:        []string{models.ProductCore, models.ProductEnterprise},
			Schedule:        schedule.EveryMinutes(5),
			RunOnBackupNode: true,
			Check:           volumeUsageCheck(cfg.Mountpoints),
		},
		{
			Name:            "swap_usage",
			Products:        []string{models.ProductCore, models.ProductEnterprise},
			Schedule:        schedule.EveryMinutes(5),
			RunOnBackupNode: true,
			Check:           swapUsageCheck,
		},
	}

	for _, s := range all {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// volumeUsageCheck samples the configured mountpoints, or every mounted
// partition when none are configured.
func volumeUsageCheck(mountpoints []string) func(ctx context.Context) ([]models.Alert, error) {
	return func(ctx context.Context) ([]models.Alert, error) {
		targets := mountpoints
		if len(targets) == 0 {
			partitions, err := disk.PartitionsWithContext(ctx, false)
			if err != nil {
				return nil, fmt.Errorf("could not list partitions: %w", err)
			}
			for _, p := range partitions {
				targets = append(targets, p.Mountpoint)
			}
		}

		var alerts []models.Alert
		for _, mountpoint := range targets {
			usage, err := disk.UsageWithContext(ctx, mountpoint)
			if err != nil {
				// A vanished mountpoint is not a source failure.
				continue
			}

			args := map[string]interface{}{
				"volume":       mountpoint,
				"used_percent": fmt.Sprintf("%.1f", usage.UsedPercent),
			}
			switch {
			case usage.UsedPercent >= volumeCritical:
				alerts = append(alerts, models.Alert{
					Class: classes.VolumeUsageCritical,
					Key:   mountpoint,
					Args:  args,
				})
			case usage.UsedPercent >= volumeWarning:
				alerts = append(alerts, models.Alert{
					Class: classes.VolumeUsage,
					Key:   mountpoint,
					Args:  args,
				})
			}
		}
		return alerts, nil
	}
}

func swapUsageCheck(ctx context.Context) ([]models.Alert, error) {
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read swap stats: %w", err)
	}
	if swap.Total == 0 {
		return nil, nil
	}

	if swap.UsedPercent > swapCritical {
		return []models.Alert{{
			Class: classes.SwapUsage,
			Key:   "swap",
			Args: map[string]interface{}{
				"used_percent": fmt.Sprintf("%.1f", swap.UsedPercent),
			},
		}}, nil
	}
	return nil, nil
}
