package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdsChanged bool
	NewThresholds     ThresholdsConfig

	SchedulerChanged bool
	NewScheduler     SchedulerConfig

	PrayerChanged bool
	NewPrayer     PrayerConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without a restart — provider
// and storage DSN changes require reconnecting clients and are intentionally
// excluded.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Thresholds != new.Thresholds {
		d.ThresholdsChanged = true
		d.NewThresholds = new.Thresholds
	}

	if old.Scheduler != new.Scheduler {
		d.SchedulerChanged = true
		d.NewScheduler = new.Scheduler
	}

	if old.Prayer != new.Prayer {
		d.PrayerChanged = true
		d.NewPrayer = new.Prayer
	}

	return d
}
