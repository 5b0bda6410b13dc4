package config_test

import (
	"testing"

	"github.com/khazna/khazna/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Thresholds: config.ThresholdsConfig{SelfRAG: 0.3},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.ThresholdsChanged || d.SchedulerChanged || d.PrayerChanged {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	newCfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, newCfg)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_ThresholdsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Thresholds: config.ThresholdsConfig{SelfRAG: 0.3, FuzzyMatch: 0.82}}
	newCfg := &config.Config{Thresholds: config.ThresholdsConfig{SelfRAG: 0.7, FuzzyMatch: 0.82}}

	d := config.Diff(old, newCfg)
	if !d.ThresholdsChanged {
		t.Error("expected ThresholdsChanged=true")
	}
	if d.NewThresholds.SelfRAG != 0.7 {
		t.Errorf("expected NewThresholds.SelfRAG=0.7, got %.2f", d.NewThresholds.SelfRAG)
	}
	if d.SchedulerChanged || d.PrayerChanged {
		t.Error("expected only thresholds to be reported as changed")
	}
}

func TestDiff_SchedulerChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Scheduler: config.SchedulerConfig{MorningHour: 7}}
	newCfg := &config.Config{Scheduler: config.SchedulerConfig{MorningHour: 8}}

	d := config.Diff(old, newCfg)
	if !d.SchedulerChanged {
		t.Error("expected SchedulerChanged=true")
	}
	if d.NewScheduler.MorningHour != 8 {
		t.Errorf("expected NewScheduler.MorningHour=8, got %d", d.NewScheduler.MorningHour)
	}
}

func TestDiff_PrayerChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Prayer: config.PrayerConfig{City: "Riyadh"}}
	newCfg := &config.Config{Prayer: config.PrayerConfig{City: "Jeddah"}}

	d := config.Diff(old, newCfg)
	if !d.PrayerChanged {
		t.Error("expected PrayerChanged=true")
	}
	if d.NewPrayer.City != "Jeddah" {
		t.Errorf("expected NewPrayer.City=Jeddah, got %q", d.NewPrayer.City)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Thresholds: config.ThresholdsConfig{SelfRAG: 0.3},
	}
	newCfg := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogWarn},
		Thresholds: config.ThresholdsConfig{SelfRAG: 0.75},
	}

	d := config.Diff(old, newCfg)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.ThresholdsChanged {
		t.Error("expected ThresholdsChanged=true")
	}
}
