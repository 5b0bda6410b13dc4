package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
	"asr":        {"whisper"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in values that have a sane default when left unset.
func applyDefaults(cfg *Config) {
	if cfg.Storage.VectorDSN == "" {
		cfg.Storage.VectorDSN = cfg.Storage.GraphDSN
	}
	if cfg.Storage.EmbeddingDimensions == 0 {
		cfg.Storage.EmbeddingDimensions = 1536
	}
	if cfg.Thresholds.SelfRAG == 0 {
		cfg.Thresholds.SelfRAG = 0.3
	}
	if cfg.Thresholds.EntityResolutionPerson == 0 {
		cfg.Thresholds.EntityResolutionPerson = 0.85
	}
	if cfg.Thresholds.EntityResolutionDefault == 0 {
		cfg.Thresholds.EntityResolutionDefault = 0.80
	}
	if cfg.Thresholds.FuzzyMatch == 0 {
		cfg.Thresholds.FuzzyMatch = 0.82
	}
	if cfg.Thresholds.GraphMaxHops == 0 {
		cfg.Thresholds.GraphMaxHops = 3
	}
	if cfg.Memory.WorkingCap == 0 {
		cfg.Memory.WorkingCap = 40
	}
	if cfg.Memory.CompressionThreshold == 0 {
		cfg.Memory.CompressionThreshold = 15
	}
	if cfg.TimezoneOffsetHours == 0 {
		cfg.TimezoneOffsetHours = 3 // Asia/Riyadh
	}
	if cfg.Scheduler.ReminderCheckIntervalMinutes == 0 {
		cfg.Scheduler.ReminderCheckIntervalMinutes = 30
	}
	if cfg.Scheduler.SmartAlertIntervalHours == 0 {
		cfg.Scheduler.SmartAlertIntervalHours = 6
	}
	if cfg.Scheduler.RetentionDays == 0 {
		cfg.Scheduler.RetentionDays = 7
	}
	if cfg.Scheduler.StalledProjectDays == 0 {
		cfg.Scheduler.StalledProjectDays = 14
	}
	if cfg.Scheduler.OldDebtDays == 0 {
		cfg.Scheduler.OldDebtDays = 30
	}
	if cfg.Scheduler.EveningHour == 0 {
		cfg.Scheduler.EveningHour = 21
	}
	if cfg.Scheduler.MorningHour == 0 {
		cfg.Scheduler.MorningHour = 7
	}
	if cfg.Scheduler.NoonHour == 0 {
		cfg.Scheduler.NoonHour = 13
	}
	if cfg.Scheduler.BackupHour == 0 {
		cfg.Scheduler.BackupHour = 3
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; the orchestrator will not be able to generate responses")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Storage.GraphDSN == "" {
		errs = append(errs, errors.New("storage.graph_dsn is required"))
	}
	if cfg.Storage.RedisAddr == "" {
		slog.Warn("storage.redis_addr is empty; working memory will not be available")
	}

	if cfg.Thresholds.EntityResolutionPerson < 0 || cfg.Thresholds.EntityResolutionPerson > 1 {
		errs = append(errs, fmt.Errorf("thresholds.entity_resolution_person %.2f must be in [0,1]", cfg.Thresholds.EntityResolutionPerson))
	}
	if cfg.Thresholds.EntityResolutionDefault < 0 || cfg.Thresholds.EntityResolutionDefault > 1 {
		errs = append(errs, fmt.Errorf("thresholds.entity_resolution_default %.2f must be in [0,1]", cfg.Thresholds.EntityResolutionDefault))
	}
	if cfg.Thresholds.FuzzyMatch < 0 || cfg.Thresholds.FuzzyMatch > 1 {
		errs = append(errs, fmt.Errorf("thresholds.fuzzy_match %.2f must be in [0,1]", cfg.Thresholds.FuzzyMatch))
	}
	if cfg.Memory.CompressionThreshold > cfg.Memory.WorkingCap {
		errs = append(errs, fmt.Errorf("memory.compression_threshold (%d) must be <= memory.working_cap (%d)", cfg.Memory.CompressionThreshold, cfg.Memory.WorkingCap))
	}

	for _, h := range []struct{ name string; v int }{
		{"scheduler.morning_hour", cfg.Scheduler.MorningHour},
		{"scheduler.noon_hour", cfg.Scheduler.NoonHour},
		{"scheduler.evening_hour", cfg.Scheduler.EveningHour},
		{"scheduler.backup_hour", cfg.Scheduler.BackupHour},
		{"memory.daily_summary_hour", cfg.Memory.DailySummaryHour},
	} {
		if h.v < 0 || h.v > 23 {
			errs = append(errs, fmt.Errorf("%s %d must be in [0,23]", h.name, h.v))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
