package config_test

import (
	"strings"
	"testing"

	"github.com/khazna/khazna/internal/config"
)

func TestValidate_EntityResolutionThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  graph_dsn: postgres://x
thresholds:
  entity_resolution_person: 1.2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for entity_resolution_person out of range, got nil")
	}
	if !strings.Contains(err.Error(), "entity_resolution_person") {
		t.Errorf("error should mention entity_resolution_person, got: %v", err)
	}
}

func TestValidate_NegativeThreshold(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  graph_dsn: postgres://x
thresholds:
  entity_resolution_default: -0.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative entity_resolution_default, got nil")
	}
}

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  graph_dsn: postgres://x
thresholds:
  fuzzy_match: 2.0
  entity_resolution_person: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "fuzzy_match") {
		t.Errorf("error should mention fuzzy_match, got: %v", err)
	}
	if !strings.Contains(errStr, "entity_resolution_person") {
		t.Errorf("error should mention entity_resolution_person, got: %v", err)
	}
}

func TestValidate_UnknownProviderNameWarnsNotErrors(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  graph_dsn: postgres://x
providers:
  llm:
    name: some-obscure-provider
`
	// Unknown provider names only produce a warning log, not a validation error.
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for unknown (but plausible) provider name: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	llmNames := config.ValidProviderNames["llm"]
	if len(llmNames) == 0 {
		t.Fatal("ValidProviderNames[\"llm\"] should not be empty")
	}
	found := false
	for _, n := range llmNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"llm\"] should contain \"openai\"")
	}
	asrNames := config.ValidProviderNames["asr"]
	if len(asrNames) != 1 || asrNames[0] != "whisper" {
		t.Errorf("ValidProviderNames[\"asr\"]: got %v, want [whisper]", asrNames)
	}
}
