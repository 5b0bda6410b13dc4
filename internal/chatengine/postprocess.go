package chatengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/ner"
	"github.com/khazna/khazna/internal/observe"
	"github.com/khazna/khazna/internal/tools"
)

// autoExtractAllowedTypes is AutoExtractSafeTypes rendered as a slice, the
// shape gateway.ExtractFacts expects.
var autoExtractAllowedTypes = []string{"Person", "Company", "Knowledge", "Location"}

// postProcess runs the steps spec §4.1 schedules after the client already
// has the reply: it never blocks the response, and its errors are logged,
// never surfaced to the user.
func (s *Service) postProcess(ctx context.Context, userMessage, reply, sessionID string, traces []ToolCallTrace) {
	logger := observe.Logger(ctx)

	if err := s.deps.Memory.AppendTurn(ctx, sessionID, memstore.Turn{Role: "user", Content: userMessage, Ts: time.Now()}); err != nil {
		logger.Error("post-process: append user turn failed", "error", err)
	}
	if err := s.deps.Memory.AppendTurn(ctx, sessionID, memstore.Turn{Role: "assistant", Content: reply, Ts: time.Now()}); err != nil {
		logger.Error("post-process: append assistant turn failed", "error", err)
	}

	wroteTool := false
	for _, t := range traces {
		if tools.WriteTools[t.Name] {
			wroteTool = true
			break
		}
	}

	if !wroteTool && tools.LooksBiographical(userMessage) {
		if err := s.autoExtract(ctx, userMessage); err != nil {
			logger.Error("post-process: auto-extraction failed", "error", err)
		}
	}

	count, err := s.deps.Memory.IncrementMessageCount(ctx, sessionID)
	if err != nil {
		logger.Error("post-process: increment message count failed", "error", err)
	} else {
		if count%int64(s.deps.DailySummaryInterval) == 0 {
			if err := s.refreshDailySummary(ctx, sessionID); err != nil {
				logger.Error("post-process: daily summary refresh failed", "error", err)
			}
		}
		if count%int64(s.deps.CoreMemoryInterval) == 0 {
			if err := s.refreshCoreMemory(ctx, sessionID); err != nil {
				logger.Error("post-process: core memory refresh failed", "error", err)
			}
		}
	}

	if err := s.autoDismissReminders(ctx, traces); err != nil {
		logger.Error("post-process: auto-dismiss reminders failed", "error", err)
	}
}

// autoExtract runs NER → translate → specialised extraction → upsert for a
// conversational message that matched the storable-content gate (spec
// §4.1 step 3). Entities outside AutoExtractSafeTypes are dropped before
// the upsert, so a stray mention of a project never spawns a phantom one.
func (s *Service) autoExtract(ctx context.Context, message string) error {
	var nerHints string
	if s.deps.NER != nil {
		hints, err := s.deps.NER.Extract(ctx, message)
		if err == nil {
			nerHints = ner.FormatHints(hints)
		}
	}

	english, err := s.deps.Gateway.Translate(ctx, message, "ar-en")
	if err != nil {
		return fmt.Errorf("chatengine: translate for extraction: %w", err)
	}
	if english == "" {
		english = message
	}

	raw, err := s.deps.Gateway.ExtractFacts(ctx, english, nerHints, autoExtractAllowedTypes)
	if err != nil {
		return fmt.Errorf("chatengine: extract facts: %w", err)
	}

	facts, err := graphsvc.ParseExtractedFacts(raw)
	if err != nil {
		return fmt.Errorf("chatengine: parse extracted facts: %w", err)
	}

	var safe []graphsvc.Fact
	for _, f := range facts {
		if tools.AutoExtractSafeTypes[f.Type] {
			safe = append(safe, f)
		}
	}
	if len(safe) == 0 {
		return nil
	}

	_, err = s.deps.Graph.UpsertFromFacts(ctx, safe, "")
	return err
}

// refreshDailySummary summarises today's working memory and records it
// under today's date (spec §4.1 step 4).
func (s *Service) refreshDailySummary(ctx context.Context, sessionID string) error {
	turns, err := s.deps.Memory.WorkingMemory(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	summary, err := s.deps.Gateway.Summarise(ctx, formatTurnsForSummary(turns), true)
	if err != nil {
		return err
	}
	today := time.Now().In(s.deps.Timezone).Format("2006-01-02")
	return s.deps.Memory.SetDailySummary(ctx, sessionID, today, summary)
}

// refreshCoreMemory summarises the recent conversation with the same
// Summarise call the daily summary uses and stores the prose result as the
// single core-memory preference "recent_pattern"; it does not split the
// summary into separate key→value preferences.
func (s *Service) refreshCoreMemory(ctx context.Context, sessionID string) error {
	turns, err := s.deps.Memory.WorkingMemory(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	summary, err := s.deps.Gateway.Summarise(ctx, formatTurnsForSummary(turns), true)
	if err != nil {
		return err
	}
	return s.deps.Memory.SetCorePreference(ctx, sessionID, "recent_pattern", summary)
}

func formatTurnsForSummary(turns []memstore.Turn) string {
	var out string
	for _, t := range turns {
		out += t.Role + ": " + t.Content + "\n"
	}
	return out
}

// autoDismissReminders implements spec §4.1 post-processing step 5: when a
// manage_tasks write tool marked a task done, fuzzy-match pending
// reminders by title and mark every reminder whose Jaro-Winkler similarity
// reaches reminderDismissThreshold done too.
func (s *Service) autoDismissReminders(ctx context.Context, traces []ToolCallTrace) error {
	for _, t := range traces {
		if t.Name != "manage_tasks" || t.IsError {
			continue
		}
		var args struct {
			Action string `json:"action"`
			Name   string `json:"name"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(t.Arguments), &args); err != nil {
			continue
		}
		if args.Action != "upsert" || args.Status != "done" || args.Name == "" {
			continue
		}
		if err := s.dismissReminderLike(ctx, args.Name); err != nil {
			return err
		}
	}
	return nil
}

const reminderDismissThreshold = 0.82

func (s *Service) dismissReminderLike(ctx context.Context, taskName string) error {
	pending, err := s.deps.Graph.QueryReminders(ctx, "pending", "")
	if err != nil {
		return err
	}
	needle := strings.ToLower(entityresolve.StripParenthetical(taskName))
	for _, r := range pending {
		if matchr.JaroWinkler(needle, strings.ToLower(r.Name), false) >= reminderDismissThreshold {
			if err := s.deps.Graph.UpdateReminder(ctx, r.ID, map[string]any{"status": "done"}); err != nil {
				return err
			}
		}
	}
	return nil
}
