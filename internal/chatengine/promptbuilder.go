package chatengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/pkg/llmgateway"
)

// basePrompt is the orchestrator's fixed instruction prefix. Arabic-first
// per spec §4.1 step 1, since the service's primary users converse in
// Arabic; English is answered in kind when the user writes in English.
const basePrompt = `أنت خزنة، مساعد شخصي ثنائي اللغة (عربي/إنجليزي) يدير معرفة المستخدم الشخصية: ` +
	`الأشخاص، المشاريع، المهام، التذكيرات، المصروفات، الديون، والمخزون. ` +
	`استخدم الأدوات المتاحة لتنفيذ الطلبات أو الاستعلام عن البيانات. ` +
	`أجب بلغة رسالة المستخدم. لا تخترع نتائج أدوات لم تُستدعَ.`

// composeSystemPrompt builds the system prompt (spec §4.1 step 1): base
// instructions, the current date/time in the configured timezone, any
// conversation summary/core-memory excerpts, and the active project name
// when one is scoped to this session.
func (s *Service) composeSystemPrompt(ctx context.Context, sessionID string) (string, error) {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")

	now := time.Now().In(s.deps.Timezone)
	fmt.Fprintf(&b, "التاريخ والوقت الآن: %s\n", now.Format("2006-01-02 15:04 MST"))

	summary, err := s.deps.Memory.ConversationSummary(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if summary != "" {
		fmt.Fprintf(&b, "ملخص المحادثة السابقة: %s\n", summary)
	}

	core, err := s.deps.Memory.CoreMemory(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(core) > 0 {
		b.WriteString("تفضيلات معروفة عن المستخدم:\n")
		for k, v := range core {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}

	activeProject, err := s.deps.Memory.ActiveProject(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if activeProject != "" {
		fmt.Fprintf(&b, "المشروع النشط حالياً: %s\n", activeProject)
	}

	return b.String(), nil
}

// composeMessages builds messages = [working_memory_turns, user] (spec §4.1
// step 2; the system prompt itself travels separately via
// CompletionRequest.SystemPrompt).
func composeMessages(turns []memstore.Turn, message string) []llmgateway.Message {
	messages := make([]llmgateway.Message, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, llmgateway.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llmgateway.Message{Role: "user", Content: message})
	return messages
}
