package chatengine

import "context"

// Summary returns the session's rolling conversation summary (spec §6's
// `GET /chat/summary`), backed by the same working-memory store the turn
// loop writes to.
func (s *Service) Summary(ctx context.Context, sessionID string) (string, error) {
	return s.deps.Memory.ConversationSummary(ctx, sessionID)
}
