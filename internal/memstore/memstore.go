// Package memstore implements the three-layer, Redis-backed memory model
// described in §4.8: a working-memory FIFO per session that compresses
// itself once it grows past a threshold, a daily-summary hash keyed by
// date, and a permanent core-memory hash of user preferences. It also
// carries the short-lived pending-action and active-project keys the
// orchestrator uses for confirmation flows and project-scoped follow-ups.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khazna/khazna/pkg/llmgateway"
)

const (
	workingTTL          = 24 * time.Hour
	dailyTTL            = 7 * 24 * time.Hour
	pendingActionTTL    = 300 * time.Second
	summaryTTL          = 24 * time.Hour
	defaultWorkingCap   = 40
	defaultCompressAt   = 15
	compressionKeepLast = 4
)

// Turn is one entry of a session's working memory.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Ts      time.Time `json:"ts"`
}

// PendingAction is a proposed side effect (typically a delete) awaiting the
// user's yes/no confirmation before it executes.
type PendingAction struct {
	Kind string         `json:"kind"`
	Args map[string]any `json:"args"`
}

// Store is the Redis-backed implementation of the three memory layers.
// The zero value is not usable; construct with [New].
type Store struct {
	rdb               *redis.Client
	gateway           *llmgateway.Gateway
	workingCap        int
	compressThreshold int
}

// Option configures a [Store].
type Option func(*Store)

// WithWorkingCap overrides the default working-memory FIFO cap (40).
func WithWorkingCap(n int) Option {
	return func(s *Store) { s.workingCap = n }
}

// WithCompressionThreshold overrides the default compression trigger
// length (15 entries).
func WithCompressionThreshold(n int) Option {
	return func(s *Store) { s.compressThreshold = n }
}

// New returns a Store backed by rdb, using gateway to produce Arabic
// summaries when working memory compresses.
func New(rdb *redis.Client, gateway *llmgateway.Gateway, opts ...Option) *Store {
	s := &Store{
		rdb:               rdb,
		gateway:           gateway,
		workingCap:        defaultWorkingCap,
		compressThreshold: defaultCompressAt,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func workingKey(session string) string  { return "working:" + session }
func summaryKey(session string) string  { return "conversation_summary:" + session }
func dailyKey(session string) string    { return "daily:" + session }
func coreKey(session string) string     { return "core:" + session }
func pendingKey(session string) string  { return "pending:" + session }
func activeProjKey(session string) string { return "active_project:" + session }
func msgCountKey(session string) string { return "msgcount:" + session }

// IncrementMessageCount bumps and returns session's running message
// counter, used by the orchestrator's post-processing step to decide when
// to trigger periodic daily/core summarisation (§4.1 step 4).
func (s *Store) IncrementMessageCount(ctx context.Context, session string) (int64, error) {
	n, err := s.rdb.Incr(ctx, msgCountKey(session)).Result()
	if err != nil {
		return 0, fmt.Errorf("memstore: incr message count for %q: %w", session, err)
	}
	return n, nil
}

// AppendTurn adds turn to session's working memory, refreshes the 24h TTL,
// and compresses the list if it has grown past the configured threshold.
func (s *Store) AppendTurn(ctx context.Context, session string, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("memstore: marshal turn: %w", err)
	}

	key := workingKey(session)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, workingTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memstore: append turn for %q: %w", session, err)
	}

	length, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("memstore: llen for %q: %w", session, err)
	}
	if length > int64(s.compressThreshold) {
		if err := s.compressWorkingMemory(ctx, session); err != nil {
			return err
		}
		return nil
	}
	if length > int64(s.workingCap) {
		if err := s.rdb.LTrim(ctx, key, length-int64(s.workingCap), -1).Err(); err != nil {
			return fmt.Errorf("memstore: enforce working cap for %q: %w", session, err)
		}
	}
	return nil
}

// WorkingMemory returns every turn currently held for session, oldest first.
func (s *Store) WorkingMemory(ctx context.Context, session string) ([]Turn, error) {
	raw, err := s.rdb.LRange(ctx, workingKey(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memstore: lrange for %q: %w", session, err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ConversationSummary returns the most recent Arabic summary produced by
// compression, if any has been generated yet.
func (s *Store) ConversationSummary(ctx context.Context, session string) (string, error) {
	summary, err := s.rdb.Get(ctx, summaryKey(session)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memstore: get summary for %q: %w", session, err)
	}
	return summary, nil
}

// compressWorkingMemory keeps the last compressionKeepLast turns, summarises
// everything before them in Arabic, and stores the summary separately.
// Readers calling WorkingMemory mid-compression see either the pre- or
// post-compression list, never a partially trimmed one, because the trim
// itself is a single LTRIM call.
func (s *Store) compressWorkingMemory(ctx context.Context, session string) error {
	turns, err := s.WorkingMemory(ctx, session)
	if err != nil {
		return err
	}
	if len(turns) <= compressionKeepLast {
		return nil
	}

	toSummarise := turns[:len(turns)-compressionKeepLast]
	text := formatTurns(toSummarise)

	summary, err := s.gateway.Summarise(ctx, text, true)
	if err != nil {
		return fmt.Errorf("memstore: summarise working memory for %q: %w", session, err)
	}

	key := workingKey(session)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, summaryKey(session), summary, summaryTTL)
	pipe.LTrim(ctx, key, int64(-compressionKeepLast), -1)
	pipe.Expire(ctx, key, workingTTL)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("memstore: store compressed summary for %q: %w", session, err)
	}
	return nil
}

func formatTurns(turns []Turn) string {
	out := ""
	for _, t := range turns {
		out += t.Role + ": " + t.Content + "\n"
	}
	return out
}

// SetDailySummary records the summary for a given date (format
// "YYYY-MM-DD"), expiring after 7 days.
func (s *Store) SetDailySummary(ctx context.Context, session, date, summary string) error {
	if err := s.rdb.HSet(ctx, dailyKey(session), date, summary).Err(); err != nil {
		return fmt.Errorf("memstore: set daily summary for %q/%q: %w", session, date, err)
	}
	return s.rdb.HExpire(ctx, dailyKey(session), dailyTTL, date).Err()
}

// DailySummaries returns every recorded {date: summary} pair for session.
func (s *Store) DailySummaries(ctx context.Context, session string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, dailyKey(session)).Result()
	if err != nil {
		return nil, fmt.Errorf("memstore: hgetall daily for %q: %w", session, err)
	}
	return m, nil
}

// SetCorePreference stores a permanent user preference or pattern. Core
// memory has no TTL — it persists until explicitly deleted.
func (s *Store) SetCorePreference(ctx context.Context, session, key, value string) error {
	if err := s.rdb.HSet(ctx, coreKey(session), key, value).Err(); err != nil {
		return fmt.Errorf("memstore: set core preference %q for %q: %w", key, session, err)
	}
	return nil
}

// CoreMemory returns every stored preference/pattern for session.
func (s *Store) CoreMemory(ctx context.Context, session string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, coreKey(session)).Result()
	if err != nil {
		return nil, fmt.Errorf("memstore: hgetall core for %q: %w", session, err)
	}
	return m, nil
}

// SetPendingAction records action for session with a 300s TTL, overwriting
// any previous pending action (there is at most one outstanding at a time).
func (s *Store) SetPendingAction(ctx context.Context, session string, action PendingAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("memstore: marshal pending action: %w", err)
	}
	if err := s.rdb.Set(ctx, pendingKey(session), data, pendingActionTTL).Err(); err != nil {
		return fmt.Errorf("memstore: set pending action for %q: %w", session, err)
	}
	return nil
}

// PendingAction returns the action awaiting confirmation for session, or ok
// equal to false if none is outstanding or it has expired.
func (s *Store) PendingAction(ctx context.Context, session string) (action PendingAction, ok bool, err error) {
	raw, err := s.rdb.Get(ctx, pendingKey(session)).Result()
	if err == redis.Nil {
		return PendingAction{}, false, nil
	}
	if err != nil {
		return PendingAction{}, false, fmt.Errorf("memstore: get pending action for %q: %w", session, err)
	}
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return PendingAction{}, false, fmt.Errorf("memstore: unmarshal pending action for %q: %w", session, err)
	}
	return action, true, nil
}

// ClearPendingAction removes any outstanding pending action for session,
// called once it has been confirmed, declined, or superseded.
func (s *Store) ClearPendingAction(ctx context.Context, session string) error {
	return s.rdb.Del(ctx, pendingKey(session)).Err()
}

// SetActiveProject records which project follow-up questions in session
// should be scoped to.
func (s *Store) SetActiveProject(ctx context.Context, session, project string) error {
	if err := s.rdb.Set(ctx, activeProjKey(session), project, 0).Err(); err != nil {
		return fmt.Errorf("memstore: set active project for %q: %w", session, err)
	}
	return nil
}

// ActiveProject returns the project currently scoped to session, or "" if
// none has been set.
func (s *Store) ActiveProject(ctx context.Context, session string) (string, error) {
	v, err := s.rdb.Get(ctx, activeProjKey(session)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memstore: get active project for %q: %w", session, err)
	}
	return v, nil
}

// sortedDates returns the keys of m sorted ascending — used by callers that
// want the most recent N days of daily summaries.
func sortedDates(m map[string]string) []string {
	dates := make([]string, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
