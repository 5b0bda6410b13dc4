package graphsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/entityresolve"
	"github.com/khazna/khazna/internal/graphstore"
)

// fuzzyTitleThreshold is the Jaro-Winkler cutoff used when a substring match
// against a Reminder title finds nothing (spec §11: "Jaro-Winkler,
// threshold 0.82").
const fuzzyTitleThreshold = 0.82

// AdjustItemQuantity changes an Item's quantity by delta (negative reduces
// it), clamped at zero, matched by a case-insensitive substring on name.
// Returns the item's canonical name.
func (s *Service) AdjustItemQuantity(ctx context.Context, name string, delta float64) (string, error) {
	item, err := s.findItemByName(ctx, name)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", apperr.NotFound("graphsvc.AdjustItemQuantity", fmt.Errorf("item %q not found", name))
	}
	quantity, _ := item.Attributes["quantity"].(float64)
	quantity += delta
	if quantity < 0 {
		quantity = 0
	}
	if err := s.graph.UpdateEntity(ctx, item.ID, map[string]any{
		"quantity":     quantity,
		"last_used_at": s.now().Format(time.RFC3339),
	}); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.AdjustItemQuantity", err)
	}
	return item.Name, nil
}

// MoveItem relocates an Item to toLocation, matched by a case-insensitive
// substring on name, upserting a Location entity for toLocation in the
// process. Returns the item's canonical name.
func (s *Service) MoveItem(ctx context.Context, name, toLocation string) (string, error) {
	item, err := s.findItemByName(ctx, name)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", apperr.NotFound("graphsvc.MoveItem", fmt.Errorf("item %q not found", name))
	}
	location, _, err := s.upsertNamed(ctx, "Location", toLocation, map[string]any{})
	if err != nil {
		return "", err
	}
	if err := s.graph.UpdateEntity(ctx, item.ID, map[string]any{
		"location":     location,
		"last_used_at": s.now().Format(time.RFC3339),
	}); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.MoveItem", err)
	}
	return item.Name, nil
}

// findItemByName returns the first Item matching a case-insensitive
// substring on name. Returns (nil, nil) when nothing matches.
func (s *Service) findItemByName(ctx context.Context, name string) (*graphstore.Entity, error) {
	items, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Item", Name: name, Limit: 1})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.findItemByName", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// PayDebtByPerson records a payment against person's open or partial Debt,
// optionally narrowed by direction, selecting the largest-balance match
// when more than one debt matches. Returns the resulting status and
// remaining balance.
func (s *Service) PayDebtByPerson(ctx context.Context, person string, amount float64, direction DebtDirection) (status string, remaining float64, err error) {
	personCanonical, err := s.resolver.ResolveEntityName(ctx, person, "Person")
	if err != nil {
		return "", 0, apperr.BackendUnavailable("graphsvc.PayDebtByPerson.resolve", err)
	}

	attrs := map[string]any{"person": personCanonical}
	if direction != debtUnknown {
		attrs["direction"] = string(direction)
	}
	debts, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Debt", AttributeQuery: attrs})
	if err != nil {
		return "", 0, apperr.BackendUnavailable("graphsvc.PayDebtByPerson.find", err)
	}

	var best *graphstore.Entity
	var bestAmount float64
	for i, d := range debts {
		status, _ := d.Attributes["status"].(string)
		if status != "open" && status != "partial" {
			continue
		}
		amt, _ := d.Attributes["amount"].(float64)
		if best == nil || amt > bestAmount {
			best, bestAmount = &debts[i], amt
		}
	}
	if best == nil {
		return "", 0, apperr.NotFound("graphsvc.PayDebtByPerson", fmt.Errorf("no open debt found for %q", personCanonical))
	}
	return s.PayDebt(ctx, best.ID, amount, "")
}

// UpdateReminderStatus applies a done/snooze/cancel/delete action to the
// Reminder matched by title — a substring match first (the first match wins
// when several match), falling back to Jaro-Winkler fuzzy matching across
// all reminders only when no substring match is found. Returns the
// reminder's canonical title.
func (s *Service) UpdateReminderStatus(ctx context.Context, title, action, snoozeUntil string) (string, error) {
	reminder, err := s.findReminderByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if reminder == nil {
		return "", apperr.NotFound("graphsvc.UpdateReminderStatus", fmt.Errorf("reminder %q not found", title))
	}

	switch action {
	case "done":
		err = s.graph.UpdateEntity(ctx, reminder.ID, map[string]any{
			"status":       "done",
			"completed_at": s.now().Format(time.RFC3339),
		})
	case "snooze":
		snoozeCount, _ := reminder.Attributes["snooze_count"].(float64)
		err = s.graph.UpdateEntity(ctx, reminder.ID, map[string]any{
			"status":        "snoozed",
			"snooze_count":  snoozeCount + 1,
			"snoozed_until": snoozeUntil,
		})
	case "cancel":
		err = s.graph.UpdateEntity(ctx, reminder.ID, map[string]any{
			"status":       "cancelled",
			"cancelled_at": s.now().Format(time.RFC3339),
		})
	case "delete":
		err = s.graph.DeleteEntity(ctx, reminder.ID)
	default:
		return "", apperr.Validation("graphsvc.UpdateReminderStatus", fmt.Errorf("unknown action %q", action))
	}
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpdateReminderStatus", err)
	}
	return reminder.Name, nil
}

// findReminderByTitle implements spec §9's three-step retry order: strip a
// trailing parenthetical annotation and try a substring match, retry with
// the raw title if the cleaned one found nothing, then fall back to fuzzy
// (Jaro-Winkler) matching across every reminder.
func (s *Service) findReminderByTitle(ctx context.Context, title string) (*graphstore.Entity, error) {
	cleaned := entityresolve.StripParenthetical(title)

	for _, candidate := range []string{cleaned, title} {
		matches, err := s.QueryReminders(ctx, "", candidate)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return &matches[0], nil
		}
	}

	all, err := s.QueryReminders(ctx, "", "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(cleaned)
	best, bestScore := -1, 0.0
	for i, r := range all {
		score := matchr.JaroWinkler(needle, strings.ToLower(r.Name), false)
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	if best >= 0 && bestScore >= fuzzyTitleThreshold {
		return &all[best], nil
	}
	return nil, nil
}
