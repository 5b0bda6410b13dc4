package graphsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/ner"
)

// upsertNamed resolves name against entityType, then creates or merges an
// entity carrying attrs. Existing attribute keys are overwritten by attrs;
// keys absent from attrs are preserved. Returns the canonical name and the
// entity's ID.
func (s *Service) upsertNamed(ctx context.Context, entityType, name string, attrs map[string]any) (canonical, id string, err error) {
	canonical, err = s.resolver.ResolveEntityName(ctx, name, entityType)
	if err != nil {
		return "", "", apperr.BackendUnavailable("graphsvc.upsertNamed.resolve", err)
	}

	existing, err := s.graph.GetEntityByName(ctx, entityType, canonical)
	if err != nil {
		return "", "", apperr.BackendUnavailable("graphsvc.upsertNamed.lookup", err)
	}

	now := s.now()
	if existing == nil {
		merged := make(map[string]any, len(attrs))
		for k, v := range attrs {
			merged[k] = v
		}
		e := graphstore.Entity{
			ID:         newID(),
			Type:       entityType,
			Name:       canonical,
			Attributes: merged,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.graph.AddEntity(ctx, e); err != nil {
			return "", "", apperr.BackendUnavailable("graphsvc.upsertNamed.add", err)
		}
		return canonical, e.ID, nil
	}

	if name != canonical {
		aliases := addAlias(stringsFrom(existing.Attributes["name_aliases"]), name)
		attrs = mergeAttr(attrs, "name_aliases", aliases)
	}
	if err := s.graph.UpdateEntity(ctx, existing.ID, attrs); err != nil {
		return "", "", apperr.BackendUnavailable("graphsvc.upsertNamed.update", err)
	}
	return canonical, existing.ID, nil
}

func mergeAttr(attrs map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out[key] = value
	return out
}

// UpsertPerson creates or updates a Person entity. Hijri dates (year <
// 1900) are stored alongside the Gregorian surface form per spec §9;
// callers are responsible for supplying both when known.
func (s *Service) UpsertPerson(ctx context.Context, p PersonParams) (string, error) {
	attrs := map[string]any{}
	if p.NameAr != "" {
		attrs["name_ar"] = p.NameAr
	}
	if p.Company != "" {
		attrs["company"] = p.Company
	}
	if p.DateOfBirth != "" {
		attrs["date_of_birth"] = p.DateOfBirth
	}
	if p.DateOfBirthHijri != "" {
		attrs["date_of_birth_hijri"] = p.DateOfBirthHijri
	}
	if p.IDNumber != "" {
		attrs["id_number"] = p.IDNumber
	}
	canonical, _, err := s.upsertNamed(ctx, "Person", p.Name, attrs)
	return canonical, err
}

// UpsertCompany creates or updates a Company entity.
func (s *Service) UpsertCompany(ctx context.Context, name string) (string, error) {
	canonical, _, err := s.upsertNamed(ctx, "Company", name, map[string]any{})
	return canonical, err
}

// UpsertProject creates or updates a Project entity.
func (s *Service) UpsertProject(ctx context.Context, p ProjectParams) (string, error) {
	attrs := map[string]any{}
	if p.Status != "" {
		attrs["status"] = p.Status
	}
	if p.Priority != "" {
		attrs["priority"] = p.Priority
	}
	if p.Description != "" {
		attrs["description"] = p.Description
	}
	canonical, _, err := s.upsertNamed(ctx, "Project", p.Name, attrs)
	return canonical, err
}

// UpsertTopic creates or updates a Topic entity.
func (s *Service) UpsertTopic(ctx context.Context, name string) (string, error) {
	canonical, _, err := s.upsertNamed(ctx, "Topic", name, map[string]any{})
	return canonical, err
}

// UpsertTag creates or updates a Tag entity. name is first normalized
// through the bilingual tag-alias table, then vector-deduplicated against
// existing tags at a fixed 0.85 threshold — independent of the resolver's
// configured Default threshold used by every other entity type (spec §4.6).
func (s *Service) UpsertTag(ctx context.Context, name string) (string, error) {
	canonical, err := s.resolver.ResolveTagName(ctx, name)
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertTag.resolve", err)
	}
	if canonical == "" {
		return "", nil
	}

	existing, err := s.graph.GetEntityByName(ctx, "Tag", canonical)
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertTag.lookup", err)
	}

	now := s.now()
	if existing == nil {
		e := graphstore.Entity{
			ID:         newID(),
			Type:       "Tag",
			Name:       canonical,
			Attributes: map[string]any{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.graph.AddEntity(ctx, e); err != nil {
			return "", apperr.BackendUnavailable("graphsvc.UpsertTag.add", err)
		}
		return canonical, nil
	}

	if name != canonical {
		aliases := addAlias(stringsFrom(existing.Attributes["name_aliases"]), name)
		if err := s.graph.UpdateEntity(ctx, existing.ID, map[string]any{"name_aliases": aliases}); err != nil {
			return "", apperr.BackendUnavailable("graphsvc.UpsertTag.update", err)
		}
	}
	return canonical, nil
}

// TagEntity creates a TAGGED_WITH edge from entityID to the tag named tag,
// upserting the tag first.
func (s *Service) TagEntity(ctx context.Context, entityID, tag string) error {
	canonical, err := s.UpsertTag(ctx, tag)
	if err != nil {
		return err
	}
	tagEntity, err := s.graph.GetEntityByName(ctx, "Tag", canonical)
	if err != nil || tagEntity == nil {
		return apperr.NotFound("graphsvc.TagEntity", fmt.Errorf("tag %q not found after upsert", canonical))
	}
	return s.graph.AddRelationship(ctx, graphstore.Relationship{
		SourceID:  entityID,
		TargetID:  tagEntity.ID,
		RelType:   "TAGGED_WITH",
		CreatedAt: s.now(),
	})
}

// UpsertKnowledge creates or updates a Knowledge entity. Category is
// auto-guessed from Title+Content via [ner.GuessKnowledgeCategory] when
// unset, and the entity is auto-tagged with that category (spec §4.6).
func (s *Service) UpsertKnowledge(ctx context.Context, k KnowledgeParams) (string, error) {
	category := k.Category
	if category == "" {
		category = ner.GuessKnowledgeCategory(k.Title, k.Content)
	}
	attrs := map[string]any{
		"content":  k.Content,
		"category": category,
	}
	if k.Topic != "" {
		attrs["topic"] = k.Topic
	}
	if len(k.ReferenceNumbers) > 0 {
		attrs["reference_numbers"] = k.ReferenceNumbers
	}
	canonical, id, err := s.upsertNamed(ctx, "Knowledge", k.Title, attrs)
	if err != nil {
		return "", err
	}
	if tagErr := s.TagEntity(ctx, id, category); tagErr != nil {
		return canonical, tagErr
	}
	return canonical, nil
}

// UpsertExpense records a new Expense entity. Expenses are never
// entity-resolved against each other (each purchase is distinct); Category
// is auto-guessed via [ner.GuessExpenseCategory] when unset.
func (s *Service) UpsertExpense(ctx context.Context, e ExpenseParams) (string, error) {
	if e.Amount <= 0 {
		return "", apperr.Validation("graphsvc.UpsertExpense", fmt.Errorf("amount must be positive, got %v", e.Amount))
	}
	category := e.Category
	if category == "" {
		category = ner.GuessExpenseCategory(e.Vendor, "")
	}
	date := e.Date
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	id := newID()
	entity := graphstore.Entity{
		ID:   id,
		Type: "Expense",
		Name: fmt.Sprintf("%s %.2f %s", e.Vendor, e.Amount, e.Currency),
		Attributes: map[string]any{
			"amount":   e.Amount,
			"currency": e.Currency,
			"category": category,
			"vendor":   e.Vendor,
			"date":     date,
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, entity); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertExpense", err)
	}
	return id, nil
}

// UpsertDebt records a new Debt entity. Direction is normalised to one of
// the two canonical values (spec invariant, §8).
func (s *Service) UpsertDebt(ctx context.Context, d DebtParams) (string, error) {
	if d.Person == "" {
		return "", apperr.Validation("graphsvc.UpsertDebt", fmt.Errorf("person is required"))
	}
	direction := d.Direction
	if direction == debtUnknown {
		direction = DebtIOwe
	}
	personCanonical, err := s.resolver.ResolveEntityName(ctx, d.Person, "Person")
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertDebt.resolve", err)
	}
	id := newID()
	entity := graphstore.Entity{
		ID:   id,
		Type: "Debt",
		Name: fmt.Sprintf("%s %.2f %s (%s)", personCanonical, d.Amount, d.Currency, direction),
		Attributes: map[string]any{
			"person":    personCanonical,
			"amount":    d.Amount,
			"currency":  d.Currency,
			"direction": string(direction),
			"status":    "open",
			"reason":    d.Reason,
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, entity); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertDebt.add", err)
	}
	return id, nil
}

// PayDebt records a DebtPayment against debtID, reducing the Debt's
// remaining amount and transitioning its status to "paid" when it reaches
// zero, "partial" otherwise.
func (s *Service) PayDebt(ctx context.Context, debtID string, amount float64, date string) (status string, remaining float64, err error) {
	debt, err := s.graph.GetEntity(ctx, debtID)
	if err != nil {
		return "", 0, apperr.BackendUnavailable("graphsvc.PayDebt.lookup", err)
	}
	if debt == nil {
		return "", 0, apperr.NotFound("graphsvc.PayDebt", fmt.Errorf("debt %q not found", debtID))
	}
	current, _ := debt.Attributes["amount"].(float64)
	remaining = current - amount
	if remaining < 0 {
		remaining = 0
	}
	status = "partial"
	if remaining == 0 {
		status = "paid"
	}
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	payment := graphstore.Entity{
		ID:   newID(),
		Type: "DebtPayment",
		Name: fmt.Sprintf("payment %s %.2f", debtID, amount),
		Attributes: map[string]any{
			"debt_id": debtID,
			"amount":  amount,
			"date":    date,
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, payment); err != nil {
		return "", 0, apperr.BackendUnavailable("graphsvc.PayDebt.addPayment", err)
	}
	if err := s.graph.UpdateEntity(ctx, debtID, map[string]any{
		"amount": remaining,
		"status": status,
	}); err != nil {
		return "", 0, apperr.BackendUnavailable("graphsvc.PayDebt.updateDebt", err)
	}
	return status, remaining, nil
}

// UpsertReminder creates a new Reminder entity. DueDate must never be the
// zero value (spec invariant, §8).
func (s *Service) UpsertReminder(ctx context.Context, r ReminderParams) (string, error) {
	if r.Title == "" {
		return "", apperr.Validation("graphsvc.UpsertReminder", fmt.Errorf("title is required"))
	}
	if r.DueDate.IsZero() {
		return "", apperr.Validation("graphsvc.UpsertReminder", fmt.Errorf("due_date is required"))
	}
	reminderType := r.ReminderType
	if reminderType == "" {
		reminderType = "one_time"
	}
	id := newID()
	entity := graphstore.Entity{
		ID:   id,
		Type: "Reminder",
		Name: r.Title,
		Attributes: map[string]any{
			"due_date":      r.DueDate.Format(time.RFC3339),
			"reminder_type": reminderType,
			"recurrence":    r.Recurrence,
			"status":        "pending",
			"priority":      r.Priority,
			"description":   r.Description,
			"persistent":    r.Persistent,
			"prayer":        r.Prayer,
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, entity); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertReminder", err)
	}
	return id, nil
}

// UpsertTask creates or updates a Task entity, storing Project as the task's
// "project" attribute; it creates no BELONGS_TO relationship. The substring
// Task→Project auto-link runs in the Task fact handler (guessProjectForTask)
// before this is called, and only when no project was extracted.
func (s *Service) UpsertTask(ctx context.Context, t TaskParams) (string, error) {
	status := t.Status
	if status == "" {
		status = "todo"
	}
	attrs := map[string]any{"status": status}
	if t.Project != "" {
		attrs["project"] = t.Project
	}
	if t.Sprint != "" {
		attrs["sprint"] = t.Sprint
	}
	if t.EstimatedDuration != "" {
		attrs["estimated_duration"] = t.EstimatedDuration
	}
	if t.EnergyLevel != "" {
		attrs["energy_level"] = t.EnergyLevel
	}
	if t.StartTime != "" {
		attrs["start_time"] = t.StartTime
	}
	if t.EndTime != "" {
		attrs["end_time"] = t.EndTime
	}
	canonical, _, err := s.upsertNamed(ctx, "Task", t.Name, attrs)
	return canonical, err
}

// UpdateReminder applies updates (a subset of due_date/status/priority/
// description) to an existing Reminder entity.
func (s *Service) UpdateReminder(ctx context.Context, reminderID string, updates map[string]any) error {
	if err := s.graph.UpdateEntity(ctx, reminderID, updates); err != nil {
		return apperr.BackendUnavailable("graphsvc.UpdateReminder", err)
	}
	return nil
}

// DeleteReminder removes a Reminder entity.
func (s *Service) DeleteReminder(ctx context.Context, reminderID string) error {
	if err := s.graph.DeleteEntity(ctx, reminderID); err != nil {
		return apperr.BackendUnavailable("graphsvc.DeleteReminder", err)
	}
	return nil
}

// GetEntity returns one entity by ID regardless of type, for REST-edge
// handlers that already have an ID in hand (e.g. an inventory item picked
// from a list) and don't need the typed upsert path.
func (s *Service) GetEntity(ctx context.Context, id string) (*graphstore.Entity, error) {
	entity, err := s.graph.GetEntity(ctx, id)
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.GetEntity", err)
	}
	if entity == nil {
		return nil, apperr.NotFound("graphsvc.GetEntity", fmt.Errorf("entity %q not found", id))
	}
	return entity, nil
}

// UpdateEntity applies updates to an existing entity of any type, the same
// generic path [Service.UpdateReminder] uses for Reminder entities.
func (s *Service) UpdateEntity(ctx context.Context, id string, updates map[string]any) error {
	if err := s.graph.UpdateEntity(ctx, id, updates); err != nil {
		return apperr.BackendUnavailable("graphsvc.UpdateEntity", err)
	}
	return nil
}

// DeleteEntity removes an entity of any type.
func (s *Service) DeleteEntity(ctx context.Context, id string) error {
	if err := s.graph.DeleteEntity(ctx, id); err != nil {
		return apperr.BackendUnavailable("graphsvc.DeleteEntity", err)
	}
	return nil
}

// UpsertItem creates or updates an inventory Item entity. Category is
// normalised (lowercased) so "Electronics" and "electronics" collapse.
func (s *Service) UpsertItem(ctx context.Context, it ItemParams) (string, error) {
	attrs := map[string]any{
		"quantity": it.Quantity,
	}
	if it.Location != "" {
		attrs["location"] = it.Location
	}
	if it.Category != "" {
		attrs["category"] = normalizeKey(it.Category)
	}
	if it.Brand != "" {
		attrs["brand"] = it.Brand
	}
	if it.Condition != "" {
		attrs["condition"] = it.Condition
	}
	if it.Barcode != "" {
		attrs["barcode"] = it.Barcode
		attrs["barcode_type"] = it.BarcodeType
	}
	attrs["last_used_at"] = s.now().Format(time.RFC3339)
	canonical, _, err := s.upsertNamed(ctx, "Item", it.Name, attrs)
	return canonical, err
}

// UpsertSprint creates or updates a Sprint entity.
func (s *Service) UpsertSprint(ctx context.Context, sp SprintParams) (string, error) {
	attrs := map[string]any{
		"start_date": sp.StartDate,
		"end_date":   sp.EndDate,
		"goal":       sp.Goal,
	}
	if sp.Project != "" {
		attrs["project"] = sp.Project
	}
	status := sp.Status
	if status == "" {
		status = "active"
	}
	attrs["status"] = status
	canonical, _, err := s.upsertNamed(ctx, "Sprint", sp.Name, attrs)
	return canonical, err
}

// UpsertFocusSession records a new FocusSession entity.
func (s *Service) UpsertFocusSession(ctx context.Context, fs FocusSessionParams) (string, error) {
	id := newID()
	attrs := map[string]any{
		"start_time":   fs.StartTime.Format(time.RFC3339),
		"duration_min": fs.DurationMin,
		"task":         fs.Task,
		"completed":    fs.Completed,
	}
	if fs.EndTime != nil {
		attrs["end_time"] = fs.EndTime.Format(time.RFC3339)
	}
	entity := graphstore.Entity{
		ID:         id,
		Type:       "FocusSession",
		Name:       fmt.Sprintf("focus %s %s", fs.Task, fs.StartTime.Format(time.RFC3339)),
		Attributes: attrs,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.graph.AddEntity(ctx, entity); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertFocusSession", err)
	}
	return id, nil
}

// UpsertList creates or updates a List entity.
func (s *Service) UpsertList(ctx context.Context, l ListParams) (string, error) {
	attrs := map[string]any{"type": l.Type}
	if l.Project != "" {
		attrs["project"] = l.Project
	}
	canonical, _, err := s.upsertNamed(ctx, "List", l.Name, attrs)
	return canonical, err
}

// UpsertListEntry creates a new ListEntry under the named list. ListEntry
// nodes are tool-only (spec §3): callers outside the tool layer must not
// invoke this from the auto-extraction path.
func (s *Service) UpsertListEntry(ctx context.Context, e ListEntryParams) (string, error) {
	list, err := s.graph.GetEntityByName(ctx, "List", e.List)
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertListEntry.lookup", err)
	}
	if list == nil {
		return "", apperr.NotFound("graphsvc.UpsertListEntry", fmt.Errorf("list %q not found", e.List))
	}
	id := newID()
	entry := graphstore.Entity{
		ID:   id,
		Type: "ListEntry",
		Name: e.Text,
		Attributes: map[string]any{
			"list":    e.List,
			"checked": e.Checked,
			"order":   e.Order,
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, entry); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertListEntry.add", err)
	}
	if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
		SourceID:  list.ID,
		TargetID:  id,
		RelType:   "HAS_ENTRY",
		CreatedAt: s.now(),
	}); err != nil {
		return "", apperr.BackendUnavailable("graphsvc.UpsertListEntry.link", err)
	}
	return id, nil
}

// CheckListEntry marks an existing ListEntry as checked, matched by list
// name and a case-insensitive match on its text.
func (s *Service) CheckListEntry(ctx context.Context, listName, text string) (string, error) {
	entries, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "ListEntry"})
	if err != nil {
		return "", apperr.BackendUnavailable("graphsvc.CheckListEntry.find", err)
	}
	needle := normalizeKey(text)
	for _, entry := range entries {
		if stringAttr(entry.Attributes, "list") != listName {
			continue
		}
		if normalizeKey(entry.Name) != needle {
			continue
		}
		if err := s.graph.UpdateEntity(ctx, entry.ID, map[string]any{"checked": true}); err != nil {
			return "", apperr.BackendUnavailable("graphsvc.CheckListEntry.update", err)
		}
		return entry.ID, nil
	}
	return "", apperr.NotFound("graphsvc.CheckListEntry", fmt.Errorf("entry %q not found in list %q", text, listName))
}
