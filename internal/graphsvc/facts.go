package graphsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

// extractedEntity and extractedRelationship mirror the flat JSON shape
// [llmgateway.Gateway.ExtractFacts]'s prompt asks the model for.
type extractedEntity struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

type extractedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type extractedFacts struct {
	Entities      []extractedEntity        `json:"entities"`
	Relationships []extractedRelationship  `json:"relationships"`
}

// ParseExtractedFacts turns the extraction prompt's flat entities+
// relationships payload into [Fact] records, nesting each relationship
// under the Fact whose Name matches its Source. Shared by the chat
// orchestrator's auto-extraction step and the ingestion pipeline's
// fact-extraction step (spec §4.1 step 3, §4.2 step 4) — both parse the
// same extraction contract.
func ParseExtractedFacts(raw string) ([]Fact, error) {
	var payload extractedFacts
	if raw == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}

	typeByName := make(map[string]string, len(payload.Entities))
	for _, e := range payload.Entities {
		typeByName[e.Name] = e.Type
	}

	facts := make([]Fact, 0, len(payload.Entities))
	index := make(map[string]int, len(payload.Entities))
	for _, e := range payload.Entities {
		index[e.Name] = len(facts)
		facts = append(facts, Fact{Type: e.Type, Name: e.Name, Attributes: e.Attributes})
	}

	for _, r := range payload.Relationships {
		i, ok := index[r.Source]
		if !ok {
			continue
		}
		facts[i].Relationships = append(facts[i].Relationships, FactRelationship{
			RelType:    r.Type,
			TargetName: r.Target,
			TargetType: typeByName[r.Target],
		})
	}
	return facts, nil
}

// ExtractableTypes lists every entity type the extraction prompt is allowed
// to produce — every type [factHandlers] knows how to route, plus the four
// pseudo-entity types [Service.UpsertFromFacts] handles as actions against
// existing entities rather than new named nodes (DebtPayment, ItemUsage,
// ItemMove, ReminderAction). Section and ListEntry are tool-only (spec §3:
// "the extractor MUST suppress them") and deliberately absent.
var ExtractableTypes = []string{
	"Person", "Company", "Project", "Topic", "Location", "Knowledge", "Idea", "Task",
	"Tag", "Expense", "Debt", "Reminder", "Item", "Sprint", "FocusSession", "List",
	"DebtPayment", "ItemUsage", "ItemMove", "ReminderAction",
}

// idKeyedFactTypes marks Fact types whose typed upsert returns a generated
// entity ID, not a resolver-deduplicated canonical name: UpsertExpense,
// UpsertDebt, UpsertReminder and UpsertFocusSession add a fresh entity per
// record instead of going through upsertNamed. Provenance/relationship
// lookups in UpsertFromFacts must key these by ID instead of Name.
var idKeyedFactTypes = map[string]bool{
	"Expense": true, "Debt": true, "Reminder": true, "FocusSession": true,
}

// factHandlers maps an extracted [Fact]'s Type to the corresponding typed
// upsert. Types absent from this table and from the pseudo-entity switch in
// [Service.applyPseudoEntityFact] (Section, ListEntry — spec §3: "tool-only:
// the extractor MUST suppress them") are silently dropped.
var factHandlers = map[string]func(ctx context.Context, s *Service, f Fact) (canonical string, err error){
	"Person": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertPerson(ctx, PersonParams{
			Name:    f.Name,
			NameAr:  stringAttr(f.Attributes, "name_ar"),
			Company: stringAttr(f.Attributes, "company"),
		})
	},
	"Company": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertCompany(ctx, f.Name)
	},
	"Project": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertProject(ctx, ProjectParams{
			Name:        f.Name,
			Status:      stringAttr(f.Attributes, "status"),
			Description: stringAttr(f.Attributes, "description"),
		})
	},
	"Topic": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertTopic(ctx, f.Name)
	},
	"Location": func(ctx context.Context, s *Service, f Fact) (string, error) {
		canonical, _, err := s.upsertNamed(ctx, "Location", f.Name, map[string]any{})
		return canonical, err
	},
	"Knowledge": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertKnowledge(ctx, KnowledgeParams{
			Title:   f.Name,
			Content: stringAttr(f.Attributes, "content"),
			Topic:   stringAttr(f.Attributes, "topic"),
		})
	},
	"Idea": func(ctx context.Context, s *Service, f Fact) (string, error) {
		canonical, _, err := s.upsertNamed(ctx, "Idea", f.Name, map[string]any{
			"content": stringAttr(f.Attributes, "content"),
		})
		return canonical, err
	},
	"Task": func(ctx context.Context, s *Service, f Fact) (string, error) {
		project := stringAttr(f.Attributes, "project")
		if project == "" {
			project = s.guessProjectForTask(ctx, f.Name)
		}
		return s.UpsertTask(ctx, TaskParams{
			Name:    f.Name,
			Status:  stringAttr(f.Attributes, "status"),
			Project: project,
		})
	},
	"Tag": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertTag(ctx, f.Name)
	},
	"Expense": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertExpense(ctx, ExpenseParams{
			Amount:   floatAttr(f.Attributes, "amount"),
			Currency: stringAttr(f.Attributes, "currency"),
			Category: stringAttr(f.Attributes, "category"),
			Vendor:   f.Name,
			Date:     stringAttr(f.Attributes, "date"),
		})
	},
	"Debt": func(ctx context.Context, s *Service, f Fact) (string, error) {
		person := f.Name
		for _, rel := range f.Relationships {
			if rel.TargetType == "Person" {
				person = rel.TargetName
				break
			}
		}
		return s.UpsertDebt(ctx, DebtParams{
			Person:    person,
			Amount:    floatAttr(f.Attributes, "amount"),
			Currency:  stringAttr(f.Attributes, "currency"),
			Direction: NormalizeDebtDirection(stringAttr(f.Attributes, "direction")),
			Reason:    stringAttr(f.Attributes, "reason"),
		})
	},
	"Reminder": func(ctx context.Context, s *Service, f Fact) (string, error) {
		due, err := parseFactTime(f.Attributes, "due_date")
		if err != nil {
			return "", apperr.Validation("graphsvc.UpsertFromFacts.Reminder", err)
		}
		return s.UpsertReminder(ctx, ReminderParams{
			Title:        f.Name,
			DueDate:      due,
			ReminderType: stringAttr(f.Attributes, "reminder_type"),
			Recurrence:   stringAttr(f.Attributes, "recurrence"),
			Priority:     stringAttr(f.Attributes, "priority"),
			Description:  stringAttr(f.Attributes, "description"),
			Persistent:   boolAttr(f.Attributes, "persistent"),
			Prayer:       stringAttr(f.Attributes, "prayer"),
		})
	},
	"Item": func(ctx context.Context, s *Service, f Fact) (string, error) {
		quantity := floatAttr(f.Attributes, "quantity")
		if quantity == 0 {
			quantity = 1
		}
		return s.UpsertItem(ctx, ItemParams{
			Name:        f.Name,
			Quantity:    quantity,
			Location:    stringAttr(f.Attributes, "location"),
			Category:    stringAttr(f.Attributes, "category"),
			Brand:       stringAttr(f.Attributes, "brand"),
			Condition:   stringAttr(f.Attributes, "condition"),
			Barcode:     stringAttr(f.Attributes, "barcode"),
			BarcodeType: stringAttr(f.Attributes, "barcode_type"),
		})
	},
	"Sprint": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertSprint(ctx, SprintParams{
			Name:      f.Name,
			StartDate: stringAttr(f.Attributes, "start_date"),
			EndDate:   stringAttr(f.Attributes, "end_date"),
			Project:   stringAttr(f.Attributes, "project"),
			Goal:      stringAttr(f.Attributes, "goal"),
			Status:    stringAttr(f.Attributes, "status"),
		})
	},
	"FocusSession": func(ctx context.Context, s *Service, f Fact) (string, error) {
		start, err := parseFactTime(f.Attributes, "start_time")
		if err != nil {
			return "", apperr.Validation("graphsvc.UpsertFromFacts.FocusSession", err)
		}
		var end *time.Time
		if raw := stringAttr(f.Attributes, "end_time"); raw != "" {
			if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
				end = &t
			}
		}
		return s.UpsertFocusSession(ctx, FocusSessionParams{
			StartTime:   start,
			EndTime:     end,
			DurationMin: intAttr(f.Attributes, "duration_min"),
			Task:        f.Name,
			Completed:   boolAttr(f.Attributes, "completed"),
		})
	},
	"List": func(ctx context.Context, s *Service, f Fact) (string, error) {
		return s.UpsertList(ctx, ListParams{
			Name:    f.Name,
			Type:    stringAttr(f.Attributes, "type"),
			Project: stringAttr(f.Attributes, "project"),
		})
	},
}

// guessProjectForTask implements spec §9's "Auto-link Task→Project by
// substring": when extraction produced no explicit project, look for an
// existing Project whose name appears as a case-folded substring of the
// task's title and link to it automatically.
func (s *Service) guessProjectForTask(ctx context.Context, taskName string) string {
	projects, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{Type: "Project"})
	if err != nil {
		return ""
	}
	lowered := normalizeKey(taskName)
	for _, p := range projects {
		if strings.Contains(lowered, normalizeKey(p.Name)) {
			return p.Name
		}
	}
	return ""
}

func stringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

// floatAttr coerces attrs[key] into a float64, whether it arrived as a JSON
// number (the common case, decoded as float64) or a numeric string (some
// extraction prompts emit "50" rather than 50). Missing/unparseable keys
// yield zero.
func floatAttr(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

func intAttr(attrs map[string]any, key string) int {
	return int(floatAttr(attrs, key))
}

func boolAttr(attrs map[string]any, key string) bool {
	switch v := attrs[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// parseFactTime parses attrs[key] as a timestamp, trying RFC3339 first and
// falling back to a handful of looser layouts extraction commonly produces.
func parseFactTime(attrs map[string]any, key string) (time.Time, error) {
	raw := stringAttr(attrs, key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s %q is not a recognised date/time", key, raw)
}

// lookupFactEntity retrieves the entity UpsertFromFacts just upserted,
// keyed by ID for idKeyedFactTypes and by canonical name otherwise.
func (s *Service) lookupFactEntity(ctx context.Context, entityType, canonical string) (*graphstore.Entity, error) {
	if idKeyedFactTypes[entityType] {
		return s.graph.GetEntity(ctx, canonical)
	}
	return s.graph.GetEntityByName(ctx, entityType, canonical)
}

var errNotFound = apperr.New("", apperr.KindNotFound, nil)

// applyPseudoEntityFact executes the side effect a pseudo-entity Fact
// describes against an already-existing entity, rather than creating a new
// named node — DebtPayment/ItemUsage/ItemMove/ReminderAction all act on
// something the extractor recognised as already present in the graph.
// Reports handled=false when f.Type isn't a pseudo-entity type.
func (s *Service) applyPseudoEntityFact(ctx context.Context, f Fact) (handled bool, err error) {
	switch f.Type {
	case "DebtPayment":
		person := f.Name
		for _, rel := range f.Relationships {
			if rel.TargetType == "Person" {
				person = rel.TargetName
				break
			}
		}
		var direction DebtDirection
		if raw := stringAttr(f.Attributes, "direction"); raw != "" {
			direction = NormalizeDebtDirection(raw)
		}
		_, _, err = s.PayDebtByPerson(ctx, person, floatAttr(f.Attributes, "amount"), direction)
		return true, err
	case "ItemUsage":
		qty := floatAttr(f.Attributes, "quantity_used")
		if qty == 0 {
			qty = 1
		}
		_, err = s.AdjustItemQuantity(ctx, f.Name, -math.Abs(qty))
		return true, err
	case "ItemMove":
		toLocation := stringAttr(f.Attributes, "to_location")
		if toLocation == "" {
			return true, apperr.Validation("graphsvc.UpsertFromFacts.ItemMove", fmt.Errorf("to_location is required"))
		}
		_, err = s.MoveItem(ctx, f.Name, toLocation)
		return true, err
	case "ReminderAction":
		action := stringAttr(f.Attributes, "action")
		if action == "" {
			action = "done"
		}
		title := stringAttr(f.Attributes, "reminder_title")
		if title == "" {
			title = f.Name
		}
		_, err = s.UpdateReminderStatus(ctx, title, action, stringAttr(f.Attributes, "snooze_until"))
		return true, err
	default:
		return false, nil
	}
}

// UpsertFromFacts upserts a batch of extracted [Fact]s, routing each by
// Type, then wires their asserted [FactRelationship]s. When fileHash is
// non-empty, each successfully upserted entity gets an EXTRACTED_FROM edge
// to the File node identified by fileHash — spec §4.2 requires
// [Service.EnsureFileStub] to have been called first, since provenance
// edges MATCH rather than MERGE the File node.
//
// Upserts for facts from one document are processed sequentially (not
// concurrently) to keep entity-resolution consistent, per spec §5.
func (s *Service) UpsertFromFacts(ctx context.Context, facts []Fact, fileHash string) ([]string, error) {
	var fileEntity *graphstore.Entity
	if fileHash != "" {
		f, err := s.FindFileByHash(ctx, fileHash)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, apperr.Fatal("graphsvc.UpsertFromFacts", errFileStubMissing)
		}
		fileEntity = f
	}

	canonicalByName := make(map[string]string, len(facts))
	var canonicals []string

	for _, f := range facts {
		if handled, err := s.applyPseudoEntityFact(ctx, f); handled {
			// Pseudo-entities act on an entity that already exists rather
			// than creating a named node, so they carry no provenance edge
			// and assert no relationships of their own (spec §9). A missing
			// target (e.g. "paid Sara back" with no open debt) is dropped
			// rather than aborting the rest of the batch.
			if err != nil && !errors.Is(err, errNotFound) {
				return canonicals, err
			}
			continue
		}

		handler, ok := factHandlers[f.Type]
		if !ok {
			continue // unknown/tool-only type: dropped at the ingestion boundary (spec §9).
		}
		canonical, err := handler(ctx, s, f)
		if err != nil {
			return canonicals, err
		}
		canonicalByName[f.Name] = canonical
		canonicals = append(canonicals, canonical)

		if fileEntity != nil {
			entity, err := s.lookupFactEntity(ctx, f.Type, canonical)
			if err != nil || entity == nil {
				continue
			}
			if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
				SourceID:  entity.ID,
				TargetID:  fileEntity.ID,
				RelType:   "EXTRACTED_FROM",
				CreatedAt: s.now(),
			}); err != nil {
				return canonicals, apperr.Fatal("graphsvc.UpsertFromFacts.provenance", err)
			}
		}
	}

	for _, f := range facts {
		srcCanonical, ok := canonicalByName[f.Name]
		if !ok {
			continue
		}
		src, err := s.lookupFactEntity(ctx, f.Type, srcCanonical)
		if err != nil || src == nil {
			continue
		}
		for _, rel := range f.Relationships {
			targetCanonical, ok := canonicalByName[rel.TargetName]
			if !ok {
				existing, err := s.graph.GetEntityByName(ctx, rel.TargetType, rel.TargetName)
				if err != nil || existing == nil {
					continue
				}
				targetCanonical = existing.Name
			}
			target, err := s.lookupFactEntity(ctx, rel.TargetType, targetCanonical)
			if err != nil || target == nil {
				continue
			}
			_ = s.graph.AddRelationship(ctx, graphstore.Relationship{
				SourceID:  src.ID,
				TargetID:  target.ID,
				RelType:   rel.RelType,
				CreatedAt: s.now(),
			})
		}
	}

	return canonicals, nil
}
