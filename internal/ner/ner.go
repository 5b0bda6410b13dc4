// Package ner provides lightweight named-entity recognition over Arabic and
// English text, and the keyword heuristics used to auto-categorise
// Knowledge and Expense entities (§3, §4.6).
//
// Unlike the reference implementation's HuggingFace CAMeL-BERT pipeline,
// entity extraction here is one LLM call through [llmgateway.Gateway] — the
// corpus ships no Go NER model binding, and an LLM call is already on the
// hot path for fact extraction (§4.2 step 4), so reusing it avoids adding a
// second inference backend.
package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khazna/khazna/pkg/llmgateway"
)

// Hint is a single recognised entity mention.
type Hint struct {
	Group string  `json:"entity_group"` // "Person", "Location", "Organization", "Misc"
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// minScore discards low-confidence hints, mirroring the reference
// pipeline's 0.7 aggregation-strategy cutoff.
const minScore = 0.7

// Recognizer extracts named-entity hints from raw text.
type Recognizer struct {
	gateway *llmgateway.Gateway
}

// New wraps gateway as a [Recognizer].
func New(gateway *llmgateway.Gateway) *Recognizer {
	return &Recognizer{gateway: gateway}
}

// Extract returns deduplicated entity hints for text. Returns an empty
// slice (not an error) when text is empty or the model returns nothing
// usable — NER is a hint, never load-bearing for correctness.
func (r *Recognizer) Extract(ctx context.Context, text string) ([]Hint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	system := `Identify named entities in the text. Reply with a JSON array of ` +
		`{"entity_group": "Person"|"Location"|"Organization"|"Misc", "word": "...", "score": 0.0-1.0}. ` +
		`Output JSON only, no prose, no markdown fences.`
	resp, err := r.gateway.Provider().Complete(ctx, llmgateway.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llmgateway.Message{{Role: "user", Content: text}},
		Temperature:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("ner: extract: %w", err)
	}

	raw := strings.TrimSpace(resp.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var hints []Hint
	if err := json.Unmarshal([]byte(raw), &hints); err != nil {
		// Malformed model output is not fatal to the caller; NER hints
		// are advisory input to extraction, not its sole source.
		return nil, nil
	}

	seen := make(map[string]bool, len(hints))
	out := make([]Hint, 0, len(hints))
	for _, h := range hints {
		if h.Score < minScore {
			continue
		}
		word := strings.TrimSpace(h.Word)
		if len([]rune(word)) < 2 {
			continue
		}
		key := h.Group + "|" + word
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Hint{Group: h.Group, Word: word, Score: h.Score})
	}
	return out, nil
}

// FormatHints renders hints as "Group: w1, w2; Group2: w3", the text that
// the LLM gateway wraps in "[NER hints: ...]" and prepends to extraction
// prompts per §4.2 step 4.
func FormatHints(hints []Hint) string {
	if len(hints) == 0 {
		return ""
	}
	byGroup := make(map[string][]string)
	var order []string
	for _, h := range hints {
		if _, ok := byGroup[h.Group]; !ok {
			order = append(order, h.Group)
		}
		byGroup[h.Group] = append(byGroup[h.Group], h.Word)
	}
	parts := make([]string, 0, len(order))
	for _, g := range order {
		parts = append(parts, fmt.Sprintf("%s: %s", g, strings.Join(byGroup[g], ", ")))
	}
	return strings.Join(parts, "; ")
}
