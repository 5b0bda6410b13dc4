package llmgateway

import (
	"context"
	"fmt"
	"strings"
)

// Gateway is the single pooled client the rest of the system talks to. It
// wraps a [Provider] with the higher-level one-shot operations the
// orchestrator, ingestion pipeline and file processor need: translation,
// classification, fact extraction, vision analysis, reflection and
// summarisation. All of them are plain prompt templates over Complete; no
// provider needs to implement them natively.
type Gateway struct {
	provider Provider
}

// New wraps provider in a Gateway.
func New(provider Provider) *Gateway {
	return &Gateway{provider: provider}
}

// Provider returns the underlying Provider, for callers (the chat
// orchestrator) that need the raw tool-calling surface.
func (g *Gateway) Provider() Provider {
	return g.provider
}

func (g *Gateway) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.provider.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
		Temperature:  0.2,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Translate converts text between Arabic and English. dir is "ar-en" or
// "en-ar"; any other value is treated as "ar-en".
func (g *Gateway) Translate(ctx context.Context, text, dir string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	target := "English"
	if dir == "en-ar" {
		target = "Arabic"
	}
	system := fmt.Sprintf("Translate the user's text to %s. Output only the translation, no commentary.", target)
	out, err := g.complete(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("llmgateway: translate: %w", err)
	}
	return out, nil
}

// Classify runs a single-label classification prompt against labels and
// returns the chosen label. Used by the smart router's LLM fallback and by
// the file processor's artefact classifier.
func (g *Gateway) Classify(ctx context.Context, text string, labels []string) (string, error) {
	system := "Classify the following text into exactly one of these labels: " +
		strings.Join(labels, ", ") + ". Reply with the label only, nothing else."
	out, err := g.complete(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("llmgateway: classify: %w", err)
	}
	out = strings.ToLower(strings.TrimSpace(out))
	for _, l := range labels {
		if strings.ToLower(l) == out {
			return l, nil
		}
	}
	// Best-effort: pick the label contained in the reply, else the first.
	for _, l := range labels {
		if strings.Contains(out, strings.ToLower(l)) {
			return l, nil
		}
	}
	if len(labels) > 0 {
		return labels[0], nil
	}
	return out, nil
}

// ExtractFacts runs the entity/relationship extraction prompt over a chunk
// of text and returns the model's raw JSON response (a facts payload the
// caller parses into entity/relationship records). nerHints, when non-empty,
// is prepended as "[NER hints: ...]" per the extraction contract.
func (g *Gateway) ExtractFacts(ctx context.Context, text, nerHints string, allowedTypes []string) (string, error) {
	system := "Extract entities and relationships from the text as a single JSON object " +
		`{"entities":[{"type":"...","name":"...","attributes":{...}}],"relationships":[{"source":"...","target":"...","type":"..."}]}. ` +
		"Only use entity types from this list: " + strings.Join(allowedTypes, ", ") + ". " +
		"Output JSON only, no prose, no markdown fences."
	user := text
	if nerHints != "" {
		user = fmt.Sprintf("[NER hints: %s]\n%s", nerHints, text)
	}
	out, err := g.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("llmgateway: extract facts: %w", err)
	}
	return stripJSONFence(out), nil
}

// VisionAnalyse sends an image (base64-encoded) with a per-class prompt
// template and returns the model's structured JSON description. Providers
// that do not support vision return an error; callers should check
// Capabilities().SupportsVision before calling.
func (g *Gateway) VisionAnalyse(ctx context.Context, imageBase64, mime, classPrompt string) (string, error) {
	if !g.provider.Capabilities().SupportsVision {
		return "", fmt.Errorf("llmgateway: vision analyse: provider does not support vision")
	}
	content := fmt.Sprintf("%s\n[image/%s omitted from text log, %d base64 bytes attached]", classPrompt, mime, len(imageBase64))
	resp, err := g.provider.Complete(ctx, CompletionRequest{
		SystemPrompt: "Describe the image as structured JSON matching the requested schema. Preserve Arabic names (name_ar) and reference numbers verbatim.",
		Messages:     []Message{{Role: "user", Content: content, Name: imageBase64}},
	})
	if err != nil {
		return "", fmt.Errorf("llmgateway: vision analyse: %w", err)
	}
	return stripJSONFence(resp.Content), nil
}

// Reflect asks the model to judge whether a set of retrieved chunks
// sufficiently answers a query, used by the multi-hop retrieval self-RAG
// filter's single retry decision.
func (g *Gateway) Reflect(ctx context.Context, query, context string) (sufficient bool, reason string, err error) {
	system := `Given a query and retrieved context, reply with JSON {"sufficient": true|false, "reason": "..."}.`
	out, cErr := g.complete(ctx, system, fmt.Sprintf("Query: %s\nContext:\n%s", query, context))
	if cErr != nil {
		return false, "", fmt.Errorf("llmgateway: reflect: %w", cErr)
	}
	out = stripJSONFence(out)
	sufficient = strings.Contains(out, `"sufficient": true`) || strings.Contains(out, `"sufficient":true`)
	return sufficient, out, nil
}

// Enrich produces the 1-2 sentence situating paragraph the ingestion
// pipeline prepends to a chunk before embedding (spec §4.2 step 3): given
// the chunk and a short excerpt of the surrounding document, it asks the
// model to describe what the chunk is about and where it sits in context.
func (g *Gateway) Enrich(ctx context.Context, chunk, documentContext string) (string, error) {
	system := "Write a 1-2 sentence paragraph situating the following excerpt within its document, " +
		"so a reader encountering only the excerpt understands its context. Output only the paragraph."
	user := chunk
	if documentContext != "" {
		user = fmt.Sprintf("Document context: %s\n\nExcerpt:\n%s", documentContext, chunk)
	}
	out, err := g.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("llmgateway: enrich: %w", err)
	}
	return out, nil
}

// Summarise produces a 2-4 sentence summary of text, in Arabic when arabic
// is true and in English otherwise. Used by working-memory compression and
// the chat post-processing summaries.
func (g *Gateway) Summarise(ctx context.Context, text string, arabic bool) (string, error) {
	lang := "English"
	if arabic {
		lang = "Arabic"
	}
	system := fmt.Sprintf("Summarise the following in %s, 2-4 sentences, no preamble.", lang)
	out, err := g.complete(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("llmgateway: summarise: %w", err)
	}
	return out, nil
}

func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
