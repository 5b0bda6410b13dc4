package catalog

import (
	"context"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/tools"
	"github.com/khazna/khazna/pkg/llmgateway"
)

const defaultSearchTopK = 5

// searchKnowledgeArgs is the decoded input for "search_knowledge".
type searchKnowledgeArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// storeNoteArgs is the decoded input for "store_note".
type storeNoteArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Topic   string `json:"topic,omitempty"`
}

// getPersonInfoArgs is the decoded input for "get_person_info".
type getPersonInfoArgs struct {
	Name string `json:"name"`
}

func knowledgeTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "search_knowledge",
				Description: "Search stored knowledge (notes, facts, reference numbers) by semantic similarity. Returns the most relevant entries, most similar first.",
				Parameters: objectSchema(map[string]any{
					"query":  stringProp("Search query, Arabic or English."),
					"top_k":  intProp("Maximum number of results. Defaults to 5."),
				}, "query"),
				ReadOnly: true,
			},
			Handler:     handlerFunc(searchKnowledgeHandler(deps)),
			Class:       tools.ClassRead,
			DeclaredP50: 150,
			DeclaredMax: 500,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "store_note",
				Description: "Save a standalone piece of knowledge (a fact, reference number, or note) for later retrieval. Category is auto-detected when not provided by the caller.",
				Parameters: objectSchema(map[string]any{
					"title":   stringProp("Short title identifying the note."),
					"content": stringProp("The note's full text."),
					"topic":   stringProp("Optional topic grouping."),
				}, "title", "content"),
			},
			Handler:     handlerFunc(storeNoteHandler(deps)),
			Class:       tools.ClassWrite,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		},
		{
			Definition: llmgateway.ToolDefinition{
				Name:        "get_person_info",
				Description: "Look up everything known about a person: their own attributes plus their multi-hop relationship neighbourhood (company, projects, debts, reminders involving them).",
				Parameters: objectSchema(map[string]any{
					"name": stringProp("The person's name."),
				}, "name"),
				ReadOnly: true,
			},
			Handler:     handlerFunc(getPersonInfoHandler(deps)),
			Class:       tools.ClassDeep,
			DeclaredP50: 300,
			DeclaredMax: 2000,
		},
	}
}

func searchKnowledgeHandler(deps Deps) func(context.Context, searchKnowledgeArgs) (string, error) {
	return func(ctx context.Context, a searchKnowledgeArgs) (string, error) {
		topK := a.TopK
		if topK <= 0 {
			topK = defaultSearchTopK
		}
		embedding, err := deps.Embed.Embed(ctx, a.Query)
		if err != nil {
			return encodeRead(nil, err)
		}
		results, err := deps.Graph.QueryRetrieval(ctx, a.Query, embedding, topK, deps.SelfRAGThreshold)
		return encodeRead(results, err)
	}
}

func storeNoteHandler(deps Deps) func(context.Context, storeNoteArgs) (string, error) {
	return func(ctx context.Context, a storeNoteArgs) (string, error) {
		canonical, err := deps.Graph.UpsertKnowledge(ctx, graphsvc.KnowledgeParams{
			Title:   a.Title,
			Content: a.Content,
			Topic:   a.Topic,
		})
		return encodeWrite("Knowledge", canonical, "saved note: "+a.Title, err)
	}
}

func getPersonInfoHandler(deps Deps) func(context.Context, getPersonInfoArgs) (string, error) {
	return func(ctx context.Context, a getPersonInfoArgs) (string, error) {
		person, neighbors, err := deps.Graph.QueryPersonContext(ctx, a.Name)
		if err != nil {
			return encodeRead(nil, err)
		}
		if person == nil {
			return encodeRead(map[string]any{"found": false}, nil)
		}
		return encodeRead(map[string]any{
			"found":     true,
			"person":    person,
			"context":   graphsvc.FormatContext(neighbors),
		}, nil)
	}
}
