package fileproc

import (
	"context"
	"encoding/json"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/vectorstore"
)

// similarityThreshold and similarityTopK match spec §4.3's auto-item rule
// exactly: "a subsequent vector similarity search (threshold 0.5, top 3)".
const (
	similarityThreshold = 0.5
	similarityTopK      = 3
)

type inventoryAnalysis struct {
	Name      string  `json:"name"`
	NameAr    string  `json:"name_ar"`
	Category  string  `json:"category"`
	Brand     string  `json:"brand"`
	Condition string  `json:"condition"`
	Quantity  float64 `json:"quantity"`
}

// autoCreateItem implements spec §4.3's "Auto-item" rule: inventory-class
// images create an Item linked FROM_PHOTO to the file, and a vector
// similarity search over existing chunks warns about likely duplicates.
func (s *Service) autoCreateItem(ctx context.Context, rawAnalysis string, fileID string) (itemID string, similar []string, err error) {
	var a inventoryAnalysis
	if err := json.Unmarshal([]byte(rawAnalysis), &a); err != nil || a.Name == "" {
		return "", nil, nil // nothing structured enough to act on; not an error.
	}
	if a.Quantity == 0 {
		a.Quantity = 1
	}

	itemID, err = s.deps.Graph.UpsertItem(ctx, graphsvc.ItemParams{
		Name:      a.Name,
		Quantity:  a.Quantity,
		Category:  a.Category,
		Brand:     a.Brand,
		Condition: a.Condition,
	})
	if err != nil {
		return "", nil, err
	}

	if fileID != "" {
		_ = s.deps.Graph.LinkToFile(ctx, itemID, fileID, "FROM_PHOTO")
	}

	similar, err = s.findSimilarInventory(ctx, a.Name)
	if err != nil {
		return itemID, nil, nil // the item was still created; the warning is best-effort.
	}
	return itemID, similar, nil
}

func (s *Service) findSimilarInventory(ctx context.Context, name string) ([]string, error) {
	embedding, err := s.deps.Embed.Embed(ctx, name)
	if err != nil {
		return nil, err
	}
	results, err := s.deps.Vectors.Search(ctx, embedding, similarityTopK, vectorstore.ChunkFilter{})
	if err != nil {
		return nil, err
	}
	var similar []string
	for _, r := range results {
		if r.Distance <= similarityThreshold {
			similar = append(similar, r.Chunk.Content)
		}
	}
	return similar, nil
}
