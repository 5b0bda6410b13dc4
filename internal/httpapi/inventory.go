package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/vectorstore"
)

// inventorySimilarityThreshold and inventorySimilarityTopK mirror the
// auto-item creation rule's vector-similarity duplicate check (spec §4.3:
// "threshold 0.5, top 3").
const (
	inventorySimilarityThreshold = 0.5
	inventorySimilarityTopK      = 3
)

func (h *Handler) registerInventory(mux *http.ServeMux) {
	mux.HandleFunc("GET /inventory/", h.handleInventoryList)
	mux.HandleFunc("GET /inventory/summary", h.handleInventorySummary)
	mux.HandleFunc("POST /inventory/item", h.handleInventoryItemCreate)
	mux.HandleFunc("POST /inventory/item/update", h.handleInventoryItemUpdate)
	mux.HandleFunc("POST /inventory/location", h.handleInventoryLocationUpdate)
	mux.HandleFunc("POST /inventory/quantity", h.handleInventoryQuantityUpdate)
	mux.HandleFunc("GET /inventory/by-file/{fileID}", h.handleInventoryByFile)
	mux.HandleFunc("GET /inventory/by-barcode/{barcode}", h.handleInventoryByBarcode)
	mux.HandleFunc("GET /inventory/unused", h.handleInventoryUnused)
	mux.HandleFunc("GET /inventory/report", h.handleInventoryReport)
	mux.HandleFunc("GET /inventory/duplicates", h.handleInventoryDuplicates)
	mux.HandleFunc("POST /inventory/search-similar", h.handleInventorySearchSimilar)
}

func (h *Handler) handleInventoryList(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), r.URL.Query().Get("category"), r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, "inventory_list", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleInventorySummary(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), "", "")
	if err != nil {
		writeError(w, "inventory_summary", err)
		return
	}
	byCategory := map[string]int{}
	byLocation := map[string]int{}
	for _, it := range items {
		if cat, ok := it.Attributes["category"].(string); ok && cat != "" {
			byCategory[cat]++
		}
		if loc, ok := it.Attributes["location"].(string); ok && loc != "" {
			byLocation[loc]++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       len(items),
		"by_category": byCategory,
		"by_location": byLocation,
	})
}

type inventoryItemRequest struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Location    string  `json:"location"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Condition   string  `json:"condition"`
	Barcode     string  `json:"barcode"`
	BarcodeType string  `json:"barcode_type"`
}

func (h *Handler) handleInventoryItemCreate(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "inventory_item_create", err)
		return
	}
	if req.Name == "" {
		writeError(w, "inventory_item_create", apperr.Validation("httpapi.handleInventoryItemCreate", errItemNameRequired))
		return
	}
	id, err := h.deps.Graph.UpsertItem(ctxOrBackground(r), graphsvc.ItemParams{
		Name:        req.Name,
		Quantity:    req.Quantity,
		Location:    req.Location,
		Category:    req.Category,
		Brand:       req.Brand,
		Condition:   req.Condition,
		Barcode:     req.Barcode,
		BarcodeType: req.BarcodeType,
	})
	if err != nil {
		writeError(w, "inventory_item_create", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleInventoryItemUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleGenericEntityUpdate(w, r, "inventory_item_update")
}

type inventoryLocationRequest struct {
	ItemID   string `json:"item_id"`
	Location string `json:"location"`
}

func (h *Handler) handleInventoryLocationUpdate(w http.ResponseWriter, r *http.Request) {
	var req inventoryLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "inventory_location_update", err)
		return
	}
	if req.ItemID == "" {
		writeError(w, "inventory_location_update", apperr.Validation("httpapi.handleInventoryLocationUpdate", errItemIDRequired))
		return
	}
	if err := h.deps.Graph.UpdateEntity(ctxOrBackground(r), req.ItemID, map[string]any{"location": req.Location}); err != nil {
		writeError(w, "inventory_location_update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type inventoryQuantityRequest struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

func (h *Handler) handleInventoryQuantityUpdate(w http.ResponseWriter, r *http.Request) {
	var req inventoryQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "inventory_quantity_update", err)
		return
	}
	if req.ItemID == "" {
		writeError(w, "inventory_quantity_update", apperr.Validation("httpapi.handleInventoryQuantityUpdate", errItemIDRequired))
		return
	}
	if err := h.deps.Graph.UpdateEntity(ctxOrBackground(r), req.ItemID, map[string]any{"quantity": req.Quantity}); err != nil {
		writeError(w, "inventory_quantity_update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInventoryByFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileID")
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), "", "")
	if err != nil {
		writeError(w, "inventory_by_file", err)
		return
	}
	var matches []graphstore.Entity
	for _, it := range items {
		if fid, ok := it.Attributes["file_id"].(string); ok && fid == fileID {
			matches = append(matches, it)
		}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) handleInventoryByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := r.PathValue("barcode")
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), "", "")
	if err != nil {
		writeError(w, "inventory_by_barcode", err)
		return
	}
	for _, it := range items {
		if bc, ok := it.Attributes["barcode"].(string); ok && bc == barcode {
			writeJSON(w, http.StatusOK, it)
			return
		}
	}
	writeError(w, "inventory_by_barcode", apperr.NotFound("httpapi.handleInventoryByBarcode", errBarcodeNotFound))
}

const inventoryUnusedDays = "last_used_at"

func (h *Handler) handleInventoryUnused(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), "", "")
	if err != nil {
		writeError(w, "inventory_unused", err)
		return
	}
	cutoff := h.deps.Now().AddDate(0, 0, -queryInt(r, "days", 90))
	var unused []graphstore.Entity
	for _, it := range items {
		last, ok := it.Attributes[inventoryUnusedDays].(string)
		if !ok || last == "" {
			unused = append(unused, it)
			continue
		}
		if t, err := parseRFC3339(last); err == nil && t.Before(cutoff) {
			unused = append(unused, it)
		}
	}
	writeJSON(w, http.StatusOK, unused)
}

func (h *Handler) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Graph.QueryInventory(ctxOrBackground(r), "", "")
	if err != nil {
		writeError(w, "inventory_report", err)
		return
	}
	totalQuantity := 0.0
	byCategory := map[string]float64{}
	for _, it := range items {
		qty, _ := it.Attributes["quantity"].(float64)
		totalQuantity += qty
		if cat, ok := it.Attributes["category"].(string); ok && cat != "" {
			byCategory[cat] += qty
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_items":    len(items),
		"total_quantity": totalQuantity,
		"by_category":    byCategory,
	})
}

// handleInventoryDuplicates implements spec §6's
// `inventory/duplicates?method=name|vector`: "name" groups items by exact
// case-insensitive name match, "vector" groups by embedding similarity
// (the same check the auto-item creation rule runs at ingest time).
func (h *Handler) handleInventoryDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := ctxOrBackground(r)
	method := r.URL.Query().Get("method")
	if method == "" {
		method = "name"
	}

	if method == "name" {
		groups, err := h.deps.Graph.FindDuplicateInventory(ctx)
		if err != nil {
			writeError(w, "inventory_duplicates", err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
		return
	}

	items, err := h.deps.Graph.QueryInventory(ctx, "", "")
	if err != nil {
		writeError(w, "inventory_duplicates", err)
		return
	}
	var groups [][]string
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		similar, err := h.findSimilarItemNames(ctx, it.Name)
		if err != nil || len(similar) == 0 {
			continue
		}
		group := append([]string{it.Name}, similar...)
		groups = append(groups, group)
		seen[it.ID] = true
	}
	writeJSON(w, http.StatusOK, groups)
}

type inventorySearchSimilarRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleInventorySearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req inventorySearchSimilarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "inventory_search_similar", err)
		return
	}
	similar, err := h.findSimilarItemNames(ctxOrBackground(r), req.Name)
	if err != nil {
		writeError(w, "inventory_search_similar", err)
		return
	}
	writeJSON(w, http.StatusOK, similar)
}

func (h *Handler) findSimilarItemNames(ctx context.Context, name string) ([]string, error) {
	embedding, err := h.deps.Embed.Embed(ctx, name)
	if err != nil {
		return nil, apperr.BackendUnavailable("httpapi.findSimilarItemNames", err)
	}
	results, err := h.deps.Vectors.Search(ctx, embedding, inventorySimilarityTopK, vectorstore.ChunkFilter{})
	if err != nil {
		return nil, apperr.BackendUnavailable("httpapi.findSimilarItemNames", err)
	}
	var similar []string
	for _, res := range results {
		if res.Distance <= inventorySimilarityThreshold {
			similar = append(similar, res.Chunk.Content)
		}
	}
	return similar, nil
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
