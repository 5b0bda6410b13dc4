package fileproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/khazna/khazna/internal/ingest"
)

// ProcessFile runs the full spec §4.3 pipeline: classify, branch to the
// type-specific extraction, hand the resulting text to the ingestion
// pipeline, and apply the auto-item/auto-expense rules when the
// classification calls for them.
func (s *Service) ProcessFile(ctx context.Context, req Request) (*Result, error) {
	class, err := s.classify(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fileproc: classify: %w", err)
	}

	var (
		text        string
		rawAnalysis string
		barcode     string
	)

	// The branch is chosen by the file's actual kind (spec §4.3's Image/
	// PDF/Audio/Text branches), not by the classified label: an
	// inventory_item or note label can equally describe an image or a
	// plain-text file, but only images get routed through vision analysis.
	switch {
	case isAudioMime(req.Mime, req.Filename):
		text, err = s.transcribeAudio(ctx, req.Data, req.Mime)
		if err != nil {
			return nil, fmt.Errorf("fileproc: transcribe: %w", err)
		}
	case isPDFMime(req.Mime, req.Filename):
		text, err = s.processPDF(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fileproc: pdf: %w", err)
		}
	case isImageMime(req.Mime, req.Filename):
		text, rawAnalysis, barcode, err = s.processImage(ctx, req, class)
		if err != nil {
			return nil, fmt.Errorf("fileproc: image: %w", err)
		}
	default:
		text = decodeText(req.Data)
	}

	hash := sha256Hex(req.Data)
	fileEntity, err := s.deps.Graph.EnsureFileStub(ctx, hash, req.Filename, req.Mime, int64(len(req.Data)))
	if err != nil {
		return nil, fmt.Errorf("fileproc: ensure file stub: %w", err)
	}

	ingestResult, err := s.deps.Ingest.IngestText(ctx, ingest.TextRequest{
		Text:       text,
		SourceType: "file",
		Topic:      string(class),
		SessionID:  req.SessionID,
		FileHash:   hash,
	})
	if err != nil {
		return nil, fmt.Errorf("fileproc: ingest: %w", err)
	}

	result := &Result{
		Class:        string(class),
		IngestResult: ingestResult,
		Barcode:      barcode,
	}

	if class == ClassInventoryItem && rawAnalysis != "" {
		itemID, similar, err := s.autoCreateItem(ctx, rawAnalysis, fileEntity.ID)
		if err == nil {
			result.CreatedItem = itemID
			result.SimilarItems = similar
		}
	}
	if class == ClassInvoice && rawAnalysis != "" {
		expenseID, err := s.autoCreateExpense(ctx, rawAnalysis)
		if err == nil {
			result.CreatedExpense = expenseID
		}
	}

	return result, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
