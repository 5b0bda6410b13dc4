package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/ner"
	"github.com/khazna/khazna/internal/vectorstore"
)

const documentContextPreviewChars = 280

// IngestText runs the five-step pipeline (spec §4.2): translate, chunk,
// contextually enrich, embed and extract in parallel, then upsert. Callers
// ingesting on behalf of a file must have already called
// [graphsvc.Service.EnsureFileStub] for req.FileHash.
func (s *Service) IngestText(ctx context.Context, req TextRequest) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperr.Validation("ingest.IngestText", fmt.Errorf("text must not be empty"))
	}

	english, err := s.deps.Gateway.Translate(ctx, req.Text, "ar-en")
	if err != nil {
		return nil, apperr.LLMTimeout("ingest.IngestText.translate", err)
	}
	if english == "" {
		english = req.Text
	}

	var nerHints string
	if s.deps.NER != nil {
		hints, err := s.deps.NER.Extract(ctx, req.Text)
		if err == nil {
			nerHints = ner.FormatHints(hints)
		}
	}

	embedChunks := chunkText(english, s.embedChunkTokens, s.embedOverlapTokens)
	extractChunks := chunkText(english, s.extractChunkTokens, 0)
	if len(embedChunks) == 0 {
		return nil, apperr.ExtractionEmpty("ingest.IngestText", fmt.Errorf("no chunkable text"))
	}

	docContext := english
	if len(docContext) > documentContextPreviewChars {
		docContext = docContext[:documentContextPreviewChars]
	}

	enriched := make([]string, len(embedChunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range embedChunks {
		i, chunk := i, chunk
		g.Go(func() error {
			paragraph, err := s.deps.Gateway.Enrich(gctx, chunk, docContext)
			if err != nil {
				enriched[i] = chunk // degrade to the raw chunk rather than fail the whole run.
				return nil
			}
			enriched[i] = paragraph + "\n\n" + chunk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Fatal("ingest.IngestText.enrich", err)
	}

	// Step 4: embed every enriched chunk and extract facts from every
	// extraction-sized chunk, all concurrently (spec §4.2 step 4).
	g, gctx = errgroup.WithContext(ctx)
	for _, chunk := range enriched {
		chunk := chunk
		g.Go(func() error {
			embedding, err := s.deps.Embed.Embed(gctx, chunk)
			if err != nil {
				return apperr.BackendUnavailable("ingest.IngestText.embed", err)
			}
			point := vectorstore.Chunk{
				ID:         uuid.NewString(),
				FileID:     req.FileHash,
				Content:    chunk,
				Embedding:  embedding,
				Topic:      req.Topic,
				SourceType: req.SourceType,
				Tags:       req.Tags,
				SessionID:  req.SessionID,
				Timestamp:  time.Now(),
			}
			if err := s.deps.Vectors.IndexChunk(gctx, point); err != nil {
				return apperr.BackendUnavailable("ingest.IngestText.index", err)
			}
			return nil
		})
	}

	extractedFacts := make([][]graphsvc.Fact, len(extractChunks))
	for i, chunk := range extractChunks {
		i, chunk := i, chunk
		g.Go(func() error {
			raw, err := s.deps.Gateway.ExtractFacts(gctx, chunk, nerHints, graphsvc.ExtractableTypes)
			if err != nil {
				return nil // extraction failure degrades gracefully; embedding still succeeds.
			}
			facts, err := graphsvc.ParseExtractedFacts(raw)
			if err != nil {
				return nil
			}
			extractedFacts[i] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var allFacts []graphsvc.Fact
	for _, facts := range extractedFacts {
		allFacts = append(allFacts, facts...)
	}

	// Step 5: upsert facts via the Graph Service. UpsertFromFacts processes
	// them sequentially to keep entity resolution consistent (spec §5).
	var entities []string
	if len(allFacts) > 0 {
		entities, err = s.deps.Graph.UpsertFromFacts(ctx, allFacts, req.FileHash)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		ChunksStored:   len(embedChunks),
		FactsExtracted: len(allFacts),
		Entities:       entities,
	}, nil
}
