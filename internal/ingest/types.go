// Package ingest implements the text-ingestion pipeline described in spec
// §4.2: translate, chunk, contextually enrich, embed and extract facts in
// parallel, then upsert the result through the knowledge graph and vector
// index. [Service.IngestFile] additionally handles the re-upload lifecycle
// (dedup by content hash, orphan cleanup, supersession) for ingestion
// sources that carry a stable filename.
package ingest

import (
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/ner"
	"github.com/khazna/khazna/internal/vectorstore"
	"github.com/khazna/khazna/pkg/embeddings"
	"github.com/khazna/khazna/pkg/llmgateway"
)

const (
	defaultEmbedChunkTokens   = 1500
	defaultEmbedOverlapTokens = 150
	defaultExtractChunkTokens = 3000
)

// Deps are the collaborators the pipeline needs.
type Deps struct {
	Gateway *llmgateway.Gateway
	Graph   *graphsvc.Service
	Vectors vectorstore.Store
	Embed   embeddings.Provider
	NER     *ner.Recognizer
}

// Service runs the ingestion pipeline. The zero value is not usable;
// construct with [New].
type Service struct {
	deps Deps

	embedChunkTokens   int
	embedOverlapTokens int
	extractChunkTokens int
}

// Option configures a [Service].
type Option func(*Service)

// WithEmbedChunking overrides the default embedding chunk window (1500
// tokens) and overlap (150 tokens).
func WithEmbedChunking(windowTokens, overlapTokens int) Option {
	return func(s *Service) {
		s.embedChunkTokens = windowTokens
		s.embedOverlapTokens = overlapTokens
	}
}

// WithExtractChunking overrides the default fact-extraction chunk window
// (3000 tokens, non-overlapping).
func WithExtractChunking(windowTokens int) Option {
	return func(s *Service) { s.extractChunkTokens = windowTokens }
}

// New returns a Service backed by deps.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps:               deps,
		embedChunkTokens:   defaultEmbedChunkTokens,
		embedOverlapTokens: defaultEmbedOverlapTokens,
		extractChunkTokens: defaultExtractChunkTokens,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TextRequest is the input to [Service.IngestText] (spec §4.2's
// ingest_text(text, source_type, tags[], topic?, session_id?, file_hash?)
// contract).
type TextRequest struct {
	Text       string
	SourceType string
	Tags       []string
	Topic      string
	SessionID  string

	// FileHash, when set, must name a File entity already created via
	// [graphsvc.Service.EnsureFileStub] — provenance edges MATCH rather
	// than MERGE the File node (spec §4.2).
	FileHash string
}

// Result is the outcome of an ingestion run.
type Result struct {
	Status         string `json:"status,omitempty"` // "duplicate" on a dedup short-circuit, otherwise empty
	ChunksStored   int    `json:"chunks_stored"`
	FactsExtracted int    `json:"facts_extracted"`
	Entities       []string `json:"entities"`
}
