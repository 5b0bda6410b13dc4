package graphstore

import "time"

// Provenance records the origin of a fact asserted in the knowledge graph.
// It is embedded in [Relationship] and in entity attributes produced by
// extraction, so downstream reasoning (and the backup/restore and
// re-upload/supersede machinery) can tell a directly stated fact from one
// inferred by the model, and trace it back to the source chunk.
type Provenance struct {
	// ChunkID is the ingestion chunk this fact was extracted from. Empty
	// when the fact was asserted directly through a tool call rather than
	// extracted from ingested text.
	ChunkID string

	// FileID is the source file this fact was extracted from, if any.
	FileID string

	// Timestamp is when the fact was established.
	Timestamp time.Time

	// Confidence is the model's confidence in this fact (0.0-1.0).
	Confidence float64

	// Source describes how the fact was derived. Well-known values:
	// "stated" (the user said it directly), "extracted" (pulled from
	// ingested text), "inferred" (model reasoning over other facts).
	Source string
}

// Relationship is a directed, typed edge between two entities in the
// knowledge graph.
type Relationship struct {
	// SourceID is the ID of the originating entity.
	SourceID string

	// TargetID is the ID of the destination entity.
	TargetID string

	// RelType is the semantic label of the relationship (e.g. "WORKS_AT",
	// "BELONGS_TO", "OWES", "ASSIGNED_TO", "CONTAINS").
	RelType string

	// Attributes holds additional edge metadata.
	Attributes map[string]any

	// Provenance records the evidence trail for this relationship.
	Provenance Provenance

	// CreatedAt is when this relationship was first added.
	CreatedAt time.Time
}
