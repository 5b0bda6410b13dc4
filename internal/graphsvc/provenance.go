// File-provenance bookkeeping: File-node lifecycle, re-upload
// snapshot/cleanup/restore, and supersession (spec §4.2, §4.4).
package graphsvc

import (
	"context"
	"errors"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphstore"
)

var errFileStubMissing = errors.New("ensure_file_stub was not called before writing provenance edges")

// EnsureFileStub creates the File node for sha256 if it does not already
// exist. Provenance edges MATCH rather than MERGE the File node (spec
// §4.2), so this must run before any ingestion that will attach
// EXTRACTED_FROM edges to it.
func (s *Service) EnsureFileStub(ctx context.Context, sha256, filename, mime string, size int64) (*graphstore.Entity, error) {
	existing, err := s.FindFileByHash(ctx, sha256)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	e := graphstore.Entity{
		ID:   newID(),
		Type: "File",
		Name: sha256,
		Attributes: map[string]any{
			"sha256":      sha256,
			"filename":    filename,
			"mime":        mime,
			"size":        size,
			"ingested_at": s.now(),
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.graph.AddEntity(ctx, e); err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.EnsureFileStub", err)
	}
	return &e, nil
}

// FindFileByHash returns the File entity whose sha256 attribute matches
// hash, or (nil, nil) when none exists.
func (s *Service) FindFileByHash(ctx context.Context, hash string) (*graphstore.Entity, error) {
	files, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
		Type:           "File",
		AttributeQuery: map[string]any{"sha256": hash},
		Limit:          1,
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.FindFileByHash", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// FindFileByFilename returns the most recently ingested File entity with
// the given filename, or (nil, nil) when none exists.
func (s *Service) FindFileByFilename(ctx context.Context, filename string) (*graphstore.Entity, error) {
	files, err := s.graph.FindEntities(ctx, graphstore.EntityFilter{
		Type:           "File",
		AttributeQuery: map[string]any{"filename": filename},
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.FindFileByFilename", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	best := files[0]
	for _, f := range files[1:] {
		if f.CreatedAt.After(best.CreatedAt) {
			best = f
		}
	}
	return &best, nil
}

// SectionMap is a snapshot of {entity_name -> section_name} for all
// entities IN_SECTION-linked to a file's extracted entities (spec §4.2
// step b).
type SectionMap map[string]string

// GetFileSectionMap snapshots the current IN_SECTION assignments of every
// entity provenanced from fileID, keyed by normalised entity name.
func (s *Service) GetFileSectionMap(ctx context.Context, fileID string) (SectionMap, error) {
	rels, err := s.graph.GetRelationships(ctx, fileID, graphstore.WithIncoming(), graphstore.WithRelTypes("EXTRACTED_FROM"))
	if err != nil {
		return nil, apperr.BackendUnavailable("graphsvc.GetFileSectionMap.provenance", err)
	}
	snapshot := make(SectionMap)
	for _, rel := range rels {
		entity, err := s.graph.GetEntity(ctx, rel.SourceID)
		if err != nil || entity == nil {
			continue
		}
		sectionRels, err := s.graph.GetRelationships(ctx, entity.ID, graphstore.WithRelTypes("IN_SECTION"))
		if err != nil || len(sectionRels) == 0 {
			continue
		}
		section, err := s.graph.GetEntity(ctx, sectionRels[0].TargetID)
		if err != nil || section == nil {
			continue
		}
		snapshot[normalizeKey(entity.Name)] = section.Name
	}
	return snapshot, nil
}

// CleanupFileEntities deletes entities whose ONLY EXTRACTED_FROM edge
// points at fileID (orphan cleanup, spec §4.2 step d); entities shared
// with other files survive. Only the graph is touched; the File's vector
// chunks are not removed here.
func (s *Service) CleanupFileEntities(ctx context.Context, fileID string) error {
	rels, err := s.graph.GetRelationships(ctx, fileID, graphstore.WithIncoming(), graphstore.WithRelTypes("EXTRACTED_FROM"))
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.CleanupFileEntities.provenance", err)
	}
	for _, rel := range rels {
		provRels, err := s.graph.GetRelationships(ctx, rel.SourceID, graphstore.WithRelTypes("EXTRACTED_FROM"))
		if err != nil {
			continue
		}
		if len(provRels) > 1 {
			// Shared with another file: only drop the edge to this one.
			_ = s.graph.DeleteRelationship(ctx, rel.SourceID, fileID, "EXTRACTED_FROM")
			continue
		}
		if err := s.graph.DeleteEntity(ctx, rel.SourceID); err != nil {
			return apperr.Fatal("graphsvc.CleanupFileEntities.delete", err)
		}
	}
	return nil
}

// RestoreSectionLinks re-creates IN_SECTION edges for the newly-extracted
// entities of fileID by matching against snapshot on normalised name (spec
// §4.2 step g). Entities present in snapshot but not re-extracted are left
// unlinked — the invariant is "surviving edges for matching new entities",
// not full restoration.
func (s *Service) RestoreSectionLinks(ctx context.Context, fileID string, snapshot SectionMap) error {
	if len(snapshot) == 0 {
		return nil
	}
	rels, err := s.graph.GetRelationships(ctx, fileID, graphstore.WithIncoming(), graphstore.WithRelTypes("EXTRACTED_FROM"))
	if err != nil {
		return apperr.BackendUnavailable("graphsvc.RestoreSectionLinks.provenance", err)
	}
	for _, rel := range rels {
		entity, err := s.graph.GetEntity(ctx, rel.SourceID)
		if err != nil || entity == nil {
			continue
		}
		sectionName, ok := snapshot[normalizeKey(entity.Name)]
		if !ok {
			continue
		}
		section, err := s.graph.GetEntityByName(ctx, "Section", sectionName)
		if err != nil || section == nil {
			continue
		}
		if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
			SourceID:  entity.ID,
			TargetID:  section.ID,
			RelType:   "IN_SECTION",
			CreatedAt: s.now(),
		}); err != nil {
			return apperr.Fatal("graphsvc.RestoreSectionLinks.link", err)
		}
	}
	return nil
}

// SupersedeFile records the file-version lineage edge new-File
// -[SUPERSEDES]-> old-File (spec §4.2 step f, glossary "Supersession").
func (s *Service) SupersedeFile(ctx context.Context, newFileID, oldFileID string) error {
	if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
		SourceID:  newFileID,
		TargetID:  oldFileID,
		RelType:   "SUPERSEDES",
		CreatedAt: s.now(),
	}); err != nil {
		return apperr.Fatal("graphsvc.SupersedeFile", err)
	}
	return nil
}

// LinkToFile attaches relType from entityID to fileID. Used for provenance
// edges outside the extraction path — spec §4.3's FROM_PHOTO edge from an
// auto-created Item to the inventory photo it was created from.
func (s *Service) LinkToFile(ctx context.Context, entityID, fileID, relType string) error {
	if err := s.graph.AddRelationship(ctx, graphstore.Relationship{
		SourceID:  entityID,
		TargetID:  fileID,
		RelType:   relType,
		CreatedAt: s.now(),
	}); err != nil {
		return apperr.Fatal("graphsvc.LinkToFile", err)
	}
	return nil
}
