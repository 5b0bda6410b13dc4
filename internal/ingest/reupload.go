package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/graphsvc"
)

// FileRequest is the input to [Service.IngestFile].
type FileRequest struct {
	Filename   string
	Data       []byte
	Mime       string
	SourceType string
	Tags       []string
	Topic      string
	SessionID  string
}

// IngestFile runs the re-upload lifecycle around [Service.IngestText] (spec
// §4.2's "Re-upload semantics"): dedup by content hash, and on a genuine
// re-upload under the same filename, snapshot section links, drop the old
// file's vectors and orphaned entities, ingest the new content, record the
// supersession edge, and restore whatever section links still apply.
func (s *Service) IngestFile(ctx context.Context, req FileRequest, text string) (*Result, error) {
	hash := sha256Hex(req.Data)

	existing, err := s.deps.Graph.FindFileByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{Status: "duplicate"}, nil
	}

	previous, err := s.deps.Graph.FindFileByFilename(ctx, req.Filename)
	if err != nil {
		return nil, err
	}

	var snapshot graphsvc.SectionMap
	if previous != nil {
		snapshot, err = s.deps.Graph.GetFileSectionMap(ctx, previous.ID)
		if err != nil {
			return nil, err
		}
		prevHash, _ := previous.Attributes["sha256"].(string)
		if err := s.deps.Vectors.DeleteByFile(ctx, prevHash); err != nil {
			return nil, apperr.BackendUnavailable("ingest.IngestFile.deleteVectors", err)
		}
		if err := s.deps.Graph.CleanupFileEntities(ctx, previous.ID); err != nil {
			return nil, err
		}
	}

	fileEntity, err := s.deps.Graph.EnsureFileStub(ctx, hash, req.Filename, req.Mime, int64(len(req.Data)))
	if err != nil {
		return nil, apperr.Fatal("ingest.IngestFile.ensureStub", err)
	}

	result, err := s.IngestText(ctx, TextRequest{
		Text:       text,
		SourceType: req.SourceType,
		Tags:       req.Tags,
		Topic:      req.Topic,
		SessionID:  req.SessionID,
		FileHash:   hash,
	})
	if err != nil {
		return nil, err
	}

	if previous != nil {
		if err := s.deps.Graph.SupersedeFile(ctx, fileEntity.ID, previous.ID); err != nil {
			return nil, err
		}
		if err := s.deps.Graph.RestoreSectionLinks(ctx, fileEntity.ID, snapshot); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
