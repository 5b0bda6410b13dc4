// Package backup implements spec §4.10's Backup Service: snapshot the
// Graph, Vector, and Memory stores to a timestamped directory as JSON, and
// restore any of them back idempotently.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/memstore"
	"github.com/khazna/khazna/internal/vectorstore"
)

// vectorScrollBatch matches spec §4.10's "scroll in batches of 100".
const vectorScrollBatch = 100

const (
	graphFile  = "graph.json"
	vectorFile = "vectors.json"
	memoryFile = "memory.json"
)

// Deps are the stores a Service snapshots and restores.
type Deps struct {
	Graph   *graphsvc.Service
	Vectors vectorstore.Store
	Memory  *memstore.Store
}

// Service runs timestamped snapshot/restore cycles against a root
// directory (spec §4.10: "data/backups/{timestamp}/").
type Service struct {
	deps Deps
	root string
}

// New returns a Service that writes snapshots under root.
func New(deps Deps, root string) *Service {
	return &Service{deps: deps, root: root}
}

// Snapshot is the manifest of one backup run.
type Snapshot struct {
	Timestamp string `json:"timestamp"`
	Dir       string `json:"dir"`
}

// Run executes one full backup: Graph export, Vector scroll-export, Memory
// SCAN-dump, each written to its own JSON file under a directory named for
// at in UTC with the layout 20060102T150405Z (no colons, so it is
// filesystem-safe). Partial
// failure leaves whatever files were already written — a backup job that
// fails midway still leaves forensic evidence of what got through.
func (s *Service) Run(ctx context.Context, at time.Time) (*Snapshot, error) {
	dir := filepath.Join(s.root, at.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create dir %q: %w", dir, err)
	}

	graphSnap, err := s.deps.Graph.ExportGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: export graph: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, graphFile), graphSnap); err != nil {
		return nil, err
	}

	var chunks []vectorstore.Chunk
	err = s.deps.Vectors.Scroll(ctx, vectorScrollBatch, func(batch []vectorstore.Chunk) error {
		chunks = append(chunks, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backup: scroll vectors: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, vectorFile), chunks); err != nil {
		return nil, err
	}

	memDump, err := s.deps.Memory.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: dump memory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, memoryFile), memDump); err != nil {
		return nil, err
	}

	return &Snapshot{Timestamp: at.UTC().Format(time.RFC3339), Dir: dir}, nil
}

// Restore reads back a snapshot directory produced by [Service.Run] and
// replays it: graph entities/relationships upserted, vector chunks
// re-indexed, memory keys re-applied with their original TTLs.
func (s *Service) Restore(ctx context.Context, dir string) error {
	var graphSnap graphsvc.GraphSnapshot
	if err := readJSON(filepath.Join(dir, graphFile), &graphSnap); err != nil {
		return err
	}
	if err := s.deps.Graph.ImportGraph(ctx, &graphSnap); err != nil {
		return fmt.Errorf("backup: import graph: %w", err)
	}

	var chunks []vectorstore.Chunk
	if err := readJSON(filepath.Join(dir, vectorFile), &chunks); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := s.deps.Vectors.IndexChunk(ctx, c); err != nil {
			return fmt.Errorf("backup: restore chunk %q: %w", c.ID, err)
		}
	}

	var memDump []memstore.KeyDump
	if err := readJSON(filepath.Join(dir, memoryFile), &memDump); err != nil {
		return err
	}
	if err := s.deps.Memory.Restore(ctx, memDump); err != nil {
		return fmt.Errorf("backup: restore memory: %w", err)
	}

	return nil
}

// List returns every backup timestamp directory name under root, oldest
// first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: read %q: %w", s.root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Dir returns the backup directory path for a given timestamp name,
// suitable for passing to [Service.Restore].
func (s *Service) Dir(timestamp string) string {
	return filepath.Join(s.root, timestamp)
}

// Retain deletes every backup directory under root older than the N most
// recent, implementing spec §4.9's "retain N days" rule (retention is
// count-based here since jobs run at most once a day; a day and a backup
// run are interchangeable in that cadence).
func (s *Service) Retain(keepDays int) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup: read %q: %w", s.root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs) // timestamp-named directories sort chronologically.
	if len(dirs) <= keepDays {
		return nil
	}
	for _, name := range dirs[:len(dirs)-keepDays] {
		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			return fmt.Errorf("backup: remove %q: %w", name, err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("backup: marshal %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backup: write %q: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("backup: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("backup: unmarshal %q: %w", path, err)
	}
	return nil
}
