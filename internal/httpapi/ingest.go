package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/fileproc"
	"github.com/khazna/khazna/internal/ingest"
)

const maxUploadBytes = 64 << 20 // 64MiB; spec's per-file-upload 120s timeout bounds the slow case, this bounds the pathological one.

func (h *Handler) registerIngest(mux *http.ServeMux) {
	mux.HandleFunc("POST /ingest/text", h.handleIngestText)
	mux.HandleFunc("POST /ingest/file", h.handleIngestFile)
	mux.HandleFunc("POST /ingest/url", h.handleIngestURL)
	mux.HandleFunc("GET /ingest/file/{hash}", h.handleIngestFileDownload)
}

type ingestTextRequest struct {
	Text       string   `json:"text"`
	SourceType string   `json:"source_type"`
	Tags       []string `json:"tags"`
	Topic      string   `json:"topic"`
	SessionID  string   `json:"session_id"`
}

func (h *Handler) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "ingest_text", err)
		return
	}
	result, err := h.deps.Ingest.IngestText(ctxOrBackground(r), ingest.TextRequest{
		Text:       req.Text,
		SourceType: req.SourceType,
		Tags:       req.Tags,
		Topic:      req.Topic,
		SessionID:  req.SessionID,
	})
	if err != nil {
		writeError(w, "ingest_text", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, "ingest_file", apperr.Validation("httpapi.handleIngestFile", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "ingest_file", apperr.Validation("httpapi.handleIngestFile", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, "ingest_file", apperr.Validation("httpapi.handleIngestFile", err))
		return
	}

	req := fileproc.Request{
		Filename:  header.Filename,
		Data:      data,
		Mime:      header.Header.Get("Content-Type"),
		SessionID: r.FormValue("session_id"),
	}
	result, err := h.deps.FileProc.ProcessFile(ctxOrBackground(r), req)
	if err != nil {
		writeError(w, "ingest_file", err)
		return
	}

	if err := h.persistUpload(req.Filename, data); err != nil {
		h.deps.Logger.Error("httpapi: persist upload failed", "filename", req.Filename, "error", err)
	}

	writeJSON(w, http.StatusOK, result)
}

type ingestURLRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "ingest_url", err)
		return
	}
	result, err := h.deps.FileProc.ProcessURL(ctxOrBackground(r), fileproc.URLRequest{
		URL:       req.URL,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, "ingest_url", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIngestFileDownload serves a previously uploaded file back by its
// content hash, per spec §6's `data/files/{hash[:2]}/{hash}.{ext}` layout.
func (h *Handler) handleIngestFileDownload(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if hash == "" || len(hash) < 2 {
		writeError(w, "ingest_file_download", apperr.Validation("httpapi.handleIngestFileDownload", fmt.Errorf("invalid hash %q", hash)))
		return
	}
	dir := filepath.Join(h.deps.FilesDir, hash[:2])
	matches, err := filepath.Glob(filepath.Join(dir, hash+".*"))
	if err != nil || len(matches) == 0 {
		writeError(w, "ingest_file_download", apperr.NotFound("httpapi.handleIngestFileDownload", fmt.Errorf("file %q not found", hash)))
		return
	}
	http.ServeFile(w, r, matches[0])
}

// persistUpload writes req's bytes under data/files/{hash[:2]}/{hash}.{ext},
// spec §6's persisted-state layout for re-downloading an ingested file.
func (h *Handler) persistUpload(filename string, data []byte) error {
	if h.deps.FilesDir == "" {
		return nil
	}
	hash := sha256Hex(data)
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	dir := filepath.Join(h.deps.FilesDir, hash[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := hash
	if ext != "" {
		name += "." + ext
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
