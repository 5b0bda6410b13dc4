package httpapi

import (
	"net/http"

	"github.com/khazna/khazna/internal/apperr"
)

func (h *Handler) registerBackup(mux *http.ServeMux) {
	mux.HandleFunc("POST /backup/create", h.handleBackupCreate)
	mux.HandleFunc("GET /backup/list", h.handleBackupList)
	mux.HandleFunc("POST /backup/restore/{timestamp}", h.handleBackupRestore)
}

func (h *Handler) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.deps.Backup.Run(ctxOrBackground(r), h.deps.Now())
	if err != nil {
		writeError(w, "backup_create", apperr.BackendUnavailable("httpapi.handleBackupCreate", err))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleBackupList(w http.ResponseWriter, r *http.Request) {
	timestamps, err := h.deps.Backup.List()
	if err != nil {
		writeError(w, "backup_list", apperr.BackendUnavailable("httpapi.handleBackupList", err))
		return
	}
	writeJSON(w, http.StatusOK, timestamps)
}

func (h *Handler) handleBackupRestore(w http.ResponseWriter, r *http.Request) {
	timestamp := r.PathValue("timestamp")
	dir := h.deps.Backup.Dir(timestamp)
	if err := h.deps.Backup.Restore(ctxOrBackground(r), dir); err != nil {
		writeError(w, "backup_restore", apperr.BackendUnavailable("httpapi.handleBackupRestore", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "restored": timestamp})
}
