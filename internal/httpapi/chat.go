package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/khazna/khazna/internal/apperr"
	"github.com/khazna/khazna/internal/chatengine"
)

func (h *Handler) registerChat(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat/", h.handleChat)
	mux.HandleFunc("POST /chat/stream", h.handleChatStream)
	mux.HandleFunc("GET /chat/summary", h.handleChatSummary)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// handleChat implements spec §6's `POST /chat/` (non-streaming chat turn).
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "chat", err)
		return
	}
	if req.Message == "" || req.SessionID == "" {
		writeError(w, "chat", apperr.Validation("httpapi.handleChat", errMessageAndSessionRequired))
		return
	}

	result, err := h.deps.Chat.Chat(ctxOrBackground(r), req.Message, req.SessionID)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleChatStream implements spec §6's `POST /chat/stream`: an NDJSON
// response body, one JSON object per line, of the `meta`/`token`/
// `tool_call`/`done` event sequence.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "chat_stream", err)
		return
	}
	if req.Message == "" || req.SessionID == "" {
		writeError(w, "chat_stream", apperr.Validation("httpapi.handleChatStream", errMessageAndSessionRequired))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)

	out := make(chan chatengine.StreamEvent, 8)
	go h.deps.Chat.ChatStream(ctxOrBackground(r), req.Message, req.SessionID, out)

	enc := json.NewEncoder(w)
	for ev := range out {
		if err := enc.Encode(ev); err != nil {
			h.deps.Logger.Error("httpapi: chat stream encode failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleChatSummary implements spec §6's `GET /chat/summary?session_id=`.
func (h *Handler) handleChatSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := requireQuery(r, "session_id")
	if err != nil {
		writeError(w, "chat_summary", err)
		return
	}

	summary, err := h.deps.Chat.Summary(ctxOrBackground(r), sessionID)
	if err != nil {
		writeError(w, "chat_summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
