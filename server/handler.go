package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"persona-handler/history"
	"persona-handler/logging"
	"persona-handler/metrics"
	"persona-handler/responselog"
)

type Handler struct {
	histories *history.Store
	logs      *responselog.Cache
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func NewHandler(
	histories *history.Store,
	logs *responselog.Cache,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Handler {
	return &Handler{histories: histories, logs: logs, metrics: m, logger: logger}
}

// Message is JSON form of finalized history entry
type Message struct {
	ID    int64     `json:"id"`
	Nick  string    `json:"nick"`
	Text  string    `json:"text"`
	IsBot bool      `json:"is_bot"`
	Sent  time.Time `json:"sent"`
}

func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// Log serves rendered verbose log of reply
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rendered, ok := h.logs.Get(id)
	if !ok {
		http.Error(w, "no log with that id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}

// History serves finalized view of chat
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	ch, ok := h.histories.Lookup(chatID)
	if !ok {
		http.Error(w, "unknown chat", http.StatusNotFound)
		return
	}

	view := ch.FinalizedView()
	out := make([]Message, 0, len(view))
	for _, s := range view {
		out = append(out, Message{
			ID: s.ID, Nick: s.Nick, Text: s.Text, IsBot: s.IsBot, Sent: s.Sent,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Warn("failed to encode history", logging.Err(err), logging.ChatID(chatID))
	}
}
