package message

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"converse/internal/middleware"
	messagesvc "converse/internal/service/message"
	"converse/pkg/utils"
)

// Handler exposes the message log.
type Handler struct {
	svc *messagesvc.Service
	log *slog.Logger
}

func New(svc *messagesvc.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleSend)
	r.Get("/message/{chatId}", h.handleList)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	var payload struct {
		Content string `json:"content"`
		ChatID  string `json:"chatId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ChatID == "" || payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content and chatId are required")
		return
	}

	view, err := h.svc.Send(r.Context(), callerID, payload.ChatID, payload.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	chatID := chi.URLParam(r, "chatId")

	views, err := h.svc.List(r.Context(), callerID, chatID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messagesvc.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messagesvc.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, messagesvc.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "You are not a member of this chat")
	default:
		h.log.Error("message operation failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
