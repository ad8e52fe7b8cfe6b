package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"converse/internal/middleware"
	chatsvc "converse/internal/service/chat"
	"converse/pkg/utils"
)

// Handler exposes direct-chat resolution and group management.
type Handler struct {
	svc *chatsvc.Service
	log *slog.Logger
}

func New(svc *chatsvc.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleAccess)
	r.Get("/chat/fetch", h.handleFetch)
	r.Post("/chat/group", h.handleCreateGroup)
	r.Put("/chat/group/rename", h.handleRename)
	r.Put("/chat/group/add", h.handleAddMember)
	r.Put("/chat/group/remove", h.handleRemoveMember)
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "UserId is required")
		return
	}

	view, err := h.svc.ResolveDirect(r.Context(), callerID, payload.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	views, err := h.svc.ListForUser(r.Context(), callerID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	var payload struct {
		Name  string          `json:"name"`
		Users json.RawMessage `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	users, ok := decodeUserList(payload.Users)
	if !ok || payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "Please fill all the fields")
		return
	}

	view, err := h.svc.CreateGroup(r.Context(), callerID, payload.Name, users)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	var payload struct {
		ChatID   string `json:"chatId"`
		ChatName string `json:"chatName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ChatID == "" {
		utils.RespondError(w, http.StatusBadRequest, "chatId is required")
		return
	}

	view, err := h.svc.Rename(r.Context(), callerID, payload.ChatID, payload.ChatName)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	payload, ok := decodeMemberChange(w, r)
	if !ok {
		return
	}

	view, err := h.svc.AddMember(r.Context(), callerID, payload.ChatID, payload.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	payload, ok := decodeMemberChange(w, r)
	if !ok {
		return
	}

	view, err := h.svc.RemoveMember(r.Context(), callerID, payload.ChatID, payload.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

type memberChange struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func decodeMemberChange(w http.ResponseWriter, r *http.Request) (memberChange, bool) {
	var payload memberChange
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ChatID == "" || payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "chatId and userId are required")
		return memberChange{}, false
	}
	return payload, true
}

// decodeUserList accepts the invitee list either as a JSON array or as a
// JSON-encoded string containing an array, which is how the web client
// submits it.
func decodeUserList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, true
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatsvc.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, chatsvc.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, chatsvc.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, chatsvc.ErrNotGroup),
		errors.Is(err, chatsvc.ErrSelfChat),
		errors.Is(err, chatsvc.ErrNameRequired),
		errors.Is(err, chatsvc.ErrTooFewMembers):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("chat operation failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
