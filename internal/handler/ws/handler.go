package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"converse/internal/middleware"
	"converse/internal/realtime"
	"converse/pkg/utils"
)

// Handler mounts the realtime gateway on the HTTP surface.
type Handler struct {
	gateway *realtime.Gateway
}

func New(gateway *realtime.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleConnect)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	h.gateway.Serve(w, r, userID)
}
