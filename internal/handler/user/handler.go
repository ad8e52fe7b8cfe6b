package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"converse/internal/middleware"
	usersvc "converse/internal/service/user"
	"converse/pkg/utils"
)

var validate = validator.New()

// Handler exposes registration, login and user search.
type Handler struct {
	svc *usersvc.Service
	log *slog.Logger
}

func New(svc *usersvc.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/user/register", h.handleRegister)
	r.Post("/user/login", h.handleLogin)
}

// RegisterProtected mounts the routes behind bearer auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/user", h.handleSearch)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Please enter all the fields")
		return
	}

	u, err := h.svc.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, usersvc.ErrEmailTaken) {
			utils.RespondError(w, http.StatusBadRequest, "User already exists")
			return
		}
		h.log.Error("register failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"status": true,
		"_id":    u.ID,
		"name":   u.Name,
		"email":  u.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Please enter all the fields")
		return
	}

	u, token, err := h.svc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, usersvc.ErrInvalidCredentials) {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.log.Error("login failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": true,
		"_id":    u.ID,
		"name":   u.Name,
		"email":  u.Email,
		"token":  token,
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserID(r.Context())
	users, err := h.svc.Search(r.Context(), callerID, r.URL.Query().Get("search"))
	if err != nil {
		h.log.Error("user search failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}
