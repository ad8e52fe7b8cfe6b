package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"converse/internal/auth"
	chathandler "converse/internal/handler/chat"
	messagehandler "converse/internal/handler/message"
	userhandler "converse/internal/handler/user"
	wshandler "converse/internal/handler/ws"
	middlewarePkg "converse/internal/middleware"
	"converse/internal/realtime"
	chatservice "converse/internal/service/chat"
	messageservice "converse/internal/service/message"
	userservice "converse/internal/service/user"
)

// NewRouter wires HTTP routes to core services. Registration and login are
// public; everything else, the websocket endpoint included, sits behind
// bearer auth.
func NewRouter(
	log *slog.Logger,
	tokens *auth.TokenManager,
	allowedOrigins []string,
	userSvc *userservice.Service,
	chatSvc *chatservice.Service,
	messageSvc *messageservice.Service,
	gateway *realtime.Gateway,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	userHandler := userhandler.New(userSvc, log)
	chatHandler := chathandler.New(chatSvc, log)
	messageHandler := messagehandler.New(messageSvc, log)
	wsHandler := wshandler.New(gateway)

	userHandler.RegisterPublic(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middlewarePkg.Auth(tokens))
		userHandler.RegisterProtected(protected)
		chatHandler.RegisterRoutes(protected)
		messageHandler.RegisterRoutes(protected)
		wsHandler.RegisterRoutes(protected)
	})

	return r
}
