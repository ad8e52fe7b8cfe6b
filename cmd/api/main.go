package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"converse/internal/auth"
	"converse/internal/config"
	"converse/internal/handler"
	"converse/internal/realtime"
	chatservice "converse/internal/service/chat"
	messageservice "converse/internal/service/message"
	userservice "converse/internal/service/user"
	"converse/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, using system environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := store.NewUserStore(db, log)
	chats := store.NewChatStore(db, log)
	messages := store.NewMessageStore(db, log)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	hub := realtime.NewHub(log)
	delivery := realtime.NewDelivery(hub, log)
	go delivery.Run(ctx)
	gateway := realtime.NewGateway(hub, log, cfg.PingInterval, cfg.PongWait)

	userSvc := userservice.NewService(users, tokens, log)
	chatSvc := chatservice.NewService(chats, users, log)
	messageSvc := messageservice.NewService(messages, chats, users, chatSvc, delivery, log)

	router := handler.NewRouter(log, tokens, cfg.AllowedOrigins, userSvc, chatSvc, messageSvc, gateway)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("converse backend listening", "addr", cfg.Addr())
	if err := runServer(ctx, srv); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
