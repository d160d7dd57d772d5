package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ismail-jr/studymate-backend/internal/config"
	"github.com/ismail-jr/studymate-backend/internal/handler"
	"github.com/ismail-jr/studymate-backend/internal/service/ai"
	"github.com/ismail-jr/studymate-backend/internal/service/auth"
	"github.com/ismail-jr/studymate-backend/internal/service/chat"
	"github.com/ismail-jr/studymate-backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.AI.Enabled() {
		log.Fatal("OPENROUTER_API_KEY must be set")
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()
	log.Printf("store ready at %s", cfg.Store.Path)

	transcripts := store.NewTranscriptStore(db)
	users := store.NewUserStore(db)

	authSvc := auth.NewService(users, cfg.Auth.TokenTTL)
	completer := ai.NewClient(cfg.AI)
	sessions := chat.NewManager(transcripts, completer, cfg.AI.FallbackReply)
	defer sessions.CloseAll()

	router := handler.NewRouter(authSvc, sessions)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("StudyMate backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
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
