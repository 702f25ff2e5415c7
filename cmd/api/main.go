package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/research-desk/backend/internal/config"
	"github.com/zhouzirui/research-desk/backend/internal/handler"
	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	"github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("failed to load .env file, continuing with system environment variables only", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warn("invalid LOG_LEVEL, keeping info", "value", cfg.LogLevel, "err", err)
	}
	logger := logging.Named("main")

	profile := assistant.Default()
	tools := search.NewToolset(search.ConfigFrom(cfg.Tools))

	aiService, err := ai.NewService(cfg.LLM, profile, tools)
	if err != nil {
		logger.Fatal("failed to initialize AI service", "err", err)
	}
	logger.Info("AI service initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "tools", len(tools))

	chatService := chat.NewService(profile.Greeting, cfg.Session.IdleTimeout)
	turns := turn.NewHandler(chatService, aiService)

	router := handler.NewRouter(handler.Deps{
		Profile:           profile,
		Model:             aiService.Model(),
		DefaultCreativity: cfg.LLM.DefaultCreativity,
		Tools:             tools,
		Sessions:          chatService,
		Turns:             turns,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *log.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Research Desk backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", "err", err)
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
