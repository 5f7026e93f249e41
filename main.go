package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"tabchat/adapters/llm"
	"tabchat/adapters/render"
	"tabchat/ai"
	"tabchat/domain/chat"
	"tabchat/internal/config"
	"tabchat/internal/export"
	"tabchat/internal/merge"
	"tabchat/internal/session"
	"tabchat/ports"
	"tabchat/ui"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	client, err := llm.NewClient(llm.Config{
		APIKey:      appConfig.AI.OpenAIKey,
		BaseURL:     appConfig.AI.BaseURL,
		Model:       appConfig.AI.OpenAIModel,
		MaxTokens:   appConfig.AI.MaxTokens,
		Temperature: appConfig.AI.Temperature,
		Timeout:     appConfig.AI.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	resolver := ai.NewResolver(client)

	renderers, err := buildRenderers(appConfig.Export)
	if err != nil {
		log.Fatalf("Failed to set up renderers: %v", err)
	}
	coordinator := export.NewCoordinator(renderers, appConfig.Export.Retention)
	registry := session.NewRegistry(resolver, coordinator, appConfig.Session.Timeout, appConfig.Session.MaxSessions)
	merges := merge.NewService(appConfig.Export.ArtifactsDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry.StartSweeper(ctx, appConfig.Session.SweepInterval)
	coordinator.StartJanitor(ctx, appConfig.Export.PurgeInterval)

	if appConfig.Profiling.Enabled {
		startProfilingServer(appConfig.Profiling.Port)
	}

	server := ui.NewServer(registry, coordinator, merges, appConfig.Upload)
	httpServer := &http.Server{
		Addr:    ":" + appConfig.Server.Port,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("[Server] Listening on :%s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	registry.CloseAll()
	log.Println("[Server] Stopped")
}

// buildRenderers wires the local spreadsheet renderer plus a remote renderer
// for every configured render service.
func buildRenderers(cfg config.ExportConfig) ([]ports.Renderer, error) {
	spreadsheet, err := render.NewSpreadsheetRenderer(cfg.ArtifactsDir)
	if err != nil {
		return nil, err
	}
	renderers := []ports.Renderer{spreadsheet}
	remotes := map[chat.Format]string{
		chat.FormatSlides: cfg.SlidesURL,
		chat.FormatPDF:    cfg.PDFURL,
		chat.FormatChart:  cfg.ChartURL,
	}
	for format, url := range remotes {
		if url == "" {
			log.Printf("[Server] No renderer configured for %s, format disabled", format)
			continue
		}
		renderers = append(renderers, render.NewRemoteRenderer(format, url, cfg.RenderTimeout))
	}
	return renderers, nil
}

// startProfilingServer exposes pprof on a side port, never on the main API
func startProfilingServer(port string) {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Mount("/debug", chimiddleware.Profiler())
	go func() {
		log.Printf("[Server] Profiling server listening on :%s", port)
		if err := http.ListenAndServe(":"+port, router); err != nil {
			log.Printf("[Server] Profiling server failed: %v", err)
		}
	}()
}
