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

	"github.com/kdimtricp/moviegpt/internal/ai"
	"github.com/kdimtricp/moviegpt/internal/api"
	"github.com/kdimtricp/moviegpt/internal/config"
	"github.com/kdimtricp/moviegpt/internal/database"
	"github.com/kdimtricp/moviegpt/internal/discovery"
	"github.com/kdimtricp/moviegpt/internal/logging"
	"github.com/kdimtricp/moviegpt/internal/search"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	logCloser := logging.Setup(cfg.LogFile)
	defer logCloser.Close()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	openAIClient := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, httpClient)
	tmdbClient := search.NewTMDbClient(cfg.TMDbAPIKey, cfg.TMDbBaseURL, httpClient)

	var recorder discovery.HistoryRecorder
	var lister api.HistoryLister
	if cfg.HistoryEnabled() {
		db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
		if err != nil {
			log.Fatal("Failed to initialize database: ", err)
		}
		defer db.Close()

		historyRepo := database.NewHistoryRepository(db)
		recorder = historyRepo
		lister = historyRepo
	}

	svc := discovery.NewService(
		ai.NewTitleExpander(openAIClient),
		search.NewResolver(tmdbClient),
		recorder,
		discovery.Config{SessionTTL: cfg.SessionTTL},
	)

	app, err := api.NewApp(svc, lister, tmdbClient)
	if err != nil {
		log.Fatal("Failed to load templates: ", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Completion model: %s", openAIClient.Model())
	if cfg.HistoryEnabled() {
		log.Printf("Search history: %s", cfg.DBPath)
	} else {
		log.Printf("Search history disabled")
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Server error: %v", err)
		return
	}
	log.Printf("Server stopped")
}
