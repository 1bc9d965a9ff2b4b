package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/avlasov/spendlens/internal/ai"
	"github.com/avlasov/spendlens/internal/api/handlers"
	"github.com/avlasov/spendlens/internal/api/middleware"
	"github.com/avlasov/spendlens/internal/cache"
	"github.com/avlasov/spendlens/internal/config"
	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/gcs"
	infraBQ "github.com/avlasov/spendlens/internal/infra/bigquery"
	"github.com/avlasov/spendlens/internal/index"
	"github.com/avlasov/spendlens/internal/jobs"
	"github.com/avlasov/spendlens/internal/jobs/inmemory"
	"github.com/avlasov/spendlens/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file (or set SPENDLENS_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := context.Background()

	// Initialize the AI provider. Without credentials the server still runs:
	// analytics endpoints are unaffected and ask serves offline answers.
	var provider ai.Provider
	gemini, err := ai.NewGemini(ctx, cfg.Index.EmbedModel, cfg.Ask.AnswerModel)
	switch {
	case err == nil:
		provider = gemini
	case errors.Is(err, ai.ErrNotConfigured):
		log.Warn().Msg("No Gemini API key configured - serving offline answers")
		provider = &ai.Fake{}
	default:
		log.Fatal().Err(err).Msg("Failed to create AI provider")
	}

	// Initialize data sources
	gcsClient := gcs.NewClient()
	loader := &dataset.Loader{
		DefaultPath: cfg.Dataset.Path,
		Objects:     gcsClient,
	}
	if repo, err := infraBQ.NewSpendRepository(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT")); err != nil {
		log.Warn().Err(err).Msg("BigQuery unavailable - bq:// sources disabled")
	} else {
		loader.Warehouse = repo
		defer repo.Close()
	}

	searchIndex := index.New(cfg.Index.Dir, provider, cfg.Index.BatchSize)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	builder := jobs.NewIndexBuilder(loader, searchIndex, log)
	if cfg.GCS.Bucket != "" {
		builder = builder.WithMirror(gcsClient, cfg.GCS.Bucket)
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, builder.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Response cache, purged whenever the dataset file changes on disk
	responseCache := cache.New(time.Duration(cfg.Server.CacheTTL), 0)
	watchDataset(log, cfg.Dataset.Path, responseCache)

	// Initialize handlers
	spendHandler := handlers.NewSpendHandler(loader, responseCache, cfg.Detect, log)
	askHandler := handlers.NewAskHandler(searchIndex, provider, cfg.Ask.MaxQuestionLen, log)
	indexHandler := handlers.NewIndexHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Spend analytics endpoints
	mux.HandleFunc("/api/kpi", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			spendHandler.GetKPIs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			spendHandler.GetServiceTotals(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/monthly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			spendHandler.GetMonthlyTotals(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			spendHandler.GetRecommendations(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/idle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			spendHandler.GetIdleResources(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Ask endpoint
	mux.HandleFunc("/api/ask", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			askHandler.Ask(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Index endpoints
	mux.HandleFunc("/api/index/build", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			indexHandler.EnqueueBuild(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.ProcessTime(
				middleware.RequestID(
					middleware.CORS(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("dataset", cfg.Dataset.Path).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	// Close job queue
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// watchDataset purges the response cache whenever the dataset file changes.
// The watch covers the parent directory because editors and atomic writers
// replace files rather than writing them in place. Watch setup failure only
// costs cache freshness, so it is never fatal.
func watchDataset(log zerolog.Logger, path string, c *cache.TTLCache) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("Dataset watcher unavailable")
		return
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Dataset watcher not installed")
		watcher.Close()
		return
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				c.Purge()
				log.Info().Str("file", event.Name).Str("op", event.Op.String()).Msg("Dataset changed - response cache purged")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Dataset watcher error")
			}
		}
	}()
}
