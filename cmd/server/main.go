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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"dashboard-go/internal/api"
	"dashboard-go/internal/config"
	"dashboard-go/internal/datasource"
	"dashboard-go/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Services
	sources := cfg.Sources()
	sessions := state.NewStore()

	remote, err := remoteDataset(ctx, cfg)
	if err != nil {
		log.Fatalf("Remote dataset: %v", err)
	}
	if remote != nil {
		defer remote.Stop()
	}

	// Drop idle sessions every few minutes
	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 5m", func() {
		if n := sessions.Purge(cfg.SessionIdle); n > 0 {
			log.Printf("[Sessions] purged %d idle sessions", n)
		}
	}); err != nil {
		log.Fatalf("Session janitor: %v", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Initialize Handler
	handler := api.NewHandler(cfg.Engine(), sessions, sources, remote)
	handler.MaxUploadBytes = cfg.UploadMaxBytes
	handler.SourcesEnabled = cfg.SourcesEnabled

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Leads Dashboard Backend is Running"))
	})

	// Register all API Routes
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Starting Leads Dashboard on http://localhost:%s", cfg.Port)
	log.Printf("📡 CORS enabled for: %v", cfg.CORSOrigins)
	log.Printf("🧹 Idle sessions expire after %s", cfg.SessionIdle)
	if cfg.SourcesEnabled {
		log.Printf("🔌 Ad-hoc sources enabled, local paths under %q", cfg.SourceRoot)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// remoteDataset builds the shared dataset cache from DATASET_URL or
// DATASET_PATH. A local file is also watched for changes.
func remoteDataset(ctx context.Context, cfg config.Config) (*datasource.Cache, error) {
	var src datasource.Source
	switch {
	case cfg.DatasetURL != "":
		src = &datasource.HTTP{URL: cfg.DatasetURL, Timeout: datasource.DefaultHTTPTimeout}
	case cfg.DatasetPath != "":
		src = &datasource.File{Path: cfg.DatasetPath}
	default:
		return nil, nil
	}

	cache := datasource.NewCache(src)
	if cfg.DatasetRefresh != "" {
		if err := cache.Schedule(ctx, cfg.DatasetRefresh); err != nil {
			return nil, err
		}
		log.Printf("📅 Refreshing %s on %q", src.Name(), cfg.DatasetRefresh)
	}
	if cfg.DatasetPath != "" && cfg.DatasetURL == "" {
		if err := cache.Watch(cfg.DatasetPath, 500*time.Millisecond); err != nil {
			log.Printf("Watch %s: %v", cfg.DatasetPath, err)
		}
	}
	log.Printf("📁 Remote dataset: %s", src.Name())
	return cache, nil
}
