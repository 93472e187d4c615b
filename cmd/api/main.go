package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/trackforge/release-radar/internal/application"
	appanalytics "github.com/trackforge/release-radar/internal/application/analytics"
	appingest "github.com/trackforge/release-radar/internal/application/ingest"
	appinsight "github.com/trackforge/release-radar/internal/application/insight"
	"github.com/trackforge/release-radar/internal/config"
	dominsight "github.com/trackforge/release-radar/internal/domain/insight"
	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
	aiopenai "github.com/trackforge/release-radar/internal/infra/ai/openai"
	mysqldb "github.com/trackforge/release-radar/internal/infra/db/mysql"
	postgresdb "github.com/trackforge/release-radar/internal/infra/db/postgres"
	"github.com/trackforge/release-radar/internal/infra/httpserver"
	minioStore "github.com/trackforge/release-radar/internal/infra/storage"
	"github.com/trackforge/release-radar/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect store, driver per config
	var db *sql.DB
	var repo workitems.Repository
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqldb.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqldb.NewWorkItemRepository(db)
	default:
		db, err = postgresdb.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresdb.NewWorkItemRepository(db)
	}
	defer db.Close()

	// optional batch archive
	var archive workitems.ArchiveStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
	}

	// optional narrative model
	var aiClient dominsight.Client
	if cfg.OpenAI.APIKey != "" {
		aiClient = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	tax := stages.New(cfg.Workflow)
	limits := appanalytics.DefaultLimits()
	if cfg.Limits.MaxThresholdDays > 0 {
		limits.MinThresholdDays = cfg.Limits.MinThresholdDays
		limits.MaxThresholdDays = cfg.Limits.MaxThresholdDays
	}
	if cfg.Limits.MaxWindowDays > 0 {
		limits.MinWindowDays = cfg.Limits.MinWindowDays
		limits.MaxWindowDays = cfg.Limits.MaxWindowDays
	}

	// init services
	ingestSvc := &appingest.Service{
		Repo:    repo,
		Archive: archive,
		Clock:   application.SystemClock{},
	}
	analyticsSvc := appanalytics.NewService(repo, tax, limits)
	insightSvc := appinsight.NewService(aiClient)

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "x-api-key"},
	}))
	mux.Use(middleware.RateLimitMiddleware(100, 20))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(repo, ingestSvc, analyticsSvc, insightSvc, cfg.Auth.SyncAPIKey))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
