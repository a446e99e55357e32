package admin

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

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/normahq/norma/internal/api/handlers"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/config"
	"github.com/normahq/norma/internal/database"
	"github.com/normahq/norma/internal/extract"
	"github.com/normahq/norma/internal/jobs"
	"github.com/normahq/norma/internal/openai"
	"github.com/normahq/norma/internal/repository"
	"github.com/normahq/norma/internal/server"
	"github.com/normahq/norma/internal/service"
	"github.com/normahq/norma/internal/storage"
	"github.com/normahq/norma/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the norma API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("NORMA_OPENAI_API_KEY is required: retrieval cannot run without an embedding provider")
	}
	if len(cfg.APIKeys) == 0 {
		return fmt.Errorf("NORMA_API_KEYS is required (token:tenant pairs)")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	faqRepo := repository.NewFAQRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)
	reindexJobRepo := repository.NewReindexJobRepository(pool)

	var objectStore service.ObjectStore
	var signer handlers.DownloadURLSigner
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objectStore = s3Client
		signer = s3Client
	}

	embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)
	extractor := extract.NewPDFExtractor()

	retrievalSvc := service.NewRetrievalServiceWithConfig(embeddingClient, chunkRepo, service.RetrievalConfig{
		ConfidentThreshold:  cfg.ConfidentThreshold,
		BestEffortThreshold: cfg.BestEffortThreshold,
		AssistantName:       cfg.AssistantName,
	})
	ingestionSvc := service.NewIngestionService(faqRepo, documentRepo, chunkRepo, embeddingClient, extractor, objectStore)
	sessionManager := service.NewSessionManager(retrievalSvc, ticketRepo, feedbackRepo)

	reindexProcessor := jobs.NewReindexWorker(reindexJobRepo, ingestionSvc)
	reindexWorker := jobs.NewWorker(reindexProcessor, 5*time.Second)
	go reindexWorker.Start(ctx)
	log.Println("reindex worker started")

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    middleware.NewStaticValidator(cfg.APIKeys),
		FAQHandler:       handlers.NewFAQHandler(ingestionSvc, reindexJobRepo),
		DocumentHandler:  handlers.NewDocumentHandler(ingestionSvc, signer),
		AssistantHandler: handlers.NewAssistantHandler(sessionManager),
		AskHandler:       handlers.NewAskHandler(retrievalSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	reindexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL, sourceURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
