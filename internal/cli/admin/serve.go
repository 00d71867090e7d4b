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

	"github.com/supportlens/supportlens/internal/api/handlers"
	"github.com/supportlens/supportlens/internal/config"
	"github.com/supportlens/supportlens/internal/database"
	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/extract"
	"github.com/supportlens/supportlens/internal/jobs"
	"github.com/supportlens/supportlens/internal/openai"
	"github.com/supportlens/supportlens/internal/repository"
	"github.com/supportlens/supportlens/internal/server"
	"github.com/supportlens/supportlens/internal/service"
	"github.com/supportlens/supportlens/internal/storage"
	"github.com/supportlens/supportlens/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the supportlens API server on the specified port",
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

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
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

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)

	var archive service.ArchiveStore
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
	} else {
		log.Println("S3 not configured, original documents will not be archived")
	}

	var extractor service.TextExtractor
	if cfg.HasTika() {
		tikaClient, err := extract.NewTikaClient(cfg.TikaURL)
		if err != nil {
			return fmt.Errorf("failed to create tika client: %w", err)
		}
		extractor = tikaClient
		log.Printf("tika extraction enabled at %s", cfg.TikaURL)
	} else {
		extractor = extract.PlainText{}
		log.Println("TIKA_URL not set, treating uploads as plain text")
	}

	var openaiClient *openai.Client
	if cfg.HasOpenAI() {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	} else {
		log.Println("OPENAI_API_KEY not set, ingestion and AI features are disabled")
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(apiKeyRepo, uuidGen)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo)

	var kbSvc *service.KnowledgeBaseService
	var reconcileWorker *jobs.Worker
	if openaiClient != nil {
		kbSvc = service.NewKnowledgeBaseService(extractor, openaiClient, vectorRepo, documentRepo, archive)

		if cfg.ReconcileIntervalMinutes > 0 {
			interval := time.Duration(cfg.ReconcileIntervalMinutes) * time.Minute
			reconcileWorker = jobs.NewWorker(jobs.NewReconcileTask(kbSvc), interval)
			go reconcileWorker.Start(ctx)
			log.Printf("reconcile worker started (every %v)", interval)
		}
	}

	var ticketSvc *service.TicketService
	if openaiClient != nil {
		ticketSvc = service.NewTicketService(ticketRepo, openaiClient, openaiClient, kbSvc)
	} else {
		ticketSvc = service.NewTicketService(ticketRepo, nil, nil, nil)
	}

	var kbHandler *handlers.KnowledgeBaseHandler
	if kbSvc != nil {
		kbHandler = handlers.NewKnowledgeBaseHandler(kbSvc)
	} else {
		kbHandler = handlers.NewKnowledgeBaseHandler(&NoOpKnowledgeBaseService{})
	}
	ticketHandler := handlers.NewTicketHandler(ticketSvc)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsSvc)

	routerCfg := server.RouterConfig{
		AuthValidator:        authSvc,
		KnowledgeBaseHandler: kbHandler,
		TicketHandler:        ticketHandler,
		AnalyticsHandler:     analyticsHandler,
	}

	router := server.NewRouter(routerCfg)

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

	if reconcileWorker != nil {
		reconcileWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpKnowledgeBaseService serves the knowledge base routes when no embedding
// provider is configured.
type NoOpKnowledgeBaseService struct{}

var errNoEmbeddingProvider = fmt.Errorf("knowledge base not configured: OPENAI_API_KEY required")

func (s *NoOpKnowledgeBaseService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	return nil, errNoEmbeddingProvider
}

func (s *NoOpKnowledgeBaseService) Retrieve(ctx context.Context, query string, topK int) *domain.RetrievalResult {
	return domain.EmptyRetrievalResult()
}

func (s *NoOpKnowledgeBaseService) Delete(ctx context.Context, documentID string) error {
	return errNoEmbeddingProvider
}

func (s *NoOpKnowledgeBaseService) List(ctx context.Context) ([]*domain.Document, error) {
	return nil, errNoEmbeddingProvider
}

func (s *NoOpKnowledgeBaseService) GetDownloadURL(ctx context.Context, documentID string) (string, error) {
	return "", errNoEmbeddingProvider
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
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
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
