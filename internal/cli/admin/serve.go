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

	"github.com/ainotes/secondbrain/internal/api/handlers"
	"github.com/ainotes/secondbrain/internal/auth"
	"github.com/ainotes/secondbrain/internal/config"
	"github.com/ainotes/secondbrain/internal/database"
	"github.com/ainotes/secondbrain/internal/jobs"
	"github.com/ainotes/secondbrain/internal/openai"
	"github.com/ainotes/secondbrain/internal/repository"
	"github.com/ainotes/secondbrain/internal/server"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/ainotes/secondbrain/internal/storage"
	"github.com/ainotes/secondbrain/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the Second Brain API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background tagging worker")

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

	if !cfg.HasOpenRouter() {
		return fmt.Errorf("BRAIN_OPENROUTER_API_KEY is required: the assistant cannot run without a model provider")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
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

	userRepo := repository.NewUserRepository(pool)
	memoryRepo := repository.NewMemoryRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenRouterAPIKey,
		BaseURL:             cfg.OpenRouterAPIBase,
		ChatModel:           cfg.ChatModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDims,
	})

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	} else {
		log.Println("S3 not configured: document upload and download disabled")
	}

	tagger := service.NewTagger(aiClient)

	memoryCfg := service.MemoryConfig{
		QueryTopK:          cfg.QueryTopK,
		DeleteThreshold:    cfg.DeleteThreshold,
		SuggestionMinScore: cfg.SuggestionMinScore,
	}
	memorySvc := service.NewMemoryService(memoryRepo, aiClient, tagger, memoryCfg)

	var ingestor *service.Ingestor
	var ingestSvc handlers.IngestService
	var blobFetcher service.BlobFetcher
	var signer handlers.DownloadURLSigner
	if s3Client != nil {
		ingestor = service.NewIngestor(txRunner, aiClient, tagger, s3Client)
		ingestor.SetChunkConfig(service.ChunkConfig{
			MaxChars:  cfg.ChunkTargetChars,
			MinChars:  cfg.ChunkTargetChars / 3,
			Overlap:   cfg.ChunkTargetChars / 6,
			MaxChunks: 40,
		})
		ingestSvc = ingestor
		blobFetcher = s3Client
		signer = s3Client
	}

	toolset := service.NewToolset(memorySvc, ingestor, blobFetcher)
	brain := service.NewBrain(aiClient, toolset, cfg.MaxAgentIterations, cfg.HistoryWindow)
	chatSvc := service.NewChatService(brain, memorySvc, messageRepo, txRunner, cfg.HistoryWindow)

	tokenSvc := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpirationDays)
	authSvc := service.NewAuthService(userRepo, googleDecoder{}, tokenSvc)

	var taggingWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewTaggingWorker(memoryRepo, tagger)
		taggingWorker = jobs.NewWorker(processor, 30*time.Second)
		go taggingWorker.Start(ctx)
		log.Println("tagging worker started")
	}

	routerCfg := server.RouterConfig{
		TokenVerifier:    tokenSvc,
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		DocumentHandler:  handlers.NewDocumentHandler(ingestSvc, signer),
		TagHandler:       handlers.NewTagHandler(memorySvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(memorySvc),
		ChatRateLimit:    cfg.ChatRateLimit,
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

	if taggingWorker != nil {
		taggingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// googleDecoder adapts the credential parser to the auth service.
type googleDecoder struct{}

func (googleDecoder) Decode(credential string) (*service.GoogleProfile, error) {
	profile, err := auth.DecodeGoogleCredential(credential)
	if err != nil {
		return nil, err
	}
	return &service.GoogleProfile{
		Sub:     profile.Sub,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
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
