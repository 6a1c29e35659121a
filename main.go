package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/auth"
	"github.com/ekaya-inc/deal-triage/pkg/config"
	"github.com/ekaya-inc/deal-triage/pkg/database"
	"github.com/ekaya-inc/deal-triage/pkg/documents"
	"github.com/ekaya-inc/deal-triage/pkg/drafting"
	"github.com/ekaya-inc/deal-triage/pkg/export"
	"github.com/ekaya-inc/deal-triage/pkg/extraction"
	"github.com/ekaya-inc/deal-triage/pkg/handlers"
	"github.com/ekaya-inc/deal-triage/pkg/llm"
	"github.com/ekaya-inc/deal-triage/pkg/mcp"
	"github.com/ekaya-inc/deal-triage/pkg/mcp/tools"
	"github.com/ekaya-inc/deal-triage/pkg/middleware"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
	"github.com/ekaya-inc/deal-triage/pkg/retry"
	"github.com/ekaya-inc/deal-triage/pkg/services"
	"github.com/ekaya-inc/deal-triage/pkg/services/analysis"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// stores groups the repositories the server needs, whichever backend holds them.
type stores struct {
	deals     repositories.DealRepository
	documents repositories.DocumentRepository
	llmRuns   repositories.LLMRunRepository
	health    handlers.Pinger
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("Using in-memory store; deal state is lost on restart")
		mem := repositories.NewMemoryStore()
		return &stores{
			deals:     mem.Deals(),
			documents: mem.Documents(),
			llmRuns:   mem.LLMRuns(),
			close:     func() {},
		}, nil
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, err
	}

	sqlDB := db.SQLDB()
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		deals:     repositories.NewDealRepository(db),
		documents: repositories.NewDocumentRepository(db),
		llmRuns:   repositories.NewLLMRunRepository(db),
		health:    db,
		close:     db.Close,
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (documents.BlobStore, error) {
	if cfg.Storage.Backend == config.StorageMinio {
		return documents.NewMinioBlobStore(ctx, &cfg.Storage)
	}
	return documents.NewLocalBlobStore(cfg.Storage.LocalDir)
}

func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.DealLocker, func(), error) {
	client, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return services.NewMemoryLocker(cfg.LockTTL), func() {}, nil
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return services.NewRedisLocker(client, cfg.Redis.KeyPrefix, cfg.LockTTL, logger), closeFn, nil
}

func newAuthService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.AuthService, error) {
	if !cfg.Auth.EnableVerification {
		logger.Warn("Auth verification disabled; actor comes from request header",
			zap.String("header", cfg.Auth.DevActorHeader))
		return auth.NewDevAuthService(cfg.Auth.DevActorHeader, cfg.Auth.DevActor), nil
	}
	jwks, err := auth.NewJWKSClient(ctx, cfg.Auth.JWKSEndpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	return auth.NewAuthService(jwks, logger), nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("store", cfg.Store),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	policy, err := analysis.LoadPolicy(cfg.Analysis.PolicyPath)
	if err != nil {
		return err
	}

	docs := documents.NewService(st.documents, blobs, documents.NewTextExtractor(), documents.Limits{
		MaxBytes:          cfg.Upload.MaxBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	}, logger)

	recorder := llm.NewAsyncRunRecorder(st.llmRuns, logger, 100)
	defer recorder.Close()

	llmClient, err := llm.NewClientFromConfig(&cfg.LLM, recorder, logger)
	if err != nil {
		return err
	}

	var (
		extractor extraction.Extractor
		drafter   drafting.Drafter
	)
	if llmClient == nil {
		extractor = extraction.NewStubExtractor(docs, logger)
		drafter = drafting.NewStubDrafter(logger)
	} else {
		retryCfg := retry.CollaboratorConfig()
		retryCfg.MaxRetries = cfg.LLM.MaxRetries
		extractor = extraction.NewLLMExtractor(llmClient, docs, cfg.LLM.Temperature, retryCfg, logger)
		drafter = drafting.NewLLMDrafter(llmClient, cfg.LLM.Temperature, retryCfg, logger)
	}

	dealService := services.NewDealService(services.DealServiceDeps{
		Deals:               st.deals,
		Documents:           docs,
		Locker:              locker,
		Reconciliation:      services.NewReconciliationService(logger),
		Engine:              analysis.NewEngine(nil, policy, logger),
		Extractor:           extractor,
		Drafter:             drafter,
		Renderer:            export.NewPDFRenderer(logger),
		CollaboratorTimeout: cfg.LLM.Timeout,
	}, logger)

	if cfg.Sweeper.Enabled {
		sweeper := services.NewRetentionService(st.documents, blobs, cfg.Sweeper.GracePeriod, logger)
		go func() {
			if err := sweeper.RunScheduler(ctx, cfg.Sweeper.Schedule); err != nil {
				logger.Error("Blob sweeper stopped", zap.Error(err))
			}
		}()
	}

	authService, err := newAuthService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	authMiddleware := auth.NewMiddleware(authService, logger)

	mcpServer := mcp.NewServer("deal-triage", cfg.Version, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, st.health)
	tools.RegisterDealTools(mcpServer.MCP(), &tools.DealToolDeps{DealService: dealService, Logger: logger})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, st.health, logger).RegisterRoutes(mux)
	handlers.NewDealsHandler(dealService, st.llmRuns, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, authMiddleware)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting deal-triage",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
