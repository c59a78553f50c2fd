package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource/bigquery"
	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource/factory"
	"github.com/quarrybi/semantic-engine/pkg/auth"
	"github.com/quarrybi/semantic-engine/pkg/config"
	"github.com/quarrybi/semantic-engine/pkg/database"
	"github.com/quarrybi/semantic-engine/pkg/handlers"
	"github.com/quarrybi/semantic-engine/pkg/logging"
	"github.com/quarrybi/semantic-engine/pkg/middleware"
	"github.com/quarrybi/semantic-engine/pkg/repositories"
	"github.com/quarrybi/semantic-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	// Metadata store.
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Migrations run over database/sql; golang-migrate needs it.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	// Engine connections. Either may be absent in a given deployment.
	var sourcePool *pgxpool.Pool
	if cfg.Source.DSN != "" {
		sourcePool, err = pgxpool.New(ctx, cfg.Source.DSN)
		if err != nil {
			logger.Fatal("Failed to connect to postgres source", zap.Error(err))
		}
		defer sourcePool.Close()
	}

	var bqClient *bigquery.Client
	if cfg.Warehouse.ProjectID != "" {
		bqClient, err = bigquery.NewClient(bigquery.Options{
			BaseURL:   cfg.Warehouse.BaseURL,
			ProjectID: cfg.Warehouse.ProjectID,
			TokenSource: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cfg.Warehouse.AccessToken,
			}),
			PollInitialDelay: cfg.Warehouse.PollInitialDelay,
			PollMaxDelay:     cfg.Warehouse.PollMaxDelay,
			PollTimeout:      cfg.Warehouse.PollTimeout,
			PageSize:         cfg.Warehouse.PageSize,
			FetchConcurrency: cfg.Warehouse.FetchConcurrency,
			Logger:           logger.Named("bigquery"),
		})
		if err != nil {
			logger.Fatal("Failed to build warehouse client", zap.Error(err))
		}
	}

	clientFactory := factory.New(sourcePool, bqClient, logger)

	// Repositories and services.
	modelRepo := repositories.NewDataModelRepository()
	tableRepo := repositories.NewModelTableRepository()
	relRepo := repositories.NewRelationshipRepository()

	catalogService := services.NewCatalogService(modelRepo, tableRepo, relRepo, logger)
	inferenceService := services.NewInferenceService(clientFactory, cfg.Inference, logger)
	relationshipService := services.NewRelationshipService(relRepo, catalogService, inferenceService, logger)
	queryService := services.NewQueryService(catalogService, clientFactory, logger)

	// Middleware.
	authService := auth.NewService(cfg.Auth.SigningKey, cfg.Auth.EnableVerification)
	authMiddleware := auth.NewMiddleware(authService, logger)
	workspaceMiddleware := handlers.WorkspaceMiddleware(database.WithWorkspaceContext(db, logger))

	// Routes.
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg.Version).RegisterRoutes(mux)
	handlers.NewModelHandler(catalogService, logger).RegisterRoutes(mux, authMiddleware, workspaceMiddleware)
	handlers.NewRelationshipHandler(relationshipService, inferenceService, catalogService, logger).
		RegisterRoutes(mux, authMiddleware, workspaceMiddleware)
	handlers.NewQueryHandler(queryService, logger).RegisterRoutes(mux, authMiddleware, workspaceMiddleware)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting semantic-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, middleware.RequestLogger(logger)(mux)); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
