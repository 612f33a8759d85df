package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/chat"
	"github.com/eion/tenantgate/internal/completion"
	"github.com/eion/tenantgate/internal/config"
	"github.com/eion/tenantgate/internal/docstore"
	"github.com/eion/tenantgate/internal/graph"
	"github.com/eion/tenantgate/internal/health"
	"github.com/eion/tenantgate/internal/knowledge"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/metrics"
	"github.com/eion/tenantgate/internal/retry"
	"github.com/eion/tenantgate/internal/server"
)

// AppState holds all application services
type AppState struct {
	Logger     *logging.ZapLogger
	Config     *config.Config
	Store      docstore.Client
	Redis      *redis.Client
	KeyStore   *auth.RedisKeyStore
	Graph      *graph.Neo4jClient
	Knowledge  *knowledge.Service
	Resolver   *auth.Resolver
	Controller *chat.Controller
	Health     *health.Manager
}

func main() {
	// Load configuration
	config.Load()
	if err := config.Get().Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger with config
	logger := logging.New(logging.Config{
		Level:  config.Logger().Level,
		Format: config.Logger().Format,
	})
	defer logger.Sync()
	zl := logger.Zap()
	zl.Info("Configuration loaded", zap.String("source", "config.Load()"))

	metrics.Register()

	// Initialize application state
	as, err := newAppState(logger)
	if err != nil {
		zl.Fatal("Failed to initialize application state", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := as.Health.StartupHealthCheck(ctx); err != nil {
		cancel()
		zl.Fatal("Startup health check failed", zap.Error(err))
	}
	cancel()

	// Create HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Options{
		AllowedOrigins:          config.Http().AllowedOrigins,
		MaxRequestSize:          config.Http().MaxRequestSize,
		APIKeyHeader:            config.Auth().APIKey.Header,
		TrustUpstreamAuthorizer: config.Auth().TrustUpstreamAuthorizer,
	}, server.Dependencies{
		Chat:      as.Controller,
		Resolver:  as.Resolver,
		Knowledge: knowledge.NewHandlers(as.Knowledge, logger),
		Health:    as.Health,
		Logger:    zl,
	})

	// Server configuration from config
	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	done := setupSignalHandler(as, srv, zl)

	// Start server
	zl.Info("Starting tenantgate server", zap.String("address", addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	zl.Info("Server shutdown complete")
}

// newAppState creates and initializes the application state
func newAppState(logger *logging.ZapLogger) (*AppState, error) {
	zl := logger.Zap()
	as := &AppState{
		Logger: logger,
		Config: config.Get(),
		Health: health.NewManager(zl),
	}
	ctx := context.Background()

	redisConfig := config.Redis()
	as.Redis = redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr(),
		Password: redisConfig.Password,
		DB:       redisConfig.Database,
	})

	store, err := newDocumentStore(ctx, zl)
	if err != nil {
		return nil, err
	}
	as.Store = store
	as.Health.AddChecker(health.NewPingChecker("docstore", true, store.Ping))

	// API keys
	apiKeyConfig := config.Auth().APIKey
	as.KeyStore = auth.NewRedisKeyStore(as.Redis, apiKeyConfig.CacheTTL)
	as.Health.AddChecker(health.NewPingChecker("apikeys", true, as.KeyStore.Ping))

	// JWT
	jwtConfig := config.Auth().JWT
	verifier, err := auth.NewJWTVerifier(jwtConfig.Secret, jwtConfig.Issuer, jwtConfig.TenantClaim)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}

	strategies := make([]auth.Strategy, 0, 3)
	if config.Auth().TrustUpstreamAuthorizer {
		strategies = append(strategies, auth.AuthorizerStrategy{})
	}
	strategies = append(strategies,
		auth.NewJWTStrategy(verifier),
		auth.NewAPIKeyStrategy(as.KeyStore, apiKeyConfig.Header),
	)
	as.Resolver = auth.NewResolver(logger, strategies...)

	// Partition registry is optional
	var registry knowledge.PartitionRegistry
	if neo4jConfig := config.Neo4j(); neo4jConfig.Enabled {
		client, err := graph.NewNeo4jClient(graph.Neo4jConfig{
			URI:      neo4jConfig.URI,
			Username: neo4jConfig.Username,
			Password: neo4jConfig.Password,
			Database: neo4jConfig.Database,
		}, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to create partition registry: %w", err)
		}
		as.Graph = client
		registry = client
		as.Health.AddChecker(health.NewPingChecker("neo4j", false, client.HealthCheck))
	} else {
		zl.Info("Partition registry disabled")
	}

	retryConfig := config.Retry()
	policy := retry.Policy{
		MaxAttempts:     retryConfig.MaxAttempts,
		InitialInterval: retryConfig.InitialInterval,
		MaxInterval:     retryConfig.MaxInterval,
		Multiplier:      retryConfig.Multiplier,
	}
	repo := knowledge.NewDocumentRepository(store, config.Store().Table, policy, logger)
	as.Knowledge = knowledge.NewService(repo, registry, logger)

	completionConfig := config.Completion()
	forwarder := completion.NewForwarder(as.Knowledge, completionConfig.URL, completionConfig.Timeout, logger)
	as.Controller = chat.NewController(as.Resolver, forwarder, logger)

	zl.Info("Application state initialized",
		zap.String("store_driver", config.Store().Driver),
		zap.Int("auth_strategies", len(strategies)),
		zap.Bool("partition_registry", registry != nil))

	return as, nil
}

// newDocumentStore opens the configured document store backend.
func newDocumentStore(ctx context.Context, logger *zap.Logger) (docstore.Client, error) {
	switch driver := config.Store().Driver; driver {
	case "postgres":
		pgConfig := config.Postgres()
		logger.Info("Database configuration",
			zap.String("host", pgConfig.Host),
			zap.Int("port", pgConfig.Port),
			zap.String("database", pgConfig.Database),
			zap.String("user", pgConfig.User))

		store := docstore.NewPostgresStore(docstore.OpenPostgres(pgConfig.DSN(), pgConfig.MaxOpenConnections))
		if err := store.CreateTables(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create document tables: %w", err)
		}
		return store, nil
	case "redis":
		redisConfig := config.Redis()
		store, err := docstore.NewRedisStore(&redis.Options{
			Addr:     redisConfig.Addr(),
			Password: redisConfig.Password,
			DB:       redisConfig.Database,
		}, redisConfig.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis document store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func setupSignalHandler(as *AppState, srv *http.Server, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		// Create context with timeout for graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Shutdown server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		as.close(ctx, logger)

		done <- struct{}{}
	}()

	return done
}

// close releases every backend connection.
func (as *AppState) close(ctx context.Context, logger *zap.Logger) {
	if err := as.Store.Close(); err != nil {
		logger.Error("Error closing document store", zap.Error(err))
	}
	as.KeyStore.Close()
	if err := as.Redis.Close(); err != nil {
		logger.Error("Error closing redis client", zap.Error(err))
	}
	if as.Graph != nil {
		if err := as.Graph.Close(ctx); err != nil {
			logger.Error("Error closing Neo4j client", zap.Error(err))
		}
	}
}
