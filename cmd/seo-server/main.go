package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/handlers"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/hook"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metadata"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metrics"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/config"
	pfirestore "github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/firestore"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/observability"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/secrets"
	platformstorage "github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/storage"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
	firestoreRepo "github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories/firestore"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories/memory"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/wiki"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("seo")
	ctx = requestctx.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(strings.TrimSpace(envValues["SEO_SECRETS_PROJECT_ID"])),
		secrets.WithFallbackFile(fallbackFile(envValues)),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("backend", string(cfg.Backend)),
		zap.String("server", cfg.Redacted().Site.Server),
	)

	registry, checks, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open page store", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("page store close error", zap.Error(err))
		}
	}()

	wikiHost, err := wiki.NewHost(cfg.Site, registry)
	if err != nil {
		logger.Fatal("failed to initialise wiki host", zap.Error(err))
	}

	recorder := metrics.NewRecorder(nil)
	prober := metadata.NewHTTPProber(&http.Client{Timeout: cfg.Probe.Timeout}, cfg.Probe.MaxBytes)
	seoHook, err := hook.New(wikiHost,
		hook.WithCollector(metadata.NewCollector(metadata.WithProber(prober))),
		hook.WithObserver(recorder),
		hook.WithLogger(logger.Named("hook")),
	)
	if err != nil {
		logger.Fatal("failed to initialise seo hook", zap.Error(err))
	}

	engine, err := wiki.NewEngine(wikiHost, wiki.NewRenderer(), seoHook)
	if err != nil {
		logger.Fatal("failed to initialise render engine", zap.Error(err))
	}
	pages := handlers.NewPageHandlers(engine)

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, startedAt)),
		handlers.WithHealthReporter(repositories.NewHealth(checks...)),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Observability.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			recorder.Middleware(),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithMetricsHandler(recorder.Handler()),
		handlers.WithWikiRoutes(pages.WikiRoutes),
		handlers.WithPageRoutes(pages.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("seo server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openRegistry opens the configured backend and returns its readiness checks.
func openRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, []repositories.DependencyCheck, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store, err := memory.LoadFixture(ctx, cfg.FixtureFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("serving pages from fixture", zap.String("file", cfg.FixtureFile))
		return store, []repositories.DependencyCheck{{
			Name:  "fixture",
			Check: func(context.Context) error { return nil },
		}}, nil

	case config.BackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithDialTimeout(cfg.Firestore.DialTimeout))
		checks := []repositories.DependencyCheck{}

		var files repositories.FileRepository
		if bucket := strings.TrimSpace(cfg.Storage.FilesBucket); bucket != "" {
			client, err := cloudstorage.NewClient(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("storage client: %w", err)
			}
			store, err := platformstorage.NewFileStore(client, bucket,
				platformstorage.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
				platformstorage.WithHeaderBytes(cfg.Storage.HeaderBytes),
			)
			if err != nil {
				_ = client.Close()
				return nil, nil, err
			}
			files = store
			checks = append(checks, repositories.DependencyCheck{
				Name: "storage",
				Check: func(ctx context.Context) error {
					_, err := client.Bucket(bucket).Attrs(ctx)
					return err
				},
			})
			logger.Info("serving file metadata from cloud storage", zap.String("bucket", bucket))
		}

		registry, err := firestoreRepo.NewRegistry(provider, files)
		if err != nil {
			return nil, nil, err
		}
		checks = append(checks, repositories.DependencyCheck{Name: "firestore", Check: registry.Ping})
		return registry, checks, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}

func fallbackFile(env map[string]string) string {
	if v, ok := env["SEO_SECRETS_FALLBACK_FILE"]; ok {
		return strings.TrimSpace(v)
	}
	return ".secrets.local"
}

func buildInfoFromEnv(env map[string]string, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["SEO_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["SEO_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(env["SEO_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
