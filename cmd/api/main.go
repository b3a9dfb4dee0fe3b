package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	gpubsub "cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/shipperhq/productpage-api/internal/directory"
	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/graphql"
	"github.com/shipperhq/productpage-api/internal/handlers"
	"github.com/shipperhq/productpage-api/internal/platform/config"
	"github.com/shipperhq/productpage-api/internal/platform/observability"
	"github.com/shipperhq/productpage-api/internal/platform/secrets"
	"github.com/shipperhq/productpage-api/internal/repositories"
	firestoreRepo "github.com/shipperhq/productpage-api/internal/repositories/firestore"
	"github.com/shipperhq/productpage-api/internal/repositories/memory"
	pubsubRepo "github.com/shipperhq/productpage-api/internal/repositories/pubsub"
	"github.com/shipperhq/productpage-api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("productpage")
	ctx = observability.WithLogger(ctx, logger)

	var loadOpts []config.Option
	if needsSecretResolution() {
		fetcher, err := secrets.NewFetcher(ctx, logger.Named("secrets"), nil)
		if err != nil {
			logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
		}
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		}()
		loadOpts = append(loadOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	}

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, closeStore, err := newConfigStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise config store", zap.Error(err))
	}
	defer closeStore()

	seedCredentials(ctx, store, cfg, logger)

	invalidator, closeInvalidator, err := newInvalidator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise invalidation topic", zap.Error(err))
	}
	defer closeInvalidator()

	gateway, err := services.NewConfigGateway(services.ConfigGatewayDeps{
		Store:       store,
		Invalidator: invalidator,
		Logger:      logger.Named("config"),
	})
	if err != nil {
		logger.Fatal("failed to initialise config gateway", zap.Error(err))
	}

	stores, catalog, err := loadFixtures(cfg)
	if err != nil {
		logger.Fatal("failed to load fixtures", zap.Error(err))
	}

	tokens, err := services.NewTokenService(services.TokenServiceDeps{
		Gateway:   gateway,
		Client:    graphql.NewClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		Stores:    stores,
		Logger:    logger.Named("tokens"),
		Meter:     otel.GetMeterProvider().Meter("github.com/shipperhq/productpage-api"),
		KeyPrefix: cfg.Remote.KeyPrefix,
		Endpoint:  cfg.Remote.Endpoint,
		Timeout:   cfg.Remote.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise token service", zap.Error(err))
	}

	mapper, err := services.NewMapperService(services.MapperServiceDeps{
		Gateway:         gateway,
		Stores:          stores,
		Groups:          catalog,
		Logger:          logger.Named("mapper"),
		KeyPrefix:       cfg.Remote.KeyPrefix,
		PlatformName:    cfg.Site.PlatformName,
		PlatformEdition: cfg.Site.PlatformEdition,
	})
	if err != nil {
		logger.Fatal("failed to initialise mapper", zap.Error(err))
	}

	session, err := services.NewPageSession(stores)
	if err != nil {
		logger.Fatal("failed to initialise page session", zap.Error(err))
	}

	options, err := services.NewProductOptionsService(services.ProductOptionsServiceDeps{
		Gateway:    gateway,
		Tokens:     tokens,
		Mapper:     mapper,
		Products:   catalog,
		Resolver:   catalog,
		Associated: catalog,
		Countries:  directory.NewCountries(),
		Session:    session,
		Logger:     logger.Named("options"),
		KeyPrefix:  cfg.Remote.KeyPrefix,
		Page: services.PageConfig{
			JSBundleURL:       cfg.Page.JSBundleURL,
			CSSBundleURL:      cfg.Page.CSSBundleURL,
			MaximumAllowedQty: cfg.Page.MaximumAllowedQty,
		},
		PostCodes: defaultPostcodeRules(),
	})
	if err != nil {
		logger.Fatal("failed to initialise product options service", zap.Error(err))
	}

	resolver, err := services.NewScopeResolver(services.ScopeResolverDeps{Stores: stores})
	if err != nil {
		logger.Fatal("failed to initialise scope resolver", zap.Error(err))
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:   logger,
		Resolver: resolver,
		Options:  options,
		Tokens:   tokens,
	})

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
		serverLogger.Info("product page api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func needsSecretResolution() bool {
	for _, key := range []string{"SHQ_API_KEY", "SHQ_AUTH_CODE"} {
		if strings.HasPrefix(os.Getenv(key), "secret://") {
			return true
		}
	}
	return false
}

// newConfigStore selects Firestore when a project is configured and falls
// back to the in-memory store for local runs.
func newConfigStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.ConfigStore, func(), error) {
	if cfg.Firestore.ProjectID == "" {
		logger.Info("using in-memory config store")
		return memory.NewConfigStore(), func() {}, nil
	}

	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("firestore client: %w", err)
	}

	var opts []firestoreRepo.ConfigStoreOption
	if cfg.Firestore.Collection != "" {
		opts = append(opts, firestoreRepo.WithCollection(cfg.Firestore.Collection))
	}
	store, err := firestoreRepo.NewConfigStore(client, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}
	return store, closeFn, nil
}

// seedCredentials writes boot-time default-scope credentials when provided.
// Existing assignments are left alone so a running installation keeps its
// configured values.
func seedCredentials(ctx context.Context, store repositories.ConfigStore, cfg config.Config, logger *zap.Logger) {
	seed := func(path, value string) {
		if value == "" {
			return
		}
		if _, err := store.Get(ctx, path, domain.ScopeDefault, 0); err == nil {
			return
		}
		if err := store.Set(ctx, path, value, domain.ScopeDefault, 0); err != nil {
			logger.Warn("failed to seed credential", zap.String("path", path), zap.Error(err))
		}
	}
	seed(cfg.Remote.KeyPrefix+"/api_key", cfg.Credentials.APIKey)
	seed(cfg.Remote.KeyPrefix+"/password", cfg.Credentials.AuthCode)
}

func newInvalidator(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.CacheInvalidator, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
		return nil, func() {}, nil
	}

	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.Topic)
	invalidator, err := pubsubRepo.NewInvalidator(topic, logger.Named("invalidation"))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return invalidator, closeFn, nil
}

type directoryFixture struct {
	Websites []domain.Website `json:"websites"`
	Stores   []domain.Store   `json:"stores"`
}

type catalogFixture struct {
	Products []domain.Product `json:"products"`
	Groups   map[int64]string `json:"groups"`
}

// loadFixtures reads the store directory and catalog from JSON fixtures, or
// falls back to a single-store development setup.
func loadFixtures(cfg config.Config) (*memory.StoreDirectory, *memory.Catalog, error) {
	dir := directoryFixture{
		Websites: []domain.Website{{ID: 1, Code: "base", Name: "Main Website"}},
		Stores:   []domain.Store{{ID: 1, WebsiteID: 1, Code: "default", BaseURL: "http://localhost/", CurrencyCode: "USD"}},
	}
	if cfg.Fixtures.DirectoryPath != "" {
		if err := readJSONFile(cfg.Fixtures.DirectoryPath, &dir); err != nil {
			return nil, nil, fmt.Errorf("directory fixture: %w", err)
		}
	}

	var cat catalogFixture
	if cfg.Fixtures.CatalogPath != "" {
		if err := readJSONFile(cfg.Fixtures.CatalogPath, &cat); err != nil {
			return nil, nil, fmt.Errorf("catalog fixture: %w", err)
		}
	}

	return memory.NewStoreDirectory(dir.Websites, dir.Stores), memory.NewCatalog(cat.Products, cat.Groups), nil
}

func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// defaultPostcodeRules covers the markets the storefront widget validates
// client side.
func defaultPostcodeRules() services.PostcodeRules {
	return services.PostcodeRules{
		"US": `^[0-9]{5}(?:-[0-9]{4})?$`,
		"CA": `^[A-Za-z][0-9][A-Za-z] ?[0-9][A-Za-z][0-9]$`,
		"GB": `^[A-Za-z]{1,2}[0-9][A-Za-z0-9]? ?[0-9][A-Za-z]{2}$`,
		"AU": `^[0-9]{4}$`,
		"DE": `^[0-9]{5}$`,
		"NL": `^[0-9]{4} ?[A-Za-z]{2}$`,
	}
}
