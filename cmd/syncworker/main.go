package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/storebridge/erpsync/internal/erpnext"
	"github.com/storebridge/erpsync/internal/platform/config"
	pfirestore "github.com/storebridge/erpsync/internal/platform/firestore"
	"github.com/storebridge/erpsync/internal/platform/idempotency"
	"github.com/storebridge/erpsync/internal/platform/jobs"
	"github.com/storebridge/erpsync/internal/platform/observability"
	"github.com/storebridge/erpsync/internal/platform/secrets"
	firestoreRepo "github.com/storebridge/erpsync/internal/repositories/firestore"
	"github.com/storebridge/erpsync/internal/services"
	"github.com/storebridge/erpsync/internal/shopify"
)

func main() {
	backfillFrom := flag.String("backfill-from", "", "start of a backfill window (RFC 3339); runs one backfill pass and exits")
	backfillTo := flag.String("backfill-to", "", "end of a backfill window (RFC 3339); defaults to now")
	flag.Parse()

	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("syncworker")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	eventLogger := observability.EventLogger(logger)

	erpClient, err := erpnext.NewClient(erpnext.ClientDeps{
		BaseURL:     cfg.ERPNext.BaseURL,
		APIKey:      cfg.ERPNext.APIKey,
		APISecret:   cfg.ERPNext.APISecret,
		HolidayList: cfg.ERPNext.HolidayList,
		Logger:      eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise erpnext client", zap.Error(err))
	}

	settings := cfg.Sync.Settings()

	schedule, err := services.NewDeliverySchedule(services.DeliveryScheduleDeps{
		Holidays:   erpClient,
		Clock:      time.Now,
		CutoffHour: cfg.Sync.DeliveryCutoffHour,
	})
	if err != nil {
		logger.Fatal("failed to initialise delivery schedule", zap.Error(err))
	}

	engine := services.NewReconciliationEngine()
	resolver := services.NewTaxAccountResolver(settings)

	builder, err := services.NewOrderBuilder(services.OrderBuilderDeps{
		Catalog:   erpClient,
		PriceList: erpClient,
		Schedule:  schedule,
		Engine:    engine,
		Resolver:  resolver,
		Settings:  settings,
		Logger:    eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order builder", zap.Error(err))
	}

	syncLogs, err := firestoreRepo.NewSyncLogRepository(firestoreProvider, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise sync log repository", zap.Error(err))
	}

	var source services.OrderSource
	if strings.TrimSpace(cfg.Shopify.ShopDomain) != "" && cfg.Shopify.AccessToken != "" {
		source, err = shopify.NewOrderClient(shopify.OrderClientDeps{
			ShopDomain:  cfg.Shopify.ShopDomain,
			AccessToken: cfg.Shopify.AccessToken,
			Logger:      eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise shopify order client", zap.Error(err))
		}
	}

	syncService, err := services.NewOrderSyncService(services.OrderSyncServiceDeps{
		Store:    erpClient,
		Builder:  builder,
		Engine:   engine,
		SyncLogs: syncLogs,
		Source:   source,
		Settings: settings,
		Clock:    time.Now,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order sync service", zap.Error(err))
	}

	if strings.TrimSpace(*backfillFrom) != "" {
		if err := runBackfill(ctx, logger, syncService, *backfillFrom, *backfillTo); err != nil {
			logger.Fatal("backfill failed", zap.Error(err))
		}
		return
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	subscription := pubsubClient.Subscription(cfg.PubSub.Subscription)

	handler, err := jobs.NewSyncJobHandler(syncService, eventLogger)
	if err != nil {
		logger.Fatal("failed to initialise job handler", zap.Error(err))
	}
	subscriber, err := jobs.NewSubscriber(subscription, handler, eventLogger)
	if err != nil {
		logger.Fatal("failed to initialise subscriber", zap.Error(err))
	}

	dedupeStore := idempotency.NewFirestoreStore(firestoreClient,
		idempotency.WithCollection(cfg.Dedupe.Collection),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Dedupe.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Dedupe.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("dedupe")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := dedupeStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Dedupe.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("dedupe cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("dedupe cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	runCtx, stopReceiving := context.WithCancel(ctx)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Info("shutdown signal received; draining jobs")
		stopReceiving()
	}()

	logger.Info("sync worker receiving",
		zap.String("subscription", cfg.PubSub.Subscription),
		zap.String("project", cfg.PubSub.ProjectID),
	)
	if err := subscriber.Run(runCtx); err != nil {
		logger.Error("subscriber stopped with error", zap.Error(err))
	}

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()
}

func runBackfill(ctx context.Context, logger *zap.Logger, svc services.OrderSyncService, fromRaw, toRaw string) error {
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(fromRaw))
	if err != nil {
		return fmt.Errorf("parse -backfill-from: %w", err)
	}
	to := time.Now().UTC()
	if strings.TrimSpace(toRaw) != "" {
		to, err = time.Parse(time.RFC3339, strings.TrimSpace(toRaw))
		if err != nil {
			return fmt.Errorf("parse -backfill-to: %w", err)
		}
	}

	result, err := svc.BackfillOrders(ctx, services.BackfillOrdersCommand{From: from, To: to})
	if err != nil {
		return err
	}
	logger.Info("backfill finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("synced", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("SYNC_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := parseKeyValueList(lookup("SYNC_SECRET_PROJECT_IDS"))
	defaultProject := lookup("SYNC_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("SYNC_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("SYNC_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("SYNC_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env map[string]string) []string {
	required := []string{
		"ERPNext.APISecret",
		"Shopify.WebhookSecret",
	}
	// The storefront token is only needed when backfill is configured.
	if env != nil && strings.TrimSpace(env["SYNC_SHOPIFY_ACCESS_TOKEN"]) != "" {
		required = append(required, "Shopify.AccessToken")
	}
	return required
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return result
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}
