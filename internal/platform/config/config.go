// Package config assembles runtime configuration from defaults, an optional
// .env file, environment variables, and Secret Manager references.
package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
)

const (
	defaultEnvFile            = ".env"
	defaultPubSubTopic        = "order-sync-jobs"
	defaultPubSubSubscription = "order-sync-worker"
	defaultDedupeTTL          = 48 * time.Hour
	defaultDedupeInterval     = time.Hour
	defaultDedupeBatchSize    = 200
	defaultDeliveryCutoffHour = 14
	defaultSalesOrderSeries   = "SO-SHOP-"
	defaultSellingPriceList   = "Standard Selling"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	ERPNext   ERPNextConfig
	Shopify   ShopifyConfig
	Dedupe    DedupeConfig
	Sync      SyncConfig
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the job queue topic and worker subscription.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// ERPNextConfig holds the Frappe deployment connection settings.
type ERPNextConfig struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	HolidayList string
}

// ShopifyConfig holds storefront credentials. AccessToken is only needed
// when backfill runs are enabled.
type ShopifyConfig struct {
	ShopDomain    string
	AccessToken   string
	WebhookSecret string
}

// DedupeConfig controls webhook delivery deduplication.
type DedupeConfig struct {
	Collection       string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SyncConfig carries the ERP mapping knobs for order creation.
type SyncConfig struct {
	Company                string
	Warehouse              string
	CostCenter             string
	CustomerGroup          string
	DefaultCustomer        string
	SalesOrderSeries       string
	SellingPriceList       string
	ShippingAsItem         bool
	ShippingItem           string
	ConsolidateTaxes       bool
	TaxAccounts            map[string]string
	TaxDescriptions        map[string]string
	DefaultSalesTaxAccount string
	DefaultShippingAccount string
	DeliveryCutoffHour     int
}

// Settings converts the mapping knobs into the domain settings the sync
// services validate and consume.
func (c SyncConfig) Settings() domain.SyncSettings {
	return domain.SyncSettings{
		Company:                c.Company,
		Warehouse:              c.Warehouse,
		CostCenter:             c.CostCenter,
		CustomerGroup:          c.CustomerGroup,
		DefaultCustomer:        c.DefaultCustomer,
		SalesOrderSeries:       c.SalesOrderSeries,
		SellingPriceList:       c.SellingPriceList,
		ShippingAsItem:         c.ShippingAsItem,
		ShippingItem:           c.ShippingItem,
		ConsolidateTaxes:       c.ConsolidateTaxes,
		TaxAccounts:            c.TaxAccounts,
		TaxDescriptions:        c.TaxDescriptions,
		DefaultSalesTaxAccount: c.DefaultSalesTaxAccount,
		DefaultShippingAccount: c.DefaultShippingAccount,
		DeliveryCutoffHour:     c.DeliveryCutoffHour,
	}
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns display-safe identifiers for logging.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// EnvironmentValues returns the effective key/value environment map after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map). Callers can use the result
// to initialise dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			values[key] = parts[1]
		}
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers match the config field names recorded by the loader
// (e.g. "ERPNext.APISecret" or "Shopify.WebhookSecret").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Load assembles the worker configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "SYNC_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "SYNC_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "SYNC_PUBSUB_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "SYNC_PUBSUB_TOPIC", defaultPubSubTopic),
			Subscription: stringWithDefault(lookup, "SYNC_PUBSUB_SUBSCRIPTION", defaultPubSubSubscription),
		},
		ERPNext: ERPNextConfig{
			BaseURL:     stringWithDefault(lookup, "SYNC_ERPNEXT_URL", ""),
			APIKey:      stringWithDefault(lookup, "SYNC_ERPNEXT_API_KEY", ""),
			APISecret:   stringWithDefault(lookup, "SYNC_ERPNEXT_API_SECRET", ""),
			HolidayList: stringWithDefault(lookup, "SYNC_ERPNEXT_HOLIDAY_LIST", ""),
		},
		Shopify: ShopifyConfig{
			ShopDomain:    stringWithDefault(lookup, "SYNC_SHOPIFY_SHOP_DOMAIN", ""),
			AccessToken:   stringWithDefault(lookup, "SYNC_SHOPIFY_ACCESS_TOKEN", ""),
			WebhookSecret: stringWithDefault(lookup, "SYNC_SHOPIFY_WEBHOOK_SECRET", ""),
		},
		Dedupe: DedupeConfig{
			Collection:       stringWithDefault(lookup, "SYNC_DEDUPE_COLLECTION", ""),
			TTL:              durationWithDefault(lookup, "SYNC_DEDUPE_TTL", defaultDedupeTTL),
			CleanupInterval:  durationWithDefault(lookup, "SYNC_DEDUPE_CLEANUP_INTERVAL", defaultDedupeInterval),
			CleanupBatchSize: intWithDefault(lookup, "SYNC_DEDUPE_CLEANUP_BATCH", defaultDedupeBatchSize),
		},
		Sync: SyncConfig{
			Company:                stringWithDefault(lookup, "SYNC_ERP_COMPANY", ""),
			Warehouse:              stringWithDefault(lookup, "SYNC_ERP_WAREHOUSE", ""),
			CostCenter:             stringWithDefault(lookup, "SYNC_ERP_COST_CENTER", ""),
			CustomerGroup:          stringWithDefault(lookup, "SYNC_ERP_CUSTOMER_GROUP", ""),
			DefaultCustomer:        stringWithDefault(lookup, "SYNC_ERP_DEFAULT_CUSTOMER", ""),
			SalesOrderSeries:       stringWithDefault(lookup, "SYNC_ERP_ORDER_SERIES", defaultSalesOrderSeries),
			SellingPriceList:       stringWithDefault(lookup, "SYNC_ERP_PRICE_LIST", defaultSellingPriceList),
			ShippingAsItem:         boolWithDefault(lookup, "SYNC_ERP_SHIPPING_AS_ITEM", false),
			ShippingItem:           stringWithDefault(lookup, "SYNC_ERP_SHIPPING_ITEM", ""),
			ConsolidateTaxes:       boolWithDefault(lookup, "SYNC_ERP_CONSOLIDATE_TAXES", false),
			TaxAccounts:            mapWithDefault(lookup, "SYNC_ERP_TAX_ACCOUNTS"),
			TaxDescriptions:        mapWithDefault(lookup, "SYNC_ERP_TAX_DESCRIPTIONS"),
			DefaultSalesTaxAccount: stringWithDefault(lookup, "SYNC_ERP_DEFAULT_TAX_ACCOUNT", ""),
			DefaultShippingAccount: stringWithDefault(lookup, "SYNC_ERP_DEFAULT_SHIPPING_ACCOUNT", ""),
			DeliveryCutoffHour:     intWithDefault(lookup, "SYNC_ERP_DELIVERY_CUTOFF_HOUR", defaultDeliveryCutoffHour),
		},
	}

	// Firestore and Pub/Sub share a project unless told otherwise.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.PubSub.ProjectID
	}

	resolvedSecrets := make(map[string]string)
	resolveField := func(name string, field *string) error {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return err
		}
		*field = resolved
		resolvedSecrets[name] = strings.TrimSpace(resolved)
		return nil
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"ERPNext.APISecret", &cfg.ERPNext.APISecret},
		{"Shopify.AccessToken", &cfg.Shopify.AccessToken},
		{"Shopify.WebhookSecret", &cfg.Shopify.WebhookSecret},
	}
	for _, target := range secretFields {
		if err := resolveField(target.name, target.field); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.PubSub.Topic == "" {
		missing = append(missing, "PubSub.Topic")
	}
	if cfg.PubSub.Subscription == "" {
		missing = append(missing, "PubSub.Subscription")
	}
	if cfg.ERPNext.BaseURL == "" {
		missing = append(missing, "ERPNext.BaseURL")
	}
	if cfg.ERPNext.APIKey == "" {
		missing = append(missing, "ERPNext.APIKey")
	}
	if cfg.ERPNext.APISecret == "" {
		missing = append(missing, "ERPNext.APISecret")
	}
	if cfg.Shopify.WebhookSecret == "" {
		missing = append(missing, "Shopify.WebhookSecret")
	}
	if cfg.Dedupe.TTL <= 0 {
		missing = append(missing, "Dedupe.TTL")
	}
	if cfg.Dedupe.CleanupInterval <= 0 {
		missing = append(missing, "Dedupe.CleanupInterval")
	}
	if cfg.Dedupe.CleanupBatchSize <= 0 {
		missing = append(missing, "Dedupe.CleanupBatchSize")
	}
	if cfg.Sync.Company == "" {
		missing = append(missing, "Sync.Company")
	}
	if cfg.Sync.Warehouse == "" {
		missing = append(missing, "Sync.Warehouse")
	}
	if cfg.Sync.CostCenter == "" {
		missing = append(missing, "Sync.CostCenter")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

// mapWithDefault parses "name=value,name=value" pairs. Keys keep their case:
// tax line titles are matched verbatim.
func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
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
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
