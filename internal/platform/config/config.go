// Package config loads service configuration from defaults, an optional YAML settings
// file, a .env file, the process environment and explicit overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultProbeMaxBytes   = 1 << 20
	defaultCategoryPrefix  = "Категория:"
	defaultSecretsFallback = ".secrets.local"

	// RedactedValue replaces resolved secrets in Redacted output.
	RedactedValue = "[redacted]"
)

// Backend selects the page store implementation.
type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendFirestore Backend = "firestore"
)

// Config is the resolved service configuration.
type Config struct {
	Server        ServerConfig
	Site          host.Settings
	Backend       Backend
	FixtureFile   string
	Firestore     FirestoreConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Observability ObservabilityConfig
	Probe         ProbeConfig

	secretFields map[string]struct{}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig configures the Firestore page store.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	DialTimeout  time.Duration
}

// StorageConfig configures the GCS file store. An empty bucket disables it.
type StorageConfig struct {
	FilesBucket   string
	PublicBaseURL string
	HeaderBytes   int64
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// ObservabilityConfig configures logging and trace correlation.
type ObservabilityConfig struct {
	ProjectID string
	LogLevel  string
}

// ProbeConfig bounds image dimension probing.
type ProbeConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// SecretResolver resolves secret:// and sm:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists missing or invalid fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError reports a secret reference that could not be resolved.
type SecretError struct {
	Field string
	Ref   string
	Err   error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s (%s): %v", e.Field, e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errNoSecretResolver = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	settingsFile string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithSettingsFile loads wiki settings from a YAML file before applying environment
// overrides. SEO_SETTINGS_FILE takes effect when this option is not given.
func WithSettingsFile(path string) Option {
	return func(o *loaderOptions) { o.settingsFile = path }
}

// WithEnvMap supplies values that take precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver for secret references in settings values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

func newOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EnvironmentValues returns the merged .env, process and explicit values, letting
// callers construct dependencies such as the secret fetcher before Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, key := range knownKeys() {
		if v, ok := lookup(key); ok {
			values[key] = v
		}
	}
	return values, nil
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	var dotEnv map[string]string
	if o.envFile != "" {
		values, err := godotenv.Read(o.envFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", o.envFile, err)
		default:
			dotEnv = values
		}
	}
	return func(key string) (string, bool) {
		if v, ok := o.envMap[key]; ok {
			return v, true
		}
		if o.useSystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
		}
		v, ok := dotEnv[key]
		return v, ok
	}, nil
}

// Load resolves the configuration and validates it.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	settingsFile := options.settingsFile
	if settingsFile == "" {
		settingsFile = stringWithDefault(lookup, "SEO_SETTINGS_FILE", "")
	}
	site := host.Settings{CategoryPrefix: defaultCategoryPrefix}
	if settingsFile != "" {
		if err := readSettingsFile(settingsFile, &site); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "SEO_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "SEO_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SEO_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "SEO_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SEO_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Site:        site,
		Backend:     Backend(strings.ToLower(stringWithDefault(lookup, "SEO_BACKEND", string(BackendMemory)))),
		FixtureFile: stringWithDefault(lookup, "SEO_FIXTURE_FILE", ""),
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "SEO_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "SEO_FIRESTORE_EMULATOR_HOST", ""),
			DialTimeout:  durationWithDefault(lookup, "SEO_FIRESTORE_DIAL_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			FilesBucket:   stringWithDefault(lookup, "SEO_STORAGE_FILES_BUCKET", ""),
			PublicBaseURL: stringWithDefault(lookup, "SEO_STORAGE_PUBLIC_BASE_URL", ""),
			HeaderBytes:   int64(intWithDefault(lookup, "SEO_STORAGE_HEADER_BYTES", 0)),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "SEO_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "SEO_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
		Observability: ObservabilityConfig{
			ProjectID: stringWithDefault(lookup, "SEO_TRACE_PROJECT_ID", ""),
			LogLevel:  stringWithDefault(lookup, "LOG_LEVEL", ""),
		},
		Probe: ProbeConfig{
			Timeout:  durationWithDefault(lookup, "SEO_PROBE_TIMEOUT", defaultProbeTimeout),
			MaxBytes: int64(intWithDefault(lookup, "SEO_PROBE_MAX_BYTES", defaultProbeMaxBytes)),
		},
		secretFields: map[string]struct{}{},
	}

	for _, f := range siteFields(&cfg.Site) {
		if v, ok := lookup(f.env); ok {
			*f.value = v
		}
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Secrets.ProjectID
	}
	if cfg.Observability.ProjectID == "" {
		cfg.Observability.ProjectID = cfg.Firestore.ProjectID
	}

	for _, f := range siteFields(&cfg.Site) {
		if !isSecretReference(*f.value) {
			continue
		}
		ref := normalizeSecretReference(*f.value)
		if options.secret == nil {
			return Config{}, &SecretError{Field: f.name, Ref: ref, Err: errNoSecretResolver}
		}
		resolved, err := options.secret.ResolveSecret(ctx, ref)
		if err != nil {
			return Config{}, &SecretError{Field: f.name, Ref: ref, Err: err}
		}
		*f.value = strings.TrimSpace(resolved)
		cfg.secretFields[f.name] = struct{}{}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Redacted returns a copy of c with every secret-resolved settings value masked.
func (c Config) Redacted() Config {
	out := c
	for _, f := range siteFields(&out.Site) {
		if _, ok := c.secretFields[f.name]; ok {
			*f.value = RedactedValue
		}
	}
	return out
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Site.Server) == "" {
		missing = append(missing, "Site.Server")
	}
	if strings.TrimSpace(cfg.Site.Sitename) == "" {
		missing = append(missing, "Site.Sitename")
	}
	switch cfg.Backend {
	case BackendMemory:
		if cfg.FixtureFile == "" {
			missing = append(missing, "FixtureFile")
		}
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	default:
		missing = append(missing, "Backend")
	}
	if cfg.Probe.MaxBytes <= 0 {
		missing = append(missing, "Probe.MaxBytes")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func readSettingsFile(path string, site *host.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, site); err != nil {
		return fmt.Errorf("config: parse settings %s: %w", path, err)
	}
	return nil
}

type settingField struct {
	name  string
	env   string
	value *string
}

func siteFields(s *host.Settings) []settingField {
	return []settingField{
		{"Site.Server", "SEO_SITE_SERVER", &s.Server},
		{"Site.Sitename", "SEO_SITE_SITENAME", &s.Sitename},
		{"Site.EmergencyContact", "SEO_SITE_EMERGENCY_CONTACT", &s.EmergencyContact},
		{"Site.Logo", "SEO_SITE_LOGO", &s.Logo},
		{"Site.Favicon", "SEO_SITE_FAVICON", &s.Favicon},
		{"Site.Phone", "SEO_EXT_PHONE", &s.Phone},
		{"Site.Publisher", "SEO_EXT_PUBLISHER", &s.Publisher},
		{"Site.PublisherLogo", "SEO_EXT_PUBLISHER_LOGO", &s.PublisherLogo},
		{"Site.Manifest", "SEO_EXT_MANIFEST", &s.Manifest},
		{"Site.URLVk", "SEO_EXT_URL_VK", &s.URLVk},
		{"Site.URLFacebook", "SEO_EXT_URL_FACEBOOK", &s.URLFacebook},
		{"Site.URLTwitter", "SEO_EXT_URL_TWITTER", &s.URLTwitter},
		{"Site.URLDiscord", "SEO_EXT_URL_DISCORD", &s.URLDiscord},
		{"Site.ThemeColor", "SEO_EXT_THEME_COLOR", &s.ThemeColor},
		{"Site.MSTileColor", "SEO_EXT_MS_TILE_COLOR", &s.MSTileColor},
		{"Site.TwitterSite", "SEO_EXT_TWITTER_SITE", &s.TwitterSite},
		{"Site.TwitterCreator", "SEO_EXT_TWITTER_CREATOR", &s.TwitterCreator},
		{"Site.StreetAddress", "SEO_EXT_STREET_ADDRESS", &s.StreetAddress},
		{"Site.AddressLocality", "SEO_EXT_ADDRESS_LOCALITY", &s.AddressLocality},
		{"Site.AddressRegion", "SEO_EXT_ADDRESS_REGION", &s.AddressRegion},
		{"Site.PostalCode", "SEO_EXT_POSTAL_CODE", &s.PostalCode},
		{"Site.AddressCountry", "SEO_EXT_ADDRESS_COUNTRY", &s.AddressCountry},
		{"Site.ContactType", "SEO_EXT_CONTACT_TYPE", &s.ContactType},
		{"Site.ArticlePublisher", "SEO_EXT_ARTICLE_PUBLISHER", &s.ArticlePublisher},
		{"Site.AuthorName", "SEO_EXT_AUTHOR_NAME", &s.AuthorName},
		{"Site.CategoryPrefix", "SEO_EXT_CATEGORY_PREFIX", &s.CategoryPrefix},
	}
}

func knownKeys() []string {
	keys := []string{
		"SEO_SERVER_PORT", "SEO_SERVER_READ_TIMEOUT", "SEO_SERVER_WRITE_TIMEOUT",
		"SEO_SERVER_IDLE_TIMEOUT", "SEO_SERVER_SHUTDOWN_TIMEOUT",
		"SEO_SETTINGS_FILE", "SEO_BACKEND", "SEO_FIXTURE_FILE",
		"SEO_FIRESTORE_PROJECT_ID", "SEO_FIRESTORE_EMULATOR_HOST", "SEO_FIRESTORE_DIAL_TIMEOUT",
		"SEO_STORAGE_FILES_BUCKET", "SEO_STORAGE_PUBLIC_BASE_URL", "SEO_STORAGE_HEADER_BYTES",
		"SEO_SECRETS_PROJECT_ID", "SEO_SECRETS_FALLBACK_FILE",
		"SEO_TRACE_PROJECT_ID", "LOG_LEVEL", "SEO_PROBE_TIMEOUT", "SEO_PROBE_MAX_BYTES",
		"SEO_BUILD_VERSION", "SEO_BUILD_COMMIT_SHA", "SEO_ENVIRONMENT",
	}
	for _, f := range siteFields(&host.Settings{}) {
		keys = append(keys, f.env)
	}
	return keys
}

func isSecretReference(value string) bool {
	value = strings.TrimSpace(value)
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}

func normalizeSecretReference(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "sm://") {
		return "secret://" + strings.TrimPrefix(value, "sm://")
	}
	return value
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
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
