package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SEO_SITE_SERVER":   "https://wiki.example.org",
		"SEO_SITE_SITENAME": "Metawiki",
		"SEO_FIXTURE_FILE":  "testdata/wiki.yaml",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Backend)
	}
	if cfg.Site.CategoryPrefix != "Категория:" {
		t.Errorf("unexpected category prefix %q", cfg.Site.CategoryPrefix)
	}
	if cfg.Probe.MaxBytes != 1<<20 {
		t.Errorf("unexpected probe limit %d", cfg.Probe.MaxBytes)
	}
	if cfg.Secrets.FallbackFile != ".secrets.local" {
		t.Errorf("unexpected secrets fallback %q", cfg.Secrets.FallbackFile)
	}
}

func TestLoadBackendTuning(t *testing.T) {
	env := baseEnv()
	env["SEO_FIRESTORE_DIAL_TIMEOUT"] = "3s"
	env["SEO_STORAGE_HEADER_BYTES"] = "4096"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.DialTimeout != 3*time.Second {
		t.Errorf("unexpected dial timeout %s", cfg.Firestore.DialTimeout)
	}
	if cfg.Storage.HeaderBytes != 4096 {
		t.Errorf("unexpected header bytes %d", cfg.Storage.HeaderBytes)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	writeFile(t, settings, `
server: https://from-yaml.example.org
sitename: YAML wiki
logo: /yaml-logo.png
twitter_site: yamlhandle
ms_tile_color: "#111111"
`)
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "SEO_SITE_LOGO=/dotenv-logo.png\nSEO_EXT_THEME_COLOR=\"#222222\"\nSEO_FIXTURE_FILE=fixture.yaml\n")

	cfg, err := Load(context.Background(),
		WithSettingsFile(settings),
		WithEnvFile(envFile),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"SEO_EXT_THEME_COLOR": "#333333", "SEO_SERVER_PORT": "9090"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Site.Server != "https://from-yaml.example.org" {
		t.Errorf("expected yaml server, got %s", cfg.Site.Server)
	}
	if cfg.Site.Logo != "/dotenv-logo.png" {
		t.Errorf("expected .env to override yaml, got %s", cfg.Site.Logo)
	}
	if cfg.Site.ThemeColor != "#333333" {
		t.Errorf("expected env map to win, got %s", cfg.Site.ThemeColor)
	}
	if cfg.Site.TwitterSite != "yamlhandle" || cfg.Site.MSTileColor != "#111111" {
		t.Errorf("yaml extension keys not applied: %+v", cfg.Site)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["SEO_EXT_PHONE"] = "secret://site_phone"
	env["SEO_SITE_EMERGENCY_CONTACT"] = "sm://contact_email"

	var refs []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		refs = append(refs, ref)
		return " resolved:" + strings.TrimPrefix(ref, "secret://") + " ", nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Phone != "resolved:site_phone" {
		t.Errorf("unexpected phone %q", cfg.Site.Phone)
	}
	if cfg.Site.EmergencyContact != "resolved:contact_email" {
		t.Errorf("unexpected contact %q", cfg.Site.EmergencyContact)
	}
	if len(refs) != 2 || refs[0] != "secret://contact_email" {
		t.Errorf("unexpected refs %v", refs)
	}

	redacted := cfg.Redacted()
	if redacted.Site.Phone != RedactedValue || redacted.Site.EmergencyContact != RedactedValue {
		t.Errorf("expected secrets to be redacted, got %+v", redacted.Site)
	}
	if redacted.Site.Sitename != "Metawiki" {
		t.Errorf("plain values must survive redaction, got %q", redacted.Site.Sitename)
	}
	if cfg.Site.Phone == RedactedValue {
		t.Error("Redacted must not mutate the receiver")
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := baseEnv()
	env["SEO_EXT_PHONE"] = "secret://site_phone"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Field != "Site.Phone" {
		t.Errorf("unexpected field %q", secretErr.Field)
	}
	if !errors.Is(err, errNoSecretResolver) {
		t.Errorf("expected errNoSecretResolver, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(map[string]string{"SEO_BACKEND": "firestore"}),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"Site.Server", "Site.Sitename", "Firestore.ProjectID"}
	got := validationErr.Fields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	env := baseEnv()
	env["SEO_BACKEND"] = "postgres"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := validationErr.Fields(); len(fields) != 1 || fields[0] != "Backend" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestFirestoreProjectDefaultsToSecretsProject(t *testing.T) {
	env := baseEnv()
	env["SEO_BACKEND"] = "firestore"
	env["SEO_SECRETS_PROJECT_ID"] = "wiki-prod"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "wiki-prod" || cfg.Observability.ProjectID != "wiki-prod" {
		t.Fatalf("expected project ids to default, got %+v %+v", cfg.Firestore, cfg.Observability)
	}
}

func TestEnvironmentValues(t *testing.T) {
	values, err := EnvironmentValues(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"SEO_SECRETS_PROJECT_ID": "wiki",
		"UNRELATED":              "x",
	}))
	if err != nil {
		t.Fatalf("EnvironmentValues: %v", err)
	}
	if values["SEO_SECRETS_PROJECT_ID"] != "wiki" {
		t.Fatalf("unexpected values %v", values)
	}
	if _, ok := values["UNRELATED"]; ok {
		t.Fatal("unknown keys must not be returned")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
