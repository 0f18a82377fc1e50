package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/hook"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metadata"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/config"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/observability"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/secrets"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories/memory"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/wiki"
)

// Globals are flags shared by every command.
type Globals struct {
	EnvFile  string `help:"Path to a .env file" default:".env" type:"path"`
	Settings string `short:"s" help:"YAML wiki settings file" type:"path"`
	Fixture  string `short:"f" help:"YAML page fixture; overrides SEO_FIXTURE_FILE" type:"path"`
	Verbose  bool   `short:"v" help:"Enable debug logging"`
}

// app carries the parsed flags and process resources into command Run methods.
type app struct {
	flags  *Globals
	out    io.Writer
	logger *zap.Logger
}

// CLI is the seoctl command tree.
type CLI struct {
	Globals

	Head   HeadCmd   `cmd:"" help:"Print the SEO head items for a page"`
	JSONLD JSONLDCmd `cmd:"" name:"jsonld" help:"Print the JSON-LD payload for a page"`
	Config ConfigCmd `cmd:"" help:"Print the resolved configuration with secrets redacted"`
}

// HeadCmd prints head items.
type HeadCmd struct {
	Title string `arg:"" help:"Page title"`
	JSON  bool   `help:"Print items as JSON"`
}

// JSONLDCmd prints the structured data payload.
type JSONLDCmd struct {
	Title  string `arg:"" help:"Page title"`
	Pretty bool   `short:"p" help:"Indent the payload"`
}

// ConfigCmd prints configuration.
type ConfigCmd struct{}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "seoctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("seoctl"),
		kong.Description("Inspect the SEO head metadata generated for wiki pages."),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := "info"
	if cli.Verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(level)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return kctx.Run(&app{flags: &cli.Globals, out: out, logger: logger.Named("seoctl")})
}

// Run prints the head items for the page.
func (c *HeadCmd) Run(g *app) error {
	ctx, engine, err := g.engine()
	if err != nil {
		return err
	}
	view, err := engine.View(ctx, c.Title)
	if err != nil {
		return err
	}
	if !view.SEO {
		g.logger.Warn("page is not a content page; no head items emitted", zap.String("title", view.Page.Title))
	}
	items := view.Output.HeadItems()
	if c.JSON {
		enc := json.NewEncoder(g.out)
		enc.SetEscapeHTML(false)
		return enc.Encode(items)
	}
	_, err = io.WriteString(g.out, items.HTML())
	return err
}

// Run prints the JSON-LD payload for the page.
func (c *JSONLDCmd) Run(g *app) error {
	ctx, engine, err := g.engine()
	if err != nil {
		return err
	}
	rec, err := engine.Record(ctx, c.Title)
	if err != nil {
		return err
	}
	payload, err := seo.JSONLD(rec)
	if err != nil {
		return err
	}
	if c.Pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(payload), "", "  "); err != nil {
			return err
		}
		payload = buf.String()
	}
	_, err = fmt.Fprintln(g.out, payload)
	return err
}

// Run prints the redacted configuration as YAML.
func (c *ConfigCmd) Run(g *app) error {
	cfg, err := g.load(context.Background(), false)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(g.out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}

// load resolves the configuration. Page commands always read from a fixture.
func (g *app) load(ctx context.Context, fixtureBackend bool) (config.Config, error) {
	opts := []config.Option{config.WithEnvFile(g.flags.EnvFile)}
	if g.flags.Settings != "" {
		opts = append(opts, config.WithSettingsFile(g.flags.Settings))
	}
	overrides := map[string]string{}
	if fixtureBackend {
		overrides["SEO_BACKEND"] = string(config.BackendMemory)
	}
	if g.flags.Fixture != "" {
		overrides["SEO_FIXTURE_FILE"] = g.flags.Fixture
	}
	opts = append(opts, config.WithEnvMap(overrides))

	env, err := config.EnvironmentValues(opts...)
	if err != nil {
		return config.Config{}, err
	}
	fallback := ".secrets.local"
	if v, ok := env["SEO_SECRETS_FALLBACK_FILE"]; ok {
		fallback = v
	}
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(g.logger.Named("secrets")),
		secrets.WithProject(env["SEO_SECRETS_PROJECT_ID"]),
		secrets.WithFallbackFile(fallback),
	)
	if err != nil {
		return config.Config{}, err
	}
	defer func() { _ = fetcher.Close() }()

	return config.Load(ctx, append(opts, config.WithSecretResolver(fetcher))...)
}

func (g *app) engine() (context.Context, *wiki.Engine, error) {
	ctx := requestctx.WithLogger(context.Background(), g.logger)
	cfg, err := g.load(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	store, err := memory.LoadFixture(ctx, cfg.FixtureFile)
	if err != nil {
		return nil, nil, err
	}
	h, err := wiki.NewHost(cfg.Site, store)
	if err != nil {
		return nil, nil, err
	}
	prober := metadata.NewHTTPProber(&http.Client{Timeout: cfg.Probe.Timeout}, cfg.Probe.MaxBytes)
	seoHook, err := hook.New(h,
		hook.WithCollector(metadata.NewCollector(metadata.WithProber(prober))),
		hook.WithLogger(g.logger.Named("hook")),
	)
	if err != nil {
		return nil, nil, err
	}
	engine, err := wiki.NewEngine(h, nil, seoHook)
	if err != nil {
		return nil, nil, err
	}
	return ctx, engine, nil
}
