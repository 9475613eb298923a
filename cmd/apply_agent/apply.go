package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/apply-agent/internal/ats"
	"github.com/jonathan/apply-agent/internal/browser"
	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/engine"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/registry"
	"github.com/jonathan/apply-agent/internal/store"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/vision"
)

var applyCommand = &cobra.Command{
	Use:   "apply",
	Short: "Apply to one or more job postings",
	Long: `Matches each job URL to a registered strategy and drives the application form end-to-end.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runApplyCmd,
}

var (
	applyConfigPath    string
	applyJobURLs       []string
	applyProfilePath   string
	applyStrategiesDir string
	applyFallback      string
	applyScreenshotDir string
	applyAPIKey        string
	applyDatabaseURL   string
	applyHeadless      bool
	applyVerbose       bool
	applyWatch         bool
	applyDisableAI     bool
	applyConcurrency   int
	applyManualWait    int
)

func init() {
	// Config file flag (processed first)
	applyCommand.Flags().StringVar(&applyConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	applyCommand.Flags().StringArrayVarP(&applyJobURLs, "job-url", "j", nil, "Job posting URL (repeatable)")
	applyCommand.Flags().StringVarP(&applyProfilePath, "profile", "p", "", "Path to applicant profile JSON")
	applyCommand.Flags().StringVarP(&applyStrategiesDir, "strategies", "s", "", "Directory of strategy definition JSON files")
	applyCommand.Flags().StringVar(&applyFallback, "fallback-strategy", "", "Strategy id to use when no domain matches")
	applyCommand.Flags().StringVar(&applyScreenshotDir, "screenshot-dir", "", "Directory for failure and captcha screenshots")
	applyCommand.Flags().BoolVar(&applyHeadless, "headless", true, "Run the browser headless")
	applyCommand.Flags().BoolVarP(&applyVerbose, "verbose", "v", false, "Print detailed debug information")
	applyCommand.Flags().BoolVar(&applyWatch, "watch", false, "Reload strategy files on change while running")
	applyCommand.Flags().BoolVar(&applyDisableAI, "disable-ai", false, "Skip the AI automation path")
	applyCommand.Flags().IntVar(&applyConcurrency, "concurrency", 0, "Maximum jobs applied to in parallel")
	applyCommand.Flags().IntVar(&applyManualWait, "manual-captcha-wait", 0, "Seconds to wait for manual captcha resolution")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	applyCommand.Flags().StringVar(&applyAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for the persistent strategy store
	applyCommand.Flags().StringVar(&applyDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(applyCommand)
}

func runApplyCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveApplyConfig(cmd)
	if err != nil {
		return err
	}

	if len(applyJobURLs) == 0 {
		return fmt.Errorf("at least one --job-url must be provided")
	}
	if cfg.Profile == "" {
		return fmt.Errorf("--profile is required (via flag or config)")
	}
	if cfg.StrategiesDir == "" {
		return fmt.Errorf("--strategies is required (via flag or config)")
	}

	profile, err := loadProfile(cfg.Profile)
	if err != nil {
		return err
	}

	reg, cleanup, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		reg.Subscribe(func(ev events.Event) {
			fmt.Printf("  [%s] %s %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Type, ev.StrategyID)
		})
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Concurrency)

	for _, jobURL := range applyJobURLs {
		group.Go(func() error {
			return applyToJob(gctx, cfg, reg, profile, jobURL, printer)
		})
	}
	return group.Wait()
}

// applyToJob runs one application attempt in its own browser session.
func applyToJob(ctx context.Context, cfg config.Config, reg *registry.Registry, profile *types.UserProfile, jobURL string, printer *observability.Printer) error {
	job := &types.Job{ID: uuid.NewString(), URL: jobURL}

	match := reg.FindStrategy(job)
	if cfg.Verbose {
		printer.PrintMatch(job, match)
	}

	session, err := browser.NewSession(ctx, browser.Config{Headless: cfg.Headless})
	if err != nil {
		return fmt.Errorf("starting browser for %s: %w", jobURL, err)
	}
	defer session.Close()

	ec := &types.ExecutionContext{
		AttemptID: uuid.NewString(),
		Job:       job,
		Profile:   profile,
		Browser:   session,
	}

	result, err := reg.ExecuteStrategy(ctx, ec)
	if err != nil {
		return fmt.Errorf("%s: %w", jobURL, err)
	}

	printer.PrintResult(result)
	if !result.Success {
		return fmt.Errorf("application to %s failed: %s", jobURL, result.Error)
	}
	return nil
}

// buildRegistry assembles the registry from config: persistent store, vision
// resolver, AI automator, the multi-step ATS strategy as default
// implementation, loaded strategies, and the optional file watcher.
// The returned cleanup closes everything it opened.
func buildRegistry(ctx context.Context, cfg config.Config) (*registry.Registry, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	emitter := events.NewEmitter()
	regCfg := registry.Config{
		FallbackStrategyID:   cfg.FallbackStrategy,
		AIFallbackToStrategy: cfg.AIFallbackToStrategy,
		Events:               emitter,
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pg.Close)
		regCfg.Store = pg
	}

	var resolver vision.Resolver
	if cfg.APIKey != "" {
		gemini, err := vision.NewGeminiResolver(ctx, cfg.APIKey, "")
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create vision resolver: %w", err)
		}
		closers = append(closers, func() { _ = gemini.Close() })
		resolver = gemini
		if !cfg.DisableAI {
			regCfg.AI = &registry.VisionAutomator{
				Resolver:      gemini,
				ScreenshotDir: cfg.ScreenshotDir,
			}
		}
	}

	// Definitions without a registered implementation run through the
	// multi-step ATS strategy.
	regCfg.DefaultImplementation = func(def *strategy.Definition) engine.Implementation {
		impl := ats.New(def)
		impl.Resolver = resolver
		impl.Events = emitter
		impl.ScreenshotDir = cfg.ScreenshotDir
		if cfg.ManualCaptchaWait > 0 {
			impl.ManualCaptchaWait = time.Duration(cfg.ManualCaptchaWait) * time.Second
		}
		return impl
	}

	reg := registry.New(regCfg)
	closers = append(closers, reg.Close)

	if errs := reg.LoadDir(cfg.StrategiesDir); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if len(reg.Definitions()) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("no valid strategies loaded from %s", cfg.StrategiesDir)
	}

	if cfg.Watch {
		if err := reg.WatchDir(cfg.StrategiesDir); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to watch %s: %w", cfg.StrategiesDir, err)
		}
	}

	return reg, cleanup, nil
}

// resolveApplyConfig layers config file, CLI overrides, defaults, and env vars.
func resolveApplyConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if applyConfigPath != "" {
		loadedCfg, err := config.LoadConfig(applyConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loadedCfg
		if applyVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", applyConfigPath)
		}
	}

	// Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("profile") {
		cfg.Profile = applyProfilePath
	}
	if cmd.Flags().Changed("strategies") {
		cfg.StrategiesDir = applyStrategiesDir
	}
	if cmd.Flags().Changed("fallback-strategy") {
		cfg.FallbackStrategy = applyFallback
	}
	if cmd.Flags().Changed("screenshot-dir") {
		cfg.ScreenshotDir = applyScreenshotDir
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = applyAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = applyDatabaseURL
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = applyHeadless
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = applyVerbose
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watch = applyWatch
	}
	if cmd.Flags().Changed("disable-ai") {
		cfg.DisableAI = applyDisableAI
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = applyConcurrency
	}
	if cmd.Flags().Changed("manual-captcha-wait") {
		cfg.ManualCaptchaWait = applyManualWait
	}

	// Apply defaults for unset values
	defaults := config.Config{
		ScreenshotDir: "screenshots",
		Concurrency:   2,
	}
	cfg = cfg.MergeWithDefaults(defaults)

	// Env var fallbacks
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	// Headless defaults true and cannot be merged as a bool, so only an
	// explicit --headless=false turns it off.
	if !cmd.Flags().Changed("headless") {
		cfg.Headless = true
	}

	return cfg, nil
}

// loadProfile reads and validates the applicant profile JSON.
func loadProfile(path string) (*types.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	var profile types.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("profile error: 'email' is required")
	}
	if profile.ResumePath == "" {
		return nil, fmt.Errorf("profile error: 'resume_path' is required")
	}
	return &profile, nil
}
