package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"strava-power/internal/auth"
	"strava-power/internal/config"
	"strava-power/internal/fetch"
	"strava-power/internal/logger"
	"strava-power/internal/scheduler"
	"strava-power/internal/service"
	"strava-power/internal/store"
)

var (
	configPath  string
	athleteFlag int64
	jsonOutput  bool
)

// rootCmd is the base command for the strava-power CLI
var rootCmd = &cobra.Command{
	Use:   "strava-power",
	Short: "Power curve and training load analytics for Strava",
	Long: `strava-power pulls your Strava sessions under Strava's rate limits and turns
them into a power-duration curve, a CTL/ATL/TSB training load history, a critical
power model and load forecasts.

Start with 'strava-power login', then 'strava-power sync'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.strava-power/config.json)")
	rootCmd.PersistentFlags().Int64Var(&athleteFlag, "athlete", 0, "athlete id (default: the first athlete that logged in)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errConfigCreated stops a command after an example config was written
var errConfigCreated = errors.New("example config created, edit it and run again")

// loadConfig loads and validates the configuration, writing an example
// config on first run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, config.ErrNoConfig) && configPath == "" {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return nil, fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("You need to add your Strava API credentials.")
		fmt.Println("Get them from: https://www.strava.com/settings/api")
		return nil, errConfigCreated
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is everything a command needs, wired from the config
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *store.DB
	oauth    *oauth2.Config
	sched    *scheduler.Scheduler
	svc      *service.Service
	registry *prometheus.Registry
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sched := scheduler.New(scheduler.Config{
		Name:             "strava",
		MinInterval:      cfg.Scheduler.MinInterval,
		ThrottleFraction: cfg.Scheduler.ThrottleFraction,
		MinResetWait:     cfg.Scheduler.MinResetWait,
		BackoffCap:       cfg.Scheduler.BackoffCap,
		MaxRetries:       cfg.Scheduler.MaxRetries,
	}, log, scheduler.NewMetrics(registry))

	oauthCfg := auth.NewOAuthConfig(auth.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
	})

	svc := service.New(db, service.StravaUpstreams(db, oauthCfg, cfg.Strava.BaseURL, log), sched, service.Options{
		Athlete: cfg.Athlete,
		Fetch: fetch.Config{
			Concurrency: cfg.Fetch.Concurrency,
			PageSize:    cfg.Fetch.PageSize,
			MaxPages:    cfg.Fetch.MaxPages,
			BatchDelay:  cfg.Fetch.BatchDelay,
		},
		SessionLimit: cfg.Fetch.SessionLimit,
		Metrics:      service.NewMetrics(registry),
	}, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		oauth:    oauthCfg,
		sched:    sched,
		svc:      svc,
		registry: registry,
	}, nil
}

// setup loads the config and wires the app for a command
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

// Close waits for background work, then stops the scheduler and closes the database
func (a *app) Close() {
	a.svc.Wait()
	a.sched.Close()
	a.db.Close()
}

// athlete resolves --athlete, defaulting to the first stored login
func (a *app) athlete() (int64, error) {
	if athleteFlag != 0 {
		if _, err := a.db.GetAuth(athleteFlag); err != nil {
			return 0, fmt.Errorf("athlete %d: %w (run 'strava-power login')", athleteFlag, err)
		}
		return athleteFlag, nil
	}
	stored, err := a.db.DefaultAuth()
	if errors.Is(err, store.ErrNoAuth) {
		return 0, errors.New("no athlete has logged in yet, run 'strava-power login'")
	}
	if err != nil {
		return 0, err
	}
	return stored.AthleteID, nil
}

// output writes v as JSON with --json, otherwise the rendered text
func output(v any, render func() string) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(render())
	return nil
}

// withApp adapts a command body that needs the wired app
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if errors.Is(err, errConfigCreated) {
			return nil
		}
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, args)
	}
}
