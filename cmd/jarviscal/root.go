package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jarviscal/internal/api"
	"jarviscal/internal/config"
	appLog "jarviscal/internal/log"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries the flags and the dependencies built from them. Every
// command receives the same instance.
type app struct {
	configPath string
	apiURL     string
	timezone   string
	verbose    bool

	cfg    *config.Config
	client *api.Client
	loc    *time.Location
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:   "jarviscal",
		Short: "Client for the Jarvis assistant: chat, calendar and knowledge base",
		Long: `jarviscal talks to a Jarvis backend over HTTP and WebSocket.

It chats with the assistant, manages calendar events, searches and feeds
the knowledge base, and renders the calendar as a Monday-based week grid
in the terminal, as a local web page or as an iCalendar feed.

Quick Start:
  jarviscal chat "what's on tomorrow?"   # One question
  jarviscal chat                         # Interactive session
  jarviscal week                         # This week's calendar
  jarviscal serve                        # Local week view on :8080`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default: user config dir)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Backend base URL including /api (overrides config and env)")
	root.PersistentFlags().StringVar(&a.timezone, "timezone", "", "IANA timezone for calendar display (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newChatCmd(a),
		newModelsCmd(a),
		newEventsCmd(a),
		newWeekCmd(a),
		newScrapeCmd(a),
		newSearchCmd(a),
		newHealthCmd(a),
		newStatsCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newSnapshotCmd(a),
		newImportCmd(a),
		newExportCmd(a),
	)
	return root
}

// setup loads the config, applies env and flag overrides and builds the
// API client.
func (a *app) setup() error {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return fmt.Errorf("load config: %w", err)
		}
		// The defaults are usable even when the first-run file could not be written.
		appLog.Error("failed to write default config", err, "config_path", path)
	}
	cfg.ApplyEnv(os.Getenv)
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.timezone != "" {
		cfg.Timezone = a.timezone
	}
	cfg.Normalize()

	level := appLog.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	a.cfg = cfg
	a.loc = cfg.Location()
	a.client = api.New(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithUserAgent("jarviscal/"+version),
	)

	appLog.Debug("effective config",
		"config_path", path,
		"api_url", cfg.APIURL,
		"timezone", a.loc.String(),
		"listen", cfg.Listen,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
	)
	return nil
}
