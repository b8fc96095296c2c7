package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fidiego/hardump/pkg/addons"
	"github.com/fidiego/hardump/pkg/config"
	"github.com/fidiego/hardump/pkg/filter"
	"github.com/fidiego/hardump/pkg/proxy"
	"github.com/fidiego/hardump/pkg/tui"
	"github.com/fidiego/hardump/pkg/web"
)

var rootCmd = &cobra.Command{
	Use:   "hardump",
	Short: "HTTP reverse proxy that records traffic to an HTTP Archive",
	Long: `hardump is a reverse proxy that captures HTTP traffic and writes it
out as a HAR 1.2 document when the proxy shuts down.

Config file (hardump.yml) is loaded automatically from the current directory.
CLI flags override config file values.

Examples:
  # Record everything to traffic.har
  hardump --upstream http://localhost:8081 --har traffic.har

  # Write the archive to stdout (logs go to stderr)
  hardump --upstream http://localhost:8081 --har - --no-tui

  # Record only API errors
  hardump --route /api=http://localhost:8081 --har errors.har --har-filter "~s 5"

  # Print an example config file
  hardump init`,
	RunE: run,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Print an example hardump.yml to stdout",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Print(config.Example())
		return nil
	},
}

var (
	flagConfig    string
	flagListen    string
	flagHAR       string
	flagHARFilter string
	flagUpstream  string
	flagRoutes    []string
	flagWebPort   int
	flagMaxStore  int
	flagMaxBody   int64
	flagNoTUI     bool
	flagNoColor   bool
	flagLogLevel  string
)

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "",
		"path to config file (default: hardump.yml in current directory)")
	rootCmd.Flags().StringVar(&flagListen, "listen", "",
		"proxy listen address (default: :9090)")
	rootCmd.Flags().StringVar(&flagHAR, "har", "",
		"archive destination: file path, or - for stdout (required)")
	rootCmd.Flags().StringVar(&flagHARFilter, "har-filter", "",
		"record only matching exchanges (e.g. \"~m POST & ~p /api\")")
	rootCmd.Flags().StringVar(&flagUpstream, "upstream", "",
		"single upstream target URL (e.g. http://localhost:8081)")
	rootCmd.Flags().StringArrayVar(&flagRoutes, "route", nil,
		"path-routed upstream in PREFIX=TARGET form (e.g. /api=http://localhost:8081); repeatable")
	rootCmd.Flags().IntVar(&flagWebPort, "web-port", 0,
		"port for web inspection UI (default: 9091; set to 0 to disable)")
	rootCmd.Flags().IntVar(&flagMaxStore, "max-store", 0,
		"maximum number of exchanges to keep in memory for the UIs (default: 1000)")
	rootCmd.Flags().Int64Var(&flagMaxBody, "max-body-size", 0,
		"maximum bytes captured per request/response body (default: 1048576)")
	rootCmd.Flags().BoolVar(&flagNoTUI, "no-tui", false,
		"disable the interactive terminal UI (log to stderr only)")
	rootCmd.Flags().BoolVar(&flagNoColor, "no-color", false,
		"disable ANSI colours in log output")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "",
		"diagnostic log level: debug, info, warn, error (default: info)")

	rootCmd.AddCommand(initCmd)
}

func run(cmd *cobra.Command, _ []string) error {
	// 1. Start from an empty options struct; proxy.New will apply defaults.
	opts := proxy.Options{}

	// 2. Load config file.
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.FindDefault(".")
	}
	var (
		cfg       config.Config
		noTUI     bool
		noColor   bool
		harDest   string
		harFilter string
		logLevel  = "info"
	)
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "loaded config: %s\n", cfgPath)
		cfg = *loaded
		opts = cfg.ToOptions()
		noTUI = cfg.NoTUI
		noColor = cfg.NoColor
		harDest = cfg.HAR
		harFilter = cfg.HARFilter
		if cfg.LogLevel != "" {
			logLevel = cfg.LogLevel
		}
	}

	// 3. CLI flags override config file values (only when explicitly set).
	f := cmd.Flags()
	if f.Changed("listen") {
		opts.ListenAddr = flagListen
	}
	if f.Changed("har") {
		harDest = flagHAR
	}
	if f.Changed("har-filter") {
		harFilter = flagHARFilter
	}
	if f.Changed("web-port") {
		opts.WebPort = flagWebPort
		if opts.WebPort == 0 {
			opts.WebPort = -1
		}
	}
	if f.Changed("max-store") {
		opts.MaxStore = flagMaxStore
	}
	if f.Changed("max-body-size") {
		opts.MaxBodySize = flagMaxBody
	}
	if f.Changed("no-tui") {
		noTUI = flagNoTUI
	}
	if f.Changed("no-color") {
		noColor = flagNoColor
	}
	if f.Changed("log-level") {
		logLevel = flagLogLevel
	}

	// --upstream and --route replace (not merge with) the config file's upstreams
	// when either flag is explicitly provided.
	if f.Changed("upstream") || f.Changed("route") {
		cliUpstreams, err := buildUpstreams()
		if err != nil {
			return err
		}
		opts.Upstreams = cliUpstreams
	}

	if len(opts.Upstreams) == 0 {
		return fmt.Errorf("at least one upstream is required (use --upstream, --route, or a config file)")
	}

	logger, err := newLogger(logLevel, noColor)
	if err != nil {
		return err
	}
	opts.Logger = logger

	// With the archive going to stdout, stdout must carry nothing else.
	harToStdout := harDest == "-"
	if harToStdout {
		noTUI = true
	}

	var match filter.Filter
	if harFilter != "" {
		match, err = filter.Parse(harFilter)
		if err != nil {
			return fmt.Errorf("invalid --har-filter: %w", err)
		}
	}

	// The archive destination is validated before any traffic flows, so a
	// missing --har fails at startup, not after an hour of recording.
	dump, err := addons.NewDumpAddon(harDest, match, logger)
	if err != nil {
		return fmt.Errorf("har destination: %w (use --har)", err)
	}

	engine, err := proxy.New(opts)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	logOut := os.Stdout
	if harToStdout {
		logOut = os.Stderr
	}
	engine.Addons().Add(addons.NewLogAddon(logOut, noTUI || noColor))
	registerRewriteAddons(engine, cfg.Addons)
	engine.Addons().Add(dump)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("listen", engine.Options().ListenAddr).
			Str("har", harDest).
			Msg("proxy listening")
		return engine.Start(ctx)
	})

	if engine.Options().WebPort > 0 {
		webSrv := web.New(engine, dump.Archive(), engine.Options().WebPort, logger)
		g.Go(func() error {
			return webSrv.Start(ctx)
		})
	}

	if !noTUI && isTerminal() {
		g.Go(func() error {
			return tui.Run(ctx, engine, dump.Archive(), engine.Options().WebPort)
		})
	}

	runErr := g.Wait()

	// Flush the archive exactly once, after all traffic has stopped.
	if err := engine.Addons().FireFinalize(); err != nil {
		logger.Error().Err(err).Msg("finalize failed")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// registerRewriteAddons wires the optional rewrite addons from config.
func registerRewriteAddons(engine *proxy.Engine, ac config.AddonsConfig) {
	if ac.AddHeader != nil {
		engine.Addons().Add(&addons.HeaderAddon{Name: ac.AddHeader.Name, Value: ac.AddHeader.Value})
	}
	if ac.ForceQuery != nil {
		engine.Addons().Add(&addons.QueryAddon{Key: ac.ForceQuery.Key, Value: ac.ForceQuery.Value})
	}
	if ac.RewriteForm != nil {
		engine.Addons().Add(&addons.FormAddon{Field: ac.RewriteForm.Field, Value: ac.RewriteForm.Value})
	}
	if ac.Redirect != nil {
		engine.Addons().Add(&addons.RedirectAddon{From: ac.Redirect.From, To: ac.Redirect.To})
	}
}

// newLogger builds the diagnostic logger. Diagnostics always go to stderr
// so they never mix with a stdout archive.
func newLogger(level string, noColor bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// buildUpstreams constructs the upstream list from --upstream / --route flags.
func buildUpstreams() ([]proxy.Upstream, error) {
	var upstreams []proxy.Upstream

	if flagUpstream != "" {
		upstreams = append(upstreams, proxy.Upstream{
			Name:   "default",
			Prefix: "/",
			Target: flagUpstream,
		})
	}

	for _, r := range flagRoutes {
		parts := strings.SplitN(r, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --route %q: expected PREFIX=TARGET", r)
		}
		prefix, target := parts[0], parts[1]
		name := strings.TrimPrefix(prefix, "/")
		if name == "" {
			name = "default"
		}
		upstreams = append(upstreams, proxy.Upstream{
			Name:   name,
			Prefix: prefix,
			Target: target,
		})
	}

	return upstreams, nil
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
