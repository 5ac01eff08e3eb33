// fcm-agent - run every module that has a matching data file, in cycles
//
// Usage:
//
//	fcm-agent [flags]
//
// Each cycle starts "<agent-dir>/<name> <data-dir>/<name>" for every name
// that is a regular file in both directories, waits for all of them to
// finish, logs how each one ended and sleeps before the next cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbrock/fcm/internal/agent"
	"github.com/mbrock/fcm/internal/config"
	"github.com/mbrock/fcm/internal/dirs"
	"github.com/mbrock/fcm/internal/logging"
	"github.com/mbrock/fcm/internal/metrics"
	"github.com/mbrock/fcm/internal/notify"
	flag "github.com/spf13/pflag"
)

// Exit statuses.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// errHelp is returned by parseArgs after the usage text was printed.
var errHelp = errors.New("help requested")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	cfg, err := parseArgs(args, stdout)
	if errors.Is(err, errHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "fcm-agent: %v\n", err)
		fmt.Fprintf(stderr, "Run 'fcm-agent --help' for usage.\n")
		return exitUsage
	}

	log, err := logging.New(cfg.LogFormat, cfg.Verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fcm-agent: %v\n", err)
		return exitUsage
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := agent.Options{
		Logger:   log,
		Notifier: notify.New(log),
	}
	if cfg.MetricsAddr != "" {
		collector := metrics.New("fcm")
		ln, err := metrics.Listen(cfg.MetricsAddr)
		if err != nil {
			log.Error("cannot start metrics server", "error", err)
			return exitRuntime
		}
		go func() {
			if err := collector.Serve(ctx, ln, log); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		opts.Metrics = collector
	}

	log.Info("starting",
		"agent_dir", cfg.AgentDir,
		"data_dir", cfg.DataDir,
		"interval", cfg.Interval,
		"once", cfg.Once)

	if err := agent.New(cfg, opts).Run(ctx); err != nil {
		log.Error("agent stopped", "error", err)
		return exitRuntime
	}
	log.Info("agent stopped")
	return exitOK
}

// parseArgs builds the configuration from defaults, the optional config
// file and the command line, then checks it. Help goes to stdout.
func parseArgs(args []string, stdout io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("fcm-agent", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	var (
		agentDir    string
		dataDir     string
		configPath  string
		logFormat   string
		metricsAddr string
		sleep       int
		maxFailures int
		once        bool
		verbose     bool
		help        bool
	)
	fs.StringVarP(&agentDir, "agent-dir", "a", config.DefaultAgentDir, "Agent directory holding module executables")
	fs.StringVarP(&dataDir, "data-dir", "d", config.DefaultDataDir, "Data directory holding one file per module")
	fs.BoolVarP(&once, "once", "o", false, "Run a single cycle and exit")
	fs.IntVarP(&sleep, "sleep", "s", int(config.DefaultInterval/time.Second), "Seconds to sleep between runs")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Print verbose messages")
	fs.StringVarP(&configPath, "config", "c", "", "YAML configuration file (flags take precedence)")
	fs.StringVar(&logFormat, "log-format", config.LogFormatAuto, "Log format: auto, text, json, journal")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9110)")
	fs.IntVar(&maxFailures, "max-cycle-failures", config.DefaultMaxCycleFailures, "Exit after this many failed cycles in a row (0 = never)")
	fs.BoolVarP(&help, "help", "h", false, "This help message")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if help {
		fmt.Fprintf(stdout, "Usage: fcm-agent [flags]\n\n%s", fs.FlagUsages())
		return config.Config{}, errHelp
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath, cfg); err != nil {
			return config.Config{}, err
		}
	}

	if fs.Changed("agent-dir") {
		cfg.AgentDir = agentDir
	}
	if fs.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if fs.Changed("once") {
		cfg.Once = once
	}
	if fs.Changed("sleep") {
		cfg.Interval = time.Duration(sleep) * time.Second
	}
	if fs.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if fs.Changed("max-cycle-failures") {
		cfg.MaxCycleFailures = maxFailures
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	var err error
	if cfg.AgentDir, err = dirs.Resolve(cfg.AgentDir); err != nil {
		return config.Config{}, err
	}
	if cfg.DataDir, err = dirs.Resolve(cfg.DataDir); err != nil {
		return config.Config{}, err
	}
	if err := dirs.Check(cfg.AgentDir); err != nil {
		return config.Config{}, fmt.Errorf("agent directory: %w", err)
	}
	if err := dirs.Check(cfg.DataDir); err != nil {
		return config.Config{}, fmt.Errorf("data directory: %w", err)
	}
	return cfg, nil
}
