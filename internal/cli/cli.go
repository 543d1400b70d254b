package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/flowdash/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments on top of the FLOWDASH_*
// environment. It returns a validated Config, a boolean indicating if the
// program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	base, err := app.ConfigFromEnv()
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet := flag.NewFlagSet("flowdash", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Flowdash - a live workflow dashboard backend with a status simulator.

Usage:
  flowdash [options] [PIPELINE_FILE]
  flowdash -watch URL

Arguments:
  PIPELINE_FILE
    HCL file, or directory of .hcl files, describing the pipeline. The
    built-in pipeline is used when omitted.

Options:
`)
		flagSet.PrintDefaults()
		fmt.Fprint(output, `
Every option can also be set through the environment (FLOWDASH_ADDR,
FLOWDASH_PIPELINE, FLOWDASH_LOG_LEVEL, ...). Flags take precedence.
`)
	}

	cfg := base
	flagSet.StringVar(&cfg.Addr, "addr", base.Addr, "Address for the HTTP server.")
	flagSet.StringVar(&cfg.PipelinePath, "pipeline", base.PipelinePath, "Path to the pipeline HCL file or directory.")
	flagSet.StringVar(&cfg.PipelinePath, "p", base.PipelinePath, "Path to the pipeline HCL file or directory (shorthand).")
	flagSet.StringVar(&cfg.LogFormat, "log-format", base.LogFormat, "Log output format. Options: 'text' or 'json'.")
	flagSet.StringVar(&cfg.LogLevel, "log-level", base.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.Uint64Var(&cfg.Seed, "seed", base.Seed, "Seed for every random source. 0 is unseeded.")
	flagSet.DurationVar(&cfg.SessionTTL, "session-ttl", base.SessionTTL, "Lifetime of a login session.")
	flagSet.DurationVar(&cfg.LoginLatency, "login-latency", base.LoginLatency, "Artificial delay added to each login.")
	flagSet.StringVar(&cfg.RedisURL, "redis-url", base.RedisURL, "Redis URL for session storage. Empty keeps sessions in memory.")
	flagSet.StringVar(&cfg.OTelEndpoint, "otel-endpoint", base.OTelEndpoint, "OTLP/HTTP endpoint for traces. Empty disables tracing.")
	flagSet.DurationVar(&cfg.MetricsInterval, "metrics-interval", base.MetricsInterval, "How often system metrics are refreshed.")
	flagSet.DurationVar(&cfg.MetricsStaleAfter, "metrics-stale-after", base.MetricsStaleAfter, "How long a metrics reading is served from cache.")
	flagSet.BoolVar(&cfg.SimulateWithoutViewers, "simulate-without-viewers", base.SimulateWithoutViewers, "Run the simulator even when no viewer is connected.")
	flagSet.StringVar(&cfg.WatchURL, "watch", "", "Connect to a running server's live feed and print events as JSON lines.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	switch flagSet.NArg() {
	case 0:
	case 1:
		cfg.PipelinePath = flagSet.Arg(0)
	default:
		return nil, false, &ExitError{Code: 2, Message: "at most one pipeline file may be given"}
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "addr", config.Addr, "pipeline", config.PipelinePath)
	return config, false, nil
}
