package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/panelsync/internal/config"
	"github.com/vk/panelsync/internal/ctxlog"
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

// Parse processes command-line arguments. It returns a validated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*config.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("panelsync", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
panelsync - Hot-folder bridge between a geometry exporter and a CAD host.

Watches <root>/jobs for *.json job descriptors and the import vendor's
exports/iges folder for *.igs geometry, and drives the host application
through its gateway.

Usage:
  panelsync [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := config.Default()
	configPath := flagSet.String("config", "", "Path to an HCL config file. Flags override its values.")
	root := flagSet.String("root", defaults.Root, "Hot-folder root directory.")
	workers := flagSet.Int("workers", defaults.Workers, "Number of concurrent workers.")
	logLevel := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	healthPort := flagSet.Int("healthcheck-port", defaults.HealthcheckPort, "Port for the HTTP health check and metrics server. 0 is disabled.")
	gatewayMode := flagSet.String("gateway", defaults.Gateway.Mode, "Host gateway. Options: 'socketio' or 'log' (dry run).")
	gatewayURL := flagSet.String("gateway-url", defaults.Gateway.URL, "URL of the host plugin's socket.io endpoint.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := defaults
	if *configPath != "" {
		ctx := ctxlog.WithLogger(context.Background(), slog.Default())
		loaded, err := config.LoadFile(ctx, *configPath, cfg)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = loaded
	}

	// Only flags given explicitly override the file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *root
		case "workers":
			cfg.Workers = *workers
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "healthcheck-port":
			cfg.HealthcheckPort = *healthPort
		case "gateway":
			cfg.Gateway.Mode = *gatewayMode
		case "gateway-url":
			cfg.Gateway.URL = *gatewayURL
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "root", cfg.Root, "gateway", cfg.Gateway.Mode)
	return &cfg, false, nil
}
