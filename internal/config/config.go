package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/panelsync/internal/dispatcher"
	"github.com/vk/panelsync/internal/layout"
	"github.com/vk/panelsync/internal/stability"
)

// Gateway modes.
const (
	GatewayLog      = "log"
	GatewaySocketIO = "socketio"
)

const (
	DefaultGatewayURL       = "http://127.0.0.1:3333"
	DefaultGatewayNamespace = "/"
	DefaultGatewayTimeout   = 30 * time.Second
)

// Config holds everything the app needs to run.
type Config struct {
	Root         string
	ImportVendor string
	ExportVendor string

	Workers   int
	QueueSize int

	LogLevel        string
	LogFormat       string
	HealthcheckPort int

	Stability stability.Options
	Gateway   Gateway
}

// Gateway selects and configures the host application bridge.
type Gateway struct {
	Mode      string
	URL       string
	Namespace string
	Timeout   time.Duration
}

// Default returns the built-in configuration. Root is left empty when the
// user profile cannot be resolved; Validate reports it.
func Default() Config {
	root, _ := layout.DefaultRoot()
	return Config{
		Root:         root,
		ImportVendor: layout.DefaultImportVendor,
		ExportVendor: layout.DefaultExportVendor,
		Workers:      dispatcher.DefaultWorkers,
		QueueSize:    dispatcher.DefaultQueueSize,
		LogLevel:     "info",
		LogFormat:    "text",
		Stability:    stability.DefaultOptions(),
		Gateway: Gateway{
			Mode:      GatewaySocketIO,
			URL:       DefaultGatewayURL,
			Namespace: DefaultGatewayNamespace,
			Timeout:   DefaultGatewayTimeout,
		},
	}
}

// Layout resolves the hot-folder tree the configuration points at.
func (c Config) Layout() layout.Layout {
	return layout.New(c.Root, c.ImportVendor, c.ExportVendor)
}

// Validate checks the configuration and normalizes case-insensitive
// values in place.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root directory is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.HealthcheckPort < 0 || c.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("healthcheck_port out of range: %d", c.HealthcheckPort))
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat))
	}

	if err := c.Stability.Validate(); err != nil {
		errs = append(errs, err)
	}

	c.Gateway.Mode = strings.ToLower(c.Gateway.Mode)
	switch c.Gateway.Mode {
	case GatewayLog:
	case GatewaySocketIO:
		if c.Gateway.URL == "" {
			errs = append(errs, errors.New("gateway url is required in socketio mode"))
		}
		if c.Gateway.Timeout <= 0 {
			errs = append(errs, errors.New("gateway timeout must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid gateway mode %q: must be %q or %q", c.Gateway.Mode, GatewayLog, GatewaySocketIO))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
