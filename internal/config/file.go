package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/panelsync/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// hclFile is the decoding target for a config file. Every attribute is
// optional; nil means "keep the value from the previous layer".
type hclFile struct {
	Root            *string       `hcl:"root,optional"`
	ImportVendor    *string       `hcl:"import_vendor,optional"`
	ExportVendor    *string       `hcl:"export_vendor,optional"`
	Workers         *int          `hcl:"workers,optional"`
	QueueSize       *int          `hcl:"queue_size,optional"`
	LogLevel        *string       `hcl:"log_level,optional"`
	LogFormat       *string       `hcl:"log_format,optional"`
	HealthcheckPort *int          `hcl:"healthcheck_port,optional"`
	Stability       *hclStability `hcl:"stability,block"`
	Gateway         *hclGateway   `hcl:"gateway,block"`
}

type hclStability struct {
	InitialDelay *string `hcl:"initial_delay,optional"`
	PollInterval *string `hcl:"poll_interval,optional"`
	Timeout      *string `hcl:"timeout,optional"`
}

type hclGateway struct {
	Mode      *string `hcl:"mode,optional"`
	URL       *string `hcl:"url,optional"`
	Namespace *string `hcl:"namespace,optional"`
	Timeout   *string `hcl:"timeout,optional"`
}

// EvalContext exposes the variables a config file may reference. Today
// that is only `home`, the current user's profile directory.
func EvalContext() *hcl.EvalContext {
	home, _ := os.UserHomeDir()
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"home": cty.StringVal(home),
		},
	}
}

// LoadFile decodes the HCL file at path on top of base and returns the
// merged configuration. It does not validate the result.
func LoadFile(ctx context.Context, path string, base Config) (Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding config file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, EvalContext(), &parsed)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	cfg, err := parsed.apply(base)
	if err != nil {
		return base, fmt.Errorf("config file %s: %w", path, err)
	}
	logger.Debug("Config file applied.", "path", path)
	return cfg, nil
}

func (f *hclFile) apply(cfg Config) (Config, error) {
	setString(&cfg.Root, f.Root)
	setString(&cfg.ImportVendor, f.ImportVendor)
	setString(&cfg.ExportVendor, f.ExportVendor)
	setInt(&cfg.Workers, f.Workers)
	setInt(&cfg.QueueSize, f.QueueSize)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogFormat, f.LogFormat)
	setInt(&cfg.HealthcheckPort, f.HealthcheckPort)

	if s := f.Stability; s != nil {
		if err := setDuration(&cfg.Stability.InitialDelay, s.InitialDelay, "stability.initial_delay"); err != nil {
			return cfg, err
		}
		if err := setDuration(&cfg.Stability.PollInterval, s.PollInterval, "stability.poll_interval"); err != nil {
			return cfg, err
		}
		if err := setDuration(&cfg.Stability.Timeout, s.Timeout, "stability.timeout"); err != nil {
			return cfg, err
		}
	}

	if g := f.Gateway; g != nil {
		setString(&cfg.Gateway.Mode, g.Mode)
		setString(&cfg.Gateway.URL, g.URL)
		setString(&cfg.Gateway.Namespace, g.Namespace)
		if err := setDuration(&cfg.Gateway.Timeout, g.Timeout, "gateway.timeout"); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
