package config

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
)

const (
	EnvDsn              = "AUGUR_DSN"
	EnvEnvironment      = "AUGUR_ENVIRONMENT"
	EnvRelease          = "AUGUR_RELEASE"
	EnvSampleRate       = "AUGUR_SAMPLE_RATE"
	EnvTracesSampleRate = "AUGUR_TRACES_SAMPLE_RATE"
	EnvDebug            = "AUGUR_DEBUG"
	EnvTrace            = "AUGUR_TRACE"
	EnvBaggage          = "AUGUR_BAGGAGE"
	EnvUseEnvironment   = "AUGUR_USE_ENVIRONMENT"
)

var ErrUnknownKeys = errors.New("unknown configuration keys")

var (
	rateMin = decimal.Zero
	rateMax = decimal.NewFromInt(1)
)

type Config struct {
	Dsn                 string          `toml:"dsn"`
	Environment         string          `toml:"environment"`
	Release             string          `toml:"release"`
	Debug               bool            `toml:"debug"`
	SampleRate          string          `toml:"sample_rate"`
	TracesSampleRate    string          `toml:"traces_sample_rate"`
	AutoSessionTracking *bool           `toml:"auto_session_tracking"`
	MaxBreadcrumbs      int             `toml:"max_breadcrumbs"`
	IgnoreErrors        []string        `toml:"ignore_errors"`
	Transport           TransportConfig `toml:"transport"`

	// Trace and Baggage continue an upstream trace. They only come from the environment.
	Trace   string `toml:"-"`
	Baggage string `toml:"-"`
}

type TransportConfig struct {
	// Kind is "otlp", "elasticsearch" or "memory".
	Kind      string   `toml:"kind"`
	Endpoint  string   `toml:"endpoint"`
	Protocol  string   `toml:"protocol"`
	Insecure  bool     `toml:"insecure"`
	Addresses []string `toml:"addresses"`
	BatchSize int      `toml:"batch_size"`
}

// Load reads the TOML file at path, when given, and overlays the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
		}
	}
	cfg.ApplyEnvironment()
	return cfg, nil
}

// ApplyEnvironment overlays the AUGUR_* variables. Environment values win over file values.
func (c *Config) ApplyEnvironment() {
	overlay := map[string]*string{
		EnvDsn:              &c.Dsn,
		EnvEnvironment:      &c.Environment,
		EnvRelease:          &c.Release,
		EnvSampleRate:       &c.SampleRate,
		EnvTracesSampleRate: &c.TracesSampleRate,
	}
	for name, field := range overlay {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			*field = value
		}
	}
	if value, ok := os.LookupEnv(EnvDebug); ok {
		if debugOn, err := strconv.ParseBool(value); err == nil {
			c.Debug = debugOn
		}
	}
	if useEnvironment(os.Getenv(EnvUseEnvironment)) {
		c.Trace = os.Getenv(EnvTrace)
		c.Baggage = os.Getenv(EnvBaggage)
	}
}

func useEnvironment(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "n", "no", "off", "0":
		return false
	default:
		return true
	}
}

// ParseSampleRate parses a probability in [0, 1]. Empty and invalid values report false.
func ParseSampleRate(value string) (float64, bool) {
	if strings.TrimSpace(value) == "" {
		return 0, false
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || rate.LessThan(rateMin) || rate.GreaterThan(rateMax) {
		return 0, false
	}
	return rate.InexactFloat64(), true
}

// ResolveRelease returns the configured release, falling back to the VCS revision the binary
// was built from.
func (c *Config) ResolveRelease() string {
	if c.Release != "" {
		return c.Release
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return ""
}

// ClientOptions builds client options. Session tracking defaults to on only when a release is
// known, since sessions are aggregated per release.
func (c *Config) ClientOptions(t transport.Transport, logger *zap.Logger) augur.Options {
	release := c.ResolveRelease()
	options := augur.Options{
		Dsn:            c.Dsn,
		Debug:          c.Debug,
		Logger:         logger,
		Release:        release,
		Environment:    c.Environment,
		MaxBreadcrumbs: c.MaxBreadcrumbs,
		IgnoreErrors:   c.IgnoreErrors,
		Transport:      t,
		Trace:          c.Trace,
		Baggage:        c.Baggage,
	}
	if rate, ok := ParseSampleRate(c.SampleRate); ok {
		options.SampleRate = rate
	} else if c.SampleRate != "" && logger != nil {
		logger.Warn("Ignoring invalid sample rate", zap.String("sample_rate", c.SampleRate))
	}
	if rate, ok := ParseSampleRate(c.TracesSampleRate); ok {
		options.EnableTracing = true
		options.TracesSampleRate = rate
	} else if c.TracesSampleRate != "" && logger != nil {
		logger.Warn("Ignoring invalid traces sample rate", zap.String("traces_sample_rate", c.TracesSampleRate))
	}
	if c.AutoSessionTracking != nil {
		options.AutoSessionTracking = *c.AutoSessionTracking
	} else {
		options.AutoSessionTracking = release != ""
	}
	return options
}
