package augur

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"go.uber.org/zap"
	"time"
)

const (
	defaultShutdownTimeout = 2 * time.Second
	defaultPlatform        = "go"
)

// Options configures a Client. The zero value is a disabled client.
type Options struct {
	// Dsn is the destination, e.g. "http://public@localhost:4317/1". Clients without a valid
	// DSN are disabled.
	Dsn string
	// Enabled disables the client when set to false.
	Enabled *bool
	// Debug turns on the SDK's own development logger when Logger is nil.
	Debug bool
	// Logger receives the SDK's diagnostics. When nil a no-op logger is used unless Debug is set.
	Logger *zap.Logger

	Release     string
	Environment string
	ServerName  string

	// SampleRate is the probability of sending an error event. Zero means 1.0.
	SampleRate float64
	// EnableTracing turns on span sampling with TracesSampleRate.
	EnableTracing    bool
	TracesSampleRate float64
	// TracesSampler decides for new traces and takes precedence over TracesSampleRate.
	TracesSampler TracesSampler

	// MaxBreadcrumbs bounds the retained breadcrumbs. Zero means DefaultMaxBreadcrumbs, a
	// negative value disables breadcrumbs.
	MaxBreadcrumbs int
	// IgnoreErrors drops error events whose message or exception values contain any entry.
	IgnoreErrors []string

	BeforeSend            func(event *model.Event, hint *EventHint) *model.Event
	BeforeSendTransaction func(event *model.Event, hint *EventHint) *model.Event
	BeforeBreadcrumb      func(breadcrumb model.Breadcrumb) *model.Breadcrumb

	Integrations []Integration
	Transport    transport.Transport

	// AutoSessionTracking starts a process session on Init and ends it on Close.
	AutoSessionTracking bool
	// InitialScope is applied to the process isolation scope on Init.
	InitialScope func(scope *Scope)

	// Trace and Baggage are inbound sentry-trace and baggage values to continue on Init.
	Trace   string
	Baggage string

	// ShutdownTimeout bounds the flush run by the shutdown hook.
	ShutdownTimeout time.Duration
}

func (o Options) isEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

func (o Options) maxBreadcrumbs() int {
	switch {
	case o.MaxBreadcrumbs < 0:
		return 0
	case o.MaxBreadcrumbs == 0:
		return DefaultMaxBreadcrumbs
	default:
		return o.MaxBreadcrumbs
	}
}

func (o Options) sampleRate() float64 {
	if o.SampleRate <= 0 {
		return 1
	}
	return o.SampleRate
}

func (o Options) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}
	return o.ShutdownTimeout
}

func newLogger(options Options) *zap.Logger {
	if options.Logger != nil {
		return options.Logger
	}
	if options.Debug {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger.Named("augur")
		}
	}
	return zap.NewNop()
}
