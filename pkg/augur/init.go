package augur

import (
	"context"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
)

// Init creates a client and binds it to the global scope. It applies the initial scope,
// continues the trace given in the options and starts the process session when session
// tracking is on.
func Init(options Options) (*Client, error) {
	client, err := NewClient(options)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	GlobalScope().SetClient(client)

	limit := client.options.maxBreadcrumbs()
	for _, scope := range []*Scope{GlobalScope(), IsolationScope(ctx), CurrentScope(ctx)} {
		scope.SetMaxBreadcrumbs(limit)
	}
	if options.InitialScope != nil {
		options.InitialScope(IsolationScope(ctx))
	}
	if options.Trace != "" {
		pc := PropagationContextFromHeaders(options.Trace, options.Baggage)
		if !CurrentScope(ctx).SetPropagationContext(pc) {
			client.debugLogger.Debug("Propagation context already set, not continuing trace from options")
		}
	}
	if options.AutoSessionTracking {
		if sess := client.StartSession(ctx); sess != nil {
			client.trackedSession.Store(sess)
		}
	}
	client.debugLogger.Debug("Client initialized",
		zap.Bool("enabled", client.Enabled()),
		zap.String("release", client.options.Release),
		zap.String("environment", client.options.Environment),
	)
	return client, nil
}

// Close closes the client of ctx.
func Close(ctx context.Context) {
	CurrentClient(ctx).Close(ctx)
}

// InstallShutdownHook closes the client, ending its tracked session, when the process receives
// SIGINT or SIGTERM, then re-raises the signal. Forced termination such as SIGKILL or os.Exit
// bypasses the hook. The hook is removed when ctx is done or stop is called.
func (c *Client) InstallShutdownHook(ctx context.Context) (stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer signal.Stop(signals)
		select {
		case sig := <-signals:
			c.Logger().Debug("Received shutdown signal", zap.String("signal", sig.String()))
			closeCtx, cancel := context.WithTimeout(context.Background(), c.options.shutdownTimeout())
			c.Close(closeCtx)
			cancel()
			signal.Stop(signals)
			if process, err := os.FindProcess(os.Getpid()); err == nil {
				_ = process.Signal(sig)
			}
		case <-ctx.Done():
		case <-done:
		}
	}()
	return func() {
		select {
		case <-done:
		default:
			close(done)
		}
		<-stopped
	}
}

// ContinueTrace returns a context whose forked current scope continues the trace described by
// sentry-trace and baggage header values.
func ContinueTrace(ctx context.Context, sentryTrace string, baggage string) context.Context {
	traceCtx, scope := NewScopeContext(ctx)
	scope.ReplacePropagationContext(PropagationContextFromHeaders(sentryTrace, baggage))
	return traceCtx
}

// ContinueTraceparent is ContinueTrace for a W3C traceparent header value. Invalid values
// leave ctx unchanged.
func ContinueTraceparent(ctx context.Context, traceparent string) context.Context {
	pc, ok := PropagationContextFromTraceparent(traceparent)
	if !ok {
		return ctx
	}
	traceCtx, scope := NewScopeContext(ctx)
	scope.ReplacePropagationContext(pc)
	return traceCtx
}
