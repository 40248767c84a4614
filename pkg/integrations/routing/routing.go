// Package routing traces client-side navigation. The host router reports the initial location
// and every location change; each becomes a transaction named by the route that handles it.
package routing

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/route"
	"sync"
)

type Action string

const (
	Push    Action = "PUSH"
	Pop     Action = "POP"
	Replace Action = "REPLACE"

	OpPageload   = "pageload"
	OpNavigation = "navigation"

	TagInstrumentation         = "routing.instrumentation"
	DefaultInstrumentationName = "augur-routing"
)

type Options struct {
	// StartTransactionOnPageLoad and StartTransactionOnLocationChange default to true.
	StartTransactionOnPageLoad       *bool
	StartTransactionOnLocationChange *bool
	InstrumentationName              string
}

type Instrumentation struct {
	matcher  *route.Matcher
	options  Options
	active   *augur.Span
	activeMu sync.Mutex
}

// New creates an instrumentation naming transactions through matcher. A nil matcher names
// every transaction by its raw path.
func New(matcher *route.Matcher, options Options) *Instrumentation {
	if options.InstrumentationName == "" {
		options.InstrumentationName = DefaultInstrumentationName
	}
	return &Instrumentation{matcher: matcher, options: options}
}

// Start starts the pageload transaction for the initial location. The returned context has
// the transaction active.
func (i *Instrumentation) Start(ctx context.Context, path string) (context.Context, *augur.Span) {
	if !enabled(i.options.StartTransactionOnPageLoad) {
		return ctx, nil
	}
	return i.startTransaction(ctx, path, OpPageload)
}

// OnLocationChange ends the active transaction and starts a navigation transaction on a fresh
// trace. Only PUSH and POP navigate; replacing the location keeps the active transaction.
func (i *Instrumentation) OnLocationChange(ctx context.Context, path string, action Action) (context.Context, *augur.Span) {
	if !enabled(i.options.StartTransactionOnLocationChange) || (action != Push && action != Pop) {
		return ctx, nil
	}
	i.activeMu.Lock()
	previous := i.active
	i.active = nil
	i.activeMu.Unlock()
	previous.End()

	navCtx, scope := augur.NewScopeContext(ctx)
	scope.SetSpan(nil)
	scope.ReplacePropagationContext(augur.NewPropagationContext())
	return i.startTransaction(navCtx, path, OpNavigation)
}

// MatchedRoute renames the active transaction after the router resolved the route pattern
// that handles the location.
func (i *Instrumentation) MatchedRoute(pattern string) {
	i.activeMu.Lock()
	defer i.activeMu.Unlock()
	if i.active != nil && pattern != "" {
		i.active.SetNameAndSource(pattern, route.SourceRoute)
	}
}

// Active returns the transaction of the current location, or nil.
func (i *Instrumentation) Active() *augur.Span {
	i.activeMu.Lock()
	defer i.activeMu.Unlock()
	return i.active
}

func (i *Instrumentation) startTransaction(ctx context.Context, path string, op string) (context.Context, *augur.Span) {
	name, source := i.matcher.NameForPath(path)
	span := augur.StartInactiveSpan(ctx, augur.SpanOptions{
		Name:   name,
		Op:     op,
		Origin: "auto." + op + ".augur.routing",
		Source: source,
		Tags:   map[string]string{TagInstrumentation: i.options.InstrumentationName},
	})
	i.activeMu.Lock()
	i.active = span
	i.activeMu.Unlock()
	return augur.ContextWithSpan(ctx, span), span
}

func enabled(option *bool) bool {
	return option == nil || *option
}
