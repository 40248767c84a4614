package augur

import (
	"context"
	"sync"
)

// scopes is the pair of scopes carried by a context. It is never mutated after it has been
// stored in a context; forking creates a new pair.
type scopes struct {
	current   *Scope
	isolation *Scope
}

type scopesKey struct{}

var (
	globalScope      *Scope
	defaultScopes    scopes
	defaultScopesMux sync.Once
)

func initDefaultScopes() {
	defaultScopesMux.Do(func() {
		globalScope = NewScope()
		defaultScopes = scopes{
			current:   NewScope(),
			isolation: NewScope(),
		}
	})
}

func scopesFromContext(ctx context.Context) scopes {
	if ctx != nil {
		if s, ok := ctx.Value(scopesKey{}).(scopes); ok {
			return s
		}
	}
	initDefaultScopes()
	return defaultScopes
}

func contextWithScopes(ctx context.Context, s scopes) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopesKey{}, s)
}

// GlobalScope returns the process-wide scope whose data applies to every event.
func GlobalScope() *Scope {
	initDefaultScopes()
	return globalScope
}

// CurrentScope returns the scope active for the logical execution branch ctx belongs to.
// Contexts that never went through WithScope resolve to the process default scope.
func CurrentScope(ctx context.Context) *Scope {
	return scopesFromContext(ctx).current
}

// IsolationScope returns the scope isolating the unit of work ctx belongs to, e.g. a request.
func IsolationScope(ctx context.Context) *Scope {
	return scopesFromContext(ctx).isolation
}

// CurrentClient returns the client bound to the current scope, falling back to the isolation
// scope and then to the global scope.
func CurrentClient(ctx context.Context) *Client {
	s := scopesFromContext(ctx)
	if client := s.current.Client(); client != nil {
		return client
	}
	if client := s.isolation.Client(); client != nil {
		return client
	}
	return GlobalScope().Client()
}

// NewScopeContext returns a context carrying a fork of the current scope, and the fork.
func NewScopeContext(ctx context.Context) (context.Context, *Scope) {
	s := scopesFromContext(ctx)
	fork := s.current.Fork()
	return contextWithScopes(ctx, scopes{current: fork, isolation: s.isolation}), fork
}

// NewIsolationScopeContext returns a context carrying forks of both the isolation and the
// current scope, and the isolation fork.
func NewIsolationScopeContext(ctx context.Context) (context.Context, *Scope) {
	s := scopesFromContext(ctx)
	isolation := s.isolation.Fork()
	return contextWithScopes(ctx, scopes{current: s.current.Fork(), isolation: isolation}), isolation
}

// WithScope runs callback with a fork of the current scope made current for the callback's
// context and every goroutine started from it. The caller's context keeps observing the
// original scope however the callback exits.
func WithScope(ctx context.Context, callback func(ctx context.Context, scope *Scope)) {
	scopeCtx, scope := NewScopeContext(ctx)
	callback(scopeCtx, scope)
}

// WithIsolationScope runs callback with forked isolation and current scopes.
func WithIsolationScope(ctx context.Context, callback func(ctx context.Context, scope *Scope)) {
	scopeCtx, scope := NewIsolationScopeContext(ctx)
	callback(scopeCtx, scope)
}

// ContextWithScope returns a context in which scope is the current scope.
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	s := scopesFromContext(ctx)
	return contextWithScopes(ctx, scopes{current: scope, isolation: s.isolation})
}

// resetForTest replaces the process scopes with fresh ones.
func resetForTest() {
	defaultScopesMux = sync.Once{}
	initDefaultScopes()
}
