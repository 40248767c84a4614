package augur

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"sync"
	"testing"
)

func TestWithScope(t *testing.T) {
	t.Run("Restores the current scope after the callback", func(t *testing.T) {
		resetForTest()
		ctx := context.Background()
		original := CurrentScope(ctx)

		WithScope(ctx, func(scopeCtx context.Context, scope *Scope) {
			assert.Same(t, scope, CurrentScope(scopeCtx))
			assert.NotSame(t, original, scope)
			scope.SetTag("inner", "yes")
		})

		assert.Same(t, original, CurrentScope(ctx))
		assert.NotContains(t, original.Tags(), "inner")
	})

	t.Run("Restores the current scope when the callback panics", func(t *testing.T) {
		resetForTest()
		ctx := context.Background()
		original := CurrentScope(ctx)

		assert.Panics(t, func() {
			WithScope(ctx, func(scopeCtx context.Context, scope *Scope) {
				scope.SetTag("inner", "yes")
				panic("boom")
			})
		})

		assert.Same(t, original, CurrentScope(ctx))
		assert.NotContains(t, original.Tags(), "inner")
	})

	t.Run("Nested scopes inherit from their parent", func(t *testing.T) {
		resetForTest()
		WithScope(context.Background(), func(outerCtx context.Context, outer *Scope) {
			outer.SetTag("outer", "yes")
			WithScope(outerCtx, func(innerCtx context.Context, inner *Scope) {
				assert.Equal(t, "yes", CurrentScope(innerCtx).Tags()["outer"])
			})
		})
	})

	t.Run("Keeps the isolation scope", func(t *testing.T) {
		resetForTest()
		ctx := context.Background()
		WithScope(ctx, func(scopeCtx context.Context, _ *Scope) {
			assert.Same(t, IsolationScope(ctx), IsolationScope(scopeCtx))
		})
	})
}

func TestWithIsolationScope(t *testing.T) {
	t.Run("Forks both the isolation and the current scope", func(t *testing.T) {
		resetForTest()
		ctx := context.Background()
		IsolationScope(ctx).SetTag("process", "yes")

		WithIsolationScope(ctx, func(requestCtx context.Context, isolation *Scope) {
			assert.Same(t, isolation, IsolationScope(requestCtx))
			assert.NotSame(t, CurrentScope(ctx), CurrentScope(requestCtx))
			assert.Equal(t, "yes", isolation.Tags()["process"])
			isolation.SetTag("request", "yes")
		})

		assert.NotContains(t, IsolationScope(ctx).Tags(), "request")
	})
}

func TestCurrentClient(t *testing.T) {
	t.Run("Falls back from current to isolation to global", func(t *testing.T) {
		resetForTest()
		ctx := context.Background()
		global := &Client{}
		isolation := &Client{}
		current := &Client{}

		GlobalScope().SetClient(global)
		assert.Same(t, global, CurrentClient(ctx))

		isolationCtx, isolationScope := NewIsolationScopeContext(ctx)
		isolationScope.SetClient(isolation)
		assert.Same(t, isolation, CurrentClient(isolationCtx))

		currentCtx, currentScope := NewScopeContext(isolationCtx)
		currentScope.SetClient(current)
		assert.Same(t, current, CurrentClient(currentCtx))
	})

	t.Run("Returns nil without any client", func(t *testing.T) {
		resetForTest()
		assert.Nil(t, CurrentClient(context.Background()))
	})
}

func TestAsyncContextPropagation(t *testing.T) {
	t.Run("Concurrent branches do not observe each other's tags", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{})
		ctx := context.Background()

		branches := []string{"first", "second"}
		var ready sync.WaitGroup
		var wg sync.WaitGroup
		ready.Add(len(branches))
		release := make(chan struct{})
		for _, branch := range branches {
			wg.Add(1)
			go func() {
				defer wg.Done()
				WithScope(ctx, func(scopeCtx context.Context, scope *Scope) {
					scope.SetTag("branch", branch)
					ready.Done()
					<-release
					done := make(chan struct{})
					go func() {
						defer close(done)
						CaptureMessage(scopeCtx, branch, nil)
					}()
					<-done
				})
			}()
		}
		ready.Wait()
		close(release)
		wg.Wait()

		envelopes := flushEnvelopes(t, client, memoryTransport, transport.EventKind)
		assert.Len(t, envelopes, 2)
		for _, envelope := range envelopes {
			assert.Equal(t, envelope.Event.Message, envelope.Event.Tags["branch"])
		}
		assert.NotContains(t, CurrentScope(ctx).Tags(), "branch")
	})
}
